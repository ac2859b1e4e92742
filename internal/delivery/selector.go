// Package delivery selects among content-delivery origins by observed
// latency and failure state, and builds transformation URLs against them.
package delivery

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Resinat/Prism/internal/scanloop"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// ProbeFunc performs an existence check against url and returns the
// observed latency. Injectable for testing; see netutil.HTTPProbe.
type ProbeFunc func(ctx context.Context, url string) (time.Duration, error)

// Endpoint is one configured origin.
type Endpoint struct {
	Name string
	URL  string
}

// Config configures a Selector.
// Interval and timeout fields are closures for hot-reload from RuntimeConfig.
type Config struct {
	Primary   Endpoint
	Fallbacks []Endpoint

	Probe     ProbeFunc
	ProbePath string

	ProbeInterval      func() time.Duration
	ProbeTimeout       func() time.Duration
	LatencyDecayWindow func() time.Duration
}

// Selector tracks per-endpoint health and picks the origin for each URL.
type Selector struct {
	endpoints []*endpoint // primary first, then fallbacks in config order
	index     *xsync.Map[string, *endpoint]

	probe              ProbeFunc
	probePath          string
	probeInterval      func() time.Duration
	probeTimeout       func() time.Duration
	latencyDecayWindow func() time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

const (
	defaultProbeTimeout = 5 * time.Second
	defaultDecayWindow  = 10 * time.Minute
)

// NewSelector creates a Selector. It panics if no primary URL or probe
// func is configured.
func NewSelector(cfg Config) *Selector {
	if cfg.Primary.URL == "" {
		panic("delivery: primary endpoint URL is required")
	}
	if cfg.Probe == nil {
		panic("delivery: probe func is required")
	}

	s := &Selector{
		index:              xsync.NewMap[string, *endpoint](),
		probe:              cfg.Probe,
		probePath:          cfg.ProbePath,
		probeInterval:      cfg.ProbeInterval,
		probeTimeout:       cfg.ProbeTimeout,
		latencyDecayWindow: cfg.LatencyDecayWindow,
		stopCh:             make(chan struct{}),
	}
	if s.probePath == "" {
		s.probePath = "/favicon.ico"
	}

	all := append([]Endpoint{cfg.Primary}, cfg.Fallbacks...)
	for i, ep := range all {
		name := ep.Name
		if name == "" {
			if i == 0 {
				name = "primary"
			} else {
				name = fmt.Sprintf("fallback-%d", i)
			}
		}
		rec := newEndpoint(name, ep.URL, i == 0, i)
		s.endpoints = append(s.endpoints, rec)
		s.index.Store(strings.ToLower(name), rec)
		s.index.LoadOrStore(urlKey(ep.URL), rec)
	}
	return s
}

// BuildURL returns the delivery URL for assetPath with opts encoded as a
// query string. override may name a configured endpoint (by name or base
// URL) or be an absolute base URL; otherwise the best endpoint is selected.
func (s *Selector) BuildURL(assetPath string, opts TransformOptions, override string) string {
	return joinURL(s.baseFor(override), assetPath, opts.Query())
}

func (s *Selector) baseFor(override string) string {
	if override != "" {
		if rec, ok := s.lookup(override); ok {
			return rec.baseURL
		}
		if isAbsoluteURL(override) {
			return override
		}
	}
	return s.selectEndpoint().baseURL
}

func (s *Selector) lookup(key string) (*endpoint, bool) {
	if rec, ok := s.index.Load(strings.ToLower(key)); ok {
		return rec, true
	}
	return s.index.Load(urlKey(key))
}

// Has reports whether key names a configured endpoint or its base URL.
func (s *Selector) Has(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

// selectEndpoint applies the selection order: the primary unless failed;
// else the probed healthy fallback with the lowest latency; else the first
// unprobed fallback; else the primary as last resort.
func (s *Selector) selectEndpoint() *endpoint {
	primary := s.endpoints[0]
	if !primary.failed.Load() {
		return primary
	}

	var best, firstUnprobed *endpoint
	for _, rec := range s.endpoints[1:] {
		if rec.failed.Load() {
			continue
		}
		if !rec.probed.Load() {
			if firstUnprobed == nil {
				firstUnprobed = rec
			}
			continue
		}
		if best == nil || rec.averageLatency() < best.averageLatency() {
			best = rec
		}
	}
	switch {
	case best != nil:
		return best
	case firstUnprobed != nil:
		return firstUnprobed
	default:
		return primary
	}
}

// Probe checks testPath on every endpoint concurrently and updates each
// record. A failed check marks the endpoint failed with infinite latency.
// Checks cut short by ctx itself leave the records untouched; only the
// per-endpoint timeout counts as a failure.
func (s *Selector) Probe(ctx context.Context, testPath string) {
	if testPath == "" {
		testPath = s.probePath
	}
	timeout := durationOr(s.probeTimeout, defaultProbeTimeout)
	decay := durationOr(s.latencyDecayWindow, defaultDecayWindow)

	var g errgroup.Group
	for _, rec := range s.endpoints {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			target := joinURL(rec.baseURL, testPath, "")
			latency, err := s.probe(probeCtx, target)
			now := time.Now()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				wasFailed := rec.failed.Load()
				rec.recordFailure(now)
				if !wasFailed {
					log.Printf("[delivery] endpoint %s (%s) marked failed: %v", rec.name, rec.domain, err)
				}
				return nil
			}
			if rec.failed.Load() {
				log.Printf("[delivery] endpoint %s (%s) recovered (%v)", rec.name, rec.domain, latency)
			}
			rec.recordSuccess(latency, decay, now)
			return nil
		})
	}
	_ = g.Wait()
}

// Stats is a point-in-time summary of endpoint health.
type Stats struct {
	AverageLatencyMs float64         `json:"average_latency_ms"`
	ActiveCount      int             `json:"active_count"`
	FailedEndpoints  []string        `json:"failed_endpoints"`
	BestEndpoint     string          `json:"best_endpoint"`
	Endpoints        []EndpointStats `json:"endpoints"`
}

// Stats returns the current selector state. AverageLatencyMs averages the
// healthy probed endpoints; ActiveCount counts endpoints not flagged failed.
func (s *Selector) Stats() Stats {
	out := Stats{
		FailedEndpoints: []string{},
		BestEndpoint:    s.selectEndpoint().baseURL,
		Endpoints:       make([]EndpointStats, 0, len(s.endpoints)),
	}
	var sum float64
	var measured int
	for _, rec := range s.endpoints {
		es := rec.stats()
		out.Endpoints = append(out.Endpoints, es)
		if es.Failed {
			out.FailedEndpoints = append(out.FailedEndpoints, es.URL)
			continue
		}
		out.ActiveCount++
		if es.LatencyMs != nil {
			sum += *es.LatencyMs
			measured++
		}
	}
	if measured > 0 {
		out.AverageLatencyMs = sum / float64(measured)
	}
	return out
}

// Start launches the background probe loop. The first probe runs
// immediately; later ones follow ProbeInterval with jitter.
func (s *Selector) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.probeInBackground()
			scanloop.Run(s.stopCh, s.probeInterval, scanloop.DefaultJitterRange, s.probeInBackground)
		}()
	})
}

// Stop signals the probe loop to exit and waits for it.
func (s *Selector) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Selector) probeInBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	s.Probe(ctx, s.probePath)
}

func durationOr(fn func() time.Duration, fallback time.Duration) time.Duration {
	if fn == nil {
		return fallback
	}
	if d := fn(); d > 0 {
		return d
	}
	return fallback
}
