package delivery

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resinat/Prism/internal/netutil"
)

const infiniteLatency = time.Duration(math.MaxInt64)

// endpoint is the per-origin record. Only probe results mutate it.
type endpoint struct {
	name    string
	baseURL string
	domain  string
	primary bool
	order   int

	mu          sync.Mutex // guards ewma and lastUpdated
	ewma        time.Duration
	lastUpdated time.Time

	latency   atomic.Int64 // published EWMA in ns; infiniteLatency when failed
	probed    atomic.Bool
	failed    atomic.Bool
	lastProbe atomic.Int64 // unix nanos
	successes atomic.Uint64
	failures  atomic.Uint64
}

func newEndpoint(name, baseURL string, primary bool, order int) *endpoint {
	return &endpoint{
		name:    name,
		baseURL: baseURL,
		domain:  netutil.ExtractDomain(baseURL),
		primary: primary,
		order:   order,
	}
}

// recordSuccess folds latency into the TD-EWMA and clears the failed flag.
//
//	weight = exp(-Δt / decayWindow)
//	ewma   = ewma*weight + latency*(1-weight)
//
// The first observation (or the first after a failure) sets the raw latency.
func (e *endpoint) recordSuccess(latency, decayWindow time.Duration, now time.Time) {
	e.mu.Lock()
	if e.lastUpdated.IsZero() || e.failed.Load() {
		e.ewma = latency
	} else {
		dt := now.Sub(e.lastUpdated).Seconds()
		decay := decayWindow.Seconds()
		if decay <= 0 {
			decay = 1
		}
		weight := math.Exp(-dt / decay)
		e.ewma = time.Duration(float64(e.ewma)*weight + float64(latency)*(1-weight))
	}
	e.lastUpdated = now
	ewma := e.ewma
	e.mu.Unlock()

	e.latency.Store(int64(ewma))
	e.probed.Store(true)
	e.failed.Store(false)
	e.lastProbe.Store(now.UnixNano())
	e.successes.Add(1)
}

func (e *endpoint) recordFailure(now time.Time) {
	e.latency.Store(int64(infiniteLatency))
	e.probed.Store(true)
	e.failed.Store(true)
	e.lastProbe.Store(now.UnixNano())
	e.failures.Add(1)
}

func (e *endpoint) averageLatency() time.Duration {
	return time.Duration(e.latency.Load())
}

// EndpointStats is the externally visible state of one endpoint.
type EndpointStats struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Primary   bool      `json:"primary"`
	Probed    bool      `json:"probed"`
	Failed    bool      `json:"failed"`
	LatencyMs *float64  `json:"latency_ms"`
	Successes uint64    `json:"successes"`
	Failures  uint64    `json:"failures"`
	LastProbe time.Time `json:"last_probe,omitzero"`
}

func (e *endpoint) stats() EndpointStats {
	s := EndpointStats{
		Name:      e.name,
		URL:       e.baseURL,
		Domain:    e.domain,
		Primary:   e.primary,
		Probed:    e.probed.Load(),
		Failed:    e.failed.Load(),
		Successes: e.successes.Load(),
		Failures:  e.failures.Load(),
	}
	if s.Probed && !s.Failed {
		ms := durationMs(e.averageLatency())
		s.LatencyMs = &ms
	}
	if ns := e.lastProbe.Load(); ns > 0 {
		s.LastProbe = time.Unix(0, ns)
	}
	return s
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
