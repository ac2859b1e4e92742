// Package transform implements the image transformation cache and
// dispatcher: canonical cache keys, single-flight deduplication of
// identical in-flight requests, a bounded LRU with per-entry TTL, batching,
// and graceful degradation to the original source on any failure.
package transform

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Resinat/Prism/internal/delivery"
	"github.com/Resinat/Prism/internal/metrics"
	"github.com/Resinat/Prism/internal/netutil"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// URLBuilder builds delivery URLs for backend variants that only carry a
// path. *delivery.Selector satisfies it.
type URLBuilder interface {
	BuildURL(path string, opts delivery.TransformOptions, override string) string
}

// Config configures a Dispatcher. Zero values take the defaults below.
type Config struct {
	Backend    Backend
	URLBuilder URLBuilder    // optional
	Limiter    *rate.Limiter // optional client-side throttle ahead of Backend

	DefaultQuality   int
	CacheCapacity    int
	CacheTTL         time.Duration
	BackendTimeout   time.Duration
	MaxBatchSize     int
	BatchConcurrency int
	StatsWindow      int

	// Now overrides the clock used for cache expiry. Injectable for testing.
	Now func() time.Time
}

const (
	DefaultQuality          = 75
	DefaultCacheCapacity    = 500
	DefaultCacheTTL         = time.Hour
	DefaultBackendTimeout   = 10 * time.Second
	DefaultMaxBatchSize     = 20
	DefaultBatchConcurrency = 4
	DefaultStatsWindow      = 1000
)

// settings is the hot-updatable part of Config, swapped atomically.
type settings struct {
	defaultQuality   int
	cacheCapacity    int
	cacheTTL         time.Duration
	backendTimeout   time.Duration
	maxBatchSize     int
	batchConcurrency int
}

// ConfigPatch holds live updates; nil fields are left unchanged.
type ConfigPatch struct {
	DefaultQuality   *int
	CacheCapacity    *int
	CacheTTL         *time.Duration
	BackendTimeout   *time.Duration
	MaxBatchSize     *int
	BatchConcurrency *int
}

// Dispatcher owns one result cache and one in-flight registry. Independent
// dispatchers never share state.
type Dispatcher struct {
	backend    Backend
	urlBuilder URLBuilder
	limiter    *rate.Limiter

	settings atomic.Pointer[settings]
	cache    *resultCache
	inflight singleflight.Group

	window   *metrics.Ring[metrics.Observation]
	counters map[metrics.Outcome]*xsync.Counter
	backendN *xsync.Counter
	evicted  *xsync.Counter
}

// NewDispatcher creates a Dispatcher. It panics if cfg.Backend is nil.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Backend == nil {
		panic("transform: backend is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &settings{
		defaultQuality:   orInt(cfg.DefaultQuality, DefaultQuality),
		cacheCapacity:    orInt(cfg.CacheCapacity, DefaultCacheCapacity),
		cacheTTL:         orDuration(cfg.CacheTTL, DefaultCacheTTL),
		backendTimeout:   orDuration(cfg.BackendTimeout, DefaultBackendTimeout),
		maxBatchSize:     orInt(cfg.MaxBatchSize, DefaultMaxBatchSize),
		batchConcurrency: orInt(cfg.BatchConcurrency, DefaultBatchConcurrency),
	}

	d := &Dispatcher{
		backend:    cfg.Backend,
		urlBuilder: cfg.URLBuilder,
		limiter:    cfg.Limiter,
		cache:      newResultCache(s.cacheCapacity, now),
		window:     metrics.NewRing[metrics.Observation](orInt(cfg.StatsWindow, DefaultStatsWindow)),
		counters:   make(map[metrics.Outcome]*xsync.Counter),
		backendN:   xsync.NewCounter(),
		evicted:    xsync.NewCounter(),
	}
	for _, o := range []metrics.Outcome{
		metrics.OutcomeHit, metrics.OutcomeMiss, metrics.OutcomeShared,
		metrics.OutcomeFallback, metrics.OutcomeTimeout, metrics.OutcomeTrimmed,
	} {
		d.counters[o] = xsync.NewCounter()
	}
	d.settings.Store(s)
	return d
}

// Optimize returns the transformation result for req. It never returns nil
// and never fails: backend errors, rate limiting, timeouts and caller
// cancellation all yield a result whose Fallback points at req.Source.
func (d *Dispatcher) Optimize(ctx context.Context, req Request) *Result {
	start := time.Now()
	s := d.settings.Load()
	params := Normalize(req.Options, req.Capabilities, s.defaultQuality)
	source := strings.TrimSpace(req.Source)
	if source == "" {
		d.observe(metrics.OutcomeFallback, start)
		return fallbackResult("", req.Source, params)
	}

	key := CacheKey(source, params)
	if r, ok := d.cache.get(key); ok {
		d.observe(metrics.OutcomeHit, start)
		return r
	}

	ch := d.inflight.DoChan(key, func() (any, error) {
		return d.fetch(ctx, key, source, params, req.Endpoint)
	})
	select {
	case res := <-ch:
		r := res.Val.(*Result)
		switch {
		case errors.Is(res.Err, context.DeadlineExceeded):
			d.observe(metrics.OutcomeTimeout, start)
		case res.Err != nil:
			d.observe(metrics.OutcomeFallback, start)
		case res.Shared:
			d.observe(metrics.OutcomeShared, start)
		default:
			d.observe(metrics.OutcomeMiss, start)
		}
		return r
	case <-ctx.Done():
		// The shared call keeps running for other waiters and may still
		// populate the cache.
		d.observe(metrics.OutcomeTimeout, start)
		return fallbackResult(key, source, params)
	}
}

// fetch is the single-flight body. It runs the backend under a context
// detached from the originating caller and bounded by the backend timeout,
// so one caller giving up does not fail the call for the others.
func (d *Dispatcher) fetch(callerCtx context.Context, key, source string, params Params, endpoint string) (*Result, error) {
	if r, ok := d.cache.get(key); ok {
		return r, nil
	}
	s := d.settings.Load()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(callerCtx), s.backendTimeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Printf("[dispatch] throttled %s: %v", source, err)
			return fallbackResult(key, source, params), context.DeadlineExceeded
		}
	}

	d.backendN.Inc()
	sources, err := d.backend.Transform(ctx, source, params)
	if err == nil {
		sources = d.completeSources(sources, params, endpoint)
		if len(sources) == 0 {
			err = ErrEmptyResult
		}
	}
	if err != nil {
		switch {
		case netutil.IsRateLimited(err):
			log.Printf("[dispatch] backend rate limited %s, serving original", source)
		case errors.Is(err, context.DeadlineExceeded):
			log.Printf("[dispatch] backend timeout after %v for %s, serving original", s.backendTimeout, source)
		default:
			log.Printf("[dispatch] backend failed for %s: %v", source, err)
		}
		return fallbackResult(key, source, params), err
	}

	r := &Result{
		Key:      key,
		Sources:  sources,
		Fallback: Fallback{Src: source, Width: params.Width, Height: params.Height},
	}
	if d.cache.add(key, r, s.cacheTTL) {
		d.evicted.Inc()
	}
	return r, nil
}

// completeSources fills in missing variant URLs through the URL builder and
// drops variants that still have no URL.
func (d *Dispatcher) completeSources(in []Source, params Params, endpoint string) []Source {
	out := in[:0:0]
	for _, src := range in {
		if src.URL == "" && src.Path != "" && d.urlBuilder != nil {
			opts := params.DeliveryOptions()
			opts.Format = src.Format
			if src.Width > 0 {
				opts.Width = src.Width
			}
			if src.Height > 0 {
				opts.Height = src.Height
			}
			src.URL = d.urlBuilder.BuildURL(src.Path, opts, endpoint)
		}
		if src.URL == "" {
			continue
		}
		out = append(out, src)
	}
	return out
}

// OptimizeBatch optimizes each request independently and returns results
// in input order. The result always has len(reqs) elements: requests past
// the configured maximum batch size are not dispatched and receive their
// fallback.
func (d *Dispatcher) OptimizeBatch(ctx context.Context, reqs []Request) []*Result {
	s := d.settings.Load()
	out := make([]*Result, len(reqs))

	n := len(reqs)
	if n > s.maxBatchSize {
		log.Printf("[dispatch] batch of %d exceeds limit %d, trimming", n, s.maxBatchSize)
		for i := s.maxBatchSize; i < n; i++ {
			start := time.Now()
			params := Normalize(reqs[i].Options, reqs[i].Capabilities, s.defaultQuality)
			out[i] = fallbackResult("", reqs[i].Source, params)
			d.observe(metrics.OutcomeTrimmed, start)
		}
		n = s.maxBatchSize
	}

	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			out[i] = d.Optimize(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// UpdateConfig live-applies patch. Cached entries keep the TTL they were
// stored with; shrinking the capacity evicts least recently used entries.
func (d *Dispatcher) UpdateConfig(patch ConfigPatch) {
	for {
		old := d.settings.Load()
		next := *old
		if patch.DefaultQuality != nil && *patch.DefaultQuality > 0 {
			next.defaultQuality = clampInt(*patch.DefaultQuality, 1, 100)
		}
		if patch.CacheCapacity != nil && *patch.CacheCapacity > 0 {
			next.cacheCapacity = *patch.CacheCapacity
		}
		if patch.CacheTTL != nil && *patch.CacheTTL > 0 {
			next.cacheTTL = *patch.CacheTTL
		}
		if patch.BackendTimeout != nil && *patch.BackendTimeout > 0 {
			next.backendTimeout = *patch.BackendTimeout
		}
		if patch.MaxBatchSize != nil && *patch.MaxBatchSize > 0 {
			next.maxBatchSize = *patch.MaxBatchSize
		}
		if patch.BatchConcurrency != nil && *patch.BatchConcurrency > 0 {
			next.batchConcurrency = *patch.BatchConcurrency
		}
		if !d.settings.CompareAndSwap(old, &next) {
			continue
		}
		if next.cacheCapacity != old.cacheCapacity {
			if evicted := d.cache.resize(next.cacheCapacity); evicted > 0 {
				d.evicted.Add(int64(evicted))
				log.Printf("[dispatch] cache resized to %d, evicted %d entries", next.cacheCapacity, evicted)
			}
		}
		return
	}
}

// PurgeExpired removes expired cache entries and returns how many were
// dropped. Expired entries are never served either way; this only reclaims
// their memory early.
func (d *Dispatcher) PurgeExpired() int {
	return d.cache.purgeExpired()
}

// Purge empties the cache. In-flight calls are unaffected.
func (d *Dispatcher) Purge() {
	d.cache.purge()
}

func (d *Dispatcher) observe(outcome metrics.Outcome, start time.Time) {
	now := time.Now()
	d.counters[outcome].Inc()
	d.window.Push(metrics.Observation{At: now, Outcome: outcome, Duration: now.Sub(start)})
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
