package transform

import "github.com/Resinat/Prism/internal/metrics"

// Stats reports lifetime totals and a summary of the most recent
// observations. Memory is bounded by the stats window.
type Stats struct {
	TotalRequests    int64                     `json:"total_requests"`
	ByOutcome        map[metrics.Outcome]int64 `json:"by_outcome"`
	BackendCalls     int64                     `json:"backend_calls"`
	Evictions        int64                     `json:"evictions"`
	CacheSize        int                       `json:"cache_size"`
	CacheCapacity    int                       `json:"cache_capacity"`
	CacheTTLSeconds  float64                   `json:"cache_ttl_seconds"`
	DefaultQuality   int                       `json:"default_quality"`
	MaxBatchSize     int                       `json:"max_batch_size"`
	Window           metrics.WindowSummary     `json:"window"`
	WindowCapacity   int                       `json:"window_capacity"`
	BackendTimeoutMs int64                     `json:"backend_timeout_ms"`
}

// Stats returns a snapshot of dispatcher counters and the recent window.
func (d *Dispatcher) Stats() Stats {
	s := d.settings.Load()
	out := Stats{
		ByOutcome:        make(map[metrics.Outcome]int64, len(d.counters)),
		BackendCalls:     d.backendN.Value(),
		Evictions:        d.evicted.Value(),
		CacheSize:        d.cache.len(),
		CacheCapacity:    s.cacheCapacity,
		CacheTTLSeconds:  s.cacheTTL.Seconds(),
		DefaultQuality:   s.defaultQuality,
		MaxBatchSize:     s.maxBatchSize,
		Window:           metrics.Summarize(d.window),
		WindowCapacity:   d.window.Cap(),
		BackendTimeoutMs: s.backendTimeout.Milliseconds(),
	}
	for outcome, c := range d.counters {
		v := c.Value()
		out.ByOutcome[outcome] = v
		out.TotalRequests += v
	}
	return out
}
