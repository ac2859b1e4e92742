package config

import "time"

// RuntimeConfig holds all hot-updatable global settings.
// Served via GET /api/v1/system/config and patched via PATCH.
type RuntimeConfig struct {
	// Dispatcher
	DefaultQuality   int      `json:"default_quality"`
	CacheCapacity    int      `json:"cache_capacity"`
	CacheTTL         Duration `json:"cache_ttl"`
	BackendTimeout   Duration `json:"backend_timeout"`
	MaxBatchSize     int      `json:"max_batch_size"`
	BatchConcurrency int      `json:"batch_concurrency"`

	// Delivery probing
	ProbeInterval      Duration `json:"probe_interval"`
	ProbeTimeout       Duration `json:"probe_timeout"`
	LatencyDecayWindow Duration `json:"latency_decay_window"`
}

// NewDefaultRuntimeConfig returns a RuntimeConfig populated with default values.
func NewDefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		DefaultQuality:   75,
		CacheCapacity:    500,
		CacheTTL:         Duration(time.Hour),
		BackendTimeout:   Duration(10 * time.Second),
		MaxBatchSize:     20,
		BatchConcurrency: 4,

		ProbeInterval:      Duration(5 * time.Minute),
		ProbeTimeout:       Duration(5 * time.Second),
		LatencyDecayWindow: Duration(10 * time.Minute),
	}
}
