package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resinat/Prism/internal/config"
	"github.com/Resinat/Prism/internal/delivery"
	"github.com/Resinat/Prism/internal/route"
	"github.com/Resinat/Prism/internal/transform"
)

// ServiceError wraps an error with a code for API response mapping.
type ServiceError struct {
	Code    string // INVALID_ARGUMENT, NOT_FOUND, INTERNAL
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

func invalidArg(msg string) *ServiceError {
	return &ServiceError{Code: "INVALID_ARGUMENT", Message: msg}
}

func notFound(msg string) *ServiceError {
	return &ServiceError{Code: "NOT_FOUND", Message: msg}
}

// --- ControlPlaneService ---

// ControlPlaneService provides all control plane operations.
// Handlers call its methods; business logic lives here, not in handlers.
type ControlPlaneService struct {
	Classifier *route.Classifier
	Dispatcher *transform.Dispatcher
	Selector   *delivery.Selector
	RuntimeCfg *atomic.Pointer[config.RuntimeConfig]
	EnvCfg     *config.EnvConfig
	Info       SystemInfo

	configMu sync.Mutex
}

// GetSystemInfo returns version and uptime information.
func (s *ControlPlaneService) GetSystemInfo() SystemInfo {
	return s.Info
}

// GetRuntimeConfig returns the active runtime config.
func (s *ControlPlaneService) GetRuntimeConfig() *config.RuntimeConfig {
	if s.RuntimeCfg == nil {
		return nil
	}
	return s.RuntimeCfg.Load()
}

// ------------------------------------------------------------------
// System Config
// ------------------------------------------------------------------

// runtimeConfigAllowedFields is the set of JSON field names that can be patched.
var runtimeConfigAllowedFields = map[string]bool{
	"default_quality":      true,
	"cache_capacity":       true,
	"cache_ttl":            true,
	"backend_timeout":      true,
	"max_batch_size":       true,
	"batch_concurrency":    true,
	"probe_interval":       true,
	"probe_timeout":        true,
	"latency_decay_window": true,
}

func parseRuntimeConfigPatch(patchJSON json.RawMessage, out *config.RuntimeConfig) *ServiceError {
	patch, verr := parseMergePatch(patchJSON)
	if verr != nil {
		return verr
	}
	if verr := patch.validateFields(runtimeConfigAllowedFields, func(key string) string {
		return fmt.Sprintf("unknown or read-only field: %q", key)
	}); verr != nil {
		return verr
	}

	dec := json.NewDecoder(bytes.NewReader(patchJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidArg("validation failed: " + err.Error())
	}
	return nil
}

// PatchRuntimeConfig applies a constrained partial patch to the runtime config.
// This is not RFC 7396 JSON Merge Patch: patch must be a non-empty object and
// null values are rejected.
// Pipeline: validate → atomic swap → push into the dispatcher.
func (s *ControlPlaneService) PatchRuntimeConfig(patchJSON json.RawMessage) (*config.RuntimeConfig, error) {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	newCfg := config.NewDefaultRuntimeConfig()
	if cur := s.RuntimeCfg.Load(); cur != nil {
		*newCfg = *cur
	}
	if verr := parseRuntimeConfigPatch(patchJSON, newCfg); verr != nil {
		return nil, verr
	}
	if verr := validateRuntimeConfig(newCfg); verr != nil {
		return nil, verr
	}

	s.RuntimeCfg.Store(newCfg)
	if s.Dispatcher != nil {
		s.Dispatcher.UpdateConfig(DispatcherPatch(newCfg))
	}
	return newCfg, nil
}

// DispatcherPatch converts cfg into a full dispatcher ConfigPatch.
func DispatcherPatch(cfg *config.RuntimeConfig) transform.ConfigPatch {
	quality := cfg.DefaultQuality
	capacity := cfg.CacheCapacity
	ttl := cfg.CacheTTL.Std()
	timeout := cfg.BackendTimeout.Std()
	batch := cfg.MaxBatchSize
	concurrency := cfg.BatchConcurrency
	return transform.ConfigPatch{
		DefaultQuality:   &quality,
		CacheCapacity:    &capacity,
		CacheTTL:         &ttl,
		BackendTimeout:   &timeout,
		MaxBatchSize:     &batch,
		BatchConcurrency: &concurrency,
	}
}

const (
	maxCacheCapacity    = 1_000_000
	maxBatchSizeLimit   = 1000
	maxBatchConcurrency = 256
	minProbeInterval    = 10 * time.Second
	maxBackendTimeout   = 5 * time.Minute
)

func validateRuntimeConfig(cfg *config.RuntimeConfig) *ServiceError {
	if cfg.DefaultQuality < 1 || cfg.DefaultQuality > 100 {
		return invalidArg("default_quality: must be 1-100")
	}
	if cfg.CacheCapacity < 1 || cfg.CacheCapacity > maxCacheCapacity {
		return invalidArg(fmt.Sprintf("cache_capacity: must be 1-%d", maxCacheCapacity))
	}
	if cfg.CacheTTL.Std() < time.Second {
		return invalidArg("cache_ttl: must be >= 1s")
	}
	if cfg.BackendTimeout.Std() <= 0 || cfg.BackendTimeout.Std() > maxBackendTimeout {
		return invalidArg("backend_timeout: must be > 0 and <= 5m")
	}
	if cfg.MaxBatchSize < 1 || cfg.MaxBatchSize > maxBatchSizeLimit {
		return invalidArg(fmt.Sprintf("max_batch_size: must be 1-%d", maxBatchSizeLimit))
	}
	if cfg.BatchConcurrency < 1 || cfg.BatchConcurrency > maxBatchConcurrency {
		return invalidArg(fmt.Sprintf("batch_concurrency: must be 1-%d", maxBatchConcurrency))
	}
	if cfg.ProbeInterval.Std() < minProbeInterval {
		return invalidArg("probe_interval: must be >= 10s")
	}
	if cfg.ProbeTimeout.Std() <= 0 {
		return invalidArg("probe_timeout: must be positive")
	}
	if cfg.ProbeTimeout.Std() > cfg.ProbeInterval.Std() {
		return invalidArg("probe_timeout: must not exceed probe_interval")
	}
	if cfg.LatencyDecayWindow.Std() <= 0 {
		return invalidArg("latency_decay_window: must be positive")
	}
	return nil
}
