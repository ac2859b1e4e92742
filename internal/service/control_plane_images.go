package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Resinat/Prism/internal/transform"
)

// OptimizeImage runs one request through the dispatcher. Only a missing
// source is rejected; every other problem degrades to the fallback.
func (s *ControlPlaneService) OptimizeImage(ctx context.Context, req transform.Request) (*transform.Result, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, invalidArg("source: required")
	}
	return s.Dispatcher.Optimize(ctx, req), nil
}

// OptimizeImages runs a batch. Results keep input order and length.
func (s *ControlPlaneService) OptimizeImages(ctx context.Context, reqs []transform.Request) ([]*transform.Result, error) {
	if len(reqs) == 0 {
		return nil, invalidArg("requests: must be a non-empty array")
	}
	for i, req := range reqs {
		if strings.TrimSpace(req.Source) == "" {
			return nil, invalidArg(fmt.Sprintf("requests[%d].source: required", i))
		}
	}
	return s.Dispatcher.OptimizeBatch(ctx, reqs), nil
}

// ImageStats returns dispatcher statistics.
func (s *ControlPlaneService) ImageStats() transform.Stats {
	return s.Dispatcher.Stats()
}

// PurgeResult reports how many cache entries a purge removed.
type PurgeResult struct {
	Removed     int  `json:"removed"`
	ExpiredOnly bool `json:"expired_only"`
}

// PurgeImages drops expired entries, or the whole cache when expiredOnly is false.
func (s *ControlPlaneService) PurgeImages(expiredOnly bool) PurgeResult {
	if expiredOnly {
		return PurgeResult{Removed: s.Dispatcher.PurgeExpired(), ExpiredOnly: true}
	}
	before := s.Dispatcher.Stats().CacheSize
	s.Dispatcher.Purge()
	return PurgeResult{Removed: before}
}
