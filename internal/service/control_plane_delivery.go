package service

import (
	"context"
	"strings"

	"github.com/Resinat/Prism/internal/delivery"
	"github.com/Resinat/Prism/internal/transform"
)

// DeliveryStats returns endpoint health.
func (s *ControlPlaneService) DeliveryStats() delivery.Stats {
	return s.Selector.Stats()
}

// DeliveryURLRequest asks for a delivery URL for one asset.
type DeliveryURLRequest struct {
	Path         string
	Options      transform.Options
	Capabilities delivery.Capabilities
	Endpoint     string
}

// DeliveryURL normalizes the options and builds the URL on the selected (or
// overridden) endpoint. An override must name a configured endpoint or be
// an absolute http/https URL.
func (s *ControlPlaneService) DeliveryURL(req DeliveryURLRequest) (string, error) {
	if strings.TrimSpace(req.Path) == "" {
		return "", invalidArg("path: required")
	}
	if req.Endpoint != "" && !s.hasEndpoint(req.Endpoint) {
		if _, verr := parseHTTPAbsoluteURL("endpoint", req.Endpoint); verr != nil {
			return "", notFound("endpoint not found: " + req.Endpoint)
		}
	}
	quality := transform.DefaultQuality
	if cfg := s.GetRuntimeConfig(); cfg != nil {
		quality = cfg.DefaultQuality
	}
	params := transform.Normalize(req.Options, req.Capabilities, quality)
	return s.Selector.BuildURL(req.Path, params.DeliveryOptions(), req.Endpoint), nil
}

func (s *ControlPlaneService) hasEndpoint(key string) bool {
	return s.Selector.Has(key)
}

// ProbeEndpoints probes every endpoint now and returns the updated stats.
func (s *ControlPlaneService) ProbeEndpoints(ctx context.Context, testPath string) (delivery.Stats, error) {
	if testPath != "" && !strings.HasPrefix(testPath, "/") {
		return delivery.Stats{}, invalidArg("path: must start with '/'")
	}
	s.Selector.Probe(ctx, testPath)
	return s.Selector.Stats(), nil
}
