package service

import (
	"net/http"

	"github.com/Resinat/Prism/internal/route"
)

// RouteClassification is the classify response.
type RouteClassification struct {
	Path       string            `json:"path"`
	Descriptor route.Descriptor  `json:"descriptor"`
	Headers    map[string]string `json:"headers"`
}

// ClassifyRoute classifies path and returns the headers the middleware
// would emit for it.
func (s *ControlPlaneService) ClassifyRoute(path string) (*RouteClassification, error) {
	if path == "" {
		return nil, invalidArg("path: required")
	}
	headers := s.Classifier.CacheHeaders(path)
	return &RouteClassification{
		Path:       path,
		Descriptor: s.Classifier.Classify(path),
		Headers:    flattenHeader(headers),
	}, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name := range h {
		out[name] = h.Get(name)
	}
	return out
}
