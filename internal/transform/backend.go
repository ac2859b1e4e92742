package transform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Resinat/Prism/internal/delivery"
	"github.com/Resinat/Prism/internal/netutil"
)

// Backend performs the actual image transformation.
type Backend interface {
	Transform(ctx context.Context, source string, params Params) ([]Source, error)
}

// BackendFunc adapts a function to Backend. Injectable for testing.
type BackendFunc func(ctx context.Context, source string, params Params) ([]Source, error)

func (f BackendFunc) Transform(ctx context.Context, source string, params Params) ([]Source, error) {
	return f(ctx, source, params)
}

// ErrEmptyResult is returned when the backend reports success without variants.
var ErrEmptyResult = errors.New("transform: backend returned no sources")

// BackendError is a failure reported inside a well-formed backend envelope.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return "transform: backend reported failure"
	}
	return "transform: backend reported failure: " + e.Message
}

// HTTPBackend calls a transformation service over HTTP. The request body is
// {"source": ..., "params": {...}} and the response is the envelope
// {"success": bool, "data": {"sources": [...]}, "error": "..."}.
type HTTPBackend struct {
	URL       string
	Client    *http.Client
	UserAgent string
}

type backendRequest struct {
	Source string `json:"source"`
	Params Params `json:"params"`
}

type backendSource struct {
	URL    string `json:"url"`
	Path   string `json:"path"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type backendEnvelope struct {
	Success bool `json:"success"`
	Data    *struct {
		Sources []backendSource `json:"sources"`
	} `json:"data"`
	Error string `json:"error"`
}

// Transform implements Backend. Non-2xx responses surface as
// *netutil.HTTPStatusError.
func (b *HTTPBackend) Transform(ctx context.Context, source string, params Params) ([]Source, error) {
	var env backendEnvelope
	if err := netutil.PostJSON(ctx, b.Client, b.URL, b.UserAgent, backendRequest{Source: source, Params: params}, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &BackendError{Message: env.Error}
	}
	if env.Data == nil || len(env.Data.Sources) == 0 {
		return nil, ErrEmptyResult
	}

	out := make([]Source, 0, len(env.Data.Sources))
	for i, s := range env.Data.Sources {
		format, ok := delivery.ParseFormat(s.Format)
		if !ok || format == delivery.FormatAuto {
			format = params.Format
		}
		if s.URL == "" && s.Path == "" {
			return nil, fmt.Errorf("transform: backend source %d has neither url nor path", i)
		}
		out = append(out, Source{
			URL:    s.URL,
			Path:   s.Path,
			Format: format,
			Width:  s.Width,
			Height: s.Height,
		})
	}
	return out, nil
}
