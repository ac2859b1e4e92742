package transform

import "github.com/Resinat/Prism/internal/delivery"

// Request is one transformation request.
type Request struct {
	Source       string                `json:"source"`
	Options      Options               `json:"options"`
	Capabilities delivery.Capabilities `json:"capabilities"`
	// Endpoint optionally pins the delivery origin used for variant URLs.
	Endpoint string `json:"endpoint,omitempty"`
}

// Source is one transformed variant.
type Source struct {
	URL    string          `json:"url"`
	Path   string          `json:"path,omitempty"`
	Format delivery.Format `json:"format"`
	Width  int             `json:"width,omitempty"`
	Height int             `json:"height,omitempty"`
}

// Fallback always points at the original, untransformed source.
type Fallback struct {
	Src    string `json:"src"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Result is the outcome of Optimize. Fallback is always populated; Sources
// only on success. Results are shared between callers and must be treated
// as read-only.
type Result struct {
	Key      string   `json:"key,omitempty"`
	Sources  []Source `json:"sources,omitempty"`
	Fallback Fallback `json:"fallback"`
}

// OK reports whether the result carries transformed variants.
func (r *Result) OK() bool {
	return r != nil && len(r.Sources) > 0
}

func fallbackResult(key, source string, p Params) *Result {
	return &Result{
		Key:      key,
		Fallback: Fallback{Src: source, Width: p.Width, Height: p.Height},
	}
}
