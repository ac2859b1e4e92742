package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Resinat/Prism/internal/delivery"
	"github.com/zeebo/xxh3"
)

const (
	maxDimension  = 8192
	maxBlur       = 250
	maxBrightness = 100
	maxDPR        = 3
	slowLinkDPR   = 1
)

// Fit is the resize strategy when both dimensions are given.
type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
	FitFill    Fit = "fill"
	FitInside  Fit = "inside"
	FitOutside Fit = "outside"
)

func parseFit(s string) (Fit, bool) {
	switch f := Fit(strings.ToLower(strings.TrimSpace(s))); f {
	case FitCover, FitContain, FitFill, FitInside, FitOutside:
		return f, true
	}
	return "", false
}

// Options is the caller-supplied parameter set. Any field may be missing or
// out of range; Normalize substitutes safe values rather than rejecting.
type Options struct {
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Quality    int     `json:"quality,omitempty"`
	Format     string  `json:"format,omitempty"`
	Fit        string  `json:"fit,omitempty"`
	DPR        float64 `json:"dpr,omitempty"`
	Blur       int     `json:"blur,omitempty"`
	Brightness int     `json:"brightness,omitempty"`
}

// Params is the normalized parameter set. Format is never FormatAuto.
type Params struct {
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Quality    int             `json:"quality"`
	Format     delivery.Format `json:"format"`
	Fit        Fit             `json:"fit"`
	DPR        float64         `json:"dpr"`
	Blur       int             `json:"blur"`
	Brightness int             `json:"brightness"`
}

// Normalize clamps and defaults opts. Quality 0 means "unset" and takes
// defaultQuality; other values are clamped to [1,100]. Negative dimensions
// become 0 (natural size). Unknown formats become auto, which is resolved
// against caps; unknown fits become cover.
func Normalize(opts Options, caps delivery.Capabilities, defaultQuality int) Params {
	p := Params{
		Width:      clampInt(opts.Width, 0, maxDimension),
		Height:     clampInt(opts.Height, 0, maxDimension),
		Quality:    opts.Quality,
		Blur:       clampInt(opts.Blur, 0, maxBlur),
		Brightness: clampInt(opts.Brightness, -maxBrightness, maxBrightness),
	}

	if p.Quality == 0 {
		p.Quality = defaultQuality
	}
	p.Quality = clampInt(p.Quality, 1, 100)

	format, ok := delivery.ParseFormat(opts.Format)
	if !ok {
		format = delivery.FormatAuto
	}
	p.Format = format.Resolve(caps)

	fit, ok := parseFit(opts.Fit)
	if !ok {
		fit = FitCover
	}
	p.Fit = fit

	dpr := opts.DPR
	if math.IsNaN(dpr) || dpr < 1 {
		dpr = 1
	}
	if dpr > maxDPR {
		dpr = maxDPR
	}
	if caps.SlowConnection() {
		dpr = slowLinkDPR
	}
	p.DPR = math.Round(dpr*100) / 100
	return p
}

// Canonical returns the deterministic serialization of source and p used to
// derive cache keys.
func (p Params) Canonical(source string) string {
	return fmt.Sprintf("%s|w=%d|h=%d|q=%d|f=%s|fit=%s|dpr=%s|blur=%d|br=%d",
		source, p.Width, p.Height, p.Quality, p.Format, p.Fit,
		strconv.FormatFloat(p.DPR, 'f', -1, 64), p.Blur, p.Brightness)
}

// CacheKey returns the 32-character xxh3-128 hex key for source and p.
func CacheKey(source string, p Params) string {
	sum := xxh3.HashString128(p.Canonical(source))
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}

// DeliveryOptions converts p to the delivery URL parameter set.
func (p Params) DeliveryOptions() delivery.TransformOptions {
	return delivery.TransformOptions{
		Width:      p.Width,
		Height:     p.Height,
		Quality:    p.Quality,
		Format:     p.Format,
		Fit:        string(p.Fit),
		DPR:        p.DPR,
		Blur:       p.Blur,
		Brightness: p.Brightness,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
