package delivery

import "strings"

// Format is the requested output image format. FormatAuto is resolved
// against the caller's Capabilities before a URL is built.
type Format string

const (
	FormatAuto Format = "auto"
	FormatAVIF Format = "avif"
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat parses a case-insensitive format name. "jpg" is accepted as an
// alias for jpeg. ok is false for unknown names.
func ParseFormat(s string) (f Format, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return FormatAuto, true
	case "avif":
		return FormatAVIF, true
	case "webp":
		return FormatWebP, true
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	default:
		return "", false
	}
}

// Capabilities are client format-support flags, supplied by the caller.
type Capabilities struct {
	AVIF bool `json:"avif"`
	WebP bool `json:"webp"`
	// ConnectionClass is an advisory network class such as "4g" or "slow-2g".
	ConnectionClass string `json:"connection_class,omitempty"`
}

// SlowConnection reports whether the client announced a constrained link.
func (c Capabilities) SlowConnection() bool {
	switch strings.ToLower(c.ConnectionClass) {
	case "slow-2g", "2g", "3g":
		return true
	}
	return false
}

// Resolve returns f with FormatAuto replaced by the best format the client
// supports: AVIF, then WebP, then JPEG.
func (f Format) Resolve(caps Capabilities) Format {
	if f != FormatAuto {
		return f
	}
	switch {
	case caps.AVIF:
		return FormatAVIF
	case caps.WebP:
		return FormatWebP
	default:
		return FormatJPEG
	}
}
