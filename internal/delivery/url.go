package delivery

import (
	"net/url"
	"strconv"
	"strings"
)

// TransformOptions are the transformation parameters encoded into a
// delivery URL. Zero values are omitted from the query string.
type TransformOptions struct {
	Width        int
	Height       int
	Quality      int
	Format       Format
	Fit          string
	DPR          float64
	Blur         int
	Brightness   int
	Capabilities Capabilities
}

// Query encodes the options in the fixed key order w, h, q, f, fit, dpr,
// blur, bri. An auto format is resolved first.
func (o TransformOptions) Query() string {
	var b strings.Builder
	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	if o.Width > 0 {
		add("w", strconv.Itoa(o.Width))
	}
	if o.Height > 0 {
		add("h", strconv.Itoa(o.Height))
	}
	if o.Quality > 0 {
		add("q", strconv.Itoa(o.Quality))
	}
	if f := o.Format.Resolve(o.Capabilities); f != "" {
		add("f", string(f))
	}
	if o.Fit != "" {
		add("fit", o.Fit)
	}
	if o.DPR > 0 && o.DPR != 1 {
		add("dpr", strconv.FormatFloat(o.DPR, 'f', -1, 64))
	}
	if o.Blur > 0 {
		add("blur", strconv.Itoa(o.Blur))
	}
	if o.Brightness != 0 {
		add("bri", strconv.Itoa(o.Brightness))
	}
	return b.String()
}

// joinURL appends assetPath and query to base. Absolute asset URLs are kept
// as-is apart from the query.
func joinURL(base, assetPath, query string) string {
	var target string
	if isAbsoluteURL(assetPath) {
		target = assetPath
	} else {
		target = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(assetPath, "/")
	}
	if query == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// urlKey normalizes a base URL for index lookups: scheme and host are
// case-insensitive and trailing slashes are ignored.
func urlKey(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
