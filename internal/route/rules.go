package route

import (
	"path"
	"regexp"
	"strings"
)

var healthPaths = map[string]struct{}{
	"/api/health":    {},
	"/api/readiness": {},
	"/api/liveness":  {},
	"/healthz":       {},
}

var assetKinds = map[string]AssetKind{
	".css":   AssetStyle,
	".js":    AssetScript,
	".mjs":   AssetScript,
	".map":   AssetScript,
	".png":   AssetImage,
	".jpg":   AssetImage,
	".jpeg":  AssetImage,
	".gif":   AssetImage,
	".webp":  AssetImage,
	".avif":  AssetImage,
	".svg":   AssetImage,
	".ico":   AssetImage,
	".bmp":   AssetImage,
	".woff":  AssetFont,
	".woff2": AssetFont,
	".ttf":   AssetFont,
	".otf":   AssetFont,
	".eot":   AssetFont,
	".pdf":   AssetDocument,
	".mp4":   AssetMedia,
	".webm":  AssetMedia,
	".ogg":   AssetMedia,
	".mp3":   AssetMedia,
	".wav":   AssetMedia,
	".m4a":   AssetMedia,
	".mov":   AssetMedia,
}

var wellKnownFiles = map[string]struct{}{
	"/favicon.ico":          {},
	"/robots.txt":           {},
	"/manifest.json":        {},
	"/site.webmanifest":     {},
	"/sitemap.xml":          {},
	"/humans.txt":           {},
	"/browserconfig.xml":    {},
	"/apple-touch-icon.png": {},
}

var dashboardPrefixes = []string{"/dashboard", "/admin", "/monitoring", "/metrics", "/status"}

var contentPrefixes = []string{"/about", "/blog", "/projects", "/contact", "/resume", "/uses", "/now"}

var singleSegment = regexp.MustCompile(`^/[a-z0-9._~-]+/?$`)

type rule struct {
	name      string
	category  Category
	cacheable bool
	skip      bool
	match     func(p string) bool
}

// rules is scanned in order; the first match wins.
var rules = []rule{
	{name: "health", category: CategoryHealth, skip: true, match: func(p string) bool {
		_, ok := healthPaths[trimTrailingSlash(p)]
		return ok
	}},
	{name: "asset-extension", category: CategoryAsset, cacheable: true, skip: true, match: func(p string) bool {
		_, ok := assetKinds[path.Ext(p)]
		return ok
	}},
	{name: "well-known-file", category: CategoryStatic, cacheable: true, match: func(p string) bool {
		_, ok := wellKnownFiles[p]
		return ok
	}},
	{name: "well-known-prefix", category: CategoryStatic, cacheable: true, match: func(p string) bool {
		return strings.HasPrefix(p, "/.well-known/")
	}},
	{name: "api", category: CategoryAPI, match: func(p string) bool {
		return hasSegmentPrefix(p, "/api")
	}},
	{name: "dashboard", category: CategoryDynamic, cacheable: true, match: func(p string) bool {
		return hasAnySegmentPrefix(p, dashboardPrefixes)
	}},
	{name: "content-page", category: CategoryStatic, cacheable: true, match: func(p string) bool {
		return hasAnySegmentPrefix(p, contentPrefixes)
	}},
	{name: "root", category: CategoryStatic, cacheable: true, match: func(p string) bool {
		return p == "/"
	}},
	{name: "single-segment", category: CategoryStatic, cacheable: true, match: singleSegment.MatchString},
}

var fallbackRule = rule{name: "fallback", category: CategoryDynamic}

// normalizePath lowercases p and strips query and fragment. ok is false for
// paths that cannot be classified beyond the fallback.
func normalizePath(p string) (string, bool) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || p[0] != '/' {
		return "", false
	}
	for i := 0; i < len(p); i++ {
		if c := p[i]; c < 0x20 || c == 0x7f {
			return "", false
		}
	}
	return strings.ToLower(p), true
}

func classifyNormalized(p string) Descriptor {
	for _, r := range rules {
		if r.match(p) {
			return r.descriptor(p)
		}
	}
	return fallbackRule.descriptor(p)
}

func (r rule) descriptor(p string) Descriptor {
	d := Descriptor{
		Category:       r.category,
		Cacheable:      r.cacheable,
		SkipDownstream: r.skip,
		Rule:           r.name,
	}
	if r.category == CategoryAsset {
		d.AssetKind = assetKinds[path.Ext(p)]
	}
	d.Tier = tierFor(d.Category, d.Cacheable)
	d.CacheDirective = d.Tier.Directive()
	return d
}

func trimTrailingSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	return p
}

func hasSegmentPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func hasAnySegmentPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if hasSegmentPrefix(p, prefix) {
			return true
		}
	}
	return false
}
