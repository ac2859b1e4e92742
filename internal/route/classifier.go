package route

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/maypok86/otter"
	"github.com/zeebo/xxh3"
	"golang.org/x/net/http/httpguts"
)

// DefaultMemoEntries bounds the descriptor memo of the default classifier.
const DefaultMemoEntries = 4096

// Classifier maps request paths to Descriptors. Results for well-formed paths
// are memoized in a bounded otter cache keyed by normalized path.
type Classifier struct {
	salt string
	memo otter.Cache[string, Descriptor]
}

// NewClassifier creates a Classifier whose memo holds at most memoEntries
// paths. salt is mixed into every ETag so a deploy invalidates validators.
func NewClassifier(memoEntries int, salt string) *Classifier {
	if memoEntries <= 0 {
		memoEntries = DefaultMemoEntries
	}
	memo, err := otter.MustBuilder[string, Descriptor](memoEntries).
		Cost(func(_ string, _ Descriptor) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("route: failed to create descriptor memo: " + err.Error())
	}
	return &Classifier{salt: salt, memo: memo}
}

// Classify returns the descriptor for path. It never fails: malformed or
// unmatched paths yield the dynamic, non-cacheable fallback.
func (c *Classifier) Classify(path string) Descriptor {
	d, _ := c.classify(path)
	return d
}

func (c *Classifier) classify(path string) (Descriptor, string) {
	normalized, ok := normalizePath(path)
	if !ok {
		return fallbackRule.descriptor(""), ""
	}
	if d, found := c.memo.Get(normalized); found {
		return d, normalized
	}
	d := classifyNormalized(normalized)
	c.memo.Set(normalized, d)
	return d, normalized
}

// CacheHeaders returns the response headers for path: Cache-Control always,
// plus Vary and a weak ETag for cacheable non-health, non-API routes.
func (c *Classifier) CacheHeaders(path string) http.Header {
	d, normalized := c.classify(path)
	h := make(http.Header, 4)
	setHeader(h, "Cache-Control", d.CacheDirective)
	if d.Tier == TierNone {
		setHeader(h, "Pragma", "no-cache")
		setHeader(h, "Expires", "0")
	}
	if !d.carriesValidators() {
		return h
	}
	if d.Category == CategoryDynamic {
		setHeader(h, "Vary", "Accept-Encoding, Accept, Accept-Language")
	} else {
		setHeader(h, "Vary", "Accept-Encoding")
	}
	setHeader(h, "ETag", c.etag(normalized, d.Category))
	return h
}

// ETag returns the route-level weak validator for path, or "" if the route
// carries none. It changes only with the salt; Middleware replaces it with
// ContentETag once the body is known.
func (c *Classifier) ETag(path string) string {
	d, normalized := c.classify(path)
	if !d.carriesValidators() {
		return ""
	}
	return c.etag(normalized, d.Category)
}

// ContentETag returns the weak validator for a response body served at
// path, or "" if the route carries none. Any change to body changes it.
func (c *Classifier) ContentETag(path string, body []byte) string {
	d, normalized := c.classify(path)
	if !d.carriesValidators() {
		return ""
	}
	h := xxh3.New()
	_, _ = h.WriteString(normalized + "|" + string(d.Category) + "|" + c.salt + "|")
	_, _ = h.Write(body)
	return formatETag(h.Sum128())
}

func (c *Classifier) etag(normalized string, category Category) string {
	return formatETag(xxh3.HashString128(normalized + "|" + string(category) + "|" + c.salt))
}

func formatETag(sum xxh3.Uint128) string {
	return fmt.Sprintf(`W/"%016x%016x"`, sum.Hi, sum.Lo)
}

// Close releases the memo cache.
func (c *Classifier) Close() {
	c.memo.Close()
}

func setHeader(h http.Header, name, value string) {
	if !httpguts.ValidHeaderFieldValue(value) {
		return
	}
	h.Set(name, value)
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Default returns the process-wide classifier with an empty ETag salt.
func Default() *Classifier {
	defaultOnce.Do(func() {
		defaultClassifier = NewClassifier(DefaultMemoEntries, "")
	})
	return defaultClassifier
}

// Classify classifies path with the default classifier.
func Classify(path string) Descriptor {
	return Default().Classify(path)
}

// CacheHeaders derives headers for path with the default classifier.
func CacheHeaders(path string) http.Header {
	return Default().CacheHeaders(path)
}
