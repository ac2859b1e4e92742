// Package route classifies request paths into cache categories and derives
// the Cache-Control, Vary and ETag headers for them.
package route

// Category is the coarse class of a request path.
type Category string

const (
	CategoryStatic  Category = "static"
	CategoryDynamic Category = "dynamic"
	CategoryAPI     Category = "api"
	CategoryHealth  Category = "health"
	CategoryAsset   Category = "asset"
)

// AssetKind refines CategoryAsset by file extension.
type AssetKind string

const (
	AssetNone     AssetKind = ""
	AssetImage    AssetKind = "image"
	AssetFont     AssetKind = "font"
	AssetScript   AssetKind = "script"
	AssetStyle    AssetKind = "style"
	AssetDocument AssetKind = "document"
	AssetMedia    AssetKind = "media"
)

// Tier is a cache duration tier.
type Tier string

const (
	TierNone   Tier = "none"
	TierShort  Tier = "short"
	TierMedium Tier = "medium"
	TierLong   Tier = "long"
)

const (
	directiveNone   = "no-cache, no-store, must-revalidate, private"
	directiveShort  = "public, max-age=300, stale-while-revalidate=600"
	directiveMedium = "public, max-age=3600, stale-while-revalidate=86400"
	directiveLong   = "public, max-age=31536000, immutable"
)

// Directive returns the Cache-Control value for the tier.
func (t Tier) Directive() string {
	switch t {
	case TierShort:
		return directiveShort
	case TierMedium:
		return directiveMedium
	case TierLong:
		return directiveLong
	default:
		return directiveNone
	}
}

// Descriptor is the classification result for one path.
type Descriptor struct {
	Category       Category  `json:"category"`
	Cacheable      bool      `json:"cacheable"`
	SkipDownstream bool      `json:"skip_downstream"`
	AssetKind      AssetKind `json:"asset_kind,omitempty"`
	Tier           Tier      `json:"tier"`
	CacheDirective string    `json:"cache_directive"`
	// Rule names the matching rule; useful when debugging classification.
	Rule string `json:"rule"`
}

// tierFor maps a classified route onto its duration tier. Health, API and
// every non-cacheable route share the none tier.
func tierFor(category Category, cacheable bool) Tier {
	if !cacheable {
		return TierNone
	}
	switch category {
	case CategoryAsset:
		return TierLong
	case CategoryStatic:
		return TierMedium
	case CategoryDynamic:
		return TierShort
	default:
		return TierNone
	}
}

// carriesValidators reports whether Vary and ETag headers apply.
func (d Descriptor) carriesValidators() bool {
	return d.Cacheable && d.Category != CategoryHealth && d.Category != CategoryAPI
}
