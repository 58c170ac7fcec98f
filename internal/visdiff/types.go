// Package visdiff compares two raster images structurally: pixel-level
// difference, SSIM, region-scoped analysis, and severity classification,
// backed by a bounded in-process cache.
package visdiff

import "errors"

// Severity is the structural classification of a comparison.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityBreaking Severity = "breaking"
)

// Region describes a named, weighted area of interest within the page,
// resolved to a bounding box by a caller-supplied resolver.
type Region struct {
	Name     string
	Selector string
	Weight   float64 // 0..5
}

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X, Y, W, H int
}

// BoxResolver maps a selector to its bounding box within the compared
// images. It is the §6 "selector-to-box resolver" external collaborator.
type BoxResolver interface {
	ResolveBox(selector string) (*Box, error)
}

// Options configures a single compare() call.
type Options struct {
	PixelThreshold          float64 // 0..1, per-channel tolerance
	AntiAliasingIgnored     bool
	Regions                 []Region
	SemanticAnalysisEnabled bool
	MaxConcurrency          int // 1..10
	DimensionTolerance      int // pixels; default 0
	Resolver                BoxResolver
}

// PixelDiff summarizes a whole-image or whole-region pixel comparison.
type PixelDiff struct {
	TotalPixels int
	DiffPixels  int
	DiffPct     float64
	SSIM        float64
}

// RegionDiff is the result of scoping steps 3/4 of the pipeline to a
// single named region.
type RegionDiff struct {
	Name           string
	Selector       string
	DiffPct        float64
	SSIM           float64
	Severity       Severity
	BoundingBox    Box
	PixelCount     int
	Weight         float64
	Classification string
}

// Overall is the final, merged verdict of a comparison.
type Overall struct {
	Severity       Severity
	Pass           bool
	CompositeScore float64
	Confidence     float64
}

// Semantic is the optional AI-derived classification merged into a
// DiffResult by an upstream caller; the diff engine itself never
// populates this field.
type Semantic struct {
	Severity   Severity
	Confidence float64
	Reasoning  string
	Categories []string
	Suggestions []string
}

// Artifacts references rendered byproducts of a comparison. The diff
// engine does not itself render these; callers populate references
// when they choose to materialize them.
type Artifacts struct {
	DiffImage    string
	OverlayImage string
	Heatmap      string
	Metadata     map[string]string
}

// Result is the full output of compare().
type Result struct {
	PixelDiff        PixelDiff
	Regions          []RegionDiff
	SkippedRegions    []string
	Semantic         *Semantic
	Overall          Overall
	Artifacts        Artifacts
	ProcessingTimeMs  int64
	EarlyExit        bool
}

var (
	ErrImageDecode          = errors.New("visdiff: image decode failed")
	ErrDimensionMismatch    = errors.New("visdiff: baseline and current dimensions differ")
	ErrRegionResolution     = errors.New("visdiff: region resolution failed")
)

// DefaultOptions returns the spec's default DiffOptions.
func DefaultOptions() Options {
	return Options{
		PixelThreshold:      0.1,
		AntiAliasingIgnored: false,
		MaxConcurrency:      4,
		DimensionTolerance:  0,
	}
}
