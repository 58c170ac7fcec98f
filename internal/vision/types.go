// Package vision implements the smart multi-provider AI vision client:
// a preprocessor, two-tier cache, cost tracker, and an ordered
// fallback chain of provider adapters, composed behind a single
// analyzeVisualDiff-style entry point.
package vision

import (
	"errors"
)

// Severity is the canonical four-level quality grade a provider (or
// the structural diff engine) assigns to a comparison.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityBreaking Severity = "breaking"
)

// Request is what the smart client sends down the fallback chain.
// BaselineHash/CurrentHash are pre-computed content hashes used for
// cache-key construction; Context carries free-form hints (the
// element selector, viewport, page URL) a provider may fold into its
// prompt.
type Request struct {
	BaselineImage []byte
	CurrentImage  []byte
	BaselineHash  string
	CurrentHash   string
	Context       map[string]string
}

// Response is the canonical AI vision verdict.
type Response struct {
	Severity    Severity
	Confidence  float64
	Reasoning   string
	Categories  []string
	Suggestions []string
	Provider    string
	Model       string
}

// LegacySeverity is the four-level space {low, medium, high, critical}
// some callers (dashboards, older report templates) still expect.
type LegacySeverity string

const (
	LegacyLow      LegacySeverity = "low"
	LegacyMedium   LegacySeverity = "medium"
	LegacyHigh     LegacySeverity = "high"
	LegacyCritical LegacySeverity = "critical"
)

// LegacyResponse is a pure derivation of Response; it is never stored,
// only computed on demand by ToLegacy.
type LegacyResponse struct {
	Severity      LegacySeverity
	IsIntentional bool
	ChangeType    string
}

var (
	// ErrAllProvidersFailed wraps the last provider error when every
	// entry in the fallback chain has been exhausted.
	ErrAllProvidersFailed = errors.New("vision: all providers failed")
	// ErrProviderResponseMalformed is returned by a provider adapter
	// when it cannot parse vendor output into the canonical shape.
	ErrProviderResponseMalformed = errors.New("vision: provider response malformed")
	// ErrConfigInvalid is raised at client construction time for a
	// missing API key or an unknown configured provider name; it is
	// never raised during AnalyzeVisualDiff.
	ErrConfigInvalid = errors.New("vision: invalid provider configuration")
	// ErrBudgetExhausted is returned when the cost tracker's circuit
	// breaker has tripped; the whole call aborts rather than trying
	// the next provider in the chain.
	ErrBudgetExhausted = errors.New("vision: budget exhausted")
)
