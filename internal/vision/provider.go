package vision

import "context"

// Provider is the adapter contract every vision backend must satisfy.
// Adding a provider is purely additive: the smart client iterates a
// slice of these, never type-switching on a concrete provider.
type Provider interface {
	Name() string
	Model() string
	IsAvailable(ctx context.Context) bool
	SupportsVision() bool
	AnalyzeVisualDiff(ctx context.Context, req Request) (*Response, error)
}

// ToLegacy derives the legacy 4-level severity view from a canonical
// Response. The mapping is a pure function: it is computed on demand
// and never persisted.
func ToLegacy(r Response) LegacyResponse {
	var out LegacyResponse

	switch r.Severity {
	case SeverityNone:
		out.Severity, out.IsIntentional = LegacyLow, true
	case SeverityMinor:
		out.Severity, out.IsIntentional = LegacyLow, true
	case SeverityModerate:
		out.Severity, out.IsIntentional = LegacyMedium, false
	case SeverityBreaking:
		out.Severity, out.IsIntentional = LegacyCritical, false
	default:
		out.Severity, out.IsIntentional = LegacyLow, true
	}

	out.ChangeType = changeTypeFor(r.Categories)
	return out
}

// changeTypeFor collapses a category list to a single changeType by
// priority: layout > color > content|text > unknown.
func changeTypeFor(categories []string) string {
	has := make(map[string]bool, len(categories))
	for _, c := range categories {
		has[c] = true
	}

	switch {
	case has["layout"]:
		return "layout"
	case has["color"]:
		return "color"
	case has["content"]:
		return "content"
	case has["text"]:
		return "text"
	default:
		return "unknown"
	}
}
