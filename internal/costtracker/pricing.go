package costtracker

import "fmt"

// pricingKey identifies a (provider, model) pair in the cost table.
type pricingKey struct {
	provider string
	model    string
}

// PriceTable maps a (provider, model) pair to a flat per-image cost in
// USD. Unknown pairs price at $0 and surface through the onUnknown
// hook so callers can log a warning rather than silently undercharge.
type PriceTable struct {
	prices   map[pricingKey]float64
	onUnknown func(provider, model string)
}

// NewPriceTable returns the price table seeded with commonly used
// vision-capable models. Callers may override or extend via Set.
func NewPriceTable() *PriceTable {
	pt := &PriceTable{prices: make(map[pricingKey]float64)}

	pt.Set("openai", "gpt-4-vision-preview", 0.01275)
	pt.Set("openai", "gpt-4o", 0.00765)
	pt.Set("openai", "gpt-4o-mini", 0.00255)
	pt.Set("anthropic", "claude-3-opus", 0.024)
	pt.Set("anthropic", "claude-3-sonnet", 0.009)
	pt.Set("ollama", "llava", 0)
	pt.Set("ollama", "bakllava", 0)

	return pt
}

// OnUnknown registers a callback invoked whenever CostFor is asked
// about a (provider, model) pair that has no configured price.
func (pt *PriceTable) OnUnknown(fn func(provider, model string)) {
	pt.onUnknown = fn
}

// Set configures (or overrides) the per-image price for a pair.
func (pt *PriceTable) Set(provider, model string, usdPerImage float64) {
	pt.prices[pricingKey{provider, model}] = usdPerImage
}

// CostFor returns the per-image price for provider/model, or 0 if
// unconfigured. An unconfigured pair triggers the onUnknown hook once
// per call, never an error: pricing gaps must not block analysis.
func (pt *PriceTable) CostFor(provider, model string) float64 {
	price, ok := pt.prices[pricingKey{provider, model}]
	if !ok {
		if pt.onUnknown != nil {
			pt.onUnknown(provider, model)
		}
		return 0
	}
	return price
}

func (pt *PriceTable) String() string {
	return fmt.Sprintf("PriceTable(%d entries)", len(pt.prices))
}
