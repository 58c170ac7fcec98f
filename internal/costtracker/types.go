// Package costtracker records per-operation AI vision pricing against a
// rolling daily/monthly budget, generalizing the append-only usage
// ledger pattern this codebase uses for per-user scrape-job billing
// into a per-operation vision-cost ledger, with a circuit breaker
// guarding further spend once a budget window is exhausted.
package costtracker

import (
	"errors"
	"time"
)

// Entry is a single append-only cost ledger row.
type Entry struct {
	Timestamp time.Time
	Provider  string
	Model     string
	Operation string // always "vision-analysis"
	CostUSD   float64
	Cached    bool
}

// Budget configures the daily/monthly thresholds.
type Budget struct {
	DailyLimitUSD     float64
	MonthlyLimitUSD   float64
	WarningPct        float64
	CriticalPct       float64
	CircuitBreakerPct float64
}

// DefaultBudget matches the specification's stated defaults.
func DefaultBudget() Budget {
	return Budget{
		DailyLimitUSD:     10,
		MonthlyLimitUSD:   200,
		WarningPct:        0.80,
		CriticalPct:       0.95,
		CircuitBreakerPct: 1.00,
	}
}

// Status reports the current budget window occupancy.
type Status struct {
	DailyUsed              float64
	DailyLimit             float64
	DailyPct               float64
	MonthlyUsed            float64
	MonthlyLimit           float64
	MonthlyPct             float64
	WarningTriggered       bool
	CriticalTriggered      bool
	CircuitBreakerTriggered bool
}

// Stats reports aggregate ledger totals.
type Stats struct {
	TotalCostUSD    float64
	ByProvider      map[string]float64
	ByModel         map[string]float64
	OperationCount  int
	CacheHitCount   int
	CacheHitRate    float64
}

var (
	ErrBudgetExhausted = errors.New("costtracker: budget exhausted, circuit breaker triggered")
	ErrStoreIO         = errors.New("costtracker: store io error")
)
