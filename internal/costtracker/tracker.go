package costtracker

import (
	"context"
	"sync"
	"time"
)

// BudgetSource resolves live budget thresholds from an external,
// operator-tunable store — e.g. the dynamic config.Service backed by
// the vrtest_config table — ahead of the statically configured Budget.
// A Tracker with a BudgetSource set re-resolves the budget on every
// GetBudgetStatus call, so the source's own TTL cache (not the
// Tracker) governs how quickly a change propagates.
type BudgetSource interface {
	ResolveBudget(ctx context.Context, fallback Budget) (Budget, error)
}

// Tracker is the cost-tracking orchestrator: it prices operations via
// a PriceTable, appends them to a Store, and blocks further non-cached
// spend once a budget window trips its circuit breaker.
type Tracker struct {
	store  Store
	prices *PriceTable

	mu      sync.Mutex
	budget  Budget
	source  BudgetSource
	tripped bool
}

// NewTracker wires a store and price table with the given budget. A
// zero Budget falls back to DefaultBudget.
func NewTracker(store Store, prices *PriceTable, budget Budget) *Tracker {
	if budget == (Budget{}) {
		budget = DefaultBudget()
	}
	if prices == nil {
		prices = NewPriceTable()
	}
	return &Tracker{store: store, prices: prices, budget: budget}
}

// SetBudgetSource wires a live BudgetSource (e.g. config.Service) in
// front of the static Budget passed to NewTracker. Once set, every
// GetBudgetStatus call resolves thresholds through it, falling back to
// the static budget on a resolution error.
func (t *Tracker) SetBudgetSource(src BudgetSource) {
	t.mu.Lock()
	t.source = src
	t.mu.Unlock()
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// TrackOperation records one vision-analysis operation and returns
// its cost. Cached operations always cost $0 and never consult the
// circuit breaker: a cache hit does not spend against budget. A
// non-cached operation is refused with ErrBudgetExhausted once the
// circuit breaker has tripped, until the window rolls over or the
// budget is raised via UpdateBudget.
func (t *Tracker) TrackOperation(ctx context.Context, provider, model string, cached bool) (float64, error) {
	if cached {
		if err := t.store.Record(ctx, Entry{Timestamp: now(), Provider: provider, Model: model, Operation: "vision-analysis", CostUSD: 0, Cached: true}); err != nil {
			return 0, err
		}
		return 0, nil
	}

	t.mu.Lock()
	tripped := t.tripped
	t.mu.Unlock()
	if tripped {
		status, err := t.GetBudgetStatus(ctx)
		if err == nil && !status.CircuitBreakerTriggered {
			t.mu.Lock()
			t.tripped = false
			t.mu.Unlock()
		} else {
			return 0, ErrBudgetExhausted
		}
	}

	cost := t.prices.CostFor(provider, model)
	if err := t.store.Record(ctx, Entry{Timestamp: now(), Provider: provider, Model: model, Operation: "vision-analysis", CostUSD: cost, Cached: false}); err != nil {
		return 0, err
	}

	status, err := t.GetBudgetStatus(ctx)
	if err == nil && status.CircuitBreakerTriggered {
		t.mu.Lock()
		t.tripped = true
		t.mu.Unlock()
	}

	return cost, nil
}

// now is overridable in tests; production always uses wall-clock UTC.
var now = func() time.Time { return time.Now().UTC() }

// GetDailyCost sums cost since midnight UTC of the current day. The
// window follows UTC, not the local time zone.
func (t *Tracker) GetDailyCost(ctx context.Context) (float64, error) {
	return t.store.SumSince(ctx, dayStart(now()))
}

// GetMonthlyCost sums cost since midnight UTC on the first of the
// current month.
func (t *Tracker) GetMonthlyCost(ctx context.Context) (float64, error) {
	return t.store.SumSince(ctx, monthStart(now()))
}

// GetCostForPeriod sums cost since an arbitrary caller-supplied start.
func (t *Tracker) GetCostForPeriod(ctx context.Context, since time.Time) (float64, error) {
	return t.store.SumSince(ctx, since)
}

// GetStats reports aggregate ledger totals since the given start.
func (t *Tracker) GetStats(ctx context.Context, since time.Time) (Stats, error) {
	return t.store.Stats(ctx, since)
}

// GetBudgetStatus reports current window occupancy and threshold
// crossings against both the daily and monthly budgets.
func (t *Tracker) GetBudgetStatus(ctx context.Context) (Status, error) {
	daily, err := t.GetDailyCost(ctx)
	if err != nil {
		return Status{}, err
	}
	monthly, err := t.GetMonthlyCost(ctx)
	if err != nil {
		return Status{}, err
	}

	t.mu.Lock()
	b := t.budget
	src := t.source
	t.mu.Unlock()

	if src != nil {
		if resolved, rerr := src.ResolveBudget(ctx, b); rerr == nil {
			b = resolved
		}
	}

	dailyPct := pctOf(daily, b.DailyLimitUSD)
	monthlyPct := pctOf(monthly, b.MonthlyLimitUSD)
	worstPct := maxF(dailyPct, monthlyPct)

	return Status{
		DailyUsed:               daily,
		DailyLimit:              b.DailyLimitUSD,
		DailyPct:                dailyPct,
		MonthlyUsed:             monthly,
		MonthlyLimit:            b.MonthlyLimitUSD,
		MonthlyPct:              monthlyPct,
		WarningTriggered:        worstPct >= b.WarningPct,
		CriticalTriggered:       worstPct >= b.CriticalPct,
		CircuitBreakerTriggered: worstPct >= b.CircuitBreakerPct,
	}, nil
}

// UpdateBudget replaces the active budget thresholds, e.g. when an
// operator raises a limit to clear a tripped circuit breaker.
func (t *Tracker) UpdateBudget(b Budget) {
	t.mu.Lock()
	t.budget = b
	t.mu.Unlock()
}

// Clear wipes the ledger. Intended for test setup/teardown only.
func (t *Tracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	t.tripped = false
	t.mu.Unlock()
	return t.store.Clear(ctx)
}

func pctOf(used, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return used / limit
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
