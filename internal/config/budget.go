package config

import (
	"context"

	"github.com/vrtest-dev/vrtest/internal/costtracker"
)

// ResolveBudget implements costtracker.BudgetSource over Service,
// so the cost tracker's circuit breaker reads its daily/monthly
// limits and breaker threshold from vrtest_config (env override, then
// cached row, then fallback) instead of the static value it was
// constructed with. Warning/critical thresholds are left at the
// caller-supplied fallback: only the knobs operators actually tune
// mid-run (limits, breaker percentage) are exposed as override keys.
func (s *Service) ResolveBudget(ctx context.Context, fallback costtracker.Budget) (costtracker.Budget, error) {
	daily, err := s.GetFloat(ctx, KeyDailyLimitUSD, fallback.DailyLimitUSD)
	if err != nil {
		return fallback, err
	}
	monthly, err := s.GetFloat(ctx, KeyMonthlyLimitUSD, fallback.MonthlyLimitUSD)
	if err != nil {
		return fallback, err
	}
	breakerPct, err := s.GetFloat(ctx, KeyCircuitBreakerPct, fallback.CircuitBreakerPct)
	if err != nil {
		return fallback, err
	}

	resolved := fallback
	resolved.DailyLimitUSD = daily
	resolved.MonthlyLimitUSD = monthly
	resolved.CircuitBreakerPct = breakerPct
	return resolved, nil
}
