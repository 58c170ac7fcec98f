package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vrtest-dev/vrtest/internal/costtracker"
)

func TestServiceNilDBFallsBackToDefault(t *testing.T) {
	s := NewService(nil)

	v, err := s.GetString(context.Background(), "budget.daily_limit_usd", "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", v)

	f, err := s.GetFloat(context.Background(), KeyDailyLimitUSD, 12.5)
	require.NoError(t, err)
	require.Equal(t, 12.5, f)

	b, err := s.GetBool(context.Background(), "vision.enabled", true)
	require.NoError(t, err)
	require.True(t, b)
}

func TestServiceEnvOverrideWinsOverDefault(t *testing.T) {
	t.Setenv("BUDGET_DAILY_LIMIT_USD", "42")

	s := NewService(nil)
	v, err := s.GetString(context.Background(), KeyDailyLimitUSD, "fallback")
	require.NoError(t, err)
	require.Equal(t, "42", v)

	f, err := s.GetFloat(context.Background(), KeyDailyLimitUSD, 1)
	require.NoError(t, err)
	require.Equal(t, 42.0, f)
}

func TestServiceUpsertWithoutDBErrors(t *testing.T) {
	s := NewService(nil)
	err := s.Upsert(context.Background(), KeyDefaultConcurrency, "8")
	require.Error(t, err)
}

func TestServiceCacheExpiry(t *testing.T) {
	s := NewService(nil)
	s.ttl = time.Millisecond

	s.putInCache("k", "v")
	v, ok := s.getFromCache("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	time.Sleep(5 * time.Millisecond)
	_, ok = s.getFromCache("k")
	require.False(t, ok)
}

func TestServiceEnvOverrideKeyDerivation(t *testing.T) {
	os.Unsetenv("RUNNER_CONCURRENCY")
	s := NewService(nil)
	_, ok := s.envOverride(KeyDefaultConcurrency)
	require.False(t, ok)

	t.Setenv("RUNNER_CONCURRENCY", "max")
	v, ok := s.envOverride(KeyDefaultConcurrency)
	require.True(t, ok)
	require.Equal(t, "max", v)
}

func TestServiceResolveBudgetFallsBackWithoutDB(t *testing.T) {
	s := NewService(nil)
	fallback := costtracker.Budget{
		DailyLimitUSD:     10,
		MonthlyLimitUSD:   200,
		WarningPct:        0.8,
		CriticalPct:       0.95,
		CircuitBreakerPct: 1.0,
	}

	resolved, err := s.ResolveBudget(context.Background(), fallback)
	require.NoError(t, err)
	require.Equal(t, fallback, resolved)
}

func TestServiceResolveBudgetHonorsEnvOverride(t *testing.T) {
	t.Setenv("BUDGET_DAILY_LIMIT_USD", "25")

	s := NewService(nil)
	fallback := costtracker.DefaultBudget()

	resolved, err := s.ResolveBudget(context.Background(), fallback)
	require.NoError(t, err)
	require.Equal(t, 25.0, resolved.DailyLimitUSD)
	require.Equal(t, fallback.MonthlyLimitUSD, resolved.MonthlyLimitUSD)
	require.Equal(t, fallback.WarningPct, resolved.WarningPct)
}
