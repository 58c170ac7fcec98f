package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Service provides live access to dynamic configuration values stored
// in a vrtest_config table, generalizing the teacher's system_config
// service to the knobs operators actually want to tune mid-run without
// a redeploy: budget limits, the circuit-breaker percentage, and
// default concurrency. An environment variable with the derived name
// (uppercased, dots -> underscores) always overrides the stored value.
type Service struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[string]cachedEntry
	ttl   time.Duration
}

type cachedEntry struct {
	value     string
	expiresAt time.Time
}

// DefaultTTL matches the teacher's one-minute config cache window.
const DefaultTTL = time.Minute

// NewService constructs a Service over an existing *sql.DB. A nil db
// is valid: all reads then fall through to env vars and the supplied
// default, which is useful for local/offline runs without Postgres.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, cache: make(map[string]cachedEntry), ttl: DefaultTTL}
}

// EnsureSchema creates the vrtest_config table if it does not exist.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	const ddl = `CREATE TABLE IF NOT EXISTS vrtest_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// GetString returns a string config value, checked in order: env var
// override, in-process cache, Postgres row, defaultValue.
func (s *Service) GetString(ctx context.Context, key, defaultValue string) (string, error) {
	if v, ok := s.envOverride(key); ok {
		return v, nil
	}
	if v, ok := s.getFromCache(key); ok {
		return v, nil
	}
	if s.db == nil {
		return defaultValue, nil
	}

	const q = `SELECT value FROM vrtest_config WHERE key = $1 LIMIT 1`
	var v string
	switch err := s.db.QueryRowContext(ctx, q, key).Scan(&v); err {
	case nil:
		s.putInCache(key, v)
		return v, nil
	case sql.ErrNoRows:
		return defaultValue, nil
	default:
		return "", fmt.Errorf("config: reading %s: %w", key, err)
	}
}

// GetFloat returns a float64 config value, e.g. the dynamic daily
// budget limit.
func (s *Service) GetFloat(ctx context.Context, key string, defaultValue float64) (float64, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil {
		return 0, err
	}
	if v == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return defaultValue, nil
	}
	return parsed, nil
}

// GetBool returns a boolean config value.
func (s *Service) GetBool(ctx context.Context, key string, defaultValue bool) (bool, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil {
		return false, err
	}
	if v == "" {
		return defaultValue, nil
	}
	return strings.EqualFold(v, "true") || v == "1", nil
}

// Upsert writes a configuration value, invalidating the local cache
// entry so the next read observes it immediately.
func (s *Service) Upsert(ctx context.Context, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("config: no database configured for %s", key)
	}
	const q = `INSERT INTO vrtest_config (key, value, updated_at) VALUES ($1, $2, now())
	           ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("config: writing %s: %w", key, err)
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

func (s *Service) envOverride(key string) (string, bool) {
	envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if v := os.Getenv(envKey); v != "" {
		return v, true
	}
	return "", false
}

func (s *Service) getFromCache(key string) (string, bool) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
		return "", false
	}
	return entry.value, true
}

func (s *Service) putInCache(key, value string) {
	s.mu.Lock()
	s.cache[key] = cachedEntry{value: value, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// Budget keys recognized by the dynamic override service.
const (
	KeyDailyLimitUSD   = "budget.daily_limit_usd"
	KeyMonthlyLimitUSD = "budget.monthly_limit_usd"
	KeyCircuitBreakerPct = "budget.circuit_breaker_pct"
	KeyDefaultConcurrency = "runner.concurrency"
)
