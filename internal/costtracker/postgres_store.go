package costtracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// postgresStore is the append-only ledger backend, grounded on this
// codebase's raw-SQL usage tracker: plain $1 placeholders over
// database/sql, no ORM.
type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-open *sql.DB and ensures the
// ledger table exists.
func NewPostgresStore(ctx context.Context, db *sql.DB) (Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreIO, err)
	}
	s := &postgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *postgresStore) migrate(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS vision_cost_ledger (
			id BIGSERIAL PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			operation TEXT NOT NULL,
			cost_usd DOUBLE PRECISION NOT NULL,
			cached BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vision_cost_ledger_occurred_at ON vision_cost_ledger(occurred_at);`

	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStoreIO, err)
	}
	return nil
}

// Record appends an entry. The ledger is insert-only: no UPDATE or
// DELETE path exists on this table outside of Clear.
func (s *postgresStore) Record(ctx context.Context, e Entry) error {
	const q = `
		INSERT INTO vision_cost_ledger (occurred_at, provider, model, operation, cost_usd, cached)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, q, e.Timestamp, e.Provider, e.Model, e.Operation, e.CostUSD, e.Cached)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStoreIO, err)
	}
	return nil
}

func (s *postgresStore) SumSince(ctx context.Context, since time.Time) (float64, error) {
	const q = `SELECT COALESCE(SUM(cost_usd), 0) FROM vision_cost_ledger WHERE occurred_at >= $1`

	var total float64
	if err := s.db.QueryRowContext(ctx, q, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: sum: %v", ErrStoreIO, err)
	}
	return total, nil
}

func (s *postgresStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	stats := Stats{ByProvider: make(map[string]float64), ByModel: make(map[string]float64)}

	const totalsQ = `
		SELECT COALESCE(SUM(cost_usd), 0), COUNT(*), COALESCE(SUM(CASE WHEN cached THEN 1 ELSE 0 END), 0)
		FROM vision_cost_ledger WHERE occurred_at >= $1`

	var cacheHits int
	if err := s.db.QueryRowContext(ctx, totalsQ, since).Scan(&stats.TotalCostUSD, &stats.OperationCount, &cacheHits); err != nil {
		return Stats{}, fmt.Errorf("%w: totals: %v", ErrStoreIO, err)
	}
	stats.CacheHitCount = cacheHits
	if stats.OperationCount > 0 {
		stats.CacheHitRate = float64(cacheHits) / float64(stats.OperationCount)
	}

	const byProviderQ = `
		SELECT provider, SUM(cost_usd) FROM vision_cost_ledger WHERE occurred_at >= $1 GROUP BY provider`
	rows, err := s.db.QueryContext(ctx, byProviderQ, since)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: by-provider: %v", ErrStoreIO, err)
	}
	for rows.Next() {
		var provider string
		var sum float64
		if err := rows.Scan(&provider, &sum); err != nil {
			rows.Close()
			return Stats{}, fmt.Errorf("%w: by-provider scan: %v", ErrStoreIO, err)
		}
		stats.ByProvider[provider] = sum
	}
	rows.Close()

	const byModelQ = `
		SELECT model, SUM(cost_usd) FROM vision_cost_ledger WHERE occurred_at >= $1 GROUP BY model`
	rows, err = s.db.QueryContext(ctx, byModelQ, since)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: by-model: %v", ErrStoreIO, err)
	}
	defer rows.Close()
	for rows.Next() {
		var model string
		var sum float64
		if err := rows.Scan(&model, &sum); err != nil {
			return Stats{}, fmt.Errorf("%w: by-model scan: %v", ErrStoreIO, err)
		}
		stats.ByModel[model] = sum
	}

	return stats, nil
}

// Clear truncates the ledger. Intended for test/reset tooling only;
// production code should never call this on a live ledger.
func (s *postgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vision_cost_ledger`); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrStoreIO, err)
	}
	return nil
}
