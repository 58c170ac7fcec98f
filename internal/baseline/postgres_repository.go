package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// postgresRepository is the durable metadata index backed by Postgres,
// using raw parameterized SQL in the style of this codebase's other
// database/sql repositories.
type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an already-open *sql.DB (pgx stdlib
// driver) as a baseline Repository, ensuring the baselines table
// exists before returning, matching costtracker's self-migrating
// NewPostgresStore.
func NewPostgresRepository(db *sql.DB) (Repository, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	r := &postgresRepository{db: db}
	if err := r.migrate(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// migrate creates the baselines table and its uniqueness index if they
// do not already exist. Schema evolution beyond this is out of scope.
func (r *postgresRepository) migrate(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS baselines (
			id TEXT PRIMARY KEY,
			branch TEXT NOT NULL,
			commit TEXT NOT NULL,
			url TEXT NOT NULL,
			element TEXT NOT NULL DEFAULT '',
			device TEXT NOT NULL DEFAULT '',
			storage_path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			config_snapshot JSONB NOT NULL DEFAULT '{}',
			quarantined BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (branch, url, element, device)
		);
		CREATE INDEX IF NOT EXISTS idx_baselines_branch ON baselines(branch);
		CREATE INDEX IF NOT EXISTS idx_baselines_updated_at ON baselines(updated_at);
	`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStorageError, err)
	}
	return nil
}

func (r *postgresRepository) Upsert(ctx context.Context, rec Record) (Record, error) {
	cfg, err := json.Marshal(rec.ConfigSnapshot)
	if err != nil {
		return Record{}, fmt.Errorf("%w: marshal config: %v", ErrStorageError, err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	const q = `
		INSERT INTO baselines (id, branch, commit, url, element, device, storage_path, content_hash, config_snapshot, quarantined, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (branch, url, element, device) DO UPDATE SET
			commit = EXCLUDED.commit,
			storage_path = EXCLUDED.storage_path,
			content_hash = EXCLUDED.content_hash,
			config_snapshot = EXCLUDED.config_snapshot,
			quarantined = false,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, q, rec.ID, rec.Branch, rec.Commit, rec.URL, rec.Element, rec.Device,
		rec.StoragePath, rec.ContentHash, cfg, rec.Quarantined, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("%w: upsert: %v", ErrStorageError, err)
	}

	return rec, nil
}

func (r *postgresRepository) FindByKey(ctx context.Context, branch, url, element, device string) (*Record, error) {
	const q = `
		SELECT id, branch, commit, url, element, device, storage_path, content_hash, config_snapshot, quarantined, created_at, updated_at
		FROM baselines WHERE branch = $1 AND url = $2 AND element = $3 AND device = $4
	`
	return scanOne(r.db.QueryRowContext(ctx, q, branch, url, element, device))
}

func (r *postgresRepository) FindByID(ctx context.Context, id string) (*Record, error) {
	const q = `
		SELECT id, branch, commit, url, element, device, storage_path, content_hash, config_snapshot, quarantined, created_at, updated_at
		FROM baselines WHERE id = $1
	`
	return scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *postgresRepository) FindByCommit(ctx context.Context, commit, url, element, device string) (*Record, error) {
	const q = `
		SELECT id, branch, commit, url, element, device, storage_path, content_hash, config_snapshot, quarantined, created_at, updated_at
		FROM baselines WHERE commit = $1 AND url = $2 AND element = $3 AND device = $4
	`
	return scanOne(r.db.QueryRowContext(ctx, q, commit, url, element, device))
}

func (r *postgresRepository) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	q := `
		SELECT id, branch, commit, url, element, device, storage_path, content_hash, config_snapshot, quarantined, created_at, updated_at
		FROM baselines
	`
	var args []any
	var conditions []string
	argNum := 1

	if filters.Branch != "" {
		conditions = append(conditions, fmt.Sprintf("branch = $%d", argNum))
		args = append(args, filters.Branch)
		argNum++
	}
	if filters.URL != "" {
		conditions = append(conditions, fmt.Sprintf("url = $%d", argNum))
		args = append(args, filters.URL)
		argNum++
	}
	if filters.Device != "" {
		conditions = append(conditions, fmt.Sprintf("device = $%d", argNum))
		args = append(args, filters.Device)
		argNum++
	}
	if len(conditions) > 0 {
		q += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			q += " AND " + c
		}
	}
	q += " ORDER BY updated_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStorageError, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *postgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]Record, error) {
	const selectQ = `
		SELECT id, branch, commit, url, element, device, storage_path, content_hash, config_snapshot, quarantined, created_at, updated_at
		FROM baselines WHERE updated_at < $1
	`
	rows, err := r.db.QueryContext(ctx, selectQ, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: select for cleanup: %v", ErrStorageError, err)
	}

	var victims []Record
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		victims = append(victims, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(victims) == 0 {
		return nil, nil
	}

	const deleteQ = `DELETE FROM baselines WHERE updated_at < $1`
	if _, err := r.db.ExecContext(ctx, deleteQ, cutoff); err != nil {
		return nil, fmt.Errorf("%w: delete: %v", ErrStorageError, err)
	}
	return victims, nil
}

func (r *postgresRepository) MarkQuarantined(ctx context.Context, id string) error {
	const q = `UPDATE baselines SET quarantined = true WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("%w: quarantine: %v", ErrStorageError, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrBaselineNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOne(row scannable) (*Record, error) {
	rec, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func scanRow(row scannable) (Record, error) {
	var rec Record
	var cfg []byte

	err := row.Scan(&rec.ID, &rec.Branch, &rec.Commit, &rec.URL, &rec.Element, &rec.Device,
		&rec.StoragePath, &rec.ContentHash, &cfg, &rec.Quarantined, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: scan: %v", ErrStorageError, err)
	}

	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &rec.ConfigSnapshot); err != nil {
			return Record{}, fmt.Errorf("%w: unmarshal config: %v", ErrStorageError, err)
		}
	}
	return rec, nil
}
