package costtracker

import (
	"context"
	"fmt"
	"time"

	sqlitedriver "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type ledgerModel struct {
	ID         uint `gorm:"primaryKey"`
	OccurredAt time.Time `gorm:"index"`
	Provider   string
	Model      string
	Operation  string
	CostUSD    float64
	Cached     bool
}

func (ledgerModel) TableName() string { return "vision_cost_ledger" }

// sqliteStore mirrors postgresStore for local/test deployments,
// following this codebase's gorm-over-glebarez storage pattern.
type sqliteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the cost ledger database at path.
func NewSQLiteStore(path string) (Store, error) {
	db, err := gorm.Open(sqlitedriver.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStoreIO, err)
	}
	if err := db.AutoMigrate(&ledgerModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreIO, err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Record(ctx context.Context, e Entry) error {
	m := ledgerModel{OccurredAt: e.Timestamp, Provider: e.Provider, Model: e.Model, Operation: e.Operation, CostUSD: e.CostUSD, Cached: e.Cached}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStoreIO, err)
	}
	return nil
}

func (s *sqliteStore) SumSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	row := s.db.WithContext(ctx).Model(&ledgerModel{}).Where("occurred_at >= ?", since).
		Select("COALESCE(SUM(cost_usd), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: sum: %v", ErrStoreIO, err)
	}
	return total, nil
}

func (s *sqliteStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	stats := Stats{ByProvider: make(map[string]float64), ByModel: make(map[string]float64)}

	var entries []ledgerModel
	if err := s.db.WithContext(ctx).Where("occurred_at >= ?", since).Find(&entries).Error; err != nil {
		return Stats{}, fmt.Errorf("%w: find: %v", ErrStoreIO, err)
	}

	for _, e := range entries {
		stats.TotalCostUSD += e.CostUSD
		stats.OperationCount++
		stats.ByProvider[e.Provider] += e.CostUSD
		stats.ByModel[e.Model] += e.CostUSD
		if e.Cached {
			stats.CacheHitCount++
		}
	}
	if stats.OperationCount > 0 {
		stats.CacheHitRate = float64(stats.CacheHitCount) / float64(stats.OperationCount)
	}

	return stats, nil
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&ledgerModel{}).Error; err != nil {
		return fmt.Errorf("%w: clear: %v", ErrStoreIO, err)
	}
	return nil
}
