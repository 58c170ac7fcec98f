package visioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlitedriver "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type cacheModel struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	Timestamp time.Time `gorm:"index"`
	Provider  string
	Model     string
	Hits      int64
}

func (cacheModel) TableName() string { return "vision_cache" }

// sqliteTier is a single-file persistent tier for local/test use,
// mirroring this codebase's gorm-over-glebarez storage pattern.
type sqliteTier struct {
	db *gorm.DB
}

// NewSQLiteTier opens (or creates) the vision cache database at path.
func NewSQLiteTier(path string) (PersistentTier, error) {
	db, err := gorm.Open(sqlitedriver.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStoreIO, err)
	}
	if err := db.AutoMigrate(&cacheModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreIO, err)
	}
	return &sqliteTier{db: db}, nil
}

func (s *sqliteTier) Get(ctx context.Context, key string) (*Entry, error) {
	var m cacheModel
	err := s.db.WithContext(ctx).First(&m, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	var value Response
	if err := json.Unmarshal([]byte(m.Value), &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return &Entry{Key: m.Key, Value: value, Timestamp: m.Timestamp, Provider: m.Provider, Model: m.Model, Hits: m.Hits}, nil
}

func (s *sqliteTier) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	m := cacheModel{Key: key, Value: string(raw), Timestamp: entry.Timestamp, Provider: entry.Provider, Model: entry.Model, Hits: entry.Hits}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

func (s *sqliteTier) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&cacheModel{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

func (s *sqliteTier) IncrementHits(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Model(&cacheModel{}).Where("key = ?", key).
		UpdateColumn("hits", gorm.Expr("hits + 1")).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

func (s *sqliteTier) Len(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&cacheModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return int(count), nil
}

func (s *sqliteTier) PruneExpired(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	var victims []cacheModel
	if err := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Find(&victims).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if len(victims) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&cacheModel{}).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return len(victims), nil
}
