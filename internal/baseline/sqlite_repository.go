package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlitedriver "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// baselineModel is the gorm row shape, kept separate from Record so the
// storage representation can evolve independently of the domain type.
type baselineModel struct {
	ID             string `gorm:"primaryKey"`
	Branch         string `gorm:"index;uniqueIndex:idx_baseline_key"`
	Commit         string
	URL            string `gorm:"uniqueIndex:idx_baseline_key"`
	Element        string `gorm:"uniqueIndex:idx_baseline_key"`
	Device         string `gorm:"uniqueIndex:idx_baseline_key"`
	StoragePath    string
	ContentHash    string
	ConfigSnapshot string
	Quarantined    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time `gorm:"index"`
}

func (baselineModel) TableName() string { return "baselines" }

// sqliteRepository is the single-file, cgo-free metadata index used for
// local development and test runs, mirroring the gorm-over-glebarez
// storage pattern used elsewhere in this codebase.
type sqliteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository opens (or creates) a SQLite database at path and
// runs auto-migration for the baselines table.
func NewSQLiteRepository(path string) (Repository, error) {
	db, err := gorm.Open(sqlitedriver.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStorageError, err)
	}
	if err := db.AutoMigrate(&baselineModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrStorageError, err)
	}
	return &sqliteRepository{db: db}, nil
}

func (s *sqliteRepository) Upsert(ctx context.Context, rec Record) (Record, error) {
	cfg, err := json.Marshal(rec.ConfigSnapshot)
	if err != nil {
		return Record{}, fmt.Errorf("%w: marshal config: %v", ErrStorageError, err)
	}

	now := time.Now().UTC()
	model := baselineModel{
		ID:             rec.ID,
		Branch:         rec.Branch,
		Commit:         rec.Commit,
		URL:            rec.URL,
		Element:        rec.Element,
		Device:         rec.Device,
		StoragePath:    rec.StoragePath,
		ContentHash:    rec.ContentHash,
		ConfigSnapshot: string(cfg),
		Quarantined:    false,
		UpdatedAt:      now,
	}

	var existing baselineModel
	err = s.db.WithContext(ctx).
		Where("branch = ? AND url = ? AND element = ? AND device = ?", rec.Branch, rec.URL, rec.Element, rec.Device).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		model.CreatedAt = now
		if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
			return Record{}, fmt.Errorf("%w: create: %v", ErrStorageError, err)
		}
	case err != nil:
		return Record{}, fmt.Errorf("%w: lookup: %v", ErrStorageError, err)
	default:
		model.CreatedAt = existing.CreatedAt
		model.ID = existing.ID
		if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
			return Record{}, fmt.Errorf("%w: update: %v", ErrStorageError, err)
		}
	}

	rec.ID = model.ID
	rec.CreatedAt = model.CreatedAt
	rec.UpdatedAt = model.UpdatedAt
	return rec, nil
}

func (s *sqliteRepository) FindByKey(ctx context.Context, branch, url, element, device string) (*Record, error) {
	var model baselineModel
	err := s.db.WithContext(ctx).
		Where("branch = ? AND url = ? AND element = ? AND device = ?", branch, url, element, device).
		First(&model).Error
	return modelToRecordOrNil(model, err)
}

func (s *sqliteRepository) FindByID(ctx context.Context, id string) (*Record, error) {
	var model baselineModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	return modelToRecordOrNil(model, err)
}

func (s *sqliteRepository) FindByCommit(ctx context.Context, commit, url, element, device string) (*Record, error) {
	var model baselineModel
	err := s.db.WithContext(ctx).
		Where("commit = ? AND url = ? AND element = ? AND device = ?", commit, url, element, device).
		First(&model).Error
	return modelToRecordOrNil(model, err)
}

func (s *sqliteRepository) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&baselineModel{})
	if filters.Branch != "" {
		q = q.Where("branch = ?", filters.Branch)
	}
	if filters.URL != "" {
		q = q.Where("url = ?", filters.URL)
	}
	if filters.Device != "" {
		q = q.Where("device = ?", filters.Device)
	}

	var models []baselineModel
	if err := q.Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStorageError, err)
	}

	out := make([]Record, len(models))
	for i, m := range models {
		out[i] = modelToRecord(m)
	}
	return out, nil
}

func (s *sqliteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]Record, error) {
	var models []baselineModel
	if err := s.db.WithContext(ctx).Where("updated_at < ?", cutoff).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: select for cleanup: %v", ErrStorageError, err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	if err := s.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&baselineModel{}).Error; err != nil {
		return nil, fmt.Errorf("%w: delete: %v", ErrStorageError, err)
	}

	out := make([]Record, len(models))
	for i, m := range models {
		out[i] = modelToRecord(m)
	}
	return out, nil
}

func (s *sqliteRepository) MarkQuarantined(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&baselineModel{}).Where("id = ?", id).Update("quarantined", true)
	if res.Error != nil {
		return fmt.Errorf("%w: quarantine: %v", ErrStorageError, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBaselineNotFound
	}
	return nil
}

func modelToRecordOrNil(m baselineModel, err error) (*Record, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	rec := modelToRecord(m)
	return &rec, nil
}

func modelToRecord(m baselineModel) Record {
	rec := Record{
		ID:          m.ID,
		Branch:      m.Branch,
		Commit:      m.Commit,
		URL:         m.URL,
		Element:     m.Element,
		Device:      m.Device,
		StoragePath: m.StoragePath,
		ContentHash: m.ContentHash,
		Quarantined: m.Quarantined,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ConfigSnapshot != "" {
		_ = json.Unmarshal([]byte(m.ConfigSnapshot), &rec.ConfigSnapshot)
	}
	return rec
}
