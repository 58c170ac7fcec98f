package baseline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vrtest-dev/vrtest/internal/baseline"
)

type fakeRepository struct {
	mu      sync.Mutex
	records map[string]baseline.Record // by ID
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{records: make(map[string]baseline.Record)}
}

func (f *fakeRepository) Upsert(_ context.Context, rec baseline.Record) (baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, existing := range f.records {
		if existing.Branch == rec.Branch && existing.URL == rec.URL && existing.Element == rec.Element && existing.Device == rec.Device {
			rec.ID = id
			rec.CreatedAt = existing.CreatedAt
			break
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = time.Now().UTC()
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRepository) FindByKey(_ context.Context, branch, url, element, device string) (*baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.Branch == branch && rec.URL == url && rec.Element == element && rec.Device == device {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) FindByID(_ context.Context, id string) (*baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		r := rec
		return &r, nil
	}
	return nil, nil
}

func (f *fakeRepository) FindByCommit(_ context.Context, commit, url, element, device string) (*baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.Commit == commit && rec.URL == url && rec.Element == element && rec.Device == device {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) List(_ context.Context, filters baseline.ListFilters) ([]baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []baseline.Record
	for _, rec := range f.records {
		if filters.Branch != "" && rec.Branch != filters.Branch {
			continue
		}
		if filters.URL != "" && rec.URL != filters.URL {
			continue
		}
		if filters.Device != "" && rec.Device != filters.Device {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var victims []baseline.Record
	for id, rec := range f.records {
		if rec.UpdatedAt.Before(cutoff) {
			victims = append(victims, rec)
			delete(f.records, id)
		}
	}
	return victims, nil
}

func (f *fakeRepository) MarkQuarantined(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return baseline.ErrBaselineNotFound
	}
	rec.Quarantined = true
	f.records[id] = rec
	return nil
}

type fakePayloadStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakePayloadStore() *fakePayloadStore {
	return &fakePayloadStore{data: make(map[string][]byte)}
}

func (f *fakePayloadStore) Put(_ context.Context, path string, b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.data[path] = cp
	return nil
}

func (f *fakePayloadStore) Get(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[path]
	if !ok {
		return nil, baseline.ErrBaselineNotFound
	}
	return append([]byte(nil), b...), nil
}

func (f *fakePayloadStore) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, path)
	return nil
}

type fakeVCS struct {
	branch string
	commit string
}

func (v fakeVCS) CurrentBranch() (string, error) { return v.branch, nil }
func (v fakeVCS) CurrentCommit() (string, error) { return v.commit, nil }

func newManager(vcs baseline.VCS) (*baseline.Manager, *fakeRepository, *fakePayloadStore) {
	repo := newFakeRepository()
	store := newFakePayloadStore()
	mgr := baseline.NewManager(repo, store, vcs, baseline.Config{})
	return mgr, repo, store
}

func TestManager_SetThenGetBaselineRoundTrips(t *testing.T) {
	mgr, _, _ := newManager(fakeVCS{branch: "main", commit: "abc123"})
	ctx := context.Background()

	rec, err := mgr.SetBaseline(ctx, baseline.SetInput{
		Bytes: []byte("png-bytes"), Branch: "main", Commit: "abc123", URL: "/home",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	got, data, err := mgr.GetBaseline(ctx, "/home", "", "", baseline.StrategyBranch, "")
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)
	require.Equal(t, rec.ContentHash, got.ContentHash)
}

func TestManager_SetBaselineReplacesExistingKey(t *testing.T) {
	mgr, repo, _ := newManager(fakeVCS{branch: "main"})
	ctx := context.Background()

	first, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: []byte("v1"), Branch: "main", URL: "/home"})
	require.NoError(t, err)

	second, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: []byte("v2"), Branch: "main", URL: "/home"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	all, err := repo.List(ctx, baseline.ListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestManager_GetBaselineNotFound(t *testing.T) {
	mgr, _, _ := newManager(fakeVCS{branch: "main"})
	_, _, err := mgr.GetBaseline(context.Background(), "/missing", "", "", baseline.StrategyBranch, "")
	require.ErrorIs(t, err, baseline.ErrBaselineNotFound)
}

func TestManager_ChecksumMismatchQuarantinesRecord(t *testing.T) {
	mgr, _, store := newManager(fakeVCS{branch: "main"})
	ctx := context.Background()

	rec, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: []byte("original"), Branch: "main", URL: "/home"})
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, rec.StoragePath, []byte("corrupted")))

	got, data, err := mgr.GetBaseline(ctx, "/home", "", "", baseline.StrategyBranch, "")
	require.ErrorIs(t, err, baseline.ErrChecksumMismatch)
	require.Nil(t, data)
	require.True(t, got.Quarantined)
}

func TestManager_BranchFallbackToDefault(t *testing.T) {
	repo := newFakeRepository()
	store := newFakePayloadStore()
	mgr := baseline.NewManager(repo, store, fakeVCS{branch: "feature/x"}, baseline.Config{
		DefaultBranch: "main", BranchFallback: true,
	})
	ctx := context.Background()

	mainMgr := baseline.NewManager(repo, store, fakeVCS{branch: "main"}, baseline.Config{})
	_, err := mainMgr.SetBaseline(ctx, baseline.SetInput{Bytes: []byte("main-baseline"), Branch: "main", URL: "/home"})
	require.NoError(t, err)

	_, data, err := mgr.GetBaseline(ctx, "/home", "", "", baseline.StrategyBranch, "")
	require.NoError(t, err)
	require.Equal(t, []byte("main-baseline"), data)
}

func TestManager_CleanupOldBaselinesRemovesExpiredAndPayload(t *testing.T) {
	mgr, repo, store := newManager(fakeVCS{branch: "main"})
	ctx := context.Background()

	rec, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: []byte("old"), Branch: "main", URL: "/stale"})
	require.NoError(t, err)

	stale := repo.records[rec.ID]
	stale.UpdatedAt = time.Now().UTC().AddDate(0, 0, -100)
	repo.mu.Lock()
	repo.records[rec.ID] = stale
	repo.mu.Unlock()

	n, err := mgr.CleanupOldBaselines(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = store.Get(ctx, rec.StoragePath)
	require.ErrorIs(t, err, baseline.ErrBaselineNotFound)
}

func TestManager_UpdateBaselineKeepsKeyReplacesPayload(t *testing.T) {
	mgr, _, _ := newManager(fakeVCS{branch: "main"})
	ctx := context.Background()

	rec, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: []byte("v1"), Branch: "main", URL: "/home"})
	require.NoError(t, err)

	updated, err := mgr.UpdateBaseline(ctx, rec.ID, []byte("v2"))
	require.NoError(t, err)
	require.Equal(t, rec.ID, updated.ID)
	require.NotEqual(t, rec.ContentHash, updated.ContentHash)

	_, data, err := mgr.GetBaseline(ctx, "/home", "", "", baseline.StrategyBranch, "")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), data)
}
