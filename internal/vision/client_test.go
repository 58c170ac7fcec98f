package vision_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vrtest-dev/vrtest/internal/costtracker"
	"github.com/vrtest-dev/vrtest/internal/vision"
	"github.com/vrtest-dev/vrtest/internal/visioncache"
)

type fakeProvider struct {
	name       string
	model      string
	calls      int32
	available  bool
	resp       *vision.Response
	err        error
	delay      time.Duration
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Model() string {
	if f.model == "" {
		return f.name + "-default"
	}
	return f.model
}
func (f *fakeProvider) SupportsVision() bool { return true }
func (f *fakeProvider) IsAvailable(_ context.Context) bool { return f.available }

func (f *fakeProvider) AnalyzeVisualDiff(ctx context.Context, _ vision.Request) (*vision.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.resp
	return &cp, nil
}

type fakePersistentTier struct {
	mu      sync.Mutex
	entries map[string]visioncache.Entry
}

func newFakePersistentTier() *fakePersistentTier {
	return &fakePersistentTier{entries: make(map[string]visioncache.Entry)}
}

func (f *fakePersistentTier) Get(_ context.Context, key string) (*visioncache.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}
func (f *fakePersistentTier) Set(_ context.Context, key string, entry visioncache.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = entry
	return nil
}
func (f *fakePersistentTier) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}
func (f *fakePersistentTier) IncrementHits(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[key]; ok {
		e.Hits++
		f.entries[key] = e
	}
	return nil
}
func (f *fakePersistentTier) Len(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}
func (f *fakePersistentTier) PruneExpired(_ context.Context, _ time.Duration) (int, error) { return 0, nil }

type fakeCostStore struct {
	mu      sync.Mutex
	entries []costtracker.Entry
}

func (f *fakeCostStore) Record(_ context.Context, e costtracker.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeCostStore) SumSince(_ context.Context, since time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total float64
	for _, e := range f.entries {
		if !e.Timestamp.Before(since) {
			total += e.CostUSD
		}
	}
	return total, nil
}
func (f *fakeCostStore) Stats(_ context.Context, since time.Time) (costtracker.Stats, error) {
	return costtracker.Stats{ByProvider: map[string]float64{}, ByModel: map[string]float64{}}, nil
}
func (f *fakeCostStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
	return nil
}

func newTestClient(t *testing.T, providers []vision.Provider, fallback bool) *vision.Client {
	t.Helper()
	cache := visioncache.NewCache(newFakePersistentTier(), 10, time.Hour)
	tracker := costtracker.NewTracker(&fakeCostStore{}, costtracker.NewPriceTable(), costtracker.DefaultBudget())

	c, err := vision.NewClient(vision.Config{
		Providers:       providers,
		FallbackEnabled: fallback,
		Cache:           cache,
		Tracker:         tracker,
	})
	require.NoError(t, err)
	return c
}

func testRequest() vision.Request {
	return vision.Request{
		BaselineImage: []byte("baseline-bytes"),
		CurrentImage:  []byte("current-bytes"),
		BaselineHash:  "hashA",
		CurrentHash:   "hashB",
	}
}

func TestClient_ConstructionFailsWithNoProviders(t *testing.T) {
	_, err := vision.NewClient(vision.Config{
		Cache:   visioncache.NewCache(newFakePersistentTier(), 10, time.Hour),
		Tracker: costtracker.NewTracker(&fakeCostStore{}, costtracker.NewPriceTable(), costtracker.DefaultBudget()),
	})
	require.ErrorIs(t, err, vision.ErrConfigInvalid)
}

func TestClient_PrimaryProviderSucceedsNoFallback(t *testing.T) {
	primary := &fakeProvider{name: "ollama", available: true, resp: &vision.Response{Severity: vision.SeverityMinor, Confidence: 0.9, Model: "llava"}}
	secondary := &fakeProvider{name: "openai", available: true, resp: &vision.Response{Severity: vision.SeverityBreaking}}

	c := newTestClient(t, []vision.Provider{primary, secondary}, true)

	resp, err := c.AnalyzeVisualDiff(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, vision.SeverityMinor, resp.Severity)
	require.EqualValues(t, 1, primary.calls)
	require.EqualValues(t, 0, secondary.calls)
}

func TestClient_FallsBackOnMalformedPrimaryResponse(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, err: vision.ErrProviderResponseMalformed}
	secondary := &fakeProvider{name: "secondary", available: true, resp: &vision.Response{Severity: vision.SeverityModerate, Confidence: 0.82, Categories: []string{"layout"}, Model: "m2"}}

	c := newTestClient(t, []vision.Provider{primary, secondary}, true)

	resp, err := c.AnalyzeVisualDiff(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, vision.SeverityModerate, resp.Severity)
	require.Equal(t, "secondary", resp.Provider)
}

func TestClient_FallbackDisabledDoesNotTrySecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, err: vision.ErrProviderResponseMalformed}
	secondary := &fakeProvider{name: "secondary", available: true, resp: &vision.Response{Severity: vision.SeverityNone}}

	c := newTestClient(t, []vision.Provider{primary, secondary}, false)

	_, err := c.AnalyzeVisualDiff(context.Background(), testRequest())
	require.ErrorIs(t, err, vision.ErrAllProvidersFailed)
	require.EqualValues(t, 0, secondary.calls)
}

func TestClient_AllProvidersFailReturnsAllProvidersFailed(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, err: vision.ErrProviderResponseMalformed}
	secondary := &fakeProvider{name: "secondary", available: true, err: vision.ErrProviderResponseMalformed}

	c := newTestClient(t, []vision.Provider{primary, secondary}, true)

	_, err := c.AnalyzeVisualDiff(context.Background(), testRequest())
	require.ErrorIs(t, err, vision.ErrAllProvidersFailed)
}

func TestClient_UnavailableProviderIsSkipped(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: false}
	secondary := &fakeProvider{name: "secondary", available: true, resp: &vision.Response{Severity: vision.SeverityNone, Model: "m"}}

	c := newTestClient(t, []vision.Provider{primary, secondary}, true)

	resp, err := c.AnalyzeVisualDiff(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "secondary", resp.Provider)
	require.EqualValues(t, 0, primary.calls)
}

func TestClient_SecondCallWithSameKeyIsCacheHit(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, resp: &vision.Response{Severity: vision.SeverityMinor, Model: "m1"}}

	c := newTestClient(t, []vision.Provider{primary}, false)

	_, err := c.AnalyzeVisualDiff(context.Background(), testRequest())
	require.NoError(t, err)
	_, err = c.AnalyzeVisualDiff(context.Background(), testRequest())
	require.NoError(t, err)

	require.EqualValues(t, 1, primary.calls)
}

func TestToLegacy_MapsSeverityAndIntentionalFlag(t *testing.T) {
	cases := []struct {
		sev           vision.Severity
		wantLegacy    vision.LegacySeverity
		wantIntentional bool
	}{
		{vision.SeverityNone, vision.LegacyLow, true},
		{vision.SeverityMinor, vision.LegacyLow, true},
		{vision.SeverityModerate, vision.LegacyMedium, false},
		{vision.SeverityBreaking, vision.LegacyCritical, false},
	}

	for _, tc := range cases {
		got := vision.ToLegacy(vision.Response{Severity: tc.sev})
		require.Equal(t, tc.wantLegacy, got.Severity)
		require.Equal(t, tc.wantIntentional, got.IsIntentional)
	}
}

func TestToLegacy_ChangeTypePriorityOrder(t *testing.T) {
	got := vision.ToLegacy(vision.Response{Categories: []string{"text", "color", "layout"}})
	require.Equal(t, "layout", got.ChangeType)

	got = vision.ToLegacy(vision.Response{Categories: []string{"text", "color"}})
	require.Equal(t, "color", got.ChangeType)

	got = vision.ToLegacy(vision.Response{Categories: nil})
	require.Equal(t, "unknown", got.ChangeType)
}
