package runner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vrtest-dev/vrtest/internal/baseline"
	"github.com/vrtest-dev/vrtest/internal/capture"
	"github.com/vrtest-dev/vrtest/internal/costtracker"
	"github.com/vrtest-dev/vrtest/internal/runner"
	"github.com/vrtest-dev/vrtest/internal/vision"
	"github.com/vrtest-dev/vrtest/internal/visdiff"
	"github.com/vrtest-dev/vrtest/internal/visioncache"
)

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// --- fakes ---

type fakeRepository struct {
	mu      sync.Mutex
	records map[string]baseline.Record
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
			break
		}
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("rec-%d", len(f.records)+1)
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
	return nil, nil
}

func (f *fakeRepository) List(_ context.Context, filters baseline.ListFilters) ([]baseline.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []baseline.Record
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]baseline.Record, error) {
	return nil, nil
}

func (f *fakeRepository) MarkQuarantined(_ context.Context, id string) error { return nil }

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
	f.data[path] = append([]byte(nil), b...)
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

func (f *fakePayloadStore) Delete(_ context.Context, path string) error { return nil }

type fakeVCS struct {
	branch string
	commit string
	diff   []string
}

func (v fakeVCS) CurrentBranch() (string, error)        { return v.branch, nil }
func (v fakeVCS) CurrentCommit() (string, error)        { return v.commit, nil }
func (v fakeVCS) DiffFiles(base string) ([]string, error) { return v.diff, nil }

type fakePage struct {
	shot []byte
}

func (p *fakePage) SetViewport(ctx context.Context, w, h int) error        { return nil }
func (p *fakePage) Goto(ctx context.Context, url string) error            { return nil }
func (p *fakePage) Evaluate(ctx context.Context, expr string) (any, error) { return nil, nil }
func (p *fakePage) WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error {
	return nil
}
func (p *fakePage) Screenshot(ctx context.Context, mode capture.Mode, quality int, format string) ([]byte, error) {
	return p.shot, nil
}
func (p *fakePage) ElementBox(ctx context.Context, selector string) (*capture.Box, error) {
	return &capture.Box{W: 10, H: 10}, nil
}
func (p *fakePage) Close(ctx context.Context) error { return nil }

var _ capture.Page = (*fakePage)(nil)
var _ baseline.VCS = fakeVCS{}
var _ runner.VCS = fakeVCS{}

func newTestBaselines(vcs baseline.VCS) (*baseline.Manager, *fakeRepository) {
	repo := newFakeRepository()
	payload := newFakePayloadStore()
	return baseline.NewManager(repo, payload, vcs, baseline.Config{}), repo
}

func TestRunner_IdenticalCaptureProducesPass(t *testing.T) {
	shot := solidPNG(t, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	vcs := fakeVCS{branch: "main"}
	mgr, _ := newTestBaselines(vcs)

	ctx := context.Background()
	_, err := mgr.SetBaseline(ctx, baseline.SetInput{
		Bytes: shot, Branch: "main", URL: "https://example.test/home",
	})
	require.NoError(t, err)

	r, err := runner.NewRunner(runner.Config{
		Capture: capture.NewEngine(nil),
		Diff:    visdiff.NewEngine(),
		Baselines: mgr,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			return &fakePage{shot: shot}, nil
		},
		Concurrency: 2,
	})
	require.NoError(t, err)

	run, err := r.Run(ctx, runner.Input{
		Pages: []runner.PageSpec{{
			Name:          "home",
			CaptureConfig: capture.Config{URL: "https://example.test/home", Mode: capture.ModeViewport, Format: "png"},
		}},
		DiffOptions: visdiff.DefaultOptions(),
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	require.Equal(t, runner.StatusPass, run.Results[0].Status)
	require.False(t, run.Summary.Interrupted)
}

func TestRunner_DifferentCaptureProducesRegression(t *testing.T) {
	baselineShot := solidPNG(t, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	currentShot := solidPNG(t, color.RGBA{R: 0, G: 0, B: 0, A: 255})
	vcs := fakeVCS{branch: "main"}
	mgr, _ := newTestBaselines(vcs)

	ctx := context.Background()
	_, err := mgr.SetBaseline(ctx, baseline.SetInput{
		Bytes: baselineShot, Branch: "main", URL: "https://example.test/home",
	})
	require.NoError(t, err)

	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			return &fakePage{shot: currentShot}, nil
		},
	})
	require.NoError(t, err)

	run, err := r.Run(ctx, runner.Input{
		Pages: []runner.PageSpec{{
			Name:          "home",
			CaptureConfig: capture.Config{URL: "https://example.test/home", Mode: capture.ModeViewport, Format: "png"},
		}},
		DiffOptions: visdiff.DefaultOptions(),
	})
	require.NoError(t, err)
	require.Equal(t, runner.StatusRegression, run.Results[0].Status)
	require.NotEqual(t, visdiff.SeverityNone, run.Results[0].MergedSeverity)
	require.Equal(t, 1, run.Summary.Regressions)
}

func TestRunner_MissingBaselineSetsItAndPasses(t *testing.T) {
	shot := solidPNG(t, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	vcs := fakeVCS{branch: "main"}
	mgr, repo := newTestBaselines(vcs)

	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			return &fakePage{shot: shot}, nil
		},
	})
	require.NoError(t, err)

	run, err := r.Run(context.Background(), runner.Input{
		Pages: []runner.PageSpec{{
			Name:          "new-page",
			CaptureConfig: capture.Config{URL: "https://example.test/new", Mode: capture.ModeViewport, Format: "png"},
		}},
		DiffOptions: visdiff.DefaultOptions(),
	})
	require.NoError(t, err)
	require.Equal(t, runner.StatusPass, run.Results[0].Status)

	all, err := repo.List(context.Background(), baseline.ListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRunner_CaptureFailureMarksPageErroredAndContinues(t *testing.T) {
	shot := solidPNG(t, color.RGBA{R: 5, G: 5, B: 5, A: 255})
	vcs := fakeVCS{branch: "main"}
	mgr, _ := newTestBaselines(vcs)

	ctx := context.Background()
	_, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: shot, Branch: "main", URL: "https://example.test/a"})
	require.NoError(t, err)
	_, err = mgr.SetBaseline(ctx, baseline.SetInput{Bytes: shot, Branch: "main", URL: "https://example.test/b"})
	require.NoError(t, err)

	calls := 0
	var mu sync.Mutex
	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return nil, errors.New("page factory exhausted")
			}
			return &fakePage{shot: shot}, nil
		},
		Concurrency: 1,
	})
	require.NoError(t, err)

	run, err := r.Run(ctx, runner.Input{
		Pages: []runner.PageSpec{
			{Name: "a", CaptureConfig: capture.Config{URL: "https://example.test/a", Mode: capture.ModeViewport, Format: "png"}},
			{Name: "b", CaptureConfig: capture.Config{URL: "https://example.test/b", Mode: capture.ModeViewport, Format: "png"}},
		},
		DiffOptions: visdiff.DefaultOptions(),
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 2)
	require.Equal(t, runner.StatusErrored, run.Results[0].Status)
	require.Error(t, run.Results[0].Err)
	require.Equal(t, runner.StatusPass, run.Results[1].Status)
	require.Equal(t, 1, run.Summary.Errored)
	require.Equal(t, 1, run.Summary.Passed)
}

func TestRunner_ResultsPreserveInputOrderUnderConcurrency(t *testing.T) {
	vcs := fakeVCS{branch: "main"}
	mgr, _ := newTestBaselines(vcs)
	ctx := context.Background()

	var pages []runner.PageSpec
	shots := make(map[string][]byte)
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("page-%d", i)
		shot := solidPNG(t, color.RGBA{R: uint8(i * 10), G: 1, B: 1, A: 255})
		shots[name] = shot
		_, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: shot, Branch: "main", URL: "https://example.test/" + name})
		require.NoError(t, err)
		pages = append(pages, runner.PageSpec{
			Name:          name,
			CaptureConfig: capture.Config{URL: "https://example.test/" + name, Mode: capture.ModeViewport, Format: "png"},
		})
	}

	// Every worker captures page-0's bytes, so pages whose baseline red
	// channel is far from page-0's regress while the rest pass; outcomes
	// are not asserted. What this test exercises is that Results stays
	// in input order despite concurrent, out-of-order completion.
	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			return &fakePage{shot: shots["page-0"]}, nil
		},
		Concurrency: 8,
	})
	require.NoError(t, err)

	run, err := r.Run(ctx, runner.Input{Pages: pages, DiffOptions: visdiff.DefaultOptions()})
	require.NoError(t, err)
	require.Len(t, run.Results, len(pages))
	for i, res := range run.Results {
		require.Equal(t, pages[i].Name, res.Page)
	}
}

func TestRunner_CancellationProducesPartialInterruptedRun(t *testing.T) {
	shot := solidPNG(t, color.RGBA{R: 9, G: 9, B: 9, A: 255})
	vcs := fakeVCS{branch: "main"}
	mgr, _ := newTestBaselines(vcs)
	ctx, cancel := context.WithCancel(context.Background())

	var pages []runner.PageSpec
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("page-%d", i)
		_, err := mgr.SetBaseline(context.Background(), baseline.SetInput{Bytes: shot, Branch: "main", URL: "https://example.test/" + name})
		require.NoError(t, err)
		pages = append(pages, runner.PageSpec{
			Name:          name,
			CaptureConfig: capture.Config{URL: "https://example.test/" + name, Mode: capture.ModeViewport, Format: "png"},
		})
	}

	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			cancel()
			return &fakePage{shot: shot}, nil
		},
		Concurrency: 1,
	})
	require.NoError(t, err)

	run, err := r.Run(ctx, runner.Input{Pages: pages, DiffOptions: visdiff.DefaultOptions()})
	require.NoError(t, err)
	require.True(t, run.Summary.Interrupted)
}

func TestRunner_IncrementalSelectionSkipsUnaffectedPages(t *testing.T) {
	shot := solidPNG(t, color.RGBA{R: 3, G: 3, B: 3, A: 255})
	vcs := fakeVCS{branch: "main", diff: []string{"changed-page"}}
	mgr, _ := newTestBaselines(vcs)
	ctx := context.Background()

	for _, name := range []string{"changed-page", "untouched-page"} {
		_, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: shot, Branch: "main", URL: "https://example.test/" + name})
		require.NoError(t, err)
	}

	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		VCS:       vcs,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			return &fakePage{shot: shot}, nil
		},
	})
	require.NoError(t, err)

	run, err := r.Run(ctx, runner.Input{
		Pages: []runner.PageSpec{
			{Name: "changed-page", CaptureConfig: capture.Config{URL: "https://example.test/changed-page", Mode: capture.ModeViewport, Format: "png"}},
			{Name: "untouched-page", CaptureConfig: capture.Config{URL: "https://example.test/untouched-page", Mode: capture.ModeViewport, Format: "png"}},
		},
		Selection: runner.SelectionOptions{
			Incremental:    true,
			BaseRef:        "main",
			SampleFraction: 0, // default 10%: int(1*0.10) samples none of the one unchanged page
			Seed:           1,
		},
		DiffOptions: visdiff.DefaultOptions(),
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	require.Equal(t, "changed-page", run.Results[0].Page)
}

// --- semantic classification / budget exhaustion ---

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
	var sum float64
	for _, e := range f.entries {
		if !e.Timestamp.Before(since) {
			sum += e.CostUSD
		}
	}
	return sum, nil
}

func (f *fakeCostStore) Stats(_ context.Context, since time.Time) (costtracker.Stats, error) {
	return costtracker.Stats{}, nil
}

func (f *fakeCostStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
	return nil
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
	return &e, nil
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

func (f *fakePersistentTier) IncrementHits(_ context.Context, key string) error { return nil }

func (f *fakePersistentTier) Len(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}

func (f *fakePersistentTier) PruneExpired(_ context.Context, ttl time.Duration) (int, error) {
	return 0, nil
}

type fakeProvider struct {
	name, model string
}

func (p fakeProvider) Name() string             { return p.name }
func (p fakeProvider) Model() string            { return p.model }
func (p fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (p fakeProvider) SupportsVision() bool      { return true }

func (p fakeProvider) AnalyzeVisualDiff(ctx context.Context, req vision.Request) (*vision.Response, error) {
	return &vision.Response{
		Severity:   vision.SeverityBreaking,
		Confidence: 0.95,
		Reasoning:  "layout shifted",
		Categories: []string{"layout"},
	}, nil
}

var _ vision.Provider = fakeProvider{}

func TestRunner_BudgetExhaustionFlagsLaterPagesSemanticUnavailable(t *testing.T) {
	// Each page gets its own distinct baseline/current pair so their
	// content hashes differ and the vision cache can't turn the second
	// page's request into a cache hit that would bypass the tripped
	// breaker entirely.
	shots := map[string][2][]byte{
		"p1": {solidPNG(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}), solidPNG(t, color.RGBA{R: 0, G: 0, B: 0, A: 255})},
		"p2": {solidPNG(t, color.RGBA{R: 200, G: 0, B: 0, A: 255}), solidPNG(t, color.RGBA{R: 0, G: 200, B: 0, A: 255})},
	}
	vcs := fakeVCS{branch: "main"}
	mgr, _ := newTestBaselines(vcs)
	ctx := context.Background()

	var pages []runner.PageSpec
	for _, name := range []string{"p1", "p2"} {
		_, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: shots[name][0], Branch: "main", URL: "https://example.test/" + name})
		require.NoError(t, err)
		pages = append(pages, runner.PageSpec{
			Name:          name,
			CaptureConfig: capture.Config{URL: "https://example.test/" + name, Mode: capture.ModeViewport, Format: "png"},
		})
	}

	prices := costtracker.NewPriceTable()
	prices.Set("test-provider", "v1", 1000) // one call blows through any budget
	tracker := costtracker.NewTracker(&fakeCostStore{}, prices, costtracker.Budget{
		DailyLimitUSD: 1, MonthlyLimitUSD: 1, WarningPct: 0.8, CriticalPct: 0.95, CircuitBreakerPct: 1.0,
	})
	cache := visioncache.NewCache(newFakePersistentTier(), 10, time.Hour)

	visionClient, err := vision.NewClient(vision.Config{
		Providers:       []vision.Provider{fakeProvider{name: "test-provider", model: "v1"}},
		FallbackEnabled: false,
		Cache:           cache,
		Tracker:         tracker,
	})
	require.NoError(t, err)

	// Concurrency 1 makes page order deterministic, so the factory can
	// hand out the right page's current-shot by call order.
	order := []string{"p1", "p2"}
	var callIdx int
	var callMu sync.Mutex
	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		Vision:    visionClient,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			callMu.Lock()
			name := order[callIdx]
			callIdx++
			callMu.Unlock()
			return &fakePage{shot: shots[name][1]}, nil
		},
		Concurrency: 1,
	})
	require.NoError(t, err)

	opts := visdiff.DefaultOptions()
	opts.SemanticAnalysisEnabled = true

	run, err := r.Run(ctx, runner.Input{Pages: pages, DiffOptions: opts})
	require.NoError(t, err)
	require.Len(t, run.Results, 2)

	require.NotNil(t, run.Results[0].Semantic)
	require.False(t, run.Results[0].SemanticUnavailable)

	require.Nil(t, run.Results[1].Semantic)
	require.True(t, run.Results[1].SemanticUnavailable)
	require.Equal(t, 1, run.Summary.AIUnavailableCount)
}

// TestRunner_SemanticOverridesStructuralAboveThreshold exercises the
// merge rule directly: a low structural severity combined with a
// high-confidence breaking verdict from the vision client should win.
func TestRunner_SemanticOverridesStructuralAboveThreshold(t *testing.T) {
	// Baseline and current differ by one shade, a small structural diff
	// that classifies as minor or none on its own.
	baselineShot := solidPNG(t, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	currentShot := solidPNG(t, color.RGBA{R: 12, G: 10, B: 10, A: 255})
	vcs := fakeVCS{branch: "main"}
	mgr, _ := newTestBaselines(vcs)
	ctx := context.Background()

	_, err := mgr.SetBaseline(ctx, baseline.SetInput{Bytes: baselineShot, Branch: "main", URL: "https://example.test/home"})
	require.NoError(t, err)

	prices := costtracker.NewPriceTable()
	tracker := costtracker.NewTracker(&fakeCostStore{}, prices, costtracker.DefaultBudget())
	cache := visioncache.NewCache(newFakePersistentTier(), 10, time.Hour)

	visionClient, err := vision.NewClient(vision.Config{
		Providers: []vision.Provider{fakeProvider{name: "test-provider", model: "v1"}},
		Cache:     cache,
		Tracker:   tracker,
	})
	require.NoError(t, err)

	r, err := runner.NewRunner(runner.Config{
		Capture:   capture.NewEngine(nil),
		Diff:      visdiff.NewEngine(),
		Baselines: mgr,
		Vision:    visionClient,
		PageFactory: func(ctx context.Context) (capture.Page, error) {
			return &fakePage{shot: currentShot}, nil
		},
	})
	require.NoError(t, err)

	opts := visdiff.DefaultOptions()
	opts.SemanticAnalysisEnabled = true

	run, err := r.Run(ctx, runner.Input{
		Pages: []runner.PageSpec{{
			Name:          "home",
			CaptureConfig: capture.Config{URL: "https://example.test/home", Mode: capture.ModeViewport, Format: "png"},
		}},
		DiffOptions: opts,
	})
	require.NoError(t, err)

	res := run.Results[0]
	if res.Structural.Overall.Severity != visdiff.SeverityNone {
		require.Equal(t, visdiff.SeverityBreaking, res.MergedSeverity)
	}
}
