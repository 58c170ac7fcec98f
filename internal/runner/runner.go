package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vrtest-dev/vrtest/internal/baseline"
	"github.com/vrtest-dev/vrtest/internal/capture"
	"github.com/vrtest-dev/vrtest/internal/vision"
	"github.com/vrtest-dev/vrtest/internal/visdiff"
)

// defaultSemanticOverrideThreshold is the minimum AI confidence at
// which a semantic verdict overrides the structural severity.
const defaultSemanticOverrideThreshold = 0.7

// Config wires a Runner's collaborators and tunables.
type Config struct {
	PageFactory  PageFactory
	Capture      *capture.Engine
	Diff         *visdiff.Engine
	Baselines    *baseline.Manager
	Vision       *vision.Client // nil disables semantic classification entirely
	VCS          VCS

	Concurrency               int
	SemanticOverrideThreshold float64 // default 0.7
	ResultCacheTTL            time.Duration
	ResultCacheMaxBytes       int64
	Progress                  ProgressSink
	Log                       *zap.SugaredLogger
}

// Runner executes a visual test run over a set of pages: selection,
// bounded concurrent capture/compare, structural/semantic severity
// merge, progress reporting, and a result cache, matching the
// Runner{Run, Close} shape used elsewhere in this codebase's
// orchestration layer.
type Runner struct {
	cfg      Config
	log      *zap.SugaredLogger
	cache    *resultCache
	progress ProgressSink

	// semanticUnavailable latches true once a budget-exhaustion is
	// observed; pages classify concurrently, so this is set/read
	// atomically rather than guarded by a mutex.
	semanticUnavailable atomic.Bool
}

// NewRunner constructs a Runner. Capture, Diff, and Baselines are
// required; Vision may be nil to run structural-only comparisons.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Capture == nil || cfg.Diff == nil || cfg.Baselines == nil || cfg.PageFactory == nil {
		return nil, errors.New("runner: capture, diff, baselines, and a page factory are required")
	}
	if cfg.SemanticOverrideThreshold <= 0 {
		cfg.SemanticOverrideThreshold = defaultSemanticOverrideThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NoopProgressSink{}
	}
	return &Runner{
		cfg:      cfg,
		log:      log,
		cache:    newResultCache(cfg.ResultCacheTTL, cfg.ResultCacheMaxBytes),
		progress: progress,
	}, nil
}

// Input is one invocation's page set and behavior toggles.
type Input struct {
	Pages            []PageSpec
	Selection        SelectionOptions
	DiffOptions      visdiff.Options
	BaselineStrategy baseline.Strategy
}

// Run executes the selection phase followed by a bounded concurrent
// capture/compare/classify pass over the selected pages. Cancellation
// of ctx is cooperative: in-flight pages finish, no new page starts,
// and Run returns a partial VisualTestRun with Summary.Interrupted set
// rather than an error.
func (r *Runner) Run(ctx context.Context, in Input) (*VisualTestRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}
	if len(in.Pages) == 0 {
		return nil, ErrNoPages
	}

	sel, err := Select(r.cfg.VCS, in.Pages, in.Selection)
	if err != nil {
		return nil, err
	}
	pages := sel.Selected
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	run := &VisualTestRun{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
	}
	results := make([]DiffResult, len(pages))

	eta := newETATracker()
	var progressMu sync.Mutex
	var completed, passed, failed, cacheHits int

	runBounded(ctx, len(pages), r.cfg.Concurrency, func(ctx context.Context, i int) error {
		if ctx.Err() != nil {
			results[i] = DiffResult{Page: pages[i].Name, Status: StatusSkipped}
			return nil
		}

		start := time.Now()
		res := r.runPage(ctx, pages[i], in.DiffOptions, in.BaselineStrategy)
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
		results[i] = res

		progressMu.Lock()
		eta.recordPage(float64(res.ProcessingTimeMs))
		completed++
		if res.CacheHit {
			cacheHits++
		}
		switch res.Status {
		case StatusPass:
			passed++
		default:
			failed++
		}
		update := ProgressUpdate{
			Completed:            completed,
			Total:                len(pages),
			CurrentPage:          pages[i].Name,
			Passed:               passed,
			Failed:               failed,
			CacheHits:            cacheHits,
			ElapsedMs:            eta.elapsedMs(),
			EstimatedRemainingMs: eta.estimateRemainingMs(len(pages) - completed),
		}
		progressMu.Unlock()

		r.progress.OnUpdate(update)
		return nil
	})

	run.Results = results
	run.Summary = summarize(results)
	run.Summary.Interrupted = ctx.Err() != nil
	return run, nil
}

func summarize(results []DiffResult) Summary {
	s := Summary{
		Total:      len(results),
		BySeverity: make(map[visdiff.Severity]int),
	}
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Passed++
		case StatusRegression:
			s.Regressions++
		case StatusErrored:
			s.Errored++
		case StatusSkipped:
			s.Skipped++
		}
		if r.MergedSeverity != "" {
			s.BySeverity[r.MergedSeverity]++
		}
		if r.CacheHit {
			s.CacheHits++
		}
		if r.SemanticUnavailable {
			s.AIUnavailableCount++
		}
		s.ProcessingTimeMs += r.ProcessingTimeMs
	}
	return s
}

// runPage executes the full per-page pipeline: baseline resolution,
// capture, structural compare, optional semantic classification, and
// severity merge. It never returns an error directly; all failures are
// captured into the returned DiffResult so a single page's failure
// never aborts the run.
func (r *Runner) runPage(ctx context.Context, page PageSpec, diffOpts visdiff.Options, strategy baseline.Strategy) DiffResult {
	result := DiffResult{Page: page.Name}

	baselineRec, baselineBytes, err := r.cfg.Baselines.GetBaseline(ctx, page.CaptureConfig.URL, page.Element, page.Device, strategy, "")
	if err != nil && !errors.Is(err, baseline.ErrBaselineNotFound) {
		result.Status = StatusErrored
		result.Err = err
		return result
	}

	browserPage, err := r.cfg.PageFactory(ctx)
	if err != nil {
		result.Status = StatusErrored
		result.Err = err
		return result
	}
	defer browserPage.Close(ctx)

	captured, err := r.cfg.Capture.Capture(ctx, browserPage, page.CaptureConfig)
	if err != nil {
		result.Status = StatusErrored
		result.Err = err
		return result
	}

	if baselineRec == nil || page.UpdateBaseline {
		if _, err := r.cfg.Baselines.SetBaseline(ctx, baseline.SetInput{
			Bytes:   captured.Bytes,
			Branch:  page.Branch,
			Commit:  page.Commit,
			URL:     page.CaptureConfig.URL,
			Element: page.Element,
			Device:  page.Device,
		}); err != nil {
			result.Status = StatusErrored
			result.Err = err
			return result
		}
		result.Status = StatusPass
		return result
	}

	cacheKey := newResultCacheKey(baselineRec.ContentHash, captured.Hash, diffOpts)
	if cached, ok := r.cache.get(cacheKey, time.Now()); ok {
		cached.Page = page.Name
		return cached
	}

	structural, err := r.cfg.Diff.Compare(ctx, baselineBytes, captured.Bytes, diffOpts)
	if err != nil {
		result.Status = StatusErrored
		result.Err = err
		return result
	}
	result.Structural = structural
	result.MergedSeverity = structural.Overall.Severity

	if diffOpts.SemanticAnalysisEnabled && r.cfg.Vision != nil && structural.Overall.Severity != visdiff.SeverityNone {
		semantic, unavailable := r.classify(ctx, baselineBytes, captured.Bytes, baselineRec.ContentHash, captured.Hash, page)
		result.SemanticUnavailable = unavailable
		if semantic != nil {
			result.Semantic = semantic
			if semantic.Confidence >= r.cfg.SemanticOverrideThreshold {
				result.MergedSeverity = visdiff.Severity(semantic.Severity)
			}
		}
	}

	if result.MergedSeverity == visdiff.SeverityNone {
		result.Status = StatusPass
	} else {
		result.Status = StatusRegression
	}

	r.cache.set(cacheKey, result, time.Now())
	return result
}

// classify invokes the smart vision client. Once a budget-exhaustion
// is observed, every subsequent page in this run skips classification
// outright rather than re-probing a tripped breaker per page.
func (r *Runner) classify(ctx context.Context, baselineBytes, currentBytes []byte, baselineHash, currentHash string, page PageSpec) (*vision.Response, bool) {
	if r.semanticUnavailable.Load() {
		return nil, true
	}

	resp, err := r.cfg.Vision.AnalyzeVisualDiff(ctx, vision.Request{
		BaselineImage: baselineBytes,
		CurrentImage:  currentBytes,
		BaselineHash:  baselineHash,
		CurrentHash:   currentHash,
		Context: map[string]string{
			"url":     page.CaptureConfig.URL,
			"element": page.Element,
			"device":  page.Device,
		},
	})
	if err != nil {
		if errors.Is(err, vision.ErrBudgetExhausted) {
			r.semanticUnavailable.Store(true)
		}
		r.log.Warnw("semantic classification unavailable", "page", page.Name, "error", err)
		return nil, true
	}
	return resp, false
}

// Close releases no resources of its own; it exists so Runner matches
// the {Run, Close} orchestration shape used throughout this codebase.
func (r *Runner) Close(ctx context.Context) error {
	return nil
}
