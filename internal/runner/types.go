// Package runner implements the parallel visual test runner: page
// selection, a bounded capture/compare worker pool, structural and
// semantic severity merge, progress reporting, and a result cache,
// composed over the capture, visdiff, vision, and baseline packages.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/vrtest-dev/vrtest/internal/baseline"
	"github.com/vrtest-dev/vrtest/internal/capture"
	"github.com/vrtest-dev/vrtest/internal/vision"
	"github.com/vrtest-dev/vrtest/internal/visdiff"
)

// PageSpec describes one page to test.
type PageSpec struct {
	Name           string
	CaptureConfig  capture.Config
	Branch         string
	Commit         string
	Element        string
	Device         string
	UpdateBaseline bool
}

// Status classifies a single page's outcome.
type Status string

const (
	StatusPass       Status = "pass"
	StatusRegression Status = "regression"
	StatusErrored    Status = "errored"
	StatusSkipped    Status = "skipped"
)

// DiffResult is one page's outcome, in input-list order within the run.
type DiffResult struct {
	Page                string
	Status              Status
	Structural          *visdiff.Result
	Semantic            *vision.Response
	SemanticUnavailable bool
	MergedSeverity      visdiff.Severity
	CacheHit            bool
	Err                 error
	ProcessingTimeMs    int64
}

// Summary aggregates a run's results.
type Summary struct {
	Total               int
	Passed              int
	Regressions         int
	Errored             int
	Skipped             int
	BySeverity          map[visdiff.Severity]int
	CacheHits           int
	AIUnavailableCount  int
	ProcessingTimeMs    int64
	Interrupted         bool
}

// VisualTestRun is the runner's top-level result surface.
type VisualTestRun struct {
	ID        string
	Timestamp time.Time
	Results   []DiffResult
	Summary   Summary
}

// TestSelection is the output of the selection phase.
type TestSelection struct {
	Selected []PageSpec
	Skipped  []PageSpec
	Reasons  map[string]string
}

// ProgressUpdate is emitted once per completed page.
type ProgressUpdate struct {
	Completed            int
	Total                int
	CurrentPage          string
	Passed                int
	Failed                int
	CacheHits             int
	ElapsedMs             int64
	EstimatedRemainingMs  int64
}

// ProgressSink receives progress updates. Implementations must not
// block the worker pool for long; a slow sink should buffer or drop.
type ProgressSink interface {
	OnUpdate(ProgressUpdate)
}

// NoopProgressSink discards updates.
type NoopProgressSink struct{}

func (NoopProgressSink) OnUpdate(ProgressUpdate) {}

// DependencyMap maps a changed source file to the page names it
// affects. The default implementation maps a file to itself.
type DependencyMap interface {
	AffectedPages(changedFile string) []string
}

// IdentityDependencyMap is DependencyMap's zero-configuration default.
type IdentityDependencyMap struct{}

func (IdentityDependencyMap) AffectedPages(changedFile string) []string { return []string{changedFile} }

// VCS is the version-control capability the selection phase and
// baseline manager consume.
type VCS interface {
	CurrentBranch() (string, error)
	CurrentCommit() (string, error)
	DiffFiles(base string) ([]string, error)
}

// baselineVCSAdapter narrows VCS down to baseline.VCS so a single VCS
// implementation can serve both the selector and the baseline manager.
type baselineVCSAdapter struct{ vcs VCS }

func (a baselineVCSAdapter) CurrentBranch() (string, error) { return a.vcs.CurrentBranch() }
func (a baselineVCSAdapter) CurrentCommit() (string, error) { return a.vcs.CurrentCommit() }

var _ baseline.VCS = baselineVCSAdapter{}

var (
	// ErrCancelled is returned by Run when the context is already
	// cancelled when Run is called; a run cancelled after it has started
	// instead sets Summary.Interrupted and returns normally.
	ErrCancelled = errors.New("runner: cancelled before run started")
	// ErrNoPages is raised when Run is called with an empty page list.
	ErrNoPages = errors.New("runner: no pages to run")
)

// PageFactory produces a fresh capture.Page for a worker. Workers may
// share browser contexts; the factory decides the sharing policy.
type PageFactory func(ctx context.Context) (capture.Page, error)
