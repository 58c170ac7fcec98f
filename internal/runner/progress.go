package runner

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// emaAlpha is the exponential-moving-average smoothing factor for
// per-page duration, used to project estimatedRemainingMs.
const emaAlpha = 0.3

// etaTracker maintains the EWMA of per-page duration and derives an
// ETA for the remaining pages.
type etaTracker struct {
	mu      sync.Mutex
	avgMs   float64
	started time.Time
	hasAvg  bool
}

func newETATracker() *etaTracker {
	return &etaTracker{started: time.Now()}
}

func (e *etaTracker) recordPage(durationMs float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasAvg {
		e.avgMs = durationMs
		e.hasAvg = true
		return
	}
	e.avgMs = emaAlpha*durationMs + (1-emaAlpha)*e.avgMs
}

func (e *etaTracker) estimateRemainingMs(remaining int) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasAvg || remaining <= 0 {
		return 0
	}
	return int64(e.avgMs * float64(remaining))
}

func (e *etaTracker) elapsedMs() int64 {
	return time.Since(e.started).Milliseconds()
}

// TerminalProgressSink renders a single-line progress bar to stdout,
// wrapping to the terminal width the way this codebase's banner
// renderer does.
type TerminalProgressSink struct {
	writer func(string)
}

// NewTerminalProgressSink writes lines via the given writer (e.g.
// func(s string) { fmt.Print(s) }).
func NewTerminalProgressSink(writer func(string)) *TerminalProgressSink {
	return &TerminalProgressSink{writer: writer}
}

func (t *TerminalProgressSink) OnUpdate(u ProgressUpdate) {
	width, _, err := term.GetSize(0)
	if err != nil || width <= 0 {
		width = 80
	}

	line := fmt.Sprintf("[%d/%d] pass=%d fail=%d cache=%d eta=%s %s",
		u.Completed, u.Total, u.Passed, u.Failed, u.CacheHits,
		time.Duration(u.EstimatedRemainingMs)*time.Millisecond, u.CurrentPage)

	if runewidth.StringWidth(line) > width {
		line = runewidth.Truncate(line, width, "…")
	} else {
		line += strings.Repeat(" ", width-runewidth.StringWidth(line))
	}

	t.writer("\r" + line)
}
