package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine drives a Page through stabilization and acquires a screenshot.
type Engine struct {
	log *zap.SugaredLogger
}

// NewEngine constructs a capture Engine. A nil logger falls back to a
// no-op logger, matching the teacher's pattern of always having a usable
// logger in hand.
func NewEngine(log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{log: log}
}

// maskOverlayStyle is the deterministic CSS injected for masked selectors.
// It is intentionally opaque and selector-driven only, so two captures
// that differ only in masked regions produce byte-identical output.
const maskOverlayStyle = `
(() => {
  const sel = %q;
  document.querySelectorAll(sel).forEach((el) => {
    el.style.setProperty('background-color', '#000000', 'important');
    el.style.setProperty('color', 'transparent', 'important');
    el.style.setProperty('box-shadow', 'none', 'important');
    el.style.setProperty('background-image', 'none', 'important');
  });
})();
`

const disableAnimationsStyle = `
(() => {
  const style = document.createElement('style');
  style.setAttribute('data-vrtest', 'disable-animations');
  style.textContent = '*, *::before, *::after { animation-duration: 0s !important; animation-delay: 0s !important; transition-duration: 0s !important; transition-delay: 0s !important; }';
  document.head.appendChild(style);
})();
`

const waitForFontsExpr = `document.fonts ? document.fonts.ready.then(() => true) : true`

// Capture acquires a single stabilized screenshot. Total wall time is
// bounded by stabilization.Delay + NetworkIdleTimeout + a 5s margin, per
// the specification.
func (e *Engine) Capture(ctx context.Context, page Page, cfg Config) (*Result, error) {
	budget := cfg.Stabilization.Delay + cfg.Stabilization.NetworkIdleTimeout + 5*time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if err := page.SetViewport(ctx, cfg.ViewportWidth, cfg.ViewportHeight); err != nil {
			return nil, fmt.Errorf("%w: set viewport: %v", ErrNavigationTimeout, err)
		}
	}

	if err := page.Goto(ctx, cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
	}

	if err := page.WaitForLoadState(ctx, "domcontentloaded", budget); err != nil {
		return nil, fmt.Errorf("%w: dom content loaded: %v", ErrStabilizationTimeout, err)
	}

	stabilized, err := e.stabilize(ctx, page, cfg)
	if err != nil {
		return nil, err
	}

	for _, sel := range cfg.Mask {
		if _, err := page.Evaluate(ctx, fmt.Sprintf(maskOverlayStyle, sel)); err != nil {
			e.log.Warnw("mask overlay injection failed, falling back to style hide", "selector", sel, "error", err)
			hide := fmt.Sprintf(`(() => {
  const style = document.createElement('style');
  style.setAttribute('data-vrtest', 'mask-hide');
  style.textContent = %q + ' { visibility: hidden !important; }';
  document.head.appendChild(style);
})();`, sel)
			if _, err := page.Evaluate(ctx, hide); err != nil {
				e.log.Warnw("mask style hide failed, selector left unmasked", "selector", sel, "error", err)
			}
		}
	}

	if cfg.Mode == ModeElement {
		box, err := page.ElementBox(ctx, cfg.Selector)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrElementNotFound, err)
		}
		if box == nil {
			return nil, fmt.Errorf("%w: selector %q matched nothing", ErrElementNotFound, cfg.Selector)
		}
	}

	shot, err := page.Screenshot(ctx, cfg.Mode, cfg.Quality, cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}

	return &Result{
		ID:         uuid.NewString(),
		CapturedAt: time.Now().UTC(),
		URL:        cfg.URL,
		Bytes:      shot,
		Hash:       HashBytes(shot),
		Metadata: Metadata{
			ViewportWidth:    cfg.ViewportWidth,
			ViewportHeight:   cfg.ViewportHeight,
			DevicePixelRatio: cfg.DevicePixelRatio,
			ColorScheme:      cfg.ColorScheme,
			Mode:             cfg.Mode,
			Stabilized:       stabilized,
		},
	}, nil
}

// stabilize applies the ordered stabilization steps from the spec: font
// wait, animation disable, network idle wait, fixed delay.
func (e *Engine) stabilize(ctx context.Context, page Page, cfg Config) (bool, error) {
	s := cfg.Stabilization
	applied := false

	if s.WaitForFonts {
		if _, err := page.Evaluate(ctx, waitForFontsExpr); err != nil {
			return applied, fmt.Errorf("%w: font load: %v", ErrStabilizationTimeout, err)
		}
		applied = true
	}

	if s.DisableAnimations {
		if _, err := page.Evaluate(ctx, disableAnimationsStyle); err != nil {
			return applied, fmt.Errorf("%w: disable animations: %v", ErrStabilizationTimeout, err)
		}
		applied = true
	}

	if s.WaitForNetworkIdle {
		timeout := s.NetworkIdleTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		if err := page.WaitForLoadState(ctx, "networkidle", timeout); err != nil {
			return applied, fmt.Errorf("%w: network idle: %v", ErrStabilizationTimeout, err)
		}
		applied = true
	}

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return applied, fmt.Errorf("%w: fixed delay: %v", ErrStabilizationTimeout, ctx.Err())
		}
		applied = true
	}

	return applied, nil
}
