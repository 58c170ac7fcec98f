// Package capture acquires stabilized screenshots from a browser driver and
// produces content-addressed CaptureResult values.
package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Mode selects the region of the page captured.
type Mode string

const (
	ModeViewport Mode = "viewport"
	ModeFullPage Mode = "full-page"
	ModeElement  Mode = "element"
)

// ColorScheme selects the emulated prefers-color-scheme media feature.
type ColorScheme string

const (
	ColorSchemeLight ColorScheme = "light"
	ColorSchemeDark  ColorScheme = "dark"
)

// Box is an axis-aligned rectangle in device pixels.
type Box struct {
	X, Y, W, H float64
}

// Stabilization controls how the page is settled before the screenshot is
// taken.
type Stabilization struct {
	WaitForFonts        bool
	DisableAnimations   bool
	Delay               time.Duration
	WaitForNetworkIdle  bool
	NetworkIdleTimeout  time.Duration
}

// Config describes a single capture request.
type Config struct {
	URL               string
	ViewportWidth     int
	ViewportHeight    int
	Mode              Mode
	Selector          string // required when Mode == ModeElement
	Mask              []string
	Stabilization     Stabilization
	Quality           int
	Format            string // "png" or "jpeg"
	DevicePixelRatio   float64
	ColorScheme       ColorScheme
}

// Metadata records the conditions under which a capture was taken.
type Metadata struct {
	ViewportWidth     int
	ViewportHeight    int
	DevicePixelRatio  float64
	ColorScheme       ColorScheme
	Mode              Mode
	Stabilized        bool
}

// Result is the acquired screenshot plus its identity and metadata.
type Result struct {
	ID          string
	CapturedAt  time.Time
	URL         string
	Bytes       []byte
	Hash        string
	Metadata    Metadata
}

// HashBytes computes the content hash used as Result.Hash. It is exported
// so callers (and tests asserting the "hash is a pure function of the
// payload" invariant) can recompute it independently.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var (
	ErrNavigationTimeout   = errors.New("capture: navigation timeout")
	ErrElementNotFound     = errors.New("capture: element not found")
	ErrStabilizationTimeout = errors.New("capture: stabilization timeout")
)

// Page is the capability surface the capture engine needs from a browser
// driver. It matches the external interface in the specification exactly:
// navigation, viewport control, element queries, and screenshot bytes.
// No other component may depend on this interface.
type Page interface {
	SetViewport(ctx context.Context, width, height int) error
	Goto(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expr string) (any, error)
	WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error
	Screenshot(ctx context.Context, mode Mode, quality int, format string) ([]byte, error)
	ElementBox(ctx context.Context, selector string) (*Box, error)
	Close(ctx context.Context) error
}

// Driver creates pages. It is the top-level capability the capture engine
// consumes; a Driver is typically backed by a pooled browser context.
type Driver interface {
	NewPage(ctx context.Context) (Page, error)
}
