// Package playwright adapts github.com/playwright-community/playwright-go
// to the capture.Page / capture.Driver interfaces so the capture engine
// never imports the driver package directly.
package playwright

import (
	"context"
	"fmt"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/vrtest-dev/vrtest/internal/capture"
)

// Driver owns a single browser instance and hands out pages backed by
// fresh browser contexts, mirroring the pooled-worker browser lifecycle
// the teacher's scraping workers use.
type Driver struct {
	pwInstance *pw.Playwright
	browser    pw.Browser
}

// NewDriver launches a Chromium browser, headless when headless is true.
func NewDriver(headless bool) (*Driver, error) {
	instance, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright: start: %w", err)
	}

	browser, err := instance.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(headless),
	})
	if err != nil {
		_ = instance.Stop()
		return nil, fmt.Errorf("playwright: launch chromium: %w", err)
	}

	return &Driver{pwInstance: instance, browser: browser}, nil
}

// Close tears down the browser and the Playwright driver process.
func (d *Driver) Close() error {
	if err := d.browser.Close(); err != nil {
		return err
	}
	return d.pwInstance.Stop()
}

// NewPage opens a fresh isolated browser context and page, so captures
// never leak cookies or storage between test cases.
func (d *Driver) NewPage(ctx context.Context) (capture.Page, error) {
	bctx, err := d.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("playwright: new context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("playwright: new page: %w", err)
	}

	return &pageAdapter{ctx: bctx, page: page}, nil
}

type pageAdapter struct {
	ctx  pw.BrowserContext
	page pw.Page
}

func (p *pageAdapter) SetViewport(_ context.Context, width, height int) error {
	return p.page.SetViewportSize(width, height)
}

func (p *pageAdapter) Goto(_ context.Context, url string) error {
	_, err := p.page.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateLoad,
	})
	return err
}

func (p *pageAdapter) Evaluate(_ context.Context, expr string) (any, error) {
	return p.page.Evaluate(expr)
}

func (p *pageAdapter) WaitForLoadState(_ context.Context, state string, timeout time.Duration) error {
	var s *pw.LoadState
	switch state {
	case "domcontentloaded":
		v := pw.LoadStateDomcontentloaded
		s = &v
	case "networkidle":
		v := pw.LoadStateNetworkidle
		s = &v
	default:
		v := pw.LoadStateLoad
		s = &v
	}
	ms := float64(timeout.Milliseconds())
	return p.page.WaitForLoadState(pw.PageWaitForLoadStateOptions{State: s, Timeout: &ms})
}

func (p *pageAdapter) Screenshot(_ context.Context, mode capture.Mode, quality int, format string) ([]byte, error) {
	opts := pw.PageScreenshotOptions{
		FullPage: pw.Bool(mode == capture.ModeFullPage),
	}
	if format == "jpeg" {
		t := pw.ScreenshotTypeJpeg
		opts.Type = &t
		if quality > 0 {
			opts.Quality = pw.Int(quality)
		}
	} else {
		t := pw.ScreenshotTypePng
		opts.Type = &t
	}
	return p.page.Screenshot(opts)
}

func (p *pageAdapter) ElementBox(_ context.Context, selector string) (*capture.Box, error) {
	loc := p.page.Locator(selector)
	box, err := loc.BoundingBox()
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, nil
	}
	return &capture.Box{X: box.X, Y: box.Y, W: box.Width, H: box.Height}, nil
}

func (p *pageAdapter) Close(_ context.Context) error {
	if err := p.page.Close(); err != nil {
		return err
	}
	return p.ctx.Close()
}
