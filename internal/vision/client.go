package vision

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/vrtest-dev/vrtest/internal/costtracker"
	"github.com/vrtest-dev/vrtest/internal/visioncache"
)

// Client composes the preprocessor, two-tier cache, cost tracker, and
// an ordered fallback chain of provider adapters behind a single
// AnalyzeVisualDiff call.
type Client struct {
	providers       []Provider
	fallbackEnabled bool
	cache           *visioncache.Cache
	tracker         *costtracker.Tracker

	group singleflight.Group
}

// Config wires a Client's collaborators. Providers is the ordered
// fallback chain (default order: local provider, then cloud
// providers); when FallbackEnabled is false only providers[0] is
// tried.
type Config struct {
	Providers       []Provider
	FallbackEnabled bool
	Cache           *visioncache.Cache
	Tracker         *costtracker.Tracker
}

// NewClient validates configuration and constructs a Client.
// Configuration errors (no providers, a provider that cannot support
// vision) are raised here, never during AnalyzeVisualDiff.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrConfigInvalid)
	}
	for _, p := range cfg.Providers {
		if !p.SupportsVision() {
			return nil, fmt.Errorf("%w: provider %q does not support vision", ErrConfigInvalid, p.Name())
		}
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("%w: no vision cache configured", ErrConfigInvalid)
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("%w: no cost tracker configured", ErrConfigInvalid)
	}

	return &Client{
		providers:       cfg.Providers,
		fallbackEnabled: cfg.FallbackEnabled,
		cache:           cfg.Cache,
		tracker:         cfg.Tracker,
	}, nil
}

// AnalyzeVisualDiff runs the full pipeline: preprocess, cache lookup,
// ordered provider fallback, cost tracking, and cache population.
func (c *Client) AnalyzeVisualDiff(ctx context.Context, req Request) (*Response, error) {
	normalized := preprocess(req)

	primary := c.providers[0]
	key := visioncache.Key(primary.Name(), primary.Model(), normalized.BaselineHash, normalized.CurrentHash)

	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.analyzeUncached(ctx, key, primary.Name(), primary.Model(), normalized)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func (c *Client) analyzeUncached(ctx context.Context, key, primaryName, primaryModelName string, req Request) (*Response, error) {
	if cached, ok := c.cache.Get(ctx, key); ok {
		if _, err := c.tracker.TrackOperation(ctx, primaryName, primaryModelName, true); err != nil {
			return nil, err
		}
		resp := fromCacheResponse(*cached)
		resp.Provider, resp.Model = primaryName, primaryModelName
		return resp, nil
	}

	chain := c.providers
	if !c.fallbackEnabled {
		chain = c.providers[:1]
	}

	var lastErr error
	for _, p := range chain {
		if !p.IsAvailable(ctx) {
			continue
		}

		status, err := c.tracker.GetBudgetStatus(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if status.CircuitBreakerTriggered {
			return nil, ErrBudgetExhausted
		}

		resp, err := p.AnalyzeVisualDiff(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}

		resp.Provider = p.Name()
		resp.Model = p.Model()

		if _, err := c.tracker.TrackOperation(ctx, resp.Provider, resp.Model, false); err != nil {
			return nil, err
		}

		actualKey := visioncache.Key(resp.Provider, resp.Model, req.BaselineHash, req.CurrentHash)
		c.cache.Set(ctx, actualKey, toCacheResponse(*resp), resp.Provider, resp.Model)

		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
	}
	return nil, fmt.Errorf("%w: no provider was available", ErrAllProvidersFailed)
}

func toCacheResponse(r Response) visioncache.Response {
	return visioncache.Response{
		Severity:    visioncache.Severity(r.Severity),
		Confidence:  r.Confidence,
		Reasoning:   r.Reasoning,
		Categories:  r.Categories,
		Suggestions: r.Suggestions,
	}
}

func fromCacheResponse(r visioncache.Response) *Response {
	return &Response{
		Severity:    Severity(r.Severity),
		Confidence:  r.Confidence,
		Reasoning:   r.Reasoning,
		Categories:  r.Categories,
		Suggestions: r.Suggestions,
	}
}
