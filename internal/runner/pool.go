package runner

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runBounded runs fn over every index in [0,n) with at most
// concurrency goroutines in flight. fn's return value is always
// swallowed: callers that need per-page error isolation (capture/
// compare failures) write their outcome into a results slice of
// their own, indexed by i, from inside fn — that slice then holds
// results in input order regardless of completion order, without
// runBounded itself aborting on a single page's failure.
func runBounded(ctx context.Context, n, concurrency int, fn func(ctx context.Context, i int) error) {
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_ = fn(gctx, i)
			return nil
		})
	}

	_ = g.Wait()
}
