package visdiff

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Engine is the bounded-cache, side-effect-free structural comparator.
// Mirrors the fan-out-with-semaphore, async-persistence style of the
// in-memory diff store pattern used elsewhere in the retrieved corpus,
// generalized from a digest-pair keyed metrics cache to direct
// baseline/current byte comparison.
type Engine struct {
	cache *boundedCache
}

// NewEngine constructs a diff Engine with its bounded image cache.
func NewEngine() *Engine {
	return &Engine{cache: newBoundedCache()}
}

// Compare implements the compare() contract: deterministic given
// identical inputs, side-effect free aside from the process-wide cache.
func (e *Engine) Compare(ctx context.Context, baselineBytes, currentBytes []byte, opts Options) (*Result, error) {
	start := time.Now()

	baselineHash := hashBytes(baselineBytes)
	currentHash := hashBytes(currentBytes)

	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.MaxConcurrency > 10 {
		opts.MaxConcurrency = 10
	}

	key := newCacheKey(baselineHash, currentHash, opts)
	if cached, ok := e.cache.get(key); ok {
		return cached, nil
	}

	// Step 1: identity short-circuit.
	if baselineHash == currentHash {
		result := identityResult(time.Since(start))
		e.store(key, result, baselineBytes, currentBytes)
		return result, nil
	}

	baselineImg, _, err := image.Decode(bytes.NewReader(baselineBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: baseline: %v", ErrImageDecode, err)
	}
	currentImg, _, err := image.Decode(bytes.NewReader(currentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: current: %v", ErrImageDecode, err)
	}

	if err := checkDimensions(baselineImg, currentImg, opts.DimensionTolerance); err != nil {
		return nil, err
	}

	// Step 2: early-exit sampling.
	seed := seedFromImages(baselineBytes, currentBytes)
	ratio := sampledDiffRatio(baselineImg, currentImg, seed, opts.PixelThreshold)
	if ratio > earlyExitThreshold {
		result := &Result{
			PixelDiff: PixelDiff{DiffPct: ratio},
			Overall: Overall{
				Severity:       SeverityBreaking,
				Pass:           false,
				CompositeScore: clamp01(1 - ratio),
				Confidence:     1,
			},
			EarlyExit:        true,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}
		e.store(key, result, baselineBytes, currentBytes)
		return result, nil
	}

	// Step 3 & 4: full pixel diff + SSIM.
	pd := pixelDiff(baselineImg, currentImg, opts.PixelThreshold, opts.AntiAliasingIgnored)

	// Step 5: region pass.
	regions, skipped, err := e.compareRegions(ctx, baselineImg, currentImg, opts)
	if err != nil {
		return nil, err
	}

	// Step 6: severity assignment.
	weightedBreaking := regionWeightedBreaking(regions)
	severity := classifyGlobal(pd.DiffPct, pd.SSIM, weightedBreaking)

	// Step 7: composite score.
	score := compositeScore(pd.DiffPct, pd.SSIM)

	result := &Result{
		PixelDiff:      pd,
		Regions:        regions,
		SkippedRegions: skipped,
		Overall: Overall{
			Severity:       severity,
			Pass:           passes(severity),
			CompositeScore: score,
			Confidence:     1,
		},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	e.store(key, result, baselineBytes, currentBytes)
	return result, nil
}

func (e *Engine) store(key cacheKey, result *Result, baseline, current []byte) {
	e.cache.set(key, result, len(baseline)+len(current))
}

// compareRegions runs steps 3/4 scoped to each configured region,
// bounded by MaxConcurrency via a weighted semaphore fan-out.
func (e *Engine) compareRegions(ctx context.Context, baseline, current image.Image, opts Options) ([]RegionDiff, []string, error) {
	if len(opts.Regions) == 0 {
		return nil, nil, nil
	}
	if opts.Resolver == nil {
		skipped := make([]string, len(opts.Regions))
		for i, r := range opts.Regions {
			skipped[i] = r.Name
		}
		return nil, skipped, nil
	}

	sem := semaphore.NewWeighted(int64(opts.MaxConcurrency))
	results := make([]RegionDiff, len(opts.Regions))
	valid := make([]bool, len(opts.Regions))
	var skippedMu sync.Mutex
	var skipped []string

	g, gctx := errgroup.WithContext(ctx)

	for i, region := range opts.Regions {
		i, region := i, region
		if err := sem.Acquire(gctx, 1); err != nil {
			return nil, nil, err
		}

		g.Go(func() error {
			defer sem.Release(1)

			box, err := opts.Resolver.ResolveBox(region.Selector)
			if err != nil || box == nil {
				skippedMu.Lock()
				skipped = append(skipped, region.Name)
				skippedMu.Unlock()
				return nil
			}

			baseClip := clip(baseline, *box)
			curClip := clip(current, *box)
			pd := pixelDiff(baseClip, curClip, opts.PixelThreshold, opts.AntiAliasingIgnored)

			results[i] = RegionDiff{
				Name:        region.Name,
				Selector:    region.Selector,
				DiffPct:     pd.DiffPct,
				SSIM:        pd.SSIM,
				Severity:    classifyRegion(pd.DiffPct, pd.SSIM, region.Weight),
				BoundingBox: *box,
				PixelCount:  pd.TotalPixels,
				Weight:      region.Weight,
			}
			valid[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRegionResolution, err)
	}

	out := make([]RegionDiff, 0, len(results))
	for i, ok := range valid {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, skipped, nil
}

// GetCacheStats exposes the bounded image cache's occupancy for testing.
func (e *Engine) GetCacheStats() CacheStats {
	return e.cache.stats()
}

// GetMemoryStats exposes byte accounting for the bounded image cache.
// The process's resident set size is reported separately by
// ProcessRSSBytes.
func (e *Engine) GetMemoryStats() MemoryStats {
	return e.cache.memoryStats()
}

// ProcessRSSBytes reports this process's resident set size, following
// the gopsutil-based memory sampling idiom used for worker health checks
// elsewhere in the corpus. Returns 0 if unavailable.
func ProcessRSSBytes() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}

func identityResult(elapsed time.Duration) *Result {
	return &Result{
		PixelDiff: PixelDiff{DiffPct: 0, SSIM: 1},
		Overall: Overall{
			Severity:       SeverityNone,
			Pass:           true,
			CompositeScore: 1,
			Confidence:     1,
		},
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

func checkDimensions(a, b image.Image, tolerance int) error {
	ab, bb := a.Bounds(), b.Bounds()
	if absInt(ab.Dx()-bb.Dx()) > tolerance || absInt(ab.Dy()-bb.Dy()) > tolerance {
		return fmt.Errorf("%w: baseline %dx%d vs current %dx%d", ErrDimensionMismatch, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clip(img image.Image, box Box) image.Image {
	r := image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H).Intersect(img.Bounds())
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	return img
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
