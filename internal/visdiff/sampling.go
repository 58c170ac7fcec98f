package visdiff

import (
	"crypto/sha256"
	"image"
	"math/rand"
)

// earlySampleFraction is the share of pixel positions sampled during the
// early-exit pass.
const earlySampleFraction = 0.10

// earlyExitThreshold is the sampled difference ratio above which the
// engine skips the full pipeline and reports breaking.
const earlyExitThreshold = 0.30

// seedFromImages derives a reproducible PRNG seed from the content of
// both images, so the sampled positions are identical across repeated
// calls with the same inputs.
func seedFromImages(baseline, current []byte) int64 {
	h := sha256.New()
	h.Write(baseline)
	h.Write(current)
	sum := h.Sum(nil)

	var seed int64
	for i := 0; i < 8; i++ {
		seed = seed<<8 | int64(sum[i])
	}
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// sampledDiffRatio samples earlySampleFraction of pixel positions (shared
// between both images, which are assumed identically sized by the time
// this runs) and returns the fraction that differ beyond threshold.
func sampledDiffRatio(a, b image.Image, seed int64, threshold float64) float64 {
	bounds := a.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	total := w * h
	if total == 0 {
		return 0
	}

	sampleCount := int(float64(total) * earlySampleFraction)
	if sampleCount < 1 {
		sampleCount = 1
	}

	rng := rand.New(rand.NewSource(seed))
	diffCount := 0

	for i := 0; i < sampleCount; i++ {
		x := bounds.Min.X + rng.Intn(w)
		y := bounds.Min.Y + rng.Intn(h)

		if pixelDiffers(a.At(x, y), b.At(x, y), threshold) {
			diffCount++
		}
	}

	return float64(diffCount) / float64(sampleCount)
}
