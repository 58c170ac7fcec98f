package visdiff

import "image"

// pixelDiffers reports whether two pixels differ by more than threshold
// (fraction of the 0..255 per-channel range), compared across R, G, B.
// Alpha is ignored; screenshots are expected to be fully opaque.
func pixelDiffers(a, b interface {
	RGBA() (r, g, bl, al uint32)
}, threshold float64) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()

	limit := uint32(threshold * 0xffff)

	return absDiff(ar, br) > limit || absDiff(ag, bg) > limit || absDiff(ab, bb) > limit
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// pixelDiff performs a full pixel-wise comparison of two equally-sized
// images, with optional anti-aliasing tolerance (a pixel differing only
// at an edge boundary, where at least one neighbor on each side matches
// one of the two images, is not counted as different).
func pixelDiff(a, b image.Image, threshold float64, ignoreAA bool) PixelDiff {
	bounds := a.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	total := w * h

	diffCount := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pa := a.At(bounds.Min.X+x, bounds.Min.Y+y)
			pb := b.At(bounds.Min.X+x, bounds.Min.Y+y)

			if !pixelDiffers(pa, pb, threshold) {
				continue
			}

			if ignoreAA && isAntiAliased(a, b, bounds.Min.X+x, bounds.Min.Y+y, threshold) {
				continue
			}

			diffCount++
		}
	}

	diffPct := 0.0
	if total > 0 {
		diffPct = float64(diffCount) / float64(total)
	}

	ssim := computeSSIM(a, b)

	return PixelDiff{
		TotalPixels: total,
		DiffPixels:  diffCount,
		DiffPct:     diffPct,
		SSIM:        ssim,
	}
}

// isAntiAliased applies a cheap local-neighborhood heuristic: if the
// center pixel of a matches any of the 8 surrounding pixels of b (or
// the center of b matches a neighbor in a) within threshold, the
// differing center pixel is treated as anti-aliasing noise rather than
// a real difference.
func isAntiAliased(a, b image.Image, x, y int, threshold float64) bool {
	bounds := a.Bounds()

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < bounds.Min.X || ny < bounds.Min.Y || nx >= bounds.Max.X || ny >= bounds.Max.Y {
				continue
			}
			if !pixelDiffers(a.At(x, y), b.At(nx, ny), threshold) {
				return true
			}
			if !pixelDiffers(b.At(x, y), a.At(nx, ny), threshold) {
				return true
			}
		}
	}
	return false
}
