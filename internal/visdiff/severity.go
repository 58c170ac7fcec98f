package visdiff

// classifyGlobal applies the ordered severity rule from the specification.
// regions have already been classified individually; weightedBreaking
// reports whether any region with weight >= 1.5 crossed the breaking
// thresholds.
func classifyGlobal(diffPct, ssim float64, weightedBreaking bool) Severity {
	switch {
	case diffPct < 0.008 && ssim >= 0.95:
		return SeverityNone
	case diffPct >= 0.008 && diffPct <= 0.02 && !weightedBreaking:
		return SeverityMinor
	case weightedBreaking:
		return SeverityBreaking
	case diffPct > 0.02 || ssim < 0.92:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

// regionWeightedBreaking reports whether any region with weight >= 1.5
// exceeds the region-level breaking threshold.
func regionWeightedBreaking(regions []RegionDiff) bool {
	for _, r := range regions {
		if r.Weight >= 1.5 && (r.DiffPct > 0.01 || r.SSIM < 0.92) {
			return true
		}
	}
	return false
}

// classifyRegion assigns a severity to a single region using the same
// diffPct/ssim thresholds as the global rule, then raises it if the
// region's configured weight pushes it into breaking territory.
func classifyRegion(diffPct, ssim float64, weight float64) Severity {
	base := classifyGlobal(diffPct, ssim, false)
	if weight >= 1.5 && (diffPct > 0.01 || ssim < 0.92) {
		return SeverityBreaking
	}
	return base
}

// compositeScore implements the spec's composite formula, clamped to
// [0,1].
func compositeScore(diffPct, ssim float64) float64 {
	score := maxFloat(0, 1-diffPct) * (0.5 + 0.5*ssim)
	return clamp01(score)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// passes reports whether a severity counts as a passing result.
func passes(s Severity) bool {
	return s == SeverityNone || s == SeverityMinor
}
