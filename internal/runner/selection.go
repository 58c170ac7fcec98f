package runner

import (
	"math/rand"
)

// SelectionOptions configures the incremental selection phase.
type SelectionOptions struct {
	Incremental    bool
	BaseRef        string
	SampleFraction float64 // default 0.10
	DepMap         DependencyMap
	Seed           int64
}

// Select runs the selection phase: when Incremental is off, every
// page is selected. When on, changed files (from vcs.DiffFiles)
// are mapped through DepMap to affected page names, and a sample of
// the remaining unchanged pages is added for regression coverage.
func Select(vcs VCS, allPages []PageSpec, opts SelectionOptions) (TestSelection, error) {
	sel := TestSelection{Reasons: make(map[string]string)}

	if !opts.Incremental {
		sel.Selected = allPages
		for _, p := range allPages {
			sel.Reasons[p.Name] = "incremental selection disabled"
		}
		return sel, nil
	}

	depMap := opts.DepMap
	if depMap == nil {
		depMap = IdentityDependencyMap{}
	}

	changed, err := vcs.DiffFiles(opts.BaseRef)
	if err != nil {
		return TestSelection{}, err
	}

	affected := make(map[string]bool)
	for _, file := range changed {
		for _, page := range depMap.AffectedPages(file) {
			affected[page] = true
		}
	}

	fraction := opts.SampleFraction
	if fraction <= 0 {
		fraction = 0.10
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	var unchanged []PageSpec
	for _, p := range allPages {
		if affected[p.Name] {
			sel.Selected = append(sel.Selected, p)
			sel.Reasons[p.Name] = "changed file affects this page"
			continue
		}
		unchanged = append(unchanged, p)
	}

	sampleCount := int(float64(len(unchanged)) * fraction)
	if sampleCount > 0 {
		perm := rng.Perm(len(unchanged))
		sampled := make(map[int]bool, sampleCount)
		for i := 0; i < sampleCount && i < len(perm); i++ {
			sampled[perm[i]] = true
		}
		for i, p := range unchanged {
			if sampled[i] {
				sel.Selected = append(sel.Selected, p)
				sel.Reasons[p.Name] = "sampled for regression coverage"
			} else {
				sel.Skipped = append(sel.Skipped, p)
				sel.Reasons[p.Name] = "unchanged and not sampled"
			}
		}
	} else {
		sel.Skipped = append(sel.Skipped, unchanged...)
		for _, p := range unchanged {
			sel.Reasons[p.Name] = "unchanged and not sampled"
		}
	}

	return sel, nil
}
