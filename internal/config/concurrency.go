package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// ParseConcurrency parses a dynamic concurrency value: the keywords
// "auto" (50% of cores), "max" (100%), "conservative" (25%),
// "aggressive" (75%), a percentage ("75%"), a fraction ("3/4"), or a
// direct integer. Grounded on the teacher runner's parseConcurrency,
// generalized from scrape-worker sizing to capture/diff-worker sizing.
func ParseConcurrency(value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("config: empty concurrency value")
	}

	cpuCores := runtime.NumCPU()
	value = strings.TrimSpace(strings.ToLower(value))

	switch value {
	case "auto":
		return atLeastOne(cpuCores / 2), nil
	case "max":
		return cpuCores, nil
	case "conservative":
		return atLeastOne(cpuCores / 4), nil
	case "aggressive":
		return atLeastOne((cpuCores * 3) / 4), nil
	}

	if strings.HasSuffix(value, "%") {
		percent, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid percentage format: %s", value)
		}
		if percent < 0 || percent > 100 {
			return 0, fmt.Errorf("config: percentage must be between 0 and 100: %.1f", percent)
		}
		return atLeastOne(int((float64(cpuCores) * percent) / 100.0)), nil
	}

	if strings.Contains(value, "/") {
		parts := strings.Split(value, "/")
		if len(parts) != 2 {
			return 0, fmt.Errorf("config: invalid fraction format: %s", value)
		}
		num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid fraction numerator: %s", parts[0])
		}
		den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid fraction denominator: %s", parts[1])
		}
		if den == 0 {
			return 0, fmt.Errorf("config: fraction denominator cannot be zero")
		}
		return atLeastOne(int((float64(cpuCores) * num) / den)), nil
	}

	number, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid concurrency value: %s", value)
	}
	if number < 1 {
		return 0, fmt.Errorf("config: concurrency must be at least 1: %d", number)
	}
	return number, nil
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
