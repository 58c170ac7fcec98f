package config

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConcurrencyKeywords(t *testing.T) {
	cores := runtime.NumCPU()

	max, err := ParseConcurrency("max")
	require.NoError(t, err)
	require.Equal(t, cores, max)

	auto, err := ParseConcurrency("auto")
	require.NoError(t, err)
	require.Equal(t, atLeastOne(cores/2), auto)

	conservative, err := ParseConcurrency("conservative")
	require.NoError(t, err)
	require.Equal(t, atLeastOne(cores/4), conservative)
}

func TestParseConcurrencyPercentageAndFraction(t *testing.T) {
	cores := runtime.NumCPU()

	pct, err := ParseConcurrency("50%")
	require.NoError(t, err)
	require.Equal(t, atLeastOne(cores/2), pct)

	frac, err := ParseConcurrency("1/2")
	require.NoError(t, err)
	require.Equal(t, atLeastOne(cores/2), frac)

	_, err = ParseConcurrency("150%")
	require.Error(t, err)

	_, err = ParseConcurrency("1/0")
	require.Error(t, err)
}

func TestParseConcurrencyDirectNumber(t *testing.T) {
	n, err := ParseConcurrency("3")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = ParseConcurrency("0")
	require.Error(t, err)

	_, err = ParseConcurrency("")
	require.Error(t, err)

	_, err = ParseConcurrency("nonsense")
	require.Error(t, err)
}
