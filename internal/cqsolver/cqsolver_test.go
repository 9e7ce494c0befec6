package cqsolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeriesForSeedsD0AtZero(t *testing.T) {
	cqValues := []float64{15, 18, 27, 36}
	delta := map[int]float64{0: 0, 2: 3.4, 3: 9.2}

	xs, ys := seriesFor(delta, cqValues)
	require.Equal(t, []float64{15, 27, 36}, xs)
	require.Equal(t, []float64{0, 3.4, 9.2}, ys)
}

func TestSeriesForSkipsMissingPositions(t *testing.T) {
	cqValues := []float64{15, 18, 27, 36}
	delta := map[int]float64{0: 0, 3: 9.2}

	xs, ys := seriesFor(delta, cqValues)
	require.Equal(t, []float64{15, 36}, xs)
	require.Equal(t, []float64{0, 9.2}, ys)
}

func TestKeepFractionDefaultsTo0_6(t *testing.T) {
	require.Equal(t, 0.6, keepFraction(0))
	require.Equal(t, 0.4, keepFraction(0.4))
}
