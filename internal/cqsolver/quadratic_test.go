package cqsolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitQuadraticExactFit(t *testing.T) {
	// y = 2x^2 - 3x + 1, sampled exactly.
	xs := []float64{0, 1, 2, 3}
	ys := []float64{1, 0, 3, 10}

	a, b, c, ok := fitQuadratic(xs, ys)
	require.True(t, ok)
	require.InDelta(t, 2, a, 1e-6)
	require.InDelta(t, -3, b, 1e-6)
	require.InDelta(t, 1, c, 1e-6)
}

func TestFitQuadraticTooFewPoints(t *testing.T) {
	_, _, _, ok := fitQuadratic([]float64{1, 2}, []float64{1, 2})
	require.False(t, ok)
}

func TestSolvePositiveRoot(t *testing.T) {
	// a=1, b=0, c=0 -> cq^2 = target; target=9 -> root=3.
	root, ok := solvePositiveRoot(1, 0, 0, 9)
	require.True(t, ok)
	require.InDelta(t, 3, root, 1e-9)
}

func TestSolvePositiveRootNegativeDiscriminant(t *testing.T) {
	_, ok := solvePositiveRoot(1, 0, 100, 0)
	require.False(t, ok)
}

func TestSolvePositiveRootDegenerateA(t *testing.T) {
	_, ok := solvePositiveRoot(0, 1, 0, 5)
	require.False(t, ok)
}

func TestRoundToHalf(t *testing.T) {
	require.Equal(t, 22.5, roundToHalf(22.3))
	require.Equal(t, 23.0, roundToHalf(22.76))
	require.Equal(t, 18.0, roundToHalf(18.0))
}
