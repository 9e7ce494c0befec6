package ressolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/five82/drapto/internal/config"
)

func TestComputeSlopesRequiresBothResolutions(t *testing.T) {
	scores := map[string][]float64{
		"1_854":  {0.80},
		"1_3840": {0.81},
		"2_854":  {0.79},
		// scene 2 missing the 3840 entry entirely.
	}
	_, err := computeSlopes(scores, 2, 854, 3840)
	require.Error(t, err, "fewer than two complete scenes must be reported as no-decision")
}

func TestComputeSlopesHighSlopeForFlatCurve(t *testing.T) {
	scores := map[string][]float64{
		"1_854":  {0.80},
		"1_3840": {0.81},
		"2_854":  {0.80},
		"2_3840": {0.81},
		"3_854":  {0.80},
		"3_3840": {0.81},
	}
	slopes, err := computeSlopes(scores, 3, 854, 3840)
	require.NoError(t, err)
	require.Len(t, slopes, 3)
	for _, s := range slopes {
		require.InDelta(t, 0.01/(3840-854), s, 1e-9)
	}
}

func TestDecodeResolutionWalksTableInOrder(t *testing.T) {
	table := config.ResDecodeTable{
		{Resolution: 854, Threshold: -10},
		{Resolution: 1280, Threshold: -0.0001},
		{Resolution: 1920, Threshold: -0.000069},
		{Resolution: 3840, Threshold: -0.00004},
	}

	// A slope just clearing the 3840 threshold should reach 3840.
	got := decodeResolution(3.35e-6, table, 854, 3840)
	require.Equal(t, uint32(3840), got)
}

func TestDecodeResolutionClampsToOrigHRes(t *testing.T) {
	table := config.ResDecodeTable{
		{Resolution: 854, Threshold: -10},
		{Resolution: 3840, Threshold: -0.00004},
	}
	got := decodeResolution(1.0, table, 854, 1920)
	require.Equal(t, uint32(1920), got, "must never exceed orig_h_res")
}

func TestDecodeResolutionEmptyTableReturnsFloor(t *testing.T) {
	got := decodeResolution(5.0, config.ResDecodeTable{}, 854, 3840)
	require.Equal(t, uint32(854), got)
}

func TestKeepFractionDefaultsTo0_6(t *testing.T) {
	require.Equal(t, 0.6, keepFraction(0))
	require.Equal(t, 0.5, keepFraction(0.5))
}
