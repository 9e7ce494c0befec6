package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testProfile() *Profile {
	p := &Profile{
		Function:  EncoderFFmpeg,
		HDREnable: true,
	}
	p.TestSettings.DefalutCQ = 27
	p.TestSettings.CQThreashold = 0.6
	p.TestSettings.ResDecode = ResDecodeTable{{Resolution: 854, Threshold: -10}}
	return p
}

func TestNewVPC(t *testing.T) {
	ws := filepath.Join(t.TempDir(), "movie")

	v, err := NewVPC("/in/movie.mkv", "movie", ws)
	require.NoError(t, err)
	require.Equal(t, HDRUninit, v.HDRType)
	require.Equal(t, [2]int{0, 0}, v.Crop)
	info, statErr := os.Stat(ws)
	require.NoError(t, statErr)
	require.True(t, info.IsDir())
	require.Equal(t, filepath.Join(ws, "movie.mkv"), v.OutputFilePath)
}

func TestAnalyzeOriginalGatesHDROffNonHEVC(t *testing.T) {
	ws := t.TempDir()
	v, err := NewVPC("/in/movie.mkv", "movie", ws)
	require.NoError(t, err)

	profile := testProfile()
	v.LoadProfileAndSettings(profile, &TestSettings{}, "")
	require.Equal(t, profile.DefaultCQ(), v.OutputCQ)

	v.AnalyzeOriginal(1920, 1080, 7200, 23.976, false, true, DefaultVUIInfo(), SideData{})

	require.False(t, v.Profile.HDREnable, "HDR must be forced off for non-H.265 source")
	require.Equal(t, uint32(1920), v.OutputRes)
}

func TestAnalyzeOriginalKeepsHDRForHEVC(t *testing.T) {
	ws := t.TempDir()
	v, err := NewVPC("/in/movie.mkv", "movie", ws)
	require.NoError(t, err)

	profile := testProfile()
	v.LoadProfileAndSettings(profile, &TestSettings{}, "")
	v.AnalyzeOriginal(3840, 2160, 7200, 23.976, true, true, DefaultVUIInfo(), SideData{})

	require.True(t, v.Profile.HDREnable)
}

func TestChildIndependence(t *testing.T) {
	ws := t.TempDir()
	v, err := NewVPC("/in/movie.mkv", "movie", ws)
	require.NoError(t, err)
	v.SetOutputRes(1920)

	child, err := v.Child("movie_res")
	require.NoError(t, err)

	child.SetOutputRes(854)
	require.Equal(t, uint32(1920), v.OutputRes, "mutating the child must not affect the parent")
	require.Equal(t, uint32(854), child.OutputRes)
	require.Equal(t, filepath.Join(ws, "movie_res"), child.Workspace)
}

func TestDisableParentHDRWalksChain(t *testing.T) {
	ws := t.TempDir()
	v, err := NewVPC("/in/movie.mkv", "movie", ws)
	require.NoError(t, err)
	profile := testProfile()
	v.LoadProfileAndSettings(profile, &TestSettings{}, "")

	child, err := v.Child("movie_res")
	require.NoError(t, err)
	grandchild, err := child.Child("movie_res_cq")
	require.NoError(t, err)

	grandchild.DisableParentHDR()

	require.False(t, v.Profile.HDREnable)
}

func TestSetHDRTypeRejectsUnknown(t *testing.T) {
	ws := t.TempDir()
	v, err := NewVPC("/in/movie.mkv", "movie", ws)
	require.NoError(t, err)

	err = v.SetHDRType("bogus")
	require.Error(t, err)
	require.Equal(t, HDRUninit, v.HDRType, "an invalid type must not be recorded")

	require.NoError(t, v.SetHDRType(HDRDoVi))
	require.Equal(t, HDRDoVi, v.HDRType)
}

func TestValidateInvariants(t *testing.T) {
	ws := t.TempDir()
	v, err := NewVPC("/in/movie.mkv", "movie", ws)
	require.NoError(t, err)
	v.OrigHRes = 1920
	v.OrigVRes = 1080
	v.HDRType = HDRNone

	require.NoError(t, v.ValidateInvariants())

	v.OutputRes = 3840
	require.Error(t, v.ValidateInvariants(), "upscaling must fail validation")

	v.OutputRes = 1920
	v.Crop = [2]int{600, 600}
	require.Error(t, v.ValidateInvariants(), "crop spanning the whole frame must fail validation")
}
