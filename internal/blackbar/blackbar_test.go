package blackbar

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/runner"
)

// letterboxFrame builds a w x h image with the top topBars and bottom
// bottomBars rows pure black and everything else mid-gray, mirroring the
// S2 scenario from spec §10.
func letterboxFrame(w, h, topBars, bottomBars int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y < topBars || y >= h-bottomBars {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{128, 128, 128, 255})
			}
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestScanImageCountsTopAndBottomBlackRuns(t *testing.T) {
	img := letterboxFrame(1920, 1080, 60, 60)
	require.Equal(t, 60, scanImage(img))
	require.Equal(t, 60, scanImageFromBottom(img))
}

func TestScanImageNoBlackBars(t *testing.T) {
	img := letterboxFrame(1920, 1080, 0, 0)
	require.Equal(t, 0, scanImage(img))
	require.Equal(t, 0, scanImageFromBottom(img))
}

func TestIsNearBlackThreshold(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{9, 9, 9, 255})
	img.Set(1, 0, color.RGBA{10, 10, 10, 255})
	require.True(t, isNearBlack(img, 0, 0))
	require.False(t, isNearBlack(img, 1, 0))
}

func TestDetectWritesMinCropAcrossFrames(t *testing.T) {
	dir := t.TempDir()

	// One fixture frame with a 40px top bar and a 60px bottom bar, copied
	// for every sampled frame; the minimum across frames is [40, 60].
	framePath := filepath.Join(dir, "fixture.png")
	writePNG(t, framePath, letterboxFrame(320, 240, 40, 60))

	script := filepath.Join(dir, "stub_ffmpeg.sh")
	scriptBody := fmt.Sprintf("#!/bin/sh\neval target=\"\\${$#}\"\ncp %q \"$target\"\n", framePath)
	require.NoError(t, os.WriteFile(script, []byte(scriptBody), 0o755))

	workspace := filepath.Join(dir, "ws")
	parent, err := config.NewVPC(filepath.Join(dir, "source.mkv"), "out", workspace)
	require.NoError(t, err)
	parent.OrigDuration = 100
	parent.OrigVRes = 240

	d := New(script, runner.New(), nil)
	err = d.Detect(context.Background(), parent, config.BlackBarSettings{
		Enabled:        true,
		FramesToDetect: 3,
	})
	require.NoError(t, err)
	require.Equal(t, [2]int{40, 60}, parent.Crop)
}

func TestDetectRejectsZeroFrames(t *testing.T) {
	dir := t.TempDir()
	parent, err := config.NewVPC(filepath.Join(dir, "source.mkv"), "out", filepath.Join(dir, "ws"))
	require.NoError(t, err)
	parent.OrigDuration = 100

	d := New("ffmpeg", runner.New(), nil)
	err = d.Detect(context.Background(), parent, config.BlackBarSettings{Enabled: true, FramesToDetect: 0})
	require.Error(t, err)
}

func TestDetectFailsWhenEveryFrameSampleFails(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "stub_fail.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	parent, err := config.NewVPC(filepath.Join(dir, "source.mkv"), "out", filepath.Join(dir, "ws"))
	require.NoError(t, err)
	parent.OrigDuration = 100

	d := New(script, runner.New(), nil)
	err = d.Detect(context.Background(), parent, config.BlackBarSettings{Enabled: true, FramesToDetect: 2})
	require.Error(t, err)
}
