// Package blackbar implements the Black-bar Detector (C9): for F frames
// sampled at evenly spaced timestamps, extract one PNG per frame, scan
// the central vertical column for a near-black prefix/suffix, and take
// the minimum crop across frames.
package blackbar

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/five82/drapto/internal/config"
	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/runner"
)

// detectionConcurrency bounds how many ffmpeg frame extractions run at
// once, mirroring the crop-sampling worker pool this stage is grounded on.
const detectionConcurrency = 8

// blackChannelThreshold is the per-channel intensity below which a pixel
// is considered part of a black bar (spec §4.7: "every channel ... < 10").
const blackChannelThreshold = 10

// Detector extracts frames via ffmpeg and scans them for black bars.
type Detector struct {
	FFmpegPath string
	Runner     *runner.Runner
	StreamLog  *logging.StreamLog
}

// New creates a Detector.
func New(ffmpegPath string, r *runner.Runner, streamLog *logging.StreamLog) *Detector {
	return &Detector{FFmpegPath: ffmpegPath, Runner: r, StreamLog: streamLog}
}

// frameResult carries one sampled frame's prefix/suffix black-run length.
type frameResult struct {
	top    int
	bottom int
	ok     bool
}

// Detect samples settings.FramesToDetect frames from parent's source,
// writes the per-side minimum crop to parent via SetCrop, and fails with
// a no-decision error if every frame sample fails.
func (d *Detector) Detect(ctx context.Context, parent *config.VPC, settings config.BlackBarSettings) error {
	frames := settings.FramesToDetect
	if frames < 1 {
		return drerrors.NewNoDecisionError("black-bar detector: frames_to_detect must be >= 1")
	}
	if parent.OrigDuration <= 0 {
		return drerrors.NewNoDecisionError("black-bar detector: orig_duration not probed")
	}

	child, err := parent.Child(parent.OutputFileName + "_blackDetection")
	if err != nil {
		return fmt.Errorf("black-bar detector: creating scoped workspace: %w", err)
	}

	timestep := int(parent.OrigDuration / float64(frames+1))
	if timestep < 1 {
		timestep = 1
	}

	results := make([]frameResult, frames)
	sem := make(chan struct{}, detectionConcurrency)
	var wg sync.WaitGroup

	for i := 0; i < frames; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			timestamp := (idx + 1) * timestep
			top, bottom, err := d.sampleFrame(ctx, child.Workspace, parent.OrigFilePath, idx+1, timestamp)
			if err != nil {
				return
			}
			results[idx] = frameResult{top: top, bottom: bottom, ok: true}
		}(i)
	}
	wg.Wait()

	var top, bottom int
	haveResult := false
	for _, r := range results {
		if !r.ok {
			continue
		}
		if !haveResult || r.top < top {
			top = r.top
		}
		if !haveResult || r.bottom < bottom {
			bottom = r.bottom
		}
		haveResult = true
	}

	if !haveResult {
		return drerrors.NewNoDecisionError("black-bar detector: every frame sample failed")
	}

	if uint32(top+bottom) >= parent.OrigVRes {
		return drerrors.NewNoDecisionError("black-bar detector: detected crop would exceed frame height")
	}

	parent.SetCrop(top, bottom)
	return nil
}

// sampleFrame extracts one PNG via ffmpeg and scans it for a black prefix
// and suffix along its central vertical column.
func (d *Detector) sampleFrame(ctx context.Context, workspace, sourcePath string, index, timestampSecs int) (top, bottom int, err error) {
	targetPath := filepath.Join(workspace, fmt.Sprintf("%d.png", index))

	argv := []string{
		d.FFmpegPath,
		"-ss", fmt.Sprintf("%d", timestampSecs),
		"-i", sourcePath,
		"-frames:v", "1",
		"-q:v", "2",
		"-update", "1",
		"-y", targetPath,
	}

	result, err := d.Runner.Run(ctx, argv, runner.Options{StreamLog: d.StreamLog})
	if err != nil {
		return 0, 0, err
	}
	if !result.OK {
		return 0, 0, fmt.Errorf("black-bar detector: frame export failed at %ds", timestampSecs)
	}

	return scanFrame(targetPath)
}

// scanFrame opens a PNG and counts, along its central vertical column, the
// longest near-black prefix from the top and suffix from the bottom.
func scanFrame(path string) (top, bottom int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return 0, 0, err
	}

	return scanImage(img), scanImageFromBottom(img), nil
}

func scanImage(img image.Image) int {
	bounds := img.Bounds()
	midX := bounds.Min.X + bounds.Dx()/2

	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if !isNearBlack(img, midX, y) {
			break
		}
		count++
	}
	return count
}

func scanImageFromBottom(img image.Image) int {
	bounds := img.Bounds()
	midX := bounds.Min.X + bounds.Dx()/2

	count := 0
	for y := bounds.Max.Y - 1; y >= bounds.Min.Y; y-- {
		if !isNearBlack(img, midX, y) {
			break
		}
		count++
	}
	return count
}

// isNearBlack reports whether every channel of the pixel at (x, y) is
// below blackChannelThreshold, on the 8-bit scale (spec §4.7).
func isNearBlack(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	// image.Color.RGBA returns 16-bit-scaled values; reduce to 8-bit.
	return (r>>8) < blackChannelThreshold && (g>>8) < blackChannelThreshold && (b>>8) < blackChannelThreshold
}
