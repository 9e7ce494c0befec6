// Package sceneencoder implements the Scene Encoder (C5): building and
// running the two clip-production modes the solvers and the final
// production pass share — a stream-copy temporal pre-cut for sampling,
// and a full crop/scale/CQ encode.
package sceneencoder

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/ffmpeg"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/runner"
)

// baseNoFSOffset and maxNoFSOffset bound the post-input-seek retry ladder
// described in spec §4.3/§5: offset grows from 3 to 9, exclusive.
const (
	baseNoFSOffset = 3
	maxNoFSOffset  = 9
)

// FilterQuality selects the scaler used when splicing a resolution change
// into the video filter chain.
type FilterQuality int

const (
	// FilterNeighbor is nearest-neighbor scaling for resolution-solver
	// sampling clips — fast, and resolution comparisons don't need the
	// extra sharpness a slower scaler buys.
	FilterNeighbor FilterQuality = iota
	// FilterLanczos is the production-quality scaler used for the final
	// encode and the CQ solver's reference/test clips.
	FilterLanczos
)

func (q FilterQuality) swsFlag() string {
	if q == FilterLanczos {
		return "lanczos"
	}
	return "neighbor"
}

// Encoder runs Scene Encoder operations against a configured ffmpeg/
// HandBrake binary.
type Encoder struct {
	FFmpegPath    string
	HandBrakePath string
	Runner        *runner.Runner
	StreamLog     *logging.StreamLog
}

// New creates an Encoder.
func New(ffmpegPath, handbrakePath string, streamLog *logging.StreamLog) *Encoder {
	return &Encoder{
		FFmpegPath:    ffmpegPath,
		HandBrakePath: handbrakePath,
		Runner:        runner.New(),
		StreamLog:     streamLog,
	}
}

// buildCropScaleFilter renders "crop=iw:H:0:top,scale=TARGET:-2:sws_flags=Q"
// per spec §4.3, omitting the crop term when no bars are present.
func buildCropScaleFilter(v *config.VPC, quality FilterQuality) string {
	chain := ffmpeg.NewVideoFilterChain()

	if v.Crop[0] > 0 || v.Crop[1] > 0 {
		h := int(v.OrigVRes) - v.Crop[0] - v.Crop[1]
		chain.AddCrop(fmt.Sprintf("crop=iw:%d:0:%d", h, v.Crop[0]))
	}

	chain.AddFilter(fmt.Sprintf("scale=%d:-2:sws_flags=%s", v.OutputRes, quality.swsFlag()))

	return chain.Build()
}

// spliceVF inserts filter into args' existing "-vf" entry (appending with
// a comma) or appends a new "-vf" entry when none exists.
func spliceVF(args config.ArgList, filter string) config.ArgList {
	if filter == "" {
		return args
	}

	idx := args.Index("-vf")
	if idx == -1 {
		out := make(config.ArgList, len(args), len(args)+1)
		copy(out, args)
		return append(out, config.ArgPair{Flag: "-vf", Value: filter})
	}

	out := make(config.ArgList, len(args))
	copy(out, args)
	out[idx].Value = out[idx].Value + "," + filter
	return out
}

// TemporalCut runs a stream-copy pre-cut of v.SourcePath to v.TargetPath
// at [v.Start, v.Start+v.Duration), per spec §4.3 mode 1. noFSOffset is
// the post-input-seek compensation in seconds; callers retry with
// increasing offsets (baseNoFSOffset..maxNoFSOffset) on an undersized
// result.
func (e *Encoder) TemporalCut(ctx context.Context, v *config.VPC, noFSOffset int) (runner.Result, error) {
	if v.Start == nil || v.Duration == nil {
		return runner.Result{}, fmt.Errorf("temporal cut requires Start and Duration set on the VPC")
	}

	start := *v.Start
	duration := *v.Duration + noFSOffset

	fastSeekAllowed := v.FSSupport && v.Profile != nil && v.Profile.FSEnable

	var argv []string
	if fastSeekAllowed {
		argv = []string{
			e.FFmpegPath, "-y",
			"-ss", fmt.Sprintf("%d", start),
			"-i", v.SourcePath,
			"-t", fmt.Sprintf("%d", *v.Duration),
			"-c", "copy",
			v.TargetPath,
		}
	} else {
		argv = []string{
			e.FFmpegPath, "-y",
			"-i", v.SourcePath,
			"-ss", fmt.Sprintf("%d", start),
			"-t", fmt.Sprintf("%d", duration),
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
			"-fflags", "+genpts",
			"-copyts",
			v.TargetPath,
		}
	}

	return e.Runner.Run(ctx, argv, runner.Options{
		StreamLog:  e.StreamLog,
		OutputPath: v.TargetPath,
	})
}

// TemporalCutWithRetry retries TemporalCut with a growing NoFS_offset
// (base..max, exclusive) until the size check passes or offsets are
// exhausted, per spec §4.3/§5.
func (e *Encoder) TemporalCutWithRetry(ctx context.Context, v *config.VPC) (runner.Result, error) {
	var result runner.Result
	var err error

	for offset := baseNoFSOffset; offset < maxNoFSOffset; offset++ {
		result, err = e.TemporalCut(ctx, v, offset)
		if err != nil {
			return result, err
		}
		if result.OK {
			return result, nil
		}
	}

	return result, nil
}

// SampleClip produces a solver sampling clip in two steps, per spec
// §4.3: a stream-copy TemporalCutWithRetry pre-cut of [v.Start,
// v.Start+v.Duration) from v.SourcePath, then a FullEncode of that
// short pre-cut segment rather than a direct seek against the full
// source. Falls back to a direct-seek FullEncode against the original
// source when the pre-cut itself fails, so a source the retry ladder
// can't satisfy still produces a sampling clip.
func (e *Encoder) SampleClip(ctx context.Context, v *config.VPC, cq float64, quality FilterQuality) (runner.Result, error) {
	if v.Start == nil || v.Duration == nil {
		return e.FullEncode(ctx, v, cq, quality)
	}

	origSource, origTarget, origStart, origDuration := v.SourcePath, v.TargetPath, v.Start, v.Duration
	ext := filepath.Ext(origTarget)
	precutPath := strings.TrimSuffix(origTarget, ext) + "_precut" + ext

	v.TargetPath = precutPath
	precut, err := e.TemporalCutWithRetry(ctx, v)
	v.TargetPath = origTarget

	if err != nil || !precut.OK {
		v.SourcePath, v.Start, v.Duration = origSource, origStart, origDuration
		return e.FullEncode(ctx, v, cq, quality)
	}

	v.SourcePath = precutPath
	v.Start = nil
	v.Duration = nil
	result, encErr := e.FullEncode(ctx, v, cq, quality)

	v.SourcePath, v.Start, v.Duration = origSource, origStart, origDuration
	return result, encErr
}

// FullEncode runs the production/test encode: splices the crop/scale
// filter into the profile's video args, strips audio/subtitles, and
// writes v.TargetPath at v.OutputRes and the given cq, per spec §4.3 mode 2.
func (e *Encoder) FullEncode(ctx context.Context, v *config.VPC, cq float64, quality FilterQuality) (runner.Result, error) {
	if v.Profile == nil {
		return runner.Result{}, fmt.Errorf("full encode requires a loaded profile")
	}

	switch v.Profile.Function {
	case config.EncoderHandbrakeAV1:
		return e.handbrakeFullEncode(ctx, v, cq, quality)
	default:
		return e.ffmpegFullEncode(ctx, v, cq, quality)
	}
}

func (e *Encoder) ffmpegFullEncode(ctx context.Context, v *config.VPC, cq float64, quality FilterQuality) (runner.Result, error) {
	filter := buildCropScaleFilter(v, quality)
	videoArgs := spliceVF(v.Profile.Video, filter)

	argv := []string{e.FFmpegPath, "-y"}
	if v.Start != nil {
		argv = append(argv, "-ss", fmt.Sprintf("%d", *v.Start))
	}
	argv = append(argv, "-i", v.SourcePath)
	if v.Duration != nil {
		argv = append(argv, "-t", fmt.Sprintf("%d", *v.Duration))
	}
	argv = append(argv, videoArgs.Argv()...)
	argv = append(argv, "-crf", fmt.Sprintf("%g", cq), "-an", "-sn", v.TargetPath)

	return e.Runner.Run(ctx, argv, runner.Options{
		StreamLog:  e.StreamLog,
		OutputPath: v.TargetPath,
	})
}

func (e *Encoder) handbrakeFullEncode(ctx context.Context, v *config.VPC, cq float64, quality FilterQuality) (runner.Result, error) {
	argv := []string{e.HandBrakePath, "-i", v.SourcePath, "-o", v.TargetPath}

	if v.Crop[0] > 0 || v.Crop[1] > 0 {
		argv = append(argv, "--crop", fmt.Sprintf("%d:%d:0:0", v.Crop[0], v.Crop[1]))
	}
	argv = append(argv, "--width", fmt.Sprintf("%d", v.OutputRes))
	argv = append(argv, v.Profile.Video.Argv()...)
	argv = append(argv, "-q", fmt.Sprintf("%g", cq), "-a", "none", "-s", "none")

	return e.Runner.Run(ctx, argv, runner.Options{
		StreamLog:  e.StreamLog,
		OutputPath: v.TargetPath,
	})
}
