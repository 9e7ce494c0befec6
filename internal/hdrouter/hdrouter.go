// Package hdrouter implements the HDR Router (C10): classifying a
// source's dynamic HDR metadata, and producing the final container
// either by a single full encode or by a raw-elementary-stream detour
// that round-trips Dolby Vision RPU or HDR10+ JSON metadata around the
// encode.
package hdrouter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/five82/drapto/internal/config"
	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/runner"
	"github.com/five82/drapto/internal/sceneencoder"
)

// Router runs HDR classification and the production encode paths that
// follow from it.
type Router struct {
	FFmpegPath    string
	DoviToolPath  string
	HDR10PlusPath string
	Runner        *runner.Runner
	Encoder       *sceneencoder.Encoder
	StreamLog     *logging.StreamLog
}

// New creates a Router.
func New(ffmpegPath, doviToolPath, hdr10PlusPath string, enc *sceneencoder.Encoder, streamLog *logging.StreamLog) *Router {
	return &Router{
		FFmpegPath:    ffmpegPath,
		DoviToolPath:  doviToolPath,
		HDR10PlusPath: hdr10PlusPath,
		Runner:        runner.New(),
		Encoder:       enc,
		StreamLog:     streamLog,
	}
}

// Classify runs the uninit -> {DoVi, HDR10, None} probe described in
// spec §4.8. It is memoised: a VPC whose HDRType is already terminal
// returns immediately without touching disk again. A successful probe
// writes the extracted metadata to the VPC's cached metadata path so the
// later extract step (the probe IS the first extract) can reuse it
// without re-running the external tool.
func (r *Router) Classify(ctx context.Context, v *config.VPC) error {
	if v.HDRType != config.HDRUninit {
		return nil
	}

	argv := []string{r.DoviToolPath, "extract-rpu", "-i", v.OrigFilePath, "-o", v.DoviMetadataFile}
	result, err := r.Runner.Run(ctx, argv, runner.Options{
		StreamLog:  r.StreamLog,
		OutputPath: v.DoviMetadataFile,
	})
	if err == nil && result.OK {
		return v.SetHDRType(config.HDRDoVi)
	}

	argv = []string{r.HDR10PlusPath, "extract", v.OrigFilePath, "-o", v.HDR10MetadataFile}
	result, err = r.Runner.Run(ctx, argv, runner.Options{
		StreamLog:  r.StreamLog,
		OutputPath: v.HDR10MetadataFile,
	})
	if err == nil && result.OK {
		return v.SetHDRType(config.HDR10)
	}

	return v.SetHDRType(config.HDRNone)
}

// Produce runs the production encode path named by v's classification:
// a single full encode when HDR is disabled or the source classified as
// None, or the extract/encode/inject/remux detour for DoVi and HDR10+
// sources (spec §4.8). On any HDR-path failure it calls DisableParentHDR
// and falls back to the plain full encode for the rest of this file.
func (r *Router) Produce(ctx context.Context, v *config.VPC) error {
	if v.HDRType == config.HDRUninit {
		if err := r.Classify(ctx, v); err != nil {
			return err
		}
	}

	hdrEnabled := v.Profile != nil && v.Profile.HDREnable
	if !hdrEnabled || v.HDRType == config.HDRNone {
		return r.plainEncode(ctx, v)
	}

	if err := r.hdrEncode(ctx, v); err != nil {
		v.DisableParentHDR()
		return r.plainEncode(ctx, v)
	}
	return nil
}

func (r *Router) plainEncode(ctx context.Context, v *config.VPC) error {
	v.TargetPath = v.OutputFilePath
	result, err := r.Encoder.FullEncode(ctx, v, v.OutputCQ, sceneencoder.FilterLanczos)
	if err != nil {
		return fmt.Errorf("hdr router: plain encode: %w", err)
	}
	if !result.OK {
		return drerrors.NewHDRInconsistencyError("hdr router: plain encode produced an undersized output", nil)
	}
	return nil
}

// hdrEncode runs the three-step DoVi/HDR10+ path: a video-only full
// encode to a raw HEVC elementary stream, metadata injection, and a
// two-step ffmpeg remux back into the final MKV.
func (r *Router) hdrEncode(ctx context.Context, v *config.VPC) error {
	metadataFile, err := r.extract(ctx, v)
	if err != nil {
		return fmt.Errorf("hdr router: extract: %w", err)
	}

	rawPath := filepath.Join(v.Workspace, v.OutputFileName+"_hdr.hevc")
	original := v.TargetPath
	v.TargetPath = rawPath
	result, err := r.Encoder.FullEncode(ctx, v, v.OutputCQ, sceneencoder.FilterLanczos)
	v.TargetPath = original
	if err != nil {
		return fmt.Errorf("hdr router: elementary stream encode: %w", err)
	}
	if !result.OK {
		return drerrors.NewHDRInconsistencyError("hdr router: elementary stream encode produced an undersized output", nil)
	}

	injectedPath := filepath.Join(v.Workspace, v.OutputFileName+"_hdr_injected.hevc")
	if err := r.inject(ctx, v, rawPath, metadataFile, injectedPath); err != nil {
		return fmt.Errorf("hdr router: inject: %w", err)
	}

	mp4Path := filepath.Join(v.Workspace, v.OutputFileName+"_hdr.mp4")
	if err := r.remuxToMP4(ctx, injectedPath, mp4Path, v.OrigFramerate); err != nil {
		return fmt.Errorf("hdr router: HEVC to MP4 remux: %w", err)
	}

	if err := r.remuxToMKV(ctx, mp4Path, v.OutputFilePath); err != nil {
		return fmt.Errorf("hdr router: MP4 to MKV remux: %w", err)
	}

	if v.TestSettings != nil && v.TestSettings.EnableDelete.Enabled {
		os.Remove(rawPath)
		os.Remove(injectedPath)
		os.Remove(mp4Path)
	}

	return nil
}

// extract returns the cached metadata path written by Classify, re-running
// the extraction if the VPC was classified but the cached file is absent
// (e.g. a child VPC with its own workspace).
func (r *Router) extract(ctx context.Context, v *config.VPC) (string, error) {
	switch v.HDRType {
	case config.HDRDoVi:
		if _, err := os.Stat(v.DoviMetadataFile); err == nil {
			return v.DoviMetadataFile, nil
		}
		argv := []string{r.DoviToolPath, "extract-rpu", "-i", v.OrigFilePath, "-o", v.DoviMetadataFile}
		result, err := r.Runner.Run(ctx, argv, runner.Options{StreamLog: r.StreamLog, OutputPath: v.DoviMetadataFile})
		if err != nil || !result.OK {
			return "", fmt.Errorf("dovi_tool extract-rpu failed")
		}
		return v.DoviMetadataFile, nil
	case config.HDR10:
		if _, err := os.Stat(v.HDR10MetadataFile); err == nil {
			return v.HDR10MetadataFile, nil
		}
		argv := []string{r.HDR10PlusPath, "extract", v.OrigFilePath, "-o", v.HDR10MetadataFile}
		result, err := r.Runner.Run(ctx, argv, runner.Options{StreamLog: r.StreamLog, OutputPath: v.HDR10MetadataFile})
		if err != nil || !result.OK {
			return "", fmt.Errorf("hdr10plus_tool extract failed")
		}
		return v.HDR10MetadataFile, nil
	default:
		return "", fmt.Errorf("unexpected HDR type %q for extract", v.HDRType)
	}
}

func (r *Router) inject(ctx context.Context, v *config.VPC, elementaryPath, metadataFile, outPath string) error {
	var argv []string
	switch v.HDRType {
	case config.HDRDoVi:
		argv = []string{r.DoviToolPath, "inject-rpu", "-i", elementaryPath, "--rpu-in", metadataFile, "-o", outPath}
	case config.HDR10:
		argv = []string{r.HDR10PlusPath, "inject", "-i", elementaryPath, "-j", metadataFile, "-o", outPath}
	default:
		return fmt.Errorf("unexpected HDR type %q for inject", v.HDRType)
	}

	result, err := r.Runner.Run(ctx, argv, runner.Options{StreamLog: r.StreamLog, OutputPath: outPath})
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("metadata injection produced an undersized output")
	}
	return nil
}

// remuxToMP4 wraps a raw HEVC elementary stream in MP4, generating
// presentation timestamps at the source framerate (spec §4.8 step 3).
func (r *Router) remuxToMP4(ctx context.Context, inputPath, outputPath string, framerate float64) error {
	argv := []string{
		r.FFmpegPath, "-y",
		"-fflags", "+genpts",
		"-r", fmt.Sprintf("%g", framerate),
		"-i", inputPath,
		"-c:v", "copy",
		outputPath,
	}
	result, err := r.Runner.Run(ctx, argv, runner.Options{StreamLog: r.StreamLog, OutputPath: outputPath})
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("HEVC to MP4 remux produced an undersized output")
	}
	return nil
}

// remuxToMKV stream-copies the MP4 into the final Matroska container.
func (r *Router) remuxToMKV(ctx context.Context, inputPath, outputPath string) error {
	argv := []string{r.FFmpegPath, "-y", "-i", inputPath, "-c", "copy", outputPath}
	result, err := r.Runner.Run(ctx, argv, runner.Options{StreamLog: r.StreamLog, OutputPath: outputPath})
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("MP4 to MKV remux produced an undersized output")
	}
	return nil
}
