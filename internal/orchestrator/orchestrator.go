// Package orchestrator implements the Orchestrator (C11): the per-file
// pipeline that creates a VPC, probes the source, runs the stage solvers
// in their fixed order, serializes a manifest, and optionally drives the
// HDR Router for a production encode.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/five82/drapto/internal/blackbar"
	"github.com/five82/drapto/internal/channels"
	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/cqsolver"
	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/ffprobe"
	"github.com/five82/drapto/internal/hdrouter"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/reporter"
	"github.com/five82/drapto/internal/ressolver"
	"github.com/five82/drapto/internal/runner"
	"github.com/five82/drapto/internal/sceneencoder"
	"github.com/five82/drapto/internal/scorer"
	"github.com/five82/drapto/internal/util"
	"github.com/five82/drapto/internal/validation"
)

// Tools bundles the resolved external-tool paths an orchestrator run needs.
type Tools struct {
	FFmpegPath    string
	HandBrakePath string
	ScorerPath    string
	DoviToolPath  string
	HDR10PlusPath string
}

// FileResult reports the outcome of running the pipeline on one input file.
type FileResult struct {
	InputFile        string
	VPC              *config.VPC
	ManifestPath     string
	Encoded          bool
	SizeReductionPct float64
	Err              error
}

// Run drives the C11 pipeline for each input file in turn. ctx.Err() is
// checked before each file, so a cancelled context stops the batch before
// the next file starts.
func Run(ctx context.Context, runCfg *config.RunConfig, tools Tools, profilePath, settingsPath string, workspaceRoot string, inputFiles []string, rep reporter.Reporter) ([]FileResult, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	sysInfo := util.GetSystemInfo()
	rep.Hardware(reporter.HardwareSummary{Hostname: sysInfo.Hostname})

	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: loading profile: %w", err)
	}
	settings, err := config.LoadTestSettings(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: loading settings: %w", err)
	}

	var results []FileResult
	for _, inputFile := range inputFiles {
		if ctx.Err() != nil {
			rep.Warning(fmt.Sprintf("orchestrator: cancelled: %v", ctx.Err()))
			break
		}
		results = append(results, runOne(ctx, runCfg, tools, profile, settings, workspaceRoot, inputFile, rep))
	}

	return results, nil
}

func runOne(ctx context.Context, runCfg *config.RunConfig, tools Tools, profile *config.Profile, settings *config.TestSettings, workspaceRoot, inputFile string, rep reporter.Reporter) FileResult {
	stem := util.GetFilename(inputFile)
	workspace := filepath.Join(workspaceRoot, stem)

	v, err := config.NewVPC(inputFile, stem, workspace)
	if err != nil {
		rep.Error(reporter.ReporterError{Title: "Workspace Error", Message: err.Error(), Context: inputFile})
		return FileResult{InputFile: inputFile, Err: err}
	}

	v.LoadProfileAndSettings(profile, settings, runCfg.ToolsDir)

	streamLog, err := logging.NewStreamLog(workspace)
	if err != nil {
		rep.Error(reporter.ReporterError{Title: "Logging Error", Message: err.Error(), Context: inputFile})
		return FileResult{InputFile: inputFile, VPC: v, Err: err}
	}
	defer streamLog.Close()

	if err := probeOriginal(v, tools); err != nil {
		rep.Warning(fmt.Sprintf("%s: probe failed, continuing with neutral values: %v", stem, err))
	}

	r := runner.New()
	enc := sceneencoder.New(tools.FFmpegPath, tools.HandBrakePath, streamLog)
	sc := scorer.New(tools.ScorerPath, streamLog)

	runStage(rep, stem, "black-bar detection", settings.BlackBarDetection.Enabled, func() error {
		d := blackbar.New(tools.FFmpegPath, r, streamLog)
		return d.Detect(ctx, v, settings.BlackBarDetection)
	})

	runStage(rep, stem, "resolution calculation", settings.ResolutionCalculation.Enabled, func() error {
		return ressolver.Solve(ctx, v, enc, sc, settings.ResolutionCalculation)
	})

	runStage(rep, stem, "CQ calculation", settings.CQCalculation.Enabled, func() error {
		return cqsolver.Solve(ctx, v, enc, sc, settings.CQCalculation, settings.CQCalculation.Threads, workspace)
	})

	runStage(rep, stem, "channel calculation", settings.ChannelsCalculation.Enabled, func() error {
		ch := channels.New(tools.FFmpegPath, r, streamLog)
		return ch.Detect(ctx, v, settings.ChannelsCalculation)
	})

	if decision := validation.DecideCheck(v, settings); !decision.IsValid() {
		for _, failure := range decision.GetFailures() {
			rep.Warning(fmt.Sprintf("%s: decision invariant %s failed: %s", stem, failure.Name, failure.Details))
		}
	}

	manifestPath := filepath.Join(workspace, "VPC.txt")
	if err := v.WriteManifest(manifestPath); err != nil {
		rep.Warning(fmt.Sprintf("%s: writing manifest: %v", stem, err))
	}

	result := FileResult{InputFile: inputFile, VPC: v, ManifestPath: manifestPath}

	if !settings.ExportOutput.Enabled {
		rep.OperationComplete(fmt.Sprintf("%s: decisions recorded, export disabled", stem))
		return result
	}

	startTime := time.Now()
	router := hdrouter.New(tools.FFmpegPath, tools.DoviToolPath, tools.HDR10PlusPath, enc, streamLog)
	if err := router.Produce(ctx, v); err != nil {
		rep.Error(reporter.ReporterError{Title: "Encode Error", Message: err.Error(), Context: inputFile})
		result.Err = err
		return result
	}

	result.Encoded = true

	if roundtrip, err := validation.Roundtrip(ctx, tools.FFmpegPath, tools.DoviToolPath, tools.HDR10PlusPath, v, v.OutputFilePath, streamLog); err != nil {
		rep.Warning(fmt.Sprintf("%s: hdr roundtrip check: %v", stem, err))
	} else if !roundtrip.IsValid() {
		for _, failure := range roundtrip.GetFailures() {
			rep.Warning(fmt.Sprintf("%s: hdr roundtrip invariant failed: %s", stem, failure.Details))
		}
	}

	inputSize, inErr := util.GetFileSize(inputFile)
	outputSize, outErr := util.GetFileSize(v.OutputFilePath)
	if inErr == nil && outErr == nil {
		result.SizeReductionPct = util.CalculateSizeReduction(inputSize, outputSize)
		rep.OperationComplete(fmt.Sprintf(
			"%s: %s -> %s (%.1f%% reduction) in %s",
			stem, util.FormatBytes(inputSize), util.FormatBytes(outputSize), result.SizeReductionPct, time.Since(startTime).Round(time.Second),
		))
	}

	return result
}

// runStage wraps a stage invocation in the error boundary described by
// spec §4.9/§4.10: a disabled stage is skipped with a single Verbose
// report, and any failure
// downgrades to the VPC's existing default without aborting the pipeline.
func runStage(rep reporter.Reporter, stem, name string, enabled bool, fn func() error) {
	if !enabled {
		rep.Verbose(fmt.Sprintf("%s: %s disabled", stem, name))
		return
	}

	if err := fn(); err != nil {
		if drerrors.IsNoDecision(err) {
			rep.Warning(fmt.Sprintf("%s: %s produced no decision, keeping default: %v", stem, name, err))
		} else {
			rep.Warning(fmt.Sprintf("%s: %s failed, keeping default: %v", stem, name, err))
		}
	}
}

// probeOriginal runs the Media Probe (C2) against the source and records
// the results on v via AnalyzeOriginal.
func probeOriginal(v *config.VPC, tools Tools) error {
	props, err := ffprobe.GetVideoProperties(v.OrigFilePath)
	if err != nil {
		return fmt.Errorf("probing video properties: %w", err)
	}

	codec, err := ffprobe.GetVideoCodecName(v.OrigFilePath)
	if err != nil {
		return fmt.Errorf("probing codec: %w", err)
	}

	framerate, err := ffprobe.GetFramerate(v.OrigFilePath)
	if err != nil {
		framerate = 0
	}

	fastSeek, err := ffprobe.DetectFastSeek(v.OrigFilePath)
	if err != nil {
		fastSeek = false
	}

	staticMeta, err := ffprobe.GetStaticHDRMetadata(v.OrigFilePath)
	if err != nil {
		staticMeta = ffprobe.StaticHDRMetadata{}
	}

	vui := config.VUIInfo{
		ColorPrimaries: orUnknown(props.HDRInfo.ColourPrimaries),
		ColorTransfer:  orUnknown(props.HDRInfo.TransferCharacteristics),
		ColorSpace:     orUnknown(props.HDRInfo.MatrixCoefficients),
		ChromaLocation: orUnknown(props.HDRInfo.ChromaLocation),
	}

	side := config.SideData{
		Present:          staticMeta.Present,
		MaxCLL:           staticMeta.MaxCLL,
		MaxFALL:          staticMeta.MaxFALL,
		MasteringDisplay: staticMeta.MasteringDisplay,
	}

	v.AnalyzeOriginal(props.Width, props.Height, props.DurationSecs, framerate, codec == "hevc", fastSeek, vui, side)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
