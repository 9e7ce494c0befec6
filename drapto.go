// Package drapto provides a Go library for embedding the video
// re-encoding decision engine in another program.
//
// Decide runs the per-video pipeline: probe the source, solve
// resolution, CQ, crop, and channel decisions, write a VPC.txt manifest,
// and, when the settings enable it, drive the HDR-aware production
// encode.
//
// Basic usage:
//
//	engine := drapto.New(drapto.WithToolsDir("/opt/drapto-tools"))
//
//	result, err := engine.Decide(ctx, drapto.DecideRequest{
//	    InputFile: "input.mkv",
//	    MovieName: "input",
//	    Profile:   "profile.yaml",
//	    Settings:  "settings.yaml",
//	    Workspace: "/var/tmp/drapto",
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("decided CQ %.1f at %dx px wide\n", result.VPC.OutputCQ, result.VPC.OutputRes)
package drapto

import (
	"context"
	"fmt"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/discovery"
	"github.com/five82/drapto/internal/orchestrator"
	"github.com/five82/drapto/internal/reporter"
)

// Reporter re-exports the progress-reporting interface so callers never
// need to import the internal package directly.
type Reporter = reporter.Reporter

// NullReporter is a Reporter that discards every update.
type NullReporter = reporter.NullReporter

// Tools names the external binaries the engine shells out to. A zero
// value resolves every binary off PATH.
type Tools = orchestrator.Tools

// Engine is the entry point for running the decision pipeline.
type Engine struct {
	runCfg *config.RunConfig
	tools  Tools
}

// Option configures an Engine.
type Option func(*Engine)

// WithToolsDir resolves every external tool binary from dir instead of PATH.
func WithToolsDir(dir string) Option {
	return func(e *Engine) {
		e.runCfg = config.NewRunConfig(config.WithToolsDir(dir))
		e.tools = toolsIn(dir)
	}
}

// WithTools overrides individual tool paths directly, for callers that
// don't keep every binary in one directory.
func WithTools(t Tools) Option {
	return func(e *Engine) { e.tools = t }
}

// WithWorkers overrides the default worker-pool size used by solvers
// that score clips concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.runCfg = config.NewRunConfig(config.WithToolsDir(e.runCfg.ToolsDir), config.WithWorkers(n))
	}
}

// New creates an Engine with the given options. With no options, every
// external tool is resolved from PATH.
func New(opts ...Option) *Engine {
	e := &Engine{
		runCfg: config.NewRunConfig(),
		tools:  toolsIn(""),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func toolsIn(dir string) Tools {
	join := func(name string) string {
		if dir == "" {
			return name
		}
		return dir + "/" + name
	}
	return Tools{
		FFmpegPath:    join("ffmpeg"),
		HandBrakePath: join("HandBrakeCLI"),
		ScorerPath:    join("scorer"),
		DoviToolPath:  join("dovi_tool"),
		HDR10PlusPath: join("hdr10plus_tool"),
	}
}

// DecideRequest names the one input file and configuration a Decide
// call needs, mirroring the orchestrator's required command-line flags.
type DecideRequest struct {
	InputFile string
	MovieName string
	Profile   string
	Settings  string
	Workspace string
}

// DecideResult is the outcome of running the pipeline on one file.
type DecideResult struct {
	VPC              *config.VPC
	ManifestPath     string
	Encoded          bool
	SizeReductionPct float64
}

// Decide runs the C11 pipeline for a single input file.
func (e *Engine) Decide(ctx context.Context, req DecideRequest, rep Reporter) (*DecideResult, error) {
	if rep == nil {
		rep = NullReporter{}
	}

	results, err := orchestrator.Run(ctx, e.runCfg, e.tools, req.Profile, req.Settings, req.Workspace, []string{req.InputFile}, rep)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("drapto: no result for %s", req.InputFile)
	}

	r := results[0]
	if r.Err != nil {
		return nil, r.Err
	}

	return &DecideResult{
		VPC:              r.VPC,
		ManifestPath:     r.ManifestPath,
		Encoded:          r.Encoded,
		SizeReductionPct: r.SizeReductionPct,
	}, nil
}

// DecideBatch runs the pipeline over multiple input files in turn,
// stopping early if ctx is cancelled between files.
func (e *Engine) DecideBatch(ctx context.Context, reqs []DecideRequest, rep Reporter) ([]DecideResult, error) {
	results := make([]DecideResult, 0, len(reqs))
	for _, req := range reqs {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		r, err := e.Decide(ctx, req, rep)
		if err != nil {
			return results, err
		}
		results = append(results, *r)
	}
	return results, nil
}

// FindVideos finds video files in a directory, sorted alphabetically.
func FindVideos(dir string) ([]string, error) {
	return discovery.FindVideoFiles(dir)
}
