// Command drapto-decide runs the per-file decision pipeline (C11): probe
// a source, solve resolution/CQ/crop/channels, write a VPC.txt manifest,
// and optionally drive the HDR Router for a production encode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/orchestrator"
	"github.com/five82/drapto/internal/reporter"
)

const appVersion = "0.1.0"

type decideArgs struct {
	inputFile string
	movieName string
	profile   string
	settings  string
	workspace string
	tools     string
	verbose   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var da decideArgs

	root := &cobra.Command{
		Use:           "drapto-decide",
		Short:         "Solve resolution, CQ, crop, and HDR decisions for one video",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecide(cmd, da)
		},
	}

	root.Flags().StringVar(&da.inputFile, "input_file", "", "input video file (required)")
	root.Flags().StringVar(&da.movieName, "movie_name", "", "output stem (required)")
	root.Flags().StringVar(&da.profile, "profile", "", "path to profile YAML (required)")
	root.Flags().StringVar(&da.settings, "settings", "", "path to settings YAML (required)")
	root.Flags().StringVar(&da.workspace, "workspace", "", "base workspace directory (required)")
	root.Flags().StringVar(&da.tools, "tools", "", "directory external tool binaries are resolved from (defaults to PATH)")
	root.Flags().BoolVarP(&da.verbose, "verbose", "v", false, "set the run's verbose flag (stage-skip notes are reported either way)")

	for _, name := range []string{"input_file", "movie_name", "profile", "settings", "workspace"} {
		_ = root.MarkFlagRequired(name)
	}

	return root
}

func runDecide(cmd *cobra.Command, da decideArgs) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	runCfg := config.NewRunConfig(config.WithToolsDir(da.tools), config.WithVerbose(da.verbose))
	tools := resolveTools(da.tools)
	rep := reporter.NewTerminalReporter()

	results, err := orchestrator.Run(ctx, runCfg, tools, da.profile, da.settings, da.workspace, []string{da.inputFile}, rep)
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("%s: %w", r.InputFile, r.Err)
		}
	}
	return nil
}

// resolveTools joins a tools directory onto each external binary's bare
// name, or leaves the bare name alone so exec.LookPath falls back to
// PATH, per spec §6's "Optional: --tools (tool directory)".
func resolveTools(toolsDir string) orchestrator.Tools {
	join := func(name string) string {
		if toolsDir == "" {
			return name
		}
		return toolsDir + string(os.PathSeparator) + name
	}

	return orchestrator.Tools{
		FFmpegPath:    join("ffmpeg"),
		HandBrakePath: join("HandBrakeCLI"),
		ScorerPath:    join("scorer"),
		DoviToolPath:  join("dovi_tool"),
		HDR10PlusPath: join("hdr10plus_tool"),
	}
}
