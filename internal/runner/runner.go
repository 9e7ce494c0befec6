// Package runner implements the Process Runner (C1): launching an
// external tool, draining its stdout/stderr concurrently to a stream
// log, and reporting exit status without ever raising on a non-zero
// exit code.
package runner

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"
	"time"
	"unicode/utf8"

	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/util"
)

// DefaultMinOutputSize is the minimum size, in bytes, an output file must
// reach to be considered a successful run (spec §4.1: "≥ 2 KiB default").
const DefaultMinOutputSize int64 = 2 * util.KiB

// Options configures one Run invocation.
type Options struct {
	// Timeout bounds the child's lifetime; zero means no timeout.
	Timeout time.Duration
	// OutputPath, if set, is size-checked after the child exits.
	OutputPath string
	// MinOutputSize overrides DefaultMinOutputSize when non-zero.
	MinOutputSize int64
	// StreamLog receives every surviving stdout/stderr line, tagged.
	StreamLog *logging.StreamLog
	// CaptureStdout, when true, additionally collects surviving stdout
	// lines into Result.Stdout for callers that parse tool output (the
	// Quality Scorer Bridge).
	CaptureStdout bool
}

// Result reports how a run concluded.
type Result struct {
	ExitCode int
	OK       bool
	TimedOut bool
	// Stdout holds surviving stdout lines when Options.CaptureStdout is set.
	Stdout []string
}

// Runner executes external tools under the C1 contract.
type Runner struct{}

// New creates a Runner.
func New() *Runner { return &Runner{} }

// Run launches argv (never through a shell), drains stdout/stderr
// concurrently to opts.StreamLog, waits for the child and both drains to
// finish, and reports exit status. Run returns an error only for an
// empty argv or a failure to start the process; a non-zero exit code or
// a missing/undersized output file sets Result.OK to false instead, and
// the caller inspects Result.OK to decide what that means for its stage.
func (r *Runner) Run(ctx context.Context, argv []string, opts Options) (Result, error) {
	if len(argv) == 0 {
		return Result{}, drerrors.NewPathError("empty argument vector")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, drerrors.NewCommandStartError(argv[0], err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, drerrors.NewCommandStartError(argv[0], err)
	}

	if opts.StreamLog != nil {
		opts.StreamLog.Command(argv)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, drerrors.NewCommandStartError(argv[0], err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var stdoutLines []string
	go func() {
		defer wg.Done()
		lines := drain(stdout, logging.StreamStdout, opts.StreamLog)
		if opts.CaptureStdout {
			stdoutLines = lines
		}
	}()
	go func() {
		defer wg.Done()
		drain(stderr, logging.StreamStderr, opts.StreamLog)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	timedOut := opts.Timeout > 0 && runCtx.Err() == context.DeadlineExceeded

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := Result{
		ExitCode: exitCode,
		OK:       waitErr == nil,
		TimedOut: timedOut,
		Stdout:   stdoutLines,
	}

	if !result.OK {
		return result, nil
	}

	if opts.OutputPath != "" {
		minSize := opts.MinOutputSize
		if minSize == 0 {
			minSize = DefaultMinOutputSize
		}
		size, sizeErr := util.GetFileSize(opts.OutputPath)
		if sizeErr != nil || int64(size) < minSize {
			result.OK = false
			return result, nil
		}
	}

	return result, nil
}

// drain decodes stdout/stderr leniently, strips trailing CR/LF, suppresses
// empty lines and consecutive duplicates, and forwards survivors to the
// stream log tagged by stream, returning them as well for callers that
// need to parse tool output. It never returns an error: a read error
// simply ends the drain early, which Run tolerates because the process
// exit code is the authoritative signal.
func drain(r io.Reader, tag logging.StreamTag, sink *logging.StreamLog) []string {
	reader := bufio.NewReader(r)
	var last string
	haveLast := false
	var lines []string

	for {
		raw, err := reader.ReadString('\n')
		if len(raw) > 0 {
			line := sanitizeLine(raw)
			if line != "" && (!haveLast || line != last) {
				sink.Line(tag, line)
				lines = append(lines, line)
				last = line
				haveLast = true
			}
		}
		if err != nil {
			return lines
		}
	}
}

// sanitizeLine strips trailing CR/LF and repairs invalid UTF-8 via
// replacement, matching the Process Runner contract's lenient decode.
func sanitizeLine(raw string) string {
	for len(raw) > 0 && (raw[len(raw)-1] == '\n' || raw[len(raw)-1] == '\r') {
		raw = raw[:len(raw)-1]
	}
	if utf8.ValidString(raw) {
		return raw
	}
	return toValidUTF8Lenient(raw)
}

func toValidUTF8Lenient(s string) string {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, utf8.RuneError)
			i++
			continue
		}
		out = append(out, r)
		i += size
	}
	return string(out)
}
