// Package scorer implements the Quality Scorer Bridge (C6): repeated
// invocation of an external perceptual scorer, and VMAF extraction from
// an encoder's libvmaf log.
package scorer

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/runner"
)

// DefaultTimeout bounds a single scorer invocation (spec §4.4: "e.g., 20 minutes").
const DefaultTimeout = 20 * time.Minute

// scoreLineRe matches "The quality score of the video (range [0,1]) is 0.xxxxx",
// anchored on the fractional value per spec §9's "anchor the patterns precisely".
var scoreLineRe = regexp.MustCompile(`quality score of the video.*?([01]\.\d+)`)

// Scorer invokes an external perceptual scorer and parses its output.
type Scorer struct {
	BinaryPath string
	Runner     *runner.Runner
	StreamLog  *logging.StreamLog
	Timeout    time.Duration
}

// New creates a Scorer bound to the given binary.
func New(binaryPath string, streamLog *logging.StreamLog) *Scorer {
	return &Scorer{
		BinaryPath: binaryPath,
		Runner:     runner.New(),
		StreamLog:  streamLog,
		Timeout:    DefaultTimeout,
	}
}

// ScoreOnce runs the scorer a single time against clip and returns the
// parsed scalar, or ok=false if the run timed out, failed, or produced
// no parseable score line. This is the primitive the Resolution Solver
// (C7) schedules one-per-job; Score builds its averaging contract on
// top of it.
func (s *Scorer) ScoreOnce(ctx context.Context, clip string) (float64, bool) {
	result, err := s.Runner.Run(ctx, []string{s.BinaryPath, clip}, runner.Options{
		Timeout:       s.Timeout,
		StreamLog:     s.StreamLog,
		CaptureStdout: true,
	})
	if err != nil || result.TimedOut || !result.OK {
		return 0, false
	}
	return parseScoreLines(result.Stdout)
}

// Score runs the scorer n times against clip, parses the scalar score
// from each invocation, and returns the mean over every run that
// produced a parseable score. A timed-out or failed run contributes
// nothing; if none produce a score, Score returns an error.
func (s *Scorer) Score(ctx context.Context, clip string, n int) (float64, error) {
	var sum float64
	var count int

	for i := 0; i < n; i++ {
		score, ok := s.ScoreOnce(ctx, clip)
		if !ok {
			continue
		}
		sum += score
		count++
	}

	if count == 0 {
		return 0, drerrors.NewScorerTimeoutError(clip)
	}

	return sum / float64(count), nil
}

// parseScoreLines scans stdout lines for the first scorer score match.
func parseScoreLines(lines []string) (float64, bool) {
	for _, line := range lines {
		m := scoreLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return val, true
	}
	return 0, false
}

// vmafMetric mirrors the <metric name="vmaf" ... harmonic_mean="X"/> element
// in a libvmaf XML log.
type vmafMetric struct {
	XMLName      xml.Name `xml:"metric"`
	Name         string   `xml:"name,attr"`
	HarmonicMean string   `xml:"harmonic_mean,attr"`
}

type vmafPooledMetrics struct {
	XMLName xml.Name     `xml:"pooled_metrics"`
	Metrics []vmafMetric `xml:"metric"`
}

type vmafLog struct {
	XMLName xml.Name          `xml:"VMAF"`
	Pooled  vmafPooledMetrics `xml:"pooled_metrics"`
}

// ParseVMAFLog extracts the pooled VMAF harmonic mean from a libvmaf XML
// log file, per spec §6's "VMAF log parsing".
func ParseVMAFLog(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, drerrors.NewIOError("failed to read VMAF log", err)
	}

	var log vmafLog
	if err := xml.Unmarshal(data, &log); err != nil {
		return 0, drerrors.NewFFmpegError(fmt.Sprintf("failed to parse VMAF log %s: %v", path, err))
	}

	for _, m := range log.Pooled.Metrics {
		if m.Name != "vmaf" {
			continue
		}
		val, err := strconv.ParseFloat(m.HarmonicMean, 64)
		if err != nil {
			continue
		}
		return val, nil
	}

	return 0, drerrors.NewFFmpegError(fmt.Sprintf("no vmaf harmonic_mean found in %s", path))
}

// VMAF runs ffmpeg's libvmaf filter comparing distorted against reference,
// writing an XML log, then parses the pooled harmonic mean.
func (s *Scorer) VMAF(ctx context.Context, ffmpegPath, reference, distorted string, threads int, logPath string) (float64, error) {
	filter := fmt.Sprintf(
		"libvmaf=log_path=%s:log_fmt=xml:n_threads=%d",
		logPath, threads,
	)

	argv := []string{
		ffmpegPath, "-y",
		"-i", distorted,
		"-i", reference,
		"-lavfi", filter,
		"-f", "null", "-",
	}

	result, err := s.Runner.Run(ctx, argv, runner.Options{StreamLog: s.StreamLog})
	if err != nil {
		return 0, err
	}
	if !result.OK {
		return 0, drerrors.NewFFmpegError("libvmaf invocation failed")
	}

	return ParseVMAFLog(logPath)
}
