package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/reporter"
)

// recordingReporter captures the messages runStage emits, so tests can
// assert on the error-boundary behavior without a real terminal/JSON sink.
type recordingReporter struct {
	reporter.NullReporter
	warnings []string
	verbose  []string
}

func (r *recordingReporter) Warning(message string) { r.warnings = append(r.warnings, message) }
func (r *recordingReporter) Verbose(message string)  { r.verbose = append(r.verbose, message) }

func TestRunStageSkipsWhenDisabled(t *testing.T) {
	rep := &recordingReporter{}
	called := false

	runStage(rep, "movie", "black-bar detection", false, func() error {
		called = true
		return nil
	})

	require.False(t, called, "a disabled stage must never invoke its function")
	require.Len(t, rep.verbose, 1)
	require.Empty(t, rep.warnings)
}

func TestRunStageWarnsWithoutAbortingOnNoDecision(t *testing.T) {
	rep := &recordingReporter{}

	runStage(rep, "movie", "resolution calculation", true, func() error {
		return drerrors.NewNoDecisionError("resolution solver")
	})

	require.Len(t, rep.warnings, 1)
	require.Contains(t, rep.warnings[0], "no decision")
}

func TestRunStageWarnsOnGenericFailure(t *testing.T) {
	rep := &recordingReporter{}

	runStage(rep, "movie", "CQ calculation", true, func() error {
		return errors.New("boom")
	})

	require.Len(t, rep.warnings, 1)
	require.Contains(t, rep.warnings[0], "failed")
}

func TestRunStageSucceedsSilently(t *testing.T) {
	rep := &recordingReporter{}

	runStage(rep, "movie", "channel calculation", true, func() error {
		return nil
	})

	require.Empty(t, rep.warnings)
}

func TestOrUnknownDefaultsEmptyString(t *testing.T) {
	require.Equal(t, "unknown", orUnknown(""))
	require.Equal(t, "bt709", orUnknown("bt709"))
}
