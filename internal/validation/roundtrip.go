package validation

import (
	"context"
	"fmt"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/hdrouter"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/sceneencoder"
)

// Roundtrip checks invariant 4: after a successful HDR path, a fresh
// classification of the produced output reports the same HDR_type the
// source was classified as. It re-runs the Classify step (C10) against
// the output file, in a scratch child VPC so the caller's VPC is left
// untouched.
func Roundtrip(ctx context.Context, ffmpegPath, doviToolPath, hdr10PlusPath string, v *config.VPC, outputPath string, streamLog *logging.StreamLog) (*Result, error) {
	scratch, err := v.Child(v.OutputFileName + "_roundtrip")
	if err != nil {
		return nil, fmt.Errorf("validation: roundtrip: %w", err)
	}
	scratch.OrigFilePath = outputPath
	scratch.HDRType = config.HDRUninit

	router := hdrouter.New(ffmpegPath, doviToolPath, hdr10PlusPath, sceneencoder.New(ffmpegPath, "", streamLog), streamLog)

	if err := router.Classify(ctx, scratch); err != nil {
		return nil, fmt.Errorf("validation: roundtrip: classifying output: %w", err)
	}

	step := Step{Name: "hdr_roundtrip"}
	if scratch.HDRType == v.HDRType {
		step.Passed = true
		step.Details = fmt.Sprintf("output classifies as %s, matching source", scratch.HDRType)
	} else {
		step.Passed = false
		step.Details = fmt.Sprintf("output classifies as %s, source was %s", scratch.HDRType, v.HDRType)
	}

	return newResult([]Step{step}), nil
}
