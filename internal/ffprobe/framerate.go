package ffprobe

import (
	"fmt"
	"strconv"
	"strings"
)

// minFramerate and maxFramerate bound the range a probed rate is trusted
// in, matching the original tool's sanity window for CFR/VFR sources.
const (
	minFramerate = 10.0
	maxFramerate = 1000.0
)

// parseFraction parses an ffprobe rate string like "24000/1001" or "25/1".
func parseFraction(s string) (float64, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed rate %q", s)
	}
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed rate numerator %q: %w", s, err)
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0, fmt.Errorf("malformed rate denominator %q", s)
	}
	return num / den, nil
}

// resolveFramerate picks r_frame_rate (the container's nominal, CFR rate)
// when it falls in the trusted window, and falls back to avg_frame_rate
// (the measured, VFR-tolerant rate) otherwise. A rate outside the window
// from both fields reports 0, signalling "unknown" to the caller.
func resolveFramerate(stream *ffprobeStream) float64 {
	if rate, err := parseFraction(stream.RFrameRate); err == nil {
		if rate >= minFramerate && rate <= maxFramerate {
			return rate
		}
	}
	if rate, err := parseFraction(stream.AvgFrameRate); err == nil {
		if rate >= minFramerate && rate <= maxFramerate {
			return rate
		}
	}
	return 0
}

// GetFramerate returns the resolved framerate for a file's video stream,
// trying the constant-framerate field first and falling back to the
// measured average when the nominal rate looks wrong (0, or outside the
// [10, 1000] fps sanity window a real-world source can have).
func GetFramerate(inputPath string) (float64, error) {
	probe, err := runFFprobe(inputPath)
	if err != nil {
		return 0, err
	}

	videoStream := findVideoStream(probe)
	if videoStream == nil {
		return 0, fmt.Errorf("no video stream found in %s", inputPath)
	}

	return resolveFramerate(videoStream), nil
}
