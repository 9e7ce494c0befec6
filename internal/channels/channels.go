// Package channels implements the audio-channel-count stage: extracting
// a bounded prefix of a source's first audio track to PCM WAV and
// collapsing it to a unique-channel count by pairwise mean-squared-error
// comparison, grounded on the original source's getNumOfChannels.
package channels

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/five82/drapto/internal/config"
	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/logging"
	"github.com/five82/drapto/internal/runner"
)

// Detector extracts and analyzes a source's audio to determine the
// number of perceptually unique channels.
type Detector struct {
	FFmpegPath string
	Runner     *runner.Runner
	StreamLog  *logging.StreamLog
}

// New creates a Detector.
func New(ffmpegPath string, r *runner.Runner, streamLog *logging.StreamLog) *Detector {
	return &Detector{FFmpegPath: ffmpegPath, Runner: r, StreamLog: streamLog}
}

// Detect extracts up to settings.Duration seconds of audio from parent's
// source to 16-bit PCM WAV, collapses channels by similarity, and writes
// the result onto parent via a Channels pointer.
func (d *Detector) Detect(ctx context.Context, parent *config.VPC, settings config.ChannelsSettings) error {
	duration := settings.Duration
	if duration < 1 {
		duration = 1200
	}
	cutoff := settings.SimilarityCutoff
	if cutoff <= 0 {
		cutoff = 0.001
	}

	workFolder := filepath.Join(parent.Workspace, parent.OutputFileName+"_channels")
	if err := os.MkdirAll(workFolder, 0o755); err != nil {
		return fmt.Errorf("channels: creating workspace: %w", err)
	}

	audioPath := filepath.Join(workFolder, "audio.wav")
	argv := []string{
		d.FFmpegPath, "-y",
		"-i", parent.OrigFilePath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-t", fmt.Sprintf("%d", duration),
		audioPath,
	}

	result, err := d.Runner.Run(ctx, argv, runner.Options{StreamLog: d.StreamLog, OutputPath: audioPath})
	if err != nil {
		return fmt.Errorf("channels: extracting audio: %w", err)
	}
	if !result.OK {
		return drerrors.NewNoDecisionError("channels: audio extraction failed")
	}

	samples, numChannels, err := readWAV(audioPath)
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}

	count := collapseChannels(samples, numChannels, cutoff)
	parent.Channels = &count
	return nil
}

// readWAV parses a canonical little-endian PCM WAV file into per-channel
// float64 sample slices.
func readWAV(path string) ([][]float64, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var numChannels int
	var bitsPerSample int
	var dataOffset, dataSize int

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return nil, 0, fmt.Errorf("truncated fmt chunk")
			}
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			dataOffset = body
			dataSize = chunkSize
		}

		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if numChannels < 1 || bitsPerSample != 16 || dataSize == 0 {
		return nil, 0, fmt.Errorf("unsupported WAV format (channels=%d bits=%d)", numChannels, bitsPerSample)
	}
	if dataOffset+dataSize > len(data) {
		dataSize = len(data) - dataOffset
	}

	bytesPerSample := 2
	frameSize := bytesPerSample * numChannels
	numFrames := dataSize / frameSize

	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, numFrames)
	}

	for frame := 0; frame < numFrames; frame++ {
		base := dataOffset + frame*frameSize
		for c := 0; c < numChannels; c++ {
			off := base + c*bytesPerSample
			v := int16(binary.LittleEndian.Uint16(data[off : off+2]))
			channels[c][frame] = float64(v)
		}
	}

	return channels, numChannels, nil
}

// collapseChannels ports the original source's pairwise-MSE channel
// collapse verbatim: mono passes through untouched; otherwise a later
// channel is dropped when its MSE against an earlier one is at or below
// cutoff or repeats an MSE already seen, an MSE of exactly 0 drops both
// channels of the pair, and the surviving count is mapped 0→2, 3→4,
// ≥5→6, with any other count returned as is.
func collapseChannels(samples [][]float64, numChannels int, cutoff float64) int {
	if numChannels <= 1 {
		return 1
	}

	keep := make([]bool, numChannels)
	for i := range keep {
		keep[i] = true
	}

	seenMSE := make(map[float64]bool)
	for i := 0; i < numChannels; i++ {
		for j := i + 1; j < numChannels; j++ {
			mse := meanSquaredError(samples[i], samples[j])
			if seenMSE[mse] || mse <= cutoff {
				keep[j] = false
			}
			if mse == 0 {
				keep[j] = false
				keep[i] = false
			}
			seenMSE[mse] = true
		}
	}

	var survivors int
	for _, k := range keep {
		if k {
			survivors++
		}
	}

	switch {
	case survivors == 0:
		return 2
	case survivors == 3:
		return 4
	case survivors >= 5:
		return 6
	default:
		return survivors
	}
}

func meanSquaredError(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum / float64(n)
}
