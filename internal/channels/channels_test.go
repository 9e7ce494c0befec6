package channels

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, path string, numChannels int, frames [][]int16) {
	t.Helper()

	var data []byte
	for _, frame := range frames {
		for _, sample := range frame {
			buf := make([]byte, 2)
			binary.LittleEndian.PutUint16(buf, uint16(sample))
			data = append(data, buf...)
		}
	}

	byteRate := 44100 * numChannels * 2
	blockAlign := numChannels * 2

	var b []byte
	b = append(b, []byte("RIFF")...)
	b = append(b, le32(uint32(36+len(data)))...)
	b = append(b, []byte("WAVE")...)
	b = append(b, []byte("fmt ")...)
	b = append(b, le32(16)...)
	b = append(b, le16(1)...)
	b = append(b, le16(uint16(numChannels))...)
	b = append(b, le32(44100)...)
	b = append(b, le32(uint32(byteRate))...)
	b = append(b, le16(uint16(blockAlign))...)
	b = append(b, le16(16)...)
	b = append(b, []byte("data")...)
	b = append(b, le32(uint32(len(data)))...)
	b = append(b, data...)

	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func le32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func le16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return buf
}

func TestReadWAVMono(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mono.wav")
	writeTestWAV(t, path, 1, [][]int16{{100}, {200}, {300}})

	channels, numChannels, err := readWAV(path)
	require.NoError(t, err)
	require.Equal(t, 1, numChannels)
	require.Equal(t, []float64{100, 200, 300}, channels[0])
}

func TestReadWAVStereoDeinterleaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stereo.wav")
	writeTestWAV(t, path, 2, [][]int16{{1, 2}, {3, 4}, {5, 6}})

	channels, numChannels, err := readWAV(path)
	require.NoError(t, err)
	require.Equal(t, 2, numChannels)
	require.Equal(t, []float64{1, 3, 5}, channels[0])
	require.Equal(t, []float64{2, 4, 6}, channels[1])
}

func TestCollapseChannelsMonoPassesThrough(t *testing.T) {
	require.Equal(t, 1, collapseChannels(nil, 1, 0.001))
}

func TestCollapseChannelsIdenticalStereoMapsToStereo(t *testing.T) {
	left := []float64{1, 2, 3, 4}
	right := []float64{1, 2, 3, 4}
	got := collapseChannels([][]float64{left, right}, 2, 0.001)
	require.Equal(t, 2, got, "two identical channels collapse to zero survivors, which maps to stereo per the original's fallback")
}

func TestCollapseChannelsDistinctStereoStaysStereo(t *testing.T) {
	left := []float64{1, 2, 3, 4}
	right := []float64{100, 200, 300, 400}
	got := collapseChannels([][]float64{left, right}, 2, 0.001)
	require.Equal(t, 2, got)
}

func TestMeanSquaredErrorZeroForIdenticalSlices(t *testing.T) {
	require.Equal(t, 0.0, meanSquaredError([]float64{1, 2, 3}, []float64{1, 2, 3}))
}
