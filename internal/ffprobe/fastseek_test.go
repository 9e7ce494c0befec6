package ffprobe

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func mp4Box(boxType string, payloadSize int) []byte {
	size := 8 + payloadSize
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], uint32(size))
	copy(b[4:8], boxType)
	return append(b, make([]byte, payloadSize)...)
}

func writeFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDetectFastSeekMP4MoovFirst(t *testing.T) {
	var buf []byte
	buf = append(buf, mp4Box("ftyp", 8)...)
	buf = append(buf, mp4Box("moov", 16)...)
	buf = append(buf, mp4Box("mdat", 100)...)

	path := writeFile(t, "moov_first.mp4", buf)
	ok, err := DetectFastSeek(path)
	if err != nil {
		t.Fatalf("DetectFastSeek() error = %v", err)
	}
	if !ok {
		t.Error("DetectFastSeek() = false, want true when moov precedes mdat")
	}
}

func TestDetectFastSeekMP4MdatFirst(t *testing.T) {
	var buf []byte
	buf = append(buf, mp4Box("ftyp", 8)...)
	buf = append(buf, mp4Box("mdat", 100)...)
	buf = append(buf, mp4Box("moov", 16)...)

	path := writeFile(t, "mdat_first.mp4", buf)
	ok, err := DetectFastSeek(path)
	if err != nil {
		t.Fatalf("DetectFastSeek() error = %v", err)
	}
	if ok {
		t.Error("DetectFastSeek() = true, want false when mdat precedes moov")
	}
}

func TestDetectFastSeekMatroskaCuesFirst(t *testing.T) {
	var buf []byte
	buf = append(buf, matroskaEBMLMagic...)
	buf = append(buf, make([]byte, 32)...)
	buf = append(buf, matroskaCuesID...)
	buf = append(buf, make([]byte, 32)...)
	buf = append(buf, matroskaClusterID...)

	path := writeFile(t, "cues_first.mkv", buf)
	ok, err := DetectFastSeek(path)
	if err != nil {
		t.Fatalf("DetectFastSeek() error = %v", err)
	}
	if !ok {
		t.Error("DetectFastSeek() = false, want true when Cues precedes Cluster")
	}
}

func TestDetectFastSeekMatroskaClusterFirst(t *testing.T) {
	var buf []byte
	buf = append(buf, matroskaEBMLMagic...)
	buf = append(buf, make([]byte, 32)...)
	buf = append(buf, matroskaClusterID...)
	buf = append(buf, make([]byte, 32)...)
	buf = append(buf, matroskaCuesID...)

	path := writeFile(t, "cluster_first.mkv", buf)
	ok, err := DetectFastSeek(path)
	if err != nil {
		t.Fatalf("DetectFastSeek() error = %v", err)
	}
	if ok {
		t.Error("DetectFastSeek() = true, want false when Cluster precedes Cues")
	}
}
