package hdrouter

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/sceneencoder"
)

// writeStub creates an executable shell script that always writes
// sizeBytes of data to its last argument, regardless of its other
// arguments, simulating a successful external tool invocation.
func writeStub(t *testing.T, dir, name string, sizeBytes int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := "#!/bin/sh\n" +
		"eval target=\"\\${$#}\"\n" +
		"head -c " + strconv.Itoa(sizeBytes) + " /dev/zero > \"$target\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func writeFailingStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0o755))
	return path
}

func newTestVPC(t *testing.T, dir string) *config.VPC {
	t.Helper()
	v, err := config.NewVPC(filepath.Join(dir, "source.mkv"), "out", filepath.Join(dir, "ws"))
	require.NoError(t, err)
	v.OrigFramerate = 23.976
	v.OrigHRes = 3840
	v.OrigVRes = 2160
	v.OutputRes = 3840
	v.OutputCQ = 20
	v.Profile = &config.Profile{
		Function:  config.EncoderFFmpeg,
		Video:     config.ArgList{},
		HDREnable: true,
	}
	v.TestSettings = &config.TestSettings{}
	return v
}

func TestClassifyDetectsDoVi(t *testing.T) {
	dir := t.TempDir()
	dovi := writeStub(t, dir, "dovi_tool.sh", 4096)
	v := newTestVPC(t, dir)

	r := New("ffmpeg", dovi, "hdr10plus_tool", nil, nil)
	require.NoError(t, r.Classify(context.Background(), v))
	require.Equal(t, config.HDRDoVi, v.HDRType)
}

func TestClassifyFallsBackToHDR10(t *testing.T) {
	dir := t.TempDir()
	dovi := writeFailingStub(t, dir, "dovi_tool.sh")
	hdr10plus := writeStub(t, dir, "hdr10plus_tool.sh", 4096)
	v := newTestVPC(t, dir)

	r := New("ffmpeg", dovi, hdr10plus, nil, nil)
	require.NoError(t, r.Classify(context.Background(), v))
	require.Equal(t, config.HDR10, v.HDRType)
}

func TestClassifyFallsBackToNone(t *testing.T) {
	dir := t.TempDir()
	dovi := writeFailingStub(t, dir, "dovi_tool.sh")
	hdr10plus := writeFailingStub(t, dir, "hdr10plus_tool.sh")
	v := newTestVPC(t, dir)

	r := New("ffmpeg", dovi, hdr10plus, nil, nil)
	require.NoError(t, r.Classify(context.Background(), v))
	require.Equal(t, config.HDRNone, v.HDRType)
}

func TestClassifyIsMemoised(t *testing.T) {
	dir := t.TempDir()
	dovi := writeFailingStub(t, dir, "dovi_tool.sh")
	v := newTestVPC(t, dir)
	v.HDRType = config.HDRDoVi

	r := New("ffmpeg", dovi, "hdr10plus_tool", nil, nil)
	require.NoError(t, r.Classify(context.Background(), v))
	require.Equal(t, config.HDRDoVi, v.HDRType, "an already-classified VPC must not be re-probed")
}

func TestProduceFallsBackToPlainEncodeWhenHDRDisabled(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg.sh", 4096)
	v := newTestVPC(t, dir)
	v.Profile.HDREnable = false
	v.HDRType = config.HDRDoVi

	enc := sceneencoder.New(ffmpeg, "", nil)
	r := New(ffmpeg, "dovi_tool", "hdr10plus_tool", enc, nil)

	require.NoError(t, r.Produce(context.Background(), v))
	info, err := os.Stat(v.OutputFilePath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestProduceRunsHDRDetourForDoVi(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg.sh", 4096)
	dovi := writeStub(t, dir, "dovi_tool.sh", 4096)
	v := newTestVPC(t, dir)
	require.NoError(t, os.MkdirAll(v.Workspace, 0o755))
	v.HDRType = config.HDRDoVi
	require.NoError(t, os.WriteFile(v.DoviMetadataFile, make([]byte, 4096), 0o644))

	enc := sceneencoder.New(ffmpeg, "", nil)
	r := New(ffmpeg, dovi, "hdr10plus_tool", enc, nil)

	require.NoError(t, r.Produce(context.Background(), v))
	info, err := os.Stat(v.OutputFilePath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestProduceFallsBackAndDisablesHDROnInjectFailure(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeStub(t, dir, "ffmpeg.sh", 4096)
	doviFailInject := filepath.Join(dir, "dovi_tool_fail_inject.sh")
	// Succeeds for extract-rpu (first arg), fails for inject-rpu.
	require.NoError(t, os.WriteFile(doviFailInject, []byte(
		"#!/bin/sh\ncase \"$1\" in\n  extract-rpu) eval target=\"\\${$#}\"; head -c 4096 /dev/zero > \"$target\" ;;\n  *) exit 1 ;;\nesac\n",
	), 0o755))

	v := newTestVPC(t, dir)
	require.NoError(t, os.MkdirAll(v.Workspace, 0o755))
	v.HDRType = config.HDRDoVi
	require.NoError(t, os.WriteFile(v.DoviMetadataFile, make([]byte, 4096), 0o644))

	enc := sceneencoder.New(ffmpeg, "", nil)
	r := New(ffmpeg, doviFailInject, "hdr10plus_tool", enc, nil)

	require.NoError(t, r.Produce(context.Background(), v))
	require.False(t, v.Profile.HDREnable, "a failed HDR detour must disable HDR on the VPC chain")
	info, err := os.Stat(v.OutputFilePath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
