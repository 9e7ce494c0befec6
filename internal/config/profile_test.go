package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testProfileYAML = `
function: ffmpeg
HDR_enable: true
FS_enable: true
video:
  -preset: "6"
  -crf: "27"
  -an: true
audio:
  -c:a: aac
stereo:
  -ac: "2"
test_settings:
  res_decode:
    854: -10
    1280: -0.0001
    1920: -0.000069
    3840: -0.00004
  cq_threashold: 0.6
  defalut_cq: 27
`

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeTempFile(t, "profile.yaml", testProfileYAML)

	p, err := LoadProfile(path)
	require.NoError(t, err)

	require.Equal(t, EncoderFFmpeg, p.Function)
	require.True(t, p.HDREnable)
	require.True(t, p.FSEnable)
	require.Equal(t, 0.6, p.CQThreshold())
	require.Equal(t, 27.0, p.DefaultCQ())

	// video args preserve declaration order and drop/keep bools correctly.
	require.Equal(t, ArgList{
		{Flag: "-preset", Value: "6"},
		{Flag: "-crf", Value: "27"},
		{Flag: "-an"},
	}, p.Video)

	// res_decode preserves declaration order (854, 1280, 1920, 3840).
	require.Equal(t, ResDecodeTable{
		{Resolution: 854, Threshold: -10},
		{Resolution: 1280, Threshold: -0.0001},
		{Resolution: 1920, Threshold: -0.000069},
		{Resolution: 3840, Threshold: -0.00004},
	}, p.TestSettings.ResDecode)
}

func TestLoadProfileFalseBoolDropped(t *testing.T) {
	yamlText := `
function: ffmpeg
video:
  -an: false
  -sn: true
test_settings:
  res_decode:
    854: -10
  cq_threashold: 0.6
  defalut_cq: 27
`
	path := writeTempFile(t, "profile.yaml", yamlText)
	p, err := LoadProfile(path)
	require.NoError(t, err)
	require.Equal(t, ArgList{{Flag: "-sn"}}, p.Video)
}

func TestLoadProfileValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yamlText string
		wantErr error
	}{
		{
			name: "unknown encoder",
			yamlText: `
function: notarealencoder
video:
  -preset: "6"
test_settings:
  res_decode:
    854: -10
  cq_threashold: 0.6
  defalut_cq: 27
`,
			wantErr: ErrInvalidEncoder,
		},
		{
			name: "empty res_decode",
			yamlText: `
function: ffmpeg
video:
  -preset: "6"
test_settings:
  res_decode: {}
  cq_threashold: 0.6
  defalut_cq: 27
`,
			wantErr: ErrInvalidResDecode,
		},
		{
			name: "missing default cq",
			yamlText: `
function: ffmpeg
video:
  -preset: "6"
test_settings:
  res_decode:
    854: -10
  cq_threashold: 0.6
`,
			wantErr: ErrMissingProfileField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "profile.yaml", tt.yamlText)
			_, err := LoadProfile(path)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestArgListArgv(t *testing.T) {
	a := ArgList{
		{Flag: "-preset", Value: "6"},
		{Flag: "-an"},
	}
	require.Equal(t, []string{"-preset", "6", "-an"}, a.Argv())
}

func TestArgListIndex(t *testing.T) {
	a := ArgList{
		{Flag: "-vf", Value: "scale=1280:-2"},
		{Flag: "-crf", Value: "27"},
	}
	require.Equal(t, 0, a.Index("-vf"))
	require.Equal(t, -1, a.Index("-missing"))
}
