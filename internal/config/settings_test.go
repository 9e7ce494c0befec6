package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testSettingsYAML = `
Black_bar_detection:
  Enabled: true
  frames_to_detect: 16
Resolution_calculation:
  Enabled: true
  num_of_tests: 3
  testing_resolutions: [854, 3840]
  scene_length: 5
  cq_value: 20
  keep_best_slopes: 0.6
  Threads: 8
CQ_calculation:
  Enabled: true
  cq_values: [15, 18, 27, 36]
  number_of_scenes: 5
  cq_reference: 1
  scene_length: 5
  keep_best_scenes: 0.6
  threads: 8
Channels_calculation:
  Enabled: false
  similarity_cutoff: 0.001
  duration: 1200
Export_output:
  Enabled: true
Enable_delete:
  Enabled: true
`

func TestLoadTestSettings(t *testing.T) {
	path := writeTempFile(t, "settings.yaml", testSettingsYAML)

	s, err := LoadTestSettings(path)
	require.NoError(t, err)

	require.True(t, s.BlackBarDetection.Enabled)
	require.Equal(t, 16, s.BlackBarDetection.FramesToDetect)

	require.Equal(t, []uint32{854, 3840}, s.ResolutionCalculation.TestingResolutions)
	require.Equal(t, 8, s.ResolutionCalculation.Threads)

	require.Equal(t, []float64{15, 18, 27, 36}, s.CQCalculation.CQValues)
	require.Equal(t, 5, s.CQCalculation.NumberOfScenes)

	require.False(t, s.ChannelsCalculation.Enabled)
	require.True(t, s.ExportOutput.Enabled)
	require.True(t, s.EnableDelete.Enabled)
}

func TestLoadTestSettingsInvalidCQValues(t *testing.T) {
	yamlText := `
CQ_calculation:
  Enabled: true
  cq_values: [15, 18, 27]
`
	path := writeTempFile(t, "settings.yaml", yamlText)
	_, err := LoadTestSettings(path)
	require.ErrorIs(t, err, ErrInvalidCQValues)
}

func TestLoadTestSettingsCQDisabledSkipsValidation(t *testing.T) {
	yamlText := `
CQ_calculation:
  Enabled: false
  cq_values: [15, 18]
`
	path := writeTempFile(t, "settings.yaml", yamlText)
	_, err := LoadTestSettings(path)
	require.NoError(t, err)
}
