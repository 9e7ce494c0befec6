package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageFlag is the minimal shape every test-settings stage has: at least
// an Enabled switch (§3).
type StageFlag struct {
	Enabled bool `yaml:"Enabled"`
}

// BlackBarSettings configures the Black-bar Detector (C9).
type BlackBarSettings struct {
	Enabled        bool `yaml:"Enabled"`
	FramesToDetect int  `yaml:"frames_to_detect"`
}

// ResolutionSettings configures the Resolution Solver (C7). Repeats is
// the per-clip scorer repeat count K from spec §4.5; it has no dedicated
// key in spec §6's settings block, so it defaults to 1 (one scorer
// invocation per clip) when the YAML omits it.
type ResolutionSettings struct {
	Enabled            bool     `yaml:"Enabled"`
	NumOfTests         int      `yaml:"num_of_tests"`
	TestingResolutions []uint32 `yaml:"testing_resolutions"`
	SceneLength        int      `yaml:"scene_length"`
	CQValue            float64  `yaml:"cq_value"`
	KeepBestSlopes     float64  `yaml:"keep_best_slopes"`
	Threads            int      `yaml:"Threads"`
	Repeats            int      `yaml:"repeats"`
}

// CQSettings configures the CQ Solver (C8).
type CQSettings struct {
	Enabled        bool      `yaml:"Enabled"`
	CQValues       []float64 `yaml:"cq_values"`
	NumberOfScenes int       `yaml:"number_of_scenes"`
	CQReference    float64   `yaml:"cq_reference"`
	SceneLength    int       `yaml:"scene_length"`
	KeepBestScenes float64   `yaml:"keep_best_scenes"`
	Threads        int       `yaml:"threads"`
}

// ChannelsSettings configures the audio-channel-count stage.
type ChannelsSettings struct {
	Enabled          bool    `yaml:"Enabled"`
	SimilarityCutoff float64 `yaml:"similarity_cutoff"`
	Duration         int     `yaml:"duration"`
}

// TestSettings bundles the per-stage enable flags and parameters loaded
// from the settings YAML file (§3, §6).
type TestSettings struct {
	BlackBarDetection     BlackBarSettings   `yaml:"Black_bar_detection"`
	ResolutionCalculation ResolutionSettings `yaml:"Resolution_calculation"`
	CQCalculation         CQSettings         `yaml:"CQ_calculation"`
	ChannelsCalculation   ChannelsSettings   `yaml:"Channels_calculation"`
	ExportOutput          StageFlag          `yaml:"Export_output"`
	EnableDelete          StageFlag          `yaml:"Enable_delete"`
}

// Validate enforces the one hard configuration error named in spec §4.6:
// the CQ solver requires exactly four CQ values.
func (s *TestSettings) Validate() error {
	if s.CQCalculation.Enabled && len(s.CQCalculation.CQValues) != 4 {
		return fmt.Errorf("%w: got %d", ErrInvalidCQValues, len(s.CQCalculation.CQValues))
	}
	return nil
}

// LoadTestSettings reads and decodes a settings YAML file.
func LoadTestSettings(path string) (*TestSettings, error) {
	var s TestSettings
	if err := decodeYAMLFile(path, &s); err != nil {
		return nil, fmt.Errorf("loading settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return &s, nil
}

func decodeYAMLFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
