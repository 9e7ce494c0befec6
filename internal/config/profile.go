package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ResDecodeEntry maps one horizontal resolution to the slope threshold
// at or above which the Resolution Solver (C7) will raise its answer to
// that resolution.
type ResDecodeEntry struct {
	Resolution uint32
	Threshold  float64
}

// ResDecodeTable is declaration-ordered: the resolver walks it from the
// first entry to the last, raising its answer whenever the measured
// slope clears a threshold, so decode tables must never be reordered by
// the loader (see spec §9, "Ordering of decode table").
type ResDecodeTable []ResDecodeEntry

func (t *ResDecodeTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("res_decode: expected a mapping, got kind %d", node.Kind)
	}

	out := make(ResDecodeTable, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var res uint32
		if err := node.Content[i].Decode(&res); err != nil {
			return fmt.Errorf("res_decode key %q: %w", node.Content[i].Value, err)
		}
		var threshold float64
		if err := node.Content[i+1].Decode(&threshold); err != nil {
			return fmt.Errorf("res_decode value for %d: %w", res, err)
		}
		out = append(out, ResDecodeEntry{Resolution: res, Threshold: threshold})
	}

	*t = out
	return nil
}

// Encoder identifies the production encoder front-end named by a
// profile's "function" field.
type Encoder string

const (
	EncoderHandbrakeAV1 Encoder = "HandbrakeAV1"
	EncoderFFmpeg       Encoder = "ffmpeg"
)

// Profile is a static, read-only description of how to encode, loaded
// once from a YAML file (§3, §6). Field names follow the original
// source's key spelling verbatim, including the "defalut_cq" and
// "cq_threashold" typos, since these are the literal keys operators
// write in profile YAML files today.
type Profile struct {
	Function  Encoder `yaml:"function"`
	Video     ArgList `yaml:"video"`
	Audio     ArgList `yaml:"audio"`
	Stereo    ArgList `yaml:"stereo"`
	HDREnable bool    `yaml:"HDR_enable"`
	FSEnable  bool    `yaml:"FS_enable"`

	TestSettings struct {
		ResDecode     ResDecodeTable `yaml:"res_decode"`
		CQThreashold  float64        `yaml:"cq_threashold"`
		DefalutCQ     float64        `yaml:"defalut_cq"`
	} `yaml:"test_settings"`
}

// DefaultCQ returns the profile's fallback CQ, used whenever the CQ
// solver produces no decision.
func (p *Profile) DefaultCQ() float64 {
	return p.TestSettings.DefalutCQ
}

// CQThreshold returns the acceptable VMAF-loss target the CQ solver
// solves against.
func (p *Profile) CQThreshold() float64 {
	return p.TestSettings.CQThreashold
}

// Validate checks that every field required for a decision run is
// present; zero values in a freshly-decoded profile indicate a missing
// YAML key rather than a deliberate zero, per spec §7 "Configuration
// invalid".
func (p *Profile) Validate() error {
	if p.Function != EncoderHandbrakeAV1 && p.Function != EncoderFFmpeg {
		return fmt.Errorf("%w: %q", ErrInvalidEncoder, p.Function)
	}
	if len(p.Video) == 0 {
		return fmt.Errorf("%w: video", ErrMissingProfileField)
	}
	if len(p.TestSettings.ResDecode) == 0 {
		return fmt.Errorf("%w: test_settings.res_decode", ErrInvalidResDecode)
	}
	if p.TestSettings.DefalutCQ <= 0 {
		return fmt.Errorf("%w: test_settings.defalut_cq", ErrMissingProfileField)
	}
	return nil
}

// LoadProfile reads and decodes a profile YAML file.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if err := decodeYAMLFile(path, &p); err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return &p, nil
}
