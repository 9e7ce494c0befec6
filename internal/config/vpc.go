package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HDRType classifies the dynamic HDR metadata found on a source, per the
// state machine in spec §4.8.
type HDRType string

const (
	HDRUninit HDRType = "uninit"
	HDRDoVi   HDRType = "DoVi"
	HDR10     HDRType = "HDR10"
	HDRNone   HDRType = "None"
)

// Valid reports whether t is one of the three terminal classifications
// or the initial uninit sentinel. The original source's equivalent
// check, `hdr_type == "DoVi" or "HDR10" or "None"`, is always true
// regardless of its argument due to Python operator precedence — a bug
// this method does not reproduce.
func (t HDRType) Valid() bool {
	switch t {
	case HDRUninit, HDRDoVi, HDR10, HDRNone:
		return true
	default:
		return false
	}
}

// VUIInfo carries the four color/VUI fields a probe always returns,
// defaulting to "unknown" when the source stream omits them.
type VUIInfo struct {
	ColorPrimaries string
	ColorTransfer  string
	ColorSpace     string
	ChromaLocation string
}

// DefaultVUIInfo returns a VUIInfo with every field set to "unknown".
func DefaultVUIInfo() VUIInfo {
	return VUIInfo{
		ColorPrimaries: "unknown",
		ColorTransfer:  "unknown",
		ColorSpace:     "unknown",
		ChromaLocation: "unknown",
	}
}

// SideData carries CLL and mastering-display side data, populated only
// when the source stream carries it.
type SideData struct {
	Present         bool
	MaxCLL          uint32
	MaxFALL         uint32
	MasteringDisplay string
}

// VPC (Video Processing Configuration) is the mutable record threaded
// through the pipeline (§3). One VPC is created per input file; solvers
// clone it into scoped children via Child.
type VPC struct {
	// Paths
	OrigFilePath     string
	OutputFileName   string
	OutputFilePath   string
	Workspace        string
	SourcePath       string
	TargetPath       string
	DoviMetadataFile string
	HDR10MetadataFile string

	// Probed facts
	OrigHRes      uint32
	OrigVRes      uint32
	OrigDuration  float64
	OrigFramerate float64
	IsH265        bool
	FSSupport     bool
	VUI           VUIInfo
	SideDTA       SideData

	// Decisions
	OutputRes uint32
	OutputCQ  float64
	Crop      [2]int // [top, bottom]
	Channels  *int
	Start     *int
	Duration  *int // temporal crop duration, seconds; nil = full source

	// Classification
	HDRType HDRType

	// Static configuration
	Profile      *Profile
	TestSettings *TestSettings
	ToolsPath    string

	// Kinship
	parent *VPC
}

// NewVPC constructs the root VPC for one input file and eagerly creates
// its workspace directory.
func NewVPC(origFilePath, outputFileName, workspace string) (*VPC, error) {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace %s: %w", workspace, err)
	}

	v := &VPC{
		OrigFilePath:      origFilePath,
		SourcePath:        origFilePath,
		OutputFileName:    outputFileName,
		Workspace:         workspace,
		OutputFilePath:    filepath.Join(workspace, outputFileName+".mkv"),
		DoviMetadataFile:  filepath.Join(workspace, "dovi_metadata.bin"),
		HDR10MetadataFile: filepath.Join(workspace, "HDR10_metadata.json"),
		VUI:               DefaultVUIInfo(),
		HDRType:           HDRUninit,
		Crop:              [2]int{0, 0},
	}
	return v, nil
}

// LoadProfileAndSettings attaches a profile and test settings, and seeds
// the initial CQ decision from the profile's default.
func (v *VPC) LoadProfileAndSettings(profile *Profile, settings *TestSettings, toolsPath string) {
	v.Profile = profile
	v.TestSettings = settings
	v.ToolsPath = toolsPath
	v.OutputCQ = profile.DefaultCQ()
}

// AnalyzeOriginal records probed facts about the source and seeds the
// decisions that default to "no change": output resolution starts at
// the source's own width, and HDR is gated off sources that are not
// H.265, per the construction-time invariant in spec §3.
func (v *VPC) AnalyzeOriginal(hRes, vRes uint32, duration, framerate float64, isH265, fsSupport bool, vui VUIInfo, side SideData) {
	v.OrigHRes = hRes
	v.OrigVRes = vRes
	v.OrigDuration = duration
	v.OrigFramerate = framerate
	v.IsH265 = isH265
	v.FSSupport = fsSupport
	v.VUI = vui
	v.SideDTA = side
	v.OutputRes = hRes

	if v.Profile != nil && v.Profile.HDREnable && !isH265 {
		v.Profile.HDREnable = false
	}
}

// SetOutputRes records a resolution decision. Callers are responsible
// for clamping to OrigHRes per invariant 1; ValidateInvariants catches
// any violation that slips through.
func (v *VPC) SetOutputRes(res uint32) { v.OutputRes = res }

// SetOutputCQ records a CQ decision.
func (v *VPC) SetOutputCQ(cq float64) { v.OutputCQ = cq }

// SetCrop records a black-bar crop decision.
func (v *VPC) SetCrop(top, bottom int) { v.Crop = [2]int{top, bottom} }

// SetStart sets the temporal-crop start offset, in seconds.
func (v *VPC) SetStart(start int) { v.Start = &start }

// SetDuration sets the temporal-crop duration, in seconds.
func (v *VPC) SetDuration(duration int) { v.Duration = &duration }

// SetOutputFileName changes the output stem and recomputes the derived
// output path.
func (v *VPC) SetOutputFileName(name string) {
	v.OutputFileName = name
	v.OutputFilePath = filepath.Join(v.Workspace, name+".mkv")
}

// SetWorkspace changes the workspace directory, creating it if absent.
func (v *VPC) SetWorkspace(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating workspace %s: %w", dir, err)
	}
	v.Workspace = dir
	v.OutputFilePath = filepath.Join(dir, v.OutputFileName+".mkv")
	return nil
}

// SetHDRType validates and records an HDR classification. An invalid
// value is logged by the caller and leaves the classification
// unchanged, unlike the original source's always-true check.
func (v *VPC) SetHDRType(t HDRType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown HDR type: %q", t)
	}
	v.HDRType = t
	return nil
}

// Child deep-copies the VPC into a scoped test run rooted at a
// sub-directory of the parent's workspace, remembering its parent so a
// later failure can disable HDR on every ancestor (§3 Kinship).
func (v *VPC) Child(subdirName string) (*VPC, error) {
	clone := *v
	clone.parent = v
	// Crop is a fixed-size array; the struct copy above already
	// duplicates it. Pointer fields need independent backing storage.
	if v.Start != nil {
		start := *v.Start
		clone.Start = &start
	}
	if v.Duration != nil {
		duration := *v.Duration
		clone.Duration = &duration
	}
	if v.Channels != nil {
		channels := *v.Channels
		clone.Channels = &channels
	}

	childWorkspace := filepath.Join(v.Workspace, subdirName)
	if err := clone.SetWorkspace(childWorkspace); err != nil {
		return nil, err
	}
	clone.DoviMetadataFile = filepath.Join(childWorkspace, "dovi_metadata.bin")
	clone.HDR10MetadataFile = filepath.Join(childWorkspace, "HDR10_metadata.json")

	return &clone, nil
}

// DisableParentHDR walks the kinship chain clearing HDREnable, called
// when an HDR step fails after classification (spec §4.8, §7).
func (v *VPC) DisableParentHDR() {
	for node := v; node != nil; node = node.parent {
		if node.Profile != nil {
			node.Profile.HDREnable = false
		}
	}
}

// ValidateInvariants checks the invariants in spec §3/§8 that must hold
// once a VPC reaches a decision. It never mutates the VPC; callers
// decide how to react to a violation.
func (v *VPC) ValidateInvariants() error {
	if v.OutputRes > v.OrigHRes {
		return fmt.Errorf("output_res %d exceeds orig_h_res %d", v.OutputRes, v.OrigHRes)
	}
	if v.Crop[0] < 0 || v.Crop[1] < 0 {
		return fmt.Errorf("crop values must be non-negative, got %v", v.Crop)
	}
	if uint32(v.Crop[0]+v.Crop[1]) >= v.OrigVRes && v.OrigVRes > 0 {
		return fmt.Errorf("crop[0]+crop[1] (%d) must be less than orig_v_res (%d)", v.Crop[0]+v.Crop[1], v.OrigVRes)
	}
	if v.HDRType == "" {
		return fmt.Errorf("HDR type must not be empty")
	}
	return nil
}

// WriteManifest serializes the VPC's probed facts, decisions, and
// classification to a plain-text file. The profile, the test settings,
// and the derived working paths (source, target, HDR metadata files) are
// not written.
func (v *VPC) WriteManifest(path string) error {
	channels := "unset"
	if v.Channels != nil {
		channels = fmt.Sprintf("%d", *v.Channels)
	}
	start := "unset"
	if v.Start != nil {
		start = fmt.Sprintf("%d", *v.Start)
	}
	duration := "unset"
	if v.Duration != nil {
		duration = fmt.Sprintf("%d", *v.Duration)
	}

	text := fmt.Sprintf(`orig_file_path: %s
output_file_name: %s
workspace: %s
orig_h_res: %d
orig_v_res: %d
orig_duration: %g
orig_framerate: %g
is_h265: %t
fs_support: %t
vui: primaries=%s transfer=%s space=%s chroma=%s
side_data: present=%t max_cll=%d max_fall=%d mastering_display=%q
output_res: %d
output_cq: %g
crop: [%d, %d]
channels: %s
start: %s
duration: %s
hdr_type: %s
`,
		v.OrigFilePath, v.OutputFileName, v.Workspace,
		v.OrigHRes, v.OrigVRes, v.OrigDuration, v.OrigFramerate,
		v.IsH265, v.FSSupport,
		v.VUI.ColorPrimaries, v.VUI.ColorTransfer, v.VUI.ColorSpace, v.VUI.ChromaLocation,
		v.SideDTA.Present, v.SideDTA.MaxCLL, v.SideDTA.MaxFALL, v.SideDTA.MasteringDisplay,
		v.OutputRes, v.OutputCQ, v.Crop[0], v.Crop[1],
		channels, start, duration, v.HDRType,
	)

	return os.WriteFile(path, []byte(text), 0o644)
}
