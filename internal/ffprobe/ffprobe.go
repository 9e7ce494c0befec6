// Package ffprobe provides functions for extracting media information using ffprobe.
package ffprobe

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// MediaInfo contains basic media information.
type MediaInfo struct {
	Duration    float64
	Width       int64
	Height      int64
	TotalFrames uint64
}

// VideoProperties contains video stream properties.
type VideoProperties struct {
	Width        uint32
	Height       uint32
	DurationSecs float64
	HDRInfo      HDRInfo
}

// HDRInfo contains HDR-related information.
type HDRInfo struct {
	IsHDR                   bool
	ColourPrimaries         string
	TransferCharacteristics string
	MatrixCoefficients      string
	ChromaLocation          string
	BitDepth                *uint8
}

// StaticHDRMetadata carries the mastering-display and content-light-level
// side data a source may carry alongside HDR10 color metadata. An empty
// MasteringDisplay with Present == false means the stream carried no such
// side data at all. The HDR Router (C10) does not read these values; its
// classification comes from the dovi_tool/hdr10plus_tool extraction runs.
type StaticHDRMetadata struct {
	Present          bool
	MaxCLL           uint32
	MaxFALL          uint32
	MasteringDisplay string
}

// AudioStreamInfo contains information about an audio stream.
type AudioStreamInfo struct {
	Channels    uint32
	CodecName   string
	Profile     string
	Index       int
	IsSpatial   bool // Always false (spatial support removed)
	Disposition StreamDisposition
}

// StreamDisposition contains stream disposition flags.
type StreamDisposition struct {
	Default         int `json:"default"`
	Dub             int `json:"dub"`
	Original        int `json:"original"`
	Comment         int `json:"comment"`
	Lyrics          int `json:"lyrics"`
	Karaoke         int `json:"karaoke"`
	Forced          int `json:"forced"`
	HearingImpaired int `json:"hearing_impaired"`
	VisualImpaired  int `json:"visual_impaired"`
	CleanEffects    int `json:"clean_effects"`
	AttachedPic     int `json:"attached_pic"`
	TimedThumbnails int `json:"timed_thumbnails"`
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeSideData struct {
	SideDataType     string  `json:"side_data_type"`
	MaxContent       uint32  `json:"max_content"`
	MaxAverage       uint32  `json:"max_average"`
	MinLuminance     float64 `json:"min_luminance"`
	MaxLuminance     float64 `json:"max_luminance"`
	RedX             float64 `json:"red_x"`
	RedY             float64 `json:"red_y"`
	GreenX           float64 `json:"green_x"`
	GreenY           float64 `json:"green_y"`
	BlueX            float64 `json:"blue_x"`
	BlueY            float64 `json:"blue_y"`
	WhitePointX      float64 `json:"white_point_x"`
	WhitePointY      float64 `json:"white_point_y"`
}

type ffprobeStream struct {
	CodecType        string            `json:"codec_type"`
	CodecName        string            `json:"codec_name"`
	Profile          string            `json:"profile"`
	Width            int64             `json:"width"`
	Height           int64             `json:"height"`
	Channels         int               `json:"channels"`
	NbFrames         string            `json:"nb_frames"`
	PixFmt           string            `json:"pix_fmt"`
	ColorPrimaries   string            `json:"color_primaries"`
	ColorTransfer    string            `json:"color_transfer"`
	ColorSpace       string            `json:"color_space"`
	ChromaLocation   string            `json:"chroma_location"`
	BitsPerRawSample string            `json:"bits_per_raw_sample"`
	RFrameRate       string            `json:"r_frame_rate"`
	AvgFrameRate     string            `json:"avg_frame_rate"`
	Disposition      StreamDisposition `json:"disposition"`
	SideDataList     []ffprobeSideData `json:"side_data_list"`
}

// parseFFprobeOutput decodes raw ffprobe JSON into the internal probe
// representation. Split out from runFFprobe so fixtures can be replayed
// without invoking the ffprobe binary.
func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &result, nil
}

// runFFprobe executes ffprobe and returns the parsed output.
func runFFprobe(inputPath string) (*ffprobeOutput, error) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// findVideoStream returns the first video stream, or nil if there is none.
func findVideoStream(probe *ffprobeOutput) *ffprobeStream {
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" {
			return &probe.Streams[i]
		}
	}
	return nil
}

// extractMediaInfo builds a MediaInfo from a parsed probe.
func extractMediaInfo(probe *ffprobeOutput) *MediaInfo {
	info := &MediaInfo{}

	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}

	if video := findVideoStream(probe); video != nil {
		info.Width = video.Width
		info.Height = video.Height
		if video.NbFrames != "" {
			if frames, err := strconv.ParseUint(video.NbFrames, 10, 64); err == nil {
				info.TotalFrames = frames
			}
		}
	}

	return info
}

// GetMediaInfo returns basic media information for a file.
func GetMediaInfo(inputPath string) (*MediaInfo, error) {
	probe, err := runFFprobe(inputPath)
	if err != nil {
		return nil, err
	}
	return extractMediaInfo(probe), nil
}

// extractVideoProperties builds VideoProperties from a parsed probe.
func extractVideoProperties(probe *ffprobeOutput, inputPath string) (*VideoProperties, error) {
	var durationSecs float64
	if probe.Format.Duration != "" {
		d, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration")
		}
		durationSecs = d
	}

	videoStream := findVideoStream(probe)
	if videoStream == nil {
		return nil, fmt.Errorf("no video stream found in %s", inputPath)
	}

	if videoStream.Width <= 0 || videoStream.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions in %s: %dx%d", inputPath, videoStream.Width, videoStream.Height)
	}

	var bitDepth *uint8
	if videoStream.BitsPerRawSample != "" {
		if bd, err := strconv.ParseUint(videoStream.BitsPerRawSample, 10, 8); err == nil {
			bdVal := uint8(bd)
			bitDepth = &bdVal
		}
	}

	hdrInfo := HDRInfo{
		ColourPrimaries:         videoStream.ColorPrimaries,
		TransferCharacteristics: videoStream.ColorTransfer,
		MatrixCoefficients:      videoStream.ColorSpace,
		ChromaLocation:          videoStream.ChromaLocation,
		BitDepth:                bitDepth,
		IsHDR:                   detectHDR(videoStream.ColorPrimaries, videoStream.ColorTransfer, videoStream.ColorSpace),
	}

	return &VideoProperties{
		Width:        uint32(videoStream.Width),
		Height:       uint32(videoStream.Height),
		DurationSecs: durationSecs,
		HDRInfo:      hdrInfo,
	}, nil
}

// GetVideoProperties returns video properties including HDR info.
func GetVideoProperties(inputPath string) (*VideoProperties, error) {
	probe, err := runFFprobe(inputPath)
	if err != nil {
		return nil, err
	}
	return extractVideoProperties(probe, inputPath)
}

// extractAudioChannels builds the channel-count list from a parsed probe.
func extractAudioChannels(probe *ffprobeOutput) []uint32 {
	var channels []uint32
	for _, stream := range probe.Streams {
		if stream.CodecType == "audio" && stream.Channels > 0 {
			channels = append(channels, uint32(stream.Channels))
		}
	}
	return channels
}

// GetAudioChannels returns the channel count for each audio stream.
func GetAudioChannels(inputPath string) ([]uint32, error) {
	probe, err := runFFprobe(inputPath)
	if err != nil {
		return nil, err
	}
	return extractAudioChannels(probe), nil
}

// extractAudioStreamInfo builds detailed audio stream info from a parsed probe.
func extractAudioStreamInfo(probe *ffprobeOutput) []AudioStreamInfo {
	var streams []AudioStreamInfo
	audioIndex := 0

	for _, stream := range probe.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		if stream.Channels <= 0 {
			continue
		}

		streams = append(streams, AudioStreamInfo{
			Channels:    uint32(stream.Channels),
			CodecName:   stream.CodecName,
			Profile:     stream.Profile,
			Index:       audioIndex,
			IsSpatial:   false,
			Disposition: stream.Disposition,
		})

		audioIndex++
	}

	return streams
}

// GetAudioStreamInfo returns detailed audio stream information.
func GetAudioStreamInfo(inputPath string) ([]AudioStreamInfo, error) {
	probe, err := runFFprobe(inputPath)
	if err != nil {
		return nil, err
	}
	return extractAudioStreamInfo(probe), nil
}

// extractStaticHDRMetadata pulls mastering-display and CLL side data off
// the video stream, if present.
func extractStaticHDRMetadata(probe *ffprobeOutput) StaticHDRMetadata {
	videoStream := findVideoStream(probe)
	if videoStream == nil {
		return StaticHDRMetadata{}
	}

	var meta StaticHDRMetadata
	for _, sd := range videoStream.SideDataList {
		switch sd.SideDataType {
		case "Content light level metadata":
			meta.Present = true
			meta.MaxCLL = sd.MaxContent
			meta.MaxFALL = sd.MaxAverage
		case "Mastering display metadata":
			meta.Present = true
			meta.MasteringDisplay = fmt.Sprintf(
				"G(%.4f,%.4f)B(%.4f,%.4f)R(%.4f,%.4f)WP(%.4f,%.4f)L(%.4f,%.4f)",
				sd.GreenX, sd.GreenY, sd.BlueX, sd.BlueY, sd.RedX, sd.RedY,
				sd.WhitePointX, sd.WhitePointY, sd.MaxLuminance, sd.MinLuminance,
			)
		}
	}

	return meta
}

// GetStaticHDRMetadata returns the mastering-display/CLL side data for the
// file's video stream.
func GetStaticHDRMetadata(inputPath string) (StaticHDRMetadata, error) {
	probe, err := runFFprobe(inputPath)
	if err != nil {
		return StaticHDRMetadata{}, err
	}
	return extractStaticHDRMetadata(probe), nil
}

// detectHDR determines if content is HDR based on color metadata.
func detectHDR(primaries, transfer, matrix string) bool {
	// Check for HDR primaries (BT.2020)
	if containsCI(primaries, "bt2020") || containsCI(primaries, "bt.2020") || containsCI(primaries, "bt2100") {
		return true
	}

	// Check for HDR transfer characteristics (PQ, HLG)
	if containsCI(transfer, "pq") || containsCI(transfer, "smpte2084") || containsCI(transfer, "hlg") || containsCI(transfer, "arib-std-b67") {
		return true
	}

	// Check for HDR matrix coefficients
	if containsCI(matrix, "bt2020") || containsCI(matrix, "bt.2020") {
		return true
	}

	return false
}

// containsCI performs a case-insensitive substring check.
func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// GetVideoCodecName returns the video codec name for a file.
func GetVideoCodecName(inputPath string) (string, error) {
	probe, err := runFFprobe(inputPath)
	if err != nil {
		return "", err
	}

	if video := findVideoStream(probe); video != nil {
		return video.CodecName, nil
	}

	return "", fmt.Errorf("no video stream found in %s", inputPath)
}
