// Package videoprobe defines the injectable contract for extracting
// technical metadata from a video file, plus a default implementation
// shelling out to an ffprobe-compatible binary.
package videoprobe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/model"
)

// Prober extracts model.VideoInfo from a video file on disk.
type Prober interface {
	Probe(ctx context.Context, path string) (*model.VideoInfo, error)
}

// hdrTransferFunctions are color_transfer values that indicate HDR content.
var hdrTransferFunctions = map[string]bool{
	"smpte2084":    true, // HDR10
	"arib-std-b67": true, // HLG
}

// ExternalProber shells out to an ffprobe-compatible binary.
type ExternalProber struct {
	binaryPath string
}

// NewExternalProber creates a Prober invoking binaryPath (e.g. "ffprobe").
func NewExternalProber(binaryPath string) *ExternalProber {
	return &ExternalProber{binaryPath: binaryPath}
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type probeStream struct {
	Index         int               `json:"index"`
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	Channels      int               `json:"channels"`
	ColorTransfer string            `json:"color_transfer"`
	Tags          map[string]string `json:"tags"`
	SideDataList  []probeSideData   `json:"side_data_list"`
}

type probeSideData struct {
	Type string `json:"side_data_type"`
}

// dolbyVisionCodecs are the video_codec names ffprobe reports for streams
// carrying a Dolby Vision profile.
var dolbyVisionCodecs = map[string]bool{
	"dvhe": true, "dvh1": true, "dav1.10": true,
}

// Probe runs ffprobe against path and normalizes its output into a VideoInfo.
func (p *ExternalProber) Probe(ctx context.Context, path string) (*model.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, p.binaryPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalServiceUnavailable, "running probe binary", err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "parsing probe output", err)
	}

	vi := &model.VideoInfo{}
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		vi.Duration = d
	}
	if b, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
		vi.Bitrate = b
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			vi.VideoCodec = s.CodecName
			vi.Width = s.Width
			vi.Height = s.Height
			vi.FrameRate = parseFrameRate(s.AvgFrameRate)
			vi.ColorTransfer = s.ColorTransfer
			if hdrTransferFunctions[s.ColorTransfer] {
				vi.IsHDR = true
			}
			if dolbyVisionCodecs[s.CodecName] {
				vi.IsDolbyVision = true
			}
			for _, sd := range s.SideDataList {
				lower := strings.ToLower(sd.Type)
				if strings.Contains(lower, "dolby vision") {
					vi.IsDolbyVision = true
				}
				if strings.Contains(lower, "hdr10+") || strings.Contains(lower, "hdr_dynamic_metadata") {
					vi.IsHDR10Plus = true
				}
			}
			if vi.IsDolbyVision || vi.IsHDR10Plus {
				vi.IsHDR = true
			}
		case "audio":
			vi.AudioCodecs = append(vi.AudioCodecs, s.CodecName)
			vi.AudioChannels = append(vi.AudioChannels, s.Channels)
		case "subtitle":
			lang := s.Tags["language"]
			if lang == "" {
				lang = "und"
			}
			vi.SubtitleLangs = append(vi.SubtitleLangs, lang)
			if lang == "chi" || lang == "zho" || lang == "zh" {
				vi.HasChineseSubs = true
			}
		}
	}

	vi.Source = guessSource(path)
	return vi, nil
}

func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

var sourceTags = []struct {
	tag    string
	source string
}{
	{"bluray", "bluray"}, {"blu-ray", "bluray"}, {"bdrip", "bluray"},
	{"web-dl", "web-dl"}, {"webdl", "web-dl"}, {"webrip", "web-dl"},
	{"hdtv", "hdtv"},
	{"dvdrip", "dvd"}, {"dvd", "dvd"},
}

// guessSource infers a release-source tag from filename conventions, the
// same way media-naming tools in the pack classify source from the file
// or release-group name.
func guessSource(path string) string {
	lower := strings.ToLower(path)
	for _, st := range sourceTags {
		if strings.Contains(lower, st.tag) {
			return st.source
		}
	}
	return "unknown"
}
