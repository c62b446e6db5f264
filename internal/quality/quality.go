// Package quality scores a video file's technical desirability so the
// Duplicate Engine and cleanup tooling can pick which copy in a group of
// duplicates to keep.
package quality

import (
	"strings"

	"github.com/gwlsn/mediavault/internal/model"
)

// Weights controls how many points each tier or flag contributes to a
// MediaFile's quality score. The defaults sum to 100 across the
// highest tier of every factor.
type Weights struct {
	Resolution2160p float64
	Resolution1080p float64
	Resolution720p  float64
	ResolutionSD    float64

	HDRDolbyVision float64
	HDRHDR10Plus   float64
	HDRBase        float64

	BitrateHigh   float64
	BitrateMedium float64
	BitrateLow    float64

	ChineseSubtitle float64

	SourceBluRay float64
	SourceWebDL  float64
	SourceHDTV   float64

	AudioSurround float64
}

// DefaultWeights mirrors the documented scoring table: resolution tier
// dominates, followed by HDR tier, bitrate bucket, and source tag, with
// smaller bonuses for Chinese subtitles and surround audio.
func DefaultWeights() Weights {
	return Weights{
		Resolution2160p: 40,
		Resolution1080p: 30,
		Resolution720p:  18,
		ResolutionSD:    8,

		HDRDolbyVision: 15,
		HDRHDR10Plus:   10,
		HDRBase:        7,

		BitrateHigh:   15,
		BitrateMedium: 8,
		BitrateLow:    2,

		ChineseSubtitle: 10,

		SourceBluRay: 15,
		SourceWebDL:  10,
		SourceHDTV:   5,

		AudioSurround: 5,
	}
}

// bitrateTier names the high/medium/low bitrate bucket a stream falls
// into, evaluated relative to its resolution tier rather than on an
// absolute scale, so a 720p stream isn't penalized for not reaching
// 4K bitrates.
type bitrateTier int

const (
	bitrateNone bitrateTier = iota
	bitrateLow
	bitrateMedium
	bitrateHigh
)

// bitrateThresholds holds the (medium, high) bits/sec boundaries for one
// resolution tier; a stream below the medium boundary is "low" as long
// as it carries any bitrate at all.
type bitrateThresholds struct {
	medium, high int64
}

var thresholdsByTier = map[string]bitrateThresholds{
	"2160p": {medium: 12_000_000, high: 25_000_000},
	"1080p": {medium: 4_000_000, high: 8_000_000},
	"720p":  {medium: 2_000_000, high: 4_000_000},
	"sd":    {medium: 1_000_000, high: 2_000_000},
}

func resolutionTier(width, height int) string {
	switch {
	case height >= 2160 || width >= 3840:
		return "2160p"
	case height >= 1080 || width >= 1920:
		return "1080p"
	case height >= 720 || width >= 1280:
		return "720p"
	default:
		return "sd"
	}
}

func bitrateBucket(tier string, bitrate int64) bitrateTier {
	if bitrate <= 0 {
		return bitrateNone
	}
	t := thresholdsByTier[tier]
	switch {
	case bitrate >= t.high:
		return bitrateHigh
	case bitrate >= t.medium:
		return bitrateMedium
	default:
		return bitrateLow
	}
}

// Score computes a 0..100 quality score for vi using w, per the
// documented tiered weighting: resolution tier, HDR tier, bitrate
// bucket (relative to resolution), Chinese-subtitle presence, source
// tag, and high channel-count audio.
func Score(vi *model.VideoInfo, w Weights) float64 {
	if vi == nil {
		return 0
	}

	tier := resolutionTier(vi.Width, vi.Height)
	var resScore float64
	switch tier {
	case "2160p":
		resScore = w.Resolution2160p
	case "1080p":
		resScore = w.Resolution1080p
	case "720p":
		resScore = w.Resolution720p
	default:
		resScore = w.ResolutionSD
	}

	var hdrScore float64
	switch {
	case vi.IsDolbyVision:
		hdrScore = w.HDRDolbyVision
	case vi.IsHDR10Plus:
		hdrScore = w.HDRHDR10Plus
	case vi.IsHDR:
		hdrScore = w.HDRBase
	}

	var bitrateScore float64
	switch bitrateBucket(tier, vi.Bitrate) {
	case bitrateHigh:
		bitrateScore = w.BitrateHigh
	case bitrateMedium:
		bitrateScore = w.BitrateMedium
	case bitrateLow:
		bitrateScore = w.BitrateLow
	}

	var subtitleScore float64
	if vi.HasChineseSubs {
		subtitleScore = w.ChineseSubtitle
	}

	var sourceScore float64
	switch strings.ToLower(vi.Source) {
	case "bluray":
		sourceScore = w.SourceBluRay
	case "web-dl":
		sourceScore = w.SourceWebDL
	case "hdtv":
		sourceScore = w.SourceHDTV
	}

	var audioScore float64
	for _, c := range vi.AudioChannels {
		if c >= 6 {
			audioScore = w.AudioSurround
			break
		}
	}

	total := resScore + hdrScore + bitrateScore + subtitleScore + sourceScore + audioScore
	if total > 100 {
		total = 100
	}
	return total
}
