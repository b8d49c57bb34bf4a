package media

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// ProbeResult holds the intrinsic properties of a media file. Fields are zero
// for types where they do not apply.
type ProbeResult struct {
	DurationSeconds float64
	Width           int
	Height          int
}

// MediaFamily is the coarse type dispatch used by the pipeline.
type MediaFamily string

const (
	FamilyImage MediaFamily = "image"
	FamilyGIF   MediaFamily = "gif"
	FamilyVideo MediaFamily = "video"
	FamilyAudio MediaFamily = "audio"
	FamilyPDF   MediaFamily = "pdf"
	FamilyOther MediaFamily = "other"
)

// FamilyOf maps a MIME type to its media family.
func FamilyOf(mimeType string) MediaFamily {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mt == "image/gif":
		return FamilyGIF
	case strings.HasPrefix(mt, "image/"):
		return FamilyImage
	case strings.HasPrefix(mt, "video/"):
		return FamilyVideo
	case strings.HasPrefix(mt, "audio/"):
		return FamilyAudio
	case mt == "application/pdf":
		return FamilyPDF
	default:
		return FamilyOther
	}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe determines duration (audio/video) and dimensions (image/video) for a
// local file. For MIME types outside those families it returns an empty
// result without error. A probe failure also yields an empty result; the
// returned error exists only so the caller can log it - probing is never
// fatal to ingestion.
func (t *Tools) Probe(ctx context.Context, localPath, mimeType string) (ProbeResult, error) {
	family := FamilyOf(mimeType)
	if family == FamilyPDF || family == FamilyOther {
		return ProbeResult{}, nil
	}

	out, err := t.runCommand(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,width,height",
		"-of", "json",
		localPath)
	if err != nil {
		return ProbeResult{}, err
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return ProbeResult{}, err
	}

	var result ProbeResult
	if d, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64); err == nil {
		result.DurationSeconds = d
	}
	for _, s := range parsed.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			result.Width = s.Width
			result.Height = s.Height
			break
		}
	}
	// Still images report no meaningful container duration. Animated GIFs do,
	// and keyframe extraction relies on it, so only plain images are zeroed.
	if family == FamilyImage {
		result.DurationSeconds = 0
	}
	return result, nil
}
