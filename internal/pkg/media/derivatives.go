package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const (
	// ThumbnailMaxEdge bounds the longer edge of generated thumbnails.
	ThumbnailMaxEdge = 400
	// ScrubFrameCount is the fixed number of frames in a video scrub strip.
	ScrubFrameCount = 10
	// ScrubFrameMaxWidth bounds each scrub frame.
	ScrubFrameMaxWidth = 320
)

// thumbScale keeps the longer edge at or below ThumbnailMaxEdge without
// upscaling smaller sources.
var thumbScale = fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", ThumbnailMaxEdge, ThumbnailMaxEdge)

// Thumbnail produces a single thumbnail for the given source into dstDir and
// returns its local path. PDFs and audio-only files yield no thumbnail and
// return "" without error - that is a scope decision, not a failure. A
// subprocess error or timeout is returned to the caller, which treats it as a
// recoverable skip.
func (t *Tools) Thumbnail(ctx context.Context, srcPath, mimeType string, durationSeconds float64, dstDir string) (string, error) {
	switch FamilyOf(mimeType) {
	case FamilyImage:
		out := filepath.Join(dstDir, "thumb.jpg")
		_, err := t.runCommand(ctx, t.ffmpegPath,
			"-y", "-i", srcPath,
			"-vf", thumbScale,
			"-frames:v", "1",
			"-q:v", "4",
			out)
		if err != nil {
			return "", fmt.Errorf("image thumbnail: %w", err)
		}
		return out, nil

	case FamilyGIF:
		// Re-encode as an animated GIF so the motion signal survives; a
		// single-frame thumb would hide that the asset is animated.
		out := filepath.Join(dstDir, "thumb.gif")
		_, err := t.runCommand(ctx, t.ffmpegPath,
			"-y", "-i", srcPath,
			"-vf", thumbScale+":flags=lanczos",
			"-loop", "0",
			out)
		if err != nil {
			return "", fmt.Errorf("animated thumbnail: %w", err)
		}
		return out, nil

	case FamilyVideo:
		// Representative frame at 20% of the duration.
		seek := 0.0
		if durationSeconds > 0 {
			seek = durationSeconds * 0.2
		}
		out := filepath.Join(dstDir, "thumb.jpg")
		_, err := t.runCommand(ctx, t.ffmpegPath,
			"-y",
			"-ss", formatSeconds(seek),
			"-i", srcPath,
			"-frames:v", "1",
			"-vf", fmt.Sprintf("scale=%d:-2", ThumbnailMaxEdge),
			"-q:v", "4",
			out)
		if err != nil {
			return "", fmt.Errorf("video thumbnail: %w", err)
		}
		return out, nil

	default:
		// PDF, audio, everything else: no raster thumbnail.
		return "", nil
	}
}

// ScrubStrip extracts exactly ScrubFrameCount frames evenly spaced across the
// video duration, named with an ordered zero-padded suffix so the client can
// map a scrub position to a frame index. Very short videos may yield
// duplicate frames; that is acceptable.
func (t *Tools) ScrubStrip(ctx context.Context, srcPath string, durationSeconds float64, dstDir string) ([]string, error) {
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("scrub strip requires a positive duration")
	}

	paths := make([]string, 0, ScrubFrameCount)
	for i := 0; i < ScrubFrameCount; i++ {
		ts := durationSeconds * float64(i) / float64(ScrubFrameCount)
		out := filepath.Join(dstDir, fmt.Sprintf("frame_%02d.jpg", i))
		_, err := t.runCommand(ctx, t.ffmpegPath,
			"-y",
			"-ss", formatSeconds(ts),
			"-i", srcPath,
			"-frames:v", "1",
			"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", ScrubFrameMaxWidth),
			"-q:v", "5",
			out)
		if err != nil {
			return nil, fmt.Errorf("scrub frame %d: %w", i, err)
		}
		if _, err := os.Stat(out); err != nil {
			return nil, fmt.Errorf("scrub frame %d not created: %w", i, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

// Keyframes extracts a small set of representative frames for AI analysis at
// duration-proportional timestamps. Longer videos yield more frames.
func (t *Tools) Keyframes(ctx context.Context, srcPath string, durationSeconds float64, dstDir string) ([]string, error) {
	count := 2
	if durationSeconds > 60 {
		count = 3
	}

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		// Midpoint sampling avoids black lead-in and credits frames.
		ts := durationSeconds * (float64(i) + 0.5) / float64(count)
		out := filepath.Join(dstDir, fmt.Sprintf("keyframe_%02d.jpg", i))
		_, err := t.runCommand(ctx, t.ffmpegPath,
			"-y",
			"-ss", formatSeconds(ts),
			"-i", srcPath,
			"-frames:v", "1",
			"-vf", "scale='min(640,iw)':-2",
			"-q:v", "4",
			out)
		if err != nil {
			return nil, fmt.Errorf("keyframe %d: %w", i, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

// ExtractAudio transcodes the source's audio track to 16kHz mono WAV for
// transcription. Returns an error if the source has no usable audio.
func (t *Tools) ExtractAudio(ctx context.Context, srcPath, dstDir string) (string, error) {
	out := filepath.Join(dstDir, "audio.wav")
	_, err := t.runCommand(ctx, t.ffmpegPath,
		"-y", "-i", srcPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		out)
	if err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	return out, nil
}

// HasAudioStream reports whether the file carries an audio track. Silent
// animations skip transcription entirely.
func (t *Tools) HasAudioStream(ctx context.Context, srcPath string) bool {
	out, err := t.runCommand(ctx, t.ffprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1",
		srcPath)
	if err != nil {
		return false
	}
	return len(out) > 0
}

// FrameIndexForPercent maps a horizontal scrub position in [0,1] to a frame
// index, clamped to the strip bounds.
func FrameIndexForPercent(p float64) int {
	idx := int(math.Floor(p * ScrubFrameCount))
	if idx < 0 {
		return 0
	}
	if idx > ScrubFrameCount-1 {
		return ScrubFrameCount - 1
	}
	return idx
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
