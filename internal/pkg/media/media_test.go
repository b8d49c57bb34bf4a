package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		mime string
		want MediaFamily
	}{
		{"image/jpeg", FamilyImage},
		{"image/png", FamilyImage},
		{"image/webp", FamilyImage},
		{"image/gif", FamilyGIF},
		{"IMAGE/GIF", FamilyGIF},
		{"video/mp4", FamilyVideo},
		{"video/webm", FamilyVideo},
		{"audio/mpeg", FamilyAudio},
		{"audio/wav", FamilyAudio},
		{"application/pdf", FamilyPDF},
		{"application/zip", FamilyOther},
		{"text/plain", FamilyOther},
		{"", FamilyOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FamilyOf(tt.mime), "mime %q", tt.mime)
	}
}

func TestFrameIndexForPercent(t *testing.T) {
	assert.Equal(t, 0, FrameIndexForPercent(0))
	assert.Equal(t, 0, FrameIndexForPercent(0.05))
	assert.Equal(t, 4, FrameIndexForPercent(0.42))
	assert.Equal(t, 9, FrameIndexForPercent(0.99))
	assert.Equal(t, 9, FrameIndexForPercent(1.0), "right edge clamps to last frame")
	assert.Equal(t, 0, FrameIndexForPercent(-0.3))
	assert.Equal(t, 9, FrameIndexForPercent(2.5))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0.000", formatSeconds(0))
	assert.Equal(t, "12.340", formatSeconds(12.34))
	assert.Equal(t, "1.500", formatSeconds(1.4999999999))
}

func TestThumbScaleFilter(t *testing.T) {
	assert.Equal(t,
		"scale='min(400,iw)':'min(400,ih)':force_original_aspect_ratio=decrease",
		thumbScale)
}
