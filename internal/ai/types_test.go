package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSpecificity(t *testing.T) {
	assert.Equal(t, SpecificityHigh, ParseSpecificity("high"))
	assert.Equal(t, SpecificityHigh, ParseSpecificity(" HIGH "))
	assert.Equal(t, SpecificityGeneral, ParseSpecificity("general"))
	assert.Equal(t, SpecificityGeneral, ParseSpecificity(""))
	assert.Equal(t, SpecificityGeneral, ParseSpecificity("medium"))
}

func TestClampColors(t *testing.T) {
	assert.Empty(t, ClampColors(nil))
	assert.Empty(t, ClampColors([]string{"mauve", "taupe"}))
	assert.Equal(t, []string{"Blue"}, ClampColors([]string{"blue"}))
	assert.Equal(t,
		[]string{"Red", "Green", "Blue"},
		ClampColors([]string{"red", "green", "blue", "yellow"}),
		"caps at three palette colors")
}

func TestNormalizeTags(t *testing.T) {
	assert.Empty(t, NormalizeTags([]string{"", "  "}))
	assert.Equal(t,
		[]string{"dog", "park", "sunset"},
		NormalizeTags([]string{"Dog", " dog ", "Park", "park", "SUNSET"}))
}

func TestAnalyzeOptionsTemperature(t *testing.T) {
	// An explicit zero means deterministic sampling, not "use the default".
	assert.Equal(t, 0.0, AnalyzeOptions{Creativity: 0}.temperature())
	assert.Equal(t, 0.7, AnalyzeOptions{Creativity: 0.7}.temperature())
	assert.Equal(t, 1.0, AnalyzeOptions{Creativity: 3}.temperature())
	assert.Equal(t, 0.0, AnalyzeOptions{Creativity: -0.5}.temperature())
}

func TestBuildEmbeddingText(t *testing.T) {
	assert.Empty(t, BuildEmbeddingText(&Enrichment{}))

	enr := &Enrichment{
		Tags:        []string{"dog", "park"},
		Description: "A dog in a park.",
		Topic:       "animals",
		Transcript:  "come here boy",
	}
	text := BuildEmbeddingText(enr)
	assert.Contains(t, text, "A dog in a park.")
	assert.Contains(t, text, "Tags: dog, park")
	assert.Contains(t, text, "Topic: animals")
	assert.Contains(t, text, "Transcript: come here boy")
}
