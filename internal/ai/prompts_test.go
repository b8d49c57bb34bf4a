package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImagePromptShapeBySpecificity(t *testing.T) {
	general := buildImagePrompt(SpecificityGeneral)
	assert.Contains(t, general, "8 to 10")
	assert.NotContains(t, general, "educationalContext", "general depth has no educational field")

	high := buildImagePrompt(SpecificityHigh)
	assert.Contains(t, high, "20 to 25")
	assert.Contains(t, high, "educationalContext")
}

func TestPromptsConstrainColorsToPalette(t *testing.T) {
	prompts := []string{
		buildImagePrompt(SpecificityGeneral),
		buildPDFPrompt(SpecificityHigh, "document text"),
		buildVideoPrompt(SpecificityGeneral, ""),
	}
	for _, prompt := range prompts {
		for _, color := range Palette {
			assert.Contains(t, prompt, color)
		}
	}
}

func TestVideoPromptIncludesTranscriptOnlyWhenPresent(t *testing.T) {
	assert.NotContains(t, buildVideoPrompt(SpecificityGeneral, ""), "TRANSCRIPT")
	assert.Contains(t, buildVideoPrompt(SpecificityGeneral, "hello world"), "hello world")
}
