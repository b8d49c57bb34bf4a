package ai

import (
	"fmt"
	"strings"
)

const analysisSystemPrompt = `You are a digital asset librarian. You analyze media and return catalog
metadata as JSON. Output ONLY valid JSON. Do not include any preamble,
explanation, or markdown fences. Start your response with { and end with }.`

const generalShape = `{
  "tags": [8 to 10 short lowercase tags],
  "description": "one or two sentences describing the content",
  "colors": [1 to 3 dominant colors]
}`

const highShape = `{
  "tags": [20 to 25 short lowercase tags covering subjects, style, mood, setting, and technique],
  "description": "a detailed paragraph describing the content, composition, and context",
  "colors": [1 to 3 dominant colors],
  "educationalContext": "how this asset could be used in teaching or training material"
}`

func shapeFor(spec Specificity) string {
	if spec == SpecificityHigh {
		return highShape
	}
	return generalShape
}

func paletteRule() string {
	return fmt.Sprintf(`Every value in "colors" must be exactly one of: %s. Never invent other color names.`,
		strings.Join(Palette, ", "))
}

func buildImagePrompt(spec Specificity) string {
	return fmt.Sprintf(`Analyze the attached image and return metadata with this shape:

%s

Rules:
- Tags are lowercase, 1-3 words each, no duplicates.
- %s
- The JSON must parse without errors; no trailing commas, no extra keys, no text outside the object.`,
		shapeFor(spec), paletteRule())
}

func buildPDFPrompt(spec Specificity, text string) string {
	return fmt.Sprintf(`The following is text extracted from an uploaded PDF document. Analyze it and
return metadata with this shape:

%s

Additionally include a "topic" field: a 2-5 word subject line for the document.

Rules:
- Tags are lowercase, 1-3 words each, no duplicates.
- %s
- Base everything strictly on the provided text. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no text outside the object.

DOCUMENT TEXT:
%s`,
		shapeFor(spec), paletteRule(), text)
}

func buildVideoPrompt(spec Specificity, transcript string) string {
	prompt := fmt.Sprintf(`The attached images are frames sampled from a single video (or animation),
in chronological order. Treat them as ONE asset, not separate images, and
return ONE combined metadata object with this shape:

%s

Rules:
- Tags are lowercase, 1-3 words each, no duplicates.
- %s
- Return a single object describing the whole video. Never return per-frame results.
- The JSON must parse without errors; no trailing commas, no text outside the object.`,
		shapeFor(spec), paletteRule())

	if transcript != "" {
		prompt += fmt.Sprintf(`

AUDIO TRANSCRIPT EXCERPT:
%s`, transcript)
	}
	return prompt
}

const expansionSystemPrompt = `You expand search terms for a media library. Output ONLY a JSON array of
strings, nothing else.`

func buildExpansionPrompt(term string) string {
	return fmt.Sprintf(`Give 3 to 5 synonyms or closely related terms for the search term %q as used
in a digital media library (photos, videos, audio, documents). Lowercase,
1-3 words each. Respond with a JSON array of strings only.`, term)
}
