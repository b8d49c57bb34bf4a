package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawEnrichment tolerates the shapes models actually return, including the
// nested per-frame form some models produce for multi-image requests.
type rawEnrichment struct {
	Tags               []string   `json:"tags"`
	Description        string     `json:"description"`
	Colors             []string   `json:"colors"`
	EducationalContext string     `json:"educationalContext"`
	Topic              string     `json:"topic"`
	Frames             []rawFrame `json:"frames"`
}

type rawFrame struct {
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Colors      []string `json:"colors"`
}

// stripFences removes markdown code fences models wrap around JSON despite
// instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseEnrichment decodes a model response into a normalized Enrichment:
// fences stripped, common JSON damage repaired, per-frame structures
// flattened into one document, colors clamped to the palette.
func parseEnrichment(response string) (*Enrichment, error) {
	text := repairJSON(stripFences(response))

	var raw rawEnrichment
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse enrichment response: %w", err)
	}

	if len(raw.Frames) > 0 {
		flattenFrames(&raw)
	}

	return &Enrichment{
		Tags:               NormalizeTags(raw.Tags),
		Description:        strings.TrimSpace(raw.Description),
		Colors:             ClampColors(raw.Colors),
		EducationalContext: strings.TrimSpace(raw.EducationalContext),
		Topic:              strings.TrimSpace(raw.Topic),
	}, nil
}

// flattenFrames merges per-frame results into the top-level fields. Persisting
// a per-frame structure is never allowed.
func flattenFrames(raw *rawEnrichment) {
	for _, f := range raw.Frames {
		raw.Tags = append(raw.Tags, f.Tags...)
		raw.Colors = append(raw.Colors, f.Colors...)
		if d := strings.TrimSpace(f.Description); d != "" {
			if raw.Description != "" {
				raw.Description += " "
			}
			raw.Description += d
		}
	}
	raw.Frames = nil
}

// parseExpansion decodes a query-expansion response into a term list.
func parseExpansion(response string) ([]string, error) {
	text := stripFences(response)

	var terms []string
	if err := json.Unmarshal([]byte(text), &terms); err != nil {
		// Some models wrap the array in an object.
		var wrapped struct {
			Terms    []string `json:"terms"`
			Synonyms []string `json:"synonyms"`
		}
		if err2 := json.Unmarshal([]byte(text), &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse expansion response: %w", err)
		}
		terms = append(wrapped.Terms, wrapped.Synonyms...)
	}
	return NormalizeTags(terms), nil
}
