package ai

import "strings"

// Specificity controls prompt depth and expected tag volume.
type Specificity string

const (
	SpecificityGeneral Specificity = "general"
	SpecificityHigh    Specificity = "high"
)

// ParseSpecificity normalizes user input, defaulting to general.
func ParseSpecificity(s string) Specificity {
	if strings.EqualFold(strings.TrimSpace(s), string(SpecificityHigh)) {
		return SpecificityHigh
	}
	return SpecificityGeneral
}

// DefaultCreativity is the sampling temperature used when the caller supplies
// none. Higher values intentionally loosen the tag sets.
const DefaultCreativity = 0.3

// Palette is the fixed color vocabulary enrichment may use. Keeping it finite
// keeps the downstream color filter a closed facet.
var Palette = []string{
	"Red", "Orange", "Yellow", "Green", "Teal", "Blue",
	"Purple", "Pink", "Black", "White", "Gray",
}

// Enrichment is the structured document produced by analysis. All fields are
// optional for consumers; additive changes are tolerated.
type Enrichment struct {
	Tags               []string `json:"tags"`
	Description        string   `json:"description"`
	Colors             []string `json:"colors"`
	EducationalContext string   `json:"educationalContext,omitempty"`
	Topic              string   `json:"topic,omitempty"`
	Transcript         string   `json:"transcript,omitempty"`
	AssetType          string   `json:"assetType"`
}

// ClampColors filters values to the palette (case-insensitive match,
// canonical casing out) and caps the list at three entries.
func ClampColors(colors []string) []string {
	out := make([]string, 0, 3)
	for _, c := range colors {
		for _, p := range Palette {
			if strings.EqualFold(strings.TrimSpace(c), p) {
				out = append(out, p)
				break
			}
		}
		if len(out) == 3 {
			break
		}
	}
	return out
}

// NormalizeTags lowercases, trims, and deduplicates while preserving order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
