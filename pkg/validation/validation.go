package validation

import (
	"strings"
	"unicode"
)

const maxAssetNameLength = 255

// ValidateAssetName reports whether a user-supplied display name is safe to
// store: non-empty, bounded, no path separators or control characters.
func ValidateAssetName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxAssetNameLength {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// SanitizeName trims whitespace and strips null bytes and control characters
// from free-text input before it reaches the database.
func SanitizeName(input string) string {
	input = strings.TrimSpace(input)
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
