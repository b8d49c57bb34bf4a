package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAssetName(t *testing.T) {
	assert.True(t, ValidateAssetName("holiday.jpg"))
	assert.True(t, ValidateAssetName("Q3 Report (final).pdf"))

	assert.False(t, ValidateAssetName(""))
	assert.False(t, ValidateAssetName("   "))
	assert.False(t, ValidateAssetName("."))
	assert.False(t, ValidateAssetName(".."))
	assert.False(t, ValidateAssetName("a/b.jpg"))
	assert.False(t, ValidateAssetName("a\\b.jpg"))
	assert.False(t, ValidateAssetName("bad\x00name.jpg"))
	assert.False(t, ValidateAssetName(strings.Repeat("x", 300)))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "clean.jpg", SanitizeName("  clean.jpg  "))
	assert.Equal(t, "ab.jpg", SanitizeName("a\x00b\n.jpg"))
}
