package media

import (
	"context"
	"fmt"
	"strings"
)

// PDFTextLimit caps extracted PDF text handed to enrichment.
const PDFTextLimit = 12000

// ExtractPDFText pulls plain text from a PDF via pdftotext, truncated to
// PDFTextLimit characters.
func (t *Tools) ExtractPDFText(ctx context.Context, srcPath string) (string, error) {
	out, err := t.runCommand(ctx, t.pdfToTextPath, "-q", srcPath, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	text := strings.TrimSpace(out)
	if len(text) > PDFTextLimit {
		text = text[:PDFTextLimit]
	}
	return text, nil
}
