package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/tmc/langchaingo/embeddings"
)

// Embedder generates enrichment vectors. Embedding requests are idempotent
// reads, so unlike generation calls they get a small bounded retry budget.
type Embedder struct {
	embedder   embeddings.Embedder
	maxRetries int
	log        *logger.Logger
}

func NewEmbedder(embedder embeddings.Embedder, maxRetries int, log *logger.Logger) *Embedder {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Embedder{
		embedder:   embedder,
		maxRetries: maxRetries,
		log:        log.With("component", "ai-embedder"),
	}
}

// EmbedText generates a vector for a single text blob.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
		if err != nil {
			lastErr = err
			e.log.Warn("embedding attempt failed", "attempt", attempt+1, "err", err)
			continue
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("embedder returned no vectors")
		}
		return vectors[0], nil
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

// BuildEmbeddingText serializes the searchable subset of an enrichment
// document into one text blob for embedding.
func BuildEmbeddingText(enr *Enrichment) string {
	var b strings.Builder
	if enr.Description != "" {
		b.WriteString(enr.Description)
	}
	if len(enr.Tags) > 0 {
		b.WriteString("\nTags: ")
		b.WriteString(strings.Join(enr.Tags, ", "))
	}
	if enr.Topic != "" {
		b.WriteString("\nTopic: ")
		b.WriteString(enr.Topic)
	}
	if enr.EducationalContext != "" {
		b.WriteString("\n")
		b.WriteString(enr.EducationalContext)
	}
	if enr.Transcript != "" {
		b.WriteString("\nTranscript: ")
		b.WriteString(excerpt(enr.Transcript, 1000))
	}
	return strings.TrimSpace(b.String())
}
