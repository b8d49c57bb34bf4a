package ai

import (
	"context"
	"fmt"

	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// Expander asks the model for synonyms of a search term to broaden keyword
// recall. Results are meant to be cached by the caller.
type Expander struct {
	client llms.Model
	log    *logger.Logger
}

func NewExpander(client llms.Model, log *logger.Logger) *Expander {
	return &Expander{
		client: client,
		log:    log.With("component", "ai-expander"),
	}
}

// ExpandTerm returns 3-5 related terms for the given search term.
func (e *Expander) ExpandTerm(ctx context.Context, term string) ([]string, error) {
	content := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(expansionSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildExpansionPrompt(term))},
		},
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		return nil, fmt.Errorf("expansion call: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	terms, err := parseExpansion(response.Choices[0].Content)
	if err != nil {
		e.log.Warn("malformed expansion response", "term", term, "err", err)
		return nil, err
	}
	if len(terms) > 5 {
		terms = terms[:5]
	}
	return terms, nil
}
