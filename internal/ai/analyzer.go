package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// AnalyzeOptions carries the user-facing enrichment knobs.
type AnalyzeOptions struct {
	// Creativity is the sampling temperature in [0,1]. Higher values
	// intentionally produce looser tag sets.
	Creativity float64
	// Specificity selects prompt depth: general (8-10 tags) or high (20-25
	// tags plus educational context).
	Specificity Specificity
}

// temperature clamps Creativity to [0,1]. Zero is a legitimate choice for
// fully deterministic tagging; defaulting happens where the request is
// parsed, not here.
func (o AnalyzeOptions) temperature() float64 {
	if o.Creativity < 0 {
		return 0
	}
	if o.Creativity > 1 {
		return 1
	}
	return o.Creativity
}

// Analyzer produces enrichment documents from media via a multimodal model.
type Analyzer struct {
	client llms.Model
	log    *logger.Logger
}

func NewAnalyzer(client llms.Model, log *logger.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		log:    log.With("component", "ai-analyzer"),
	}
}

// AnalyzeImage runs one multimodal request over a single image file.
func (a *Analyzer) AnalyzeImage(ctx context.Context, imagePath, mimeType string, opts AnalyzeOptions) (*Enrichment, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	content := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(analysisSystemPrompt)},
		},
		{
			Role: schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildImagePrompt(opts.Specificity)),
				llms.BinaryPart(mimeType, data),
			},
		},
	}

	enr, err := a.generate(ctx, content, opts)
	if err != nil {
		return nil, err
	}
	enr.AssetType = "image"
	return enr, nil
}

// AnalyzePDFText runs one text-only request over extracted PDF text.
func (a *Analyzer) AnalyzePDFText(ctx context.Context, text string, opts AnalyzeOptions) (*Enrichment, error) {
	content := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(analysisSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildPDFPrompt(opts.Specificity, text))},
		},
	}

	enr, err := a.generate(ctx, content, opts)
	if err != nil {
		return nil, err
	}
	enr.AssetType = "pdf"
	return enr, nil
}

// AnalyzeVideo runs one combined multimodal request over pre-extracted
// keyframes plus an optional transcript. assetType distinguishes video, gif,
// and audio sources that share this path.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, keyframePaths []string, transcript, assetType string, opts AnalyzeOptions) (*Enrichment, error) {
	parts := []llms.ContentPart{
		llms.TextPart(buildVideoPrompt(opts.Specificity, excerpt(transcript, 4000))),
	}
	for _, p := range keyframePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read keyframe: %w", err)
		}
		parts = append(parts, llms.BinaryPart("image/jpeg", data))
	}

	content := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(analysisSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: parts,
		},
	}

	enr, err := a.generate(ctx, content, opts)
	if err != nil {
		return nil, err
	}
	enr.AssetType = assetType
	enr.Transcript = excerpt(transcript, 2000)
	return enr, nil
}

// generate performs a single model call. Generation calls are never retried
// automatically: a failed call may already have billed, and the coordinator
// treats the failure as a per-asset skip.
func (a *Analyzer) generate(ctx context.Context, content []llms.MessageContent, opts AnalyzeOptions) (*Enrichment, error) {
	response, err := a.client.GenerateContent(ctx, content,
		llms.WithTemperature(opts.temperature()),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	enr, err := parseEnrichment(response.Choices[0].Content)
	if err != nil {
		a.log.Warn("malformed enrichment response", "err", err)
		return nil, err
	}
	return enr, nil
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
