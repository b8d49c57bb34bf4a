package ai

import (
	"fmt"

	"github.com/mediavault/backend/internal/config"
	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider wires the shared model client into the analysis, embedding,
// transcription, and expansion services.
type Provider struct {
	analyzer    *Analyzer
	embedder    *Embedder
	transcriber *Transcriber
	expander    *Expander
}

// NewProvider builds all AI services against one OpenAI-compatible endpoint.
func NewProvider(cfg *config.Config, log *logger.Logger) (*Provider, error) {
	token := cfg.AIAPIKey
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}

	chatClient, err := openai.New(
		openai.WithBaseURL(cfg.AIBaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.AIChatModel),
		openai.WithEmbeddingModel(cfg.AIEmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	embedClient, err := embeddings.NewEmbedder(chatClient, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &Provider{
		analyzer: NewAnalyzer(chatClient, log),
		embedder: NewEmbedder(embedClient, cfg.AIEmbedMaxRetries, log),
		transcriber: NewTranscriber(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AITranscriptionModel,
			cfg.TranscriptionMaxSize, cfg.AIRequestTimeout, log),
		expander: NewExpander(chatClient, log),
	}, nil
}

func (p *Provider) Analyzer() *Analyzer       { return p.analyzer }
func (p *Provider) Embedder() *Embedder       { return p.embedder }
func (p *Provider) Transcriber() *Transcriber { return p.transcriber }
func (p *Provider) Expander() *Expander       { return p.expander }
