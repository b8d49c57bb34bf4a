package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
)

const (
	searchDefaultLimit   = 50
	searchCandidateLimit = 200
)

// QueryEmbedder turns a search query into a vector. Nil disables semantic
// re-ranking and the service degrades to pure keyword search.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SearchResult is the search response envelope. IsFallback tells the client
// the query matched nothing and Results holds recent assets instead, so the
// UI can label them honestly.
type SearchResult struct {
	Results    []models.Asset `json:"results"`
	IsFallback bool           `json:"isFallback"`
}

// SearchService implements hybrid asset search: keyword matching over names
// and enrichment data, broadened by cached query expansion, re-ranked by
// cosine similarity against stored embeddings.
type SearchService struct {
	db        *gorm.DB
	assets    *AssetService
	expansion *ExpansionCache
	embedder  QueryEmbedder
	log       *logger.Logger
}

func NewSearchService(db *gorm.DB, assets *AssetService, expansion *ExpansionCache, embedder QueryEmbedder, log *logger.Logger) *SearchService {
	return &SearchService{
		db:        db,
		assets:    assets,
		expansion: expansion,
		embedder:  embedder,
		log:       log.With("service", "search"),
	}
}

// Search runs the full hybrid pipeline. It never returns an empty result
// set for a live library: zero matches produce the recent-assets fallback.
func (s *SearchService) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	if limit <= 0 || limit > searchCandidateLimit {
		limit = searchDefaultLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return s.fallback(ctx, limit)
	}

	terms := []string{query}
	if s.expansion != nil {
		terms = append(terms, s.expansion.Expand(ctx, query)...)
	}

	candidates, err := s.keywordCandidates(ctx, terms)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return s.fallback(ctx, limit)
	}

	s.rank(ctx, query, candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return &SearchResult{Results: candidates, IsFallback: false}, nil
}

// keywordCandidates matches any expansion term against the original name or
// the enrichment document. The JSON column is compared as text, which both
// postgres jsonb and sqlite accept.
func (s *SearchService) keywordCandidates(ctx context.Context, terms []string) ([]models.Asset, error) {
	tx := s.db.WithContext(ctx).Model(&models.Asset{})

	var clause *gorm.DB
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		pattern := "%" + term + "%"
		cond := s.db.Where("LOWER(original_name) LIKE ?", pattern).
			Or("LOWER(CAST(ai_data AS TEXT)) LIKE ?", pattern)
		if clause == nil {
			clause = cond
		} else {
			clause = clause.Or(cond)
		}
	}
	if clause == nil {
		return nil, nil
	}

	var assets []models.Asset
	if err := tx.Where(clause).Order("created_at DESC").
		Limit(searchCandidateLimit).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// rank re-orders candidates by cosine similarity to the query embedding.
// Assets without an embedding keep their keyword order behind scored ones.
// Any embedding failure leaves the keyword order untouched.
func (s *SearchService) rank(ctx context.Context, query string, candidates []models.Asset) {
	if s.embedder == nil || len(candidates) < 2 {
		return
	}
	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.log.Warn("query embedding failed, keeping keyword order", "err", err)
		return
	}

	type scored struct {
		index int
		score float64
		has   bool
	}
	scores := make([]scored, len(candidates))
	for i := range candidates {
		vec := candidates[i].EmbeddingVector()
		if len(vec) == 0 {
			scores[i] = scored{index: i}
			continue
		}
		scores[i] = scored{index: i, score: cosineSimilarity(queryVec, vec), has: true}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].has != scores[b].has {
			return scores[a].has
		}
		return scores[a].score > scores[b].score
	})

	ordered := make([]models.Asset, len(candidates))
	for i, sc := range scores {
		ordered[i] = candidates[sc.index]
	}
	copy(candidates, ordered)
}

func (s *SearchService) fallback(ctx context.Context, limit int) (*SearchResult, error) {
	recent, err := s.assets.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Results: recent, IsFallback: true}, nil
}

func cosineSimilarity(a []float32, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
