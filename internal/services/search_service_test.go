package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/backend/internal/ai"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
)

type fakeQueryEmbedder struct {
	vec []float32
	err error
}

func (f *fakeQueryEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fixedExpander struct {
	terms []string
}

func (f *fixedExpander) ExpandTerm(ctx context.Context, term string) ([]string, error) {
	return f.terms, nil
}

func newTestSearchService(t *testing.T, embedder QueryEmbedder, expansion *ExpansionCache) (*SearchService, *AssetService) {
	t.Helper()
	assets, _ := newTestAssetService(t)
	svc := NewSearchService(assets.db, assets, expansion, embedder, logger.NewNop())
	return svc, assets
}

func seedSearchAsset(t *testing.T, assets *AssetService, name string, enr *ai.Enrichment) *models.Asset {
	t.Helper()
	asset, err := assets.CreatePending(context.Background(), testUserID(t),
		"assets/"+name, name, "image/jpeg", 100, "https://cdn.test/assets/"+name,
		ai.AnalyzeOptions{})
	require.NoError(t, err)
	if enr != nil {
		require.NoError(t, assets.UpdateEnrichment(context.Background(), asset.ID, enr))
	}
	return asset
}

func TestSearchMatchesEnrichmentTags(t *testing.T) {
	svc, assets := newTestSearchService(t, nil, nil)
	match := seedSearchAsset(t, assets, "a.jpg", &ai.Enrichment{Tags: []string{"golden retriever"}})
	seedSearchAsset(t, assets, "b.jpg", &ai.Enrichment{Tags: []string{"skyline"}})

	result, err := svc.Search(context.Background(), "retriever", 10)
	require.NoError(t, err)
	assert.False(t, result.IsFallback)
	require.Len(t, result.Results, 1)
	assert.Equal(t, match.ID, result.Results[0].ID)
}

func TestSearchMatchesOriginalName(t *testing.T) {
	svc, assets := newTestSearchService(t, nil, nil)
	match := seedSearchAsset(t, assets, "Quarterly-Report.jpg", nil)

	result, err := svc.Search(context.Background(), "quarterly", 10)
	require.NoError(t, err)
	assert.False(t, result.IsFallback)
	require.Len(t, result.Results, 1)
	assert.Equal(t, match.ID, result.Results[0].ID)
}

func TestSearchFallbackOnNoMatch(t *testing.T) {
	svc, assets := newTestSearchService(t, nil, nil)
	seedSearchAsset(t, assets, "a.jpg", &ai.Enrichment{Tags: []string{"dog"}})
	seedSearchAsset(t, assets, "b.jpg", &ai.Enrichment{Tags: []string{"cat"}})

	result, err := svc.Search(context.Background(), "zeppelin", 10)
	require.NoError(t, err)
	assert.True(t, result.IsFallback, "no match returns recent assets, flagged")
	assert.Len(t, result.Results, 2)
}

func TestSearchEmptyQueryFallsBack(t *testing.T) {
	svc, assets := newTestSearchService(t, nil, nil)
	seedSearchAsset(t, assets, "a.jpg", nil)

	result, err := svc.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.True(t, result.IsFallback)
	assert.Len(t, result.Results, 1)
}

func TestSearchExpansionBroadensMatch(t *testing.T) {
	expansion := &ExpansionCache{
		store:    newMemStore(),
		expander: &fixedExpander{terms: []string{"automobile"}},
		ttl:      0,
		log:      logger.NewNop(),
	}
	svc, assets := newTestSearchService(t, nil, expansion)
	match := seedSearchAsset(t, assets, "a.jpg", &ai.Enrichment{Tags: []string{"automobile"}})

	result, err := svc.Search(context.Background(), "car", 10)
	require.NoError(t, err)
	assert.False(t, result.IsFallback)
	require.Len(t, result.Results, 1)
	assert.Equal(t, match.ID, result.Results[0].ID)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	embedder := &fakeQueryEmbedder{vec: []float32{1, 0}}
	svc, assets := newTestSearchService(t, embedder, nil)
	ctx := context.Background()

	// Both match the keyword; far is newer but semantically distant.
	near := seedSearchAsset(t, assets, "report-near.jpg", &ai.Enrichment{Tags: []string{"report"}})
	far := seedSearchAsset(t, assets, "report-far.jpg", &ai.Enrichment{Tags: []string{"report"}})
	require.NoError(t, assets.UpdateEmbedding(ctx, near.ID, []float32{1, 0}))
	require.NoError(t, assets.UpdateEmbedding(ctx, far.ID, []float32{0, 1}))

	result, err := svc.Search(ctx, "report", 10)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, near.ID, result.Results[0].ID, "cosine ranking overrides recency")
	assert.Equal(t, far.ID, result.Results[1].ID)
}

func TestSearchEmbedderFailureKeepsKeywordOrder(t *testing.T) {
	embedder := &fakeQueryEmbedder{err: fmt.Errorf("embedding api down")}
	svc, assets := newTestSearchService(t, embedder, nil)

	seedSearchAsset(t, assets, "report-1.jpg", &ai.Enrichment{Tags: []string{"report"}})
	seedSearchAsset(t, assets, "report-2.jpg", &ai.Enrichment{Tags: []string{"report"}})

	result, err := svc.Search(context.Background(), "report", 10)
	require.NoError(t, err)
	assert.False(t, result.IsFallback)
	assert.Len(t, result.Results, 2, "search degrades, never fails, when embedding is down")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity(nil, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}), "dimension mismatch scores zero")
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
