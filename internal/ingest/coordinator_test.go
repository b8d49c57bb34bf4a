package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/backend/internal/ai"
	"github.com/mediavault/backend/internal/config"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/mediavault/backend/internal/pkg/media"
)

type fakeAssets struct {
	mu sync.Mutex

	asset *models.Asset
	live  bool

	states          []models.IngestState
	derivThumb      *string
	derivFrames     []string
	derivState      models.IngestState
	derivCalled     bool
	savedEnrichment *ai.Enrichment
	savedVector     []float32
	failed          []models.Asset
}

func (f *fakeAssets) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.asset == nil {
		return nil, fmt.Errorf("record not found")
	}
	copied := *f.asset
	return &copied, nil
}

func (f *fakeAssets) IsLive(ctx context.Context, id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *fakeAssets) UpdateDerivatives(ctx context.Context, id uuid.UUID, thumbnailURL *string, frameURLs []string, state models.IngestState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.derivCalled = true
	f.derivThumb = thumbnailURL
	f.derivFrames = frameURLs
	f.derivState = state
	f.states = append(f.states, state)
	return nil
}

func (f *fakeAssets) UpdateEnrichment(ctx context.Context, id uuid.UUID, enr *ai.Enrichment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedEnrichment = enr
	f.states = append(f.states, models.IngestStateEnriched)
	return nil
}

func (f *fakeAssets) UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedVector = vector
	f.states = append(f.states, models.IngestStateIndexed)
	return nil
}

func (f *fakeAssets) SetIngestState(ctx context.Context, id uuid.UUID, state models.IngestState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	return nil
}

func (f *fakeAssets) ListEnrichmentFailed(ctx context.Context, limit int) ([]models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed, nil
}

func (f *fakeAssets) lastState() models.IngestState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return ""
	}
	return f.states[len(f.states)-1]
}

type fakeStore struct {
	mu       sync.Mutex
	uploaded []string
}

func (f *fakeStore) PutFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, key)
	return "https://cdn.test/" + key, nil
}

func (f *fakeStore) DownloadTo(ctx context.Context, objectURL, destPath string) error {
	return os.WriteFile(destPath, []byte("payload"), 0o644)
}

type fakeTools struct {
	root        string
	duration    float64
	hasAudio    bool
	pdfText     string
	thumbCalled bool
}

func (f *fakeTools) NewScratchDir(assetID uuid.UUID) (string, func(), error) {
	dir, err := os.MkdirTemp(f.root, assetID.String())
	if err != nil {
		return "", nil, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func (f *fakeTools) Probe(ctx context.Context, localPath, mimeType string) (media.ProbeResult, error) {
	return media.ProbeResult{DurationSeconds: f.duration}, nil
}

func (f *fakeTools) Thumbnail(ctx context.Context, srcPath, mimeType string, durationSeconds float64, dstDir string) (string, error) {
	f.thumbCalled = true
	switch media.FamilyOf(mimeType) {
	case media.FamilyPDF, media.FamilyAudio, media.FamilyOther:
		return "", nil
	case media.FamilyGIF:
		return filepath.Join(dstDir, "thumb.gif"), nil
	default:
		return filepath.Join(dstDir, "thumb.jpg"), nil
	}
}

func (f *fakeTools) ScrubStrip(ctx context.Context, srcPath string, durationSeconds float64, dstDir string) ([]string, error) {
	paths := make([]string, media.ScrubFrameCount)
	for i := range paths {
		paths[i] = filepath.Join(dstDir, fmt.Sprintf("frame_%02d.jpg", i))
	}
	return paths, nil
}

func (f *fakeTools) Keyframes(ctx context.Context, srcPath string, durationSeconds float64, dstDir string) ([]string, error) {
	return []string{filepath.Join(dstDir, "keyframe_00.jpg")}, nil
}

func (f *fakeTools) ExtractAudio(ctx context.Context, srcPath, dstDir string) (string, error) {
	return filepath.Join(dstDir, "audio.wav"), nil
}

func (f *fakeTools) HasAudioStream(ctx context.Context, srcPath string) bool { return f.hasAudio }

func (f *fakeTools) ExtractPDFText(ctx context.Context, srcPath string) (string, error) {
	return f.pdfText, nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	err      error
	calls    int
	lastOpts ai.AnalyzeOptions
	result   *ai.Enrichment
}

func (f *fakeAnalyzer) analyze(opts ai.AnalyzeOptions) (*ai.Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.result
	return &copied, nil
}

func (f *fakeAnalyzer) AnalyzeImage(ctx context.Context, imagePath, mimeType string, opts ai.AnalyzeOptions) (*ai.Enrichment, error) {
	return f.analyze(opts)
}

func (f *fakeAnalyzer) AnalyzePDFText(ctx context.Context, text string, opts ai.AnalyzeOptions) (*ai.Enrichment, error) {
	return f.analyze(opts)
}

func (f *fakeAnalyzer) AnalyzeVideo(ctx context.Context, keyframePaths []string, transcript, assetType string, opts ai.AnalyzeOptions) (*ai.Enrichment, error) {
	return f.analyze(opts)
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAnalyzer) seenOpts() ai.AnalyzeOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

type fakeEmbedder struct {
	err error
	vec []float32
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f.text, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		PipelineWorkers:     1,
		StageTimeout:        5 * time.Second,
		AIRequestTimeout:    5 * time.Second,
		AIRequestsPerSecond: 1000,
		RetrySweepBatchSize: 10,
	}
}

func testAsset(t *testing.T, mimeType string, state models.IngestState) *models.Asset {
	t.Helper()
	return &models.Asset{
		ID:          uuid.New(),
		Key:         "assets/test.bin",
		MimeType:    mimeType,
		Path:        "https://cdn.test/assets/test.bin",
		IngestState: state,
	}
}

func newTestCoordinator(t *testing.T, assets *fakeAssets, tools *fakeTools, analyzer *fakeAnalyzer, embedder *fakeEmbedder, transcriber *fakeTranscriber) (*Coordinator, *fakeStore) {
	t.Helper()
	tools.root = t.TempDir()
	store := &fakeStore{}
	c, err := NewCoordinator(testConfig(), logger.NewNop(), assets, store, tools, analyzer, embedder, transcriber)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, store
}

func defaultEnrichment() *ai.Enrichment {
	return &ai.Enrichment{
		Tags:        []string{"dog", "park"},
		Description: "A dog in a park.",
		Colors:      []string{"Green"},
		AssetType:   "image",
	}
}

func TestProcessImageFullPipeline(t *testing.T) {
	asset := testAsset(t, "image/jpeg", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}

	c, store := newTestCoordinator(t, assets, &fakeTools{}, analyzer, embedder, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	require.True(t, assets.derivCalled)
	assert.Equal(t, models.IngestStateDerivativesDone, assets.derivState)
	require.NotNil(t, assets.derivThumb)
	assert.Equal(t, "https://cdn.test/derivatives/"+asset.ID.String()+"/thumb.jpg", *assets.derivThumb)
	assert.Empty(t, assets.derivFrames, "images get no scrub strip")

	require.NotNil(t, assets.savedEnrichment)
	assert.Equal(t, []string{"dog", "park"}, assets.savedEnrichment.Tags)
	assert.Equal(t, []float32{0.1, 0.2}, assets.savedVector)
	assert.Equal(t, models.IngestStateIndexed, assets.lastState())
	assert.Len(t, store.uploaded, 1)
}

func TestProcessVideoUploadsScrubStrip(t *testing.T) {
	asset := testAsset(t, "video/mp4", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}
	tools := &fakeTools{duration: 120, hasAudio: false}

	c, store := newTestCoordinator(t, assets, tools, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	assert.Equal(t, models.IngestStateDerivativesDone, assets.derivState)
	assert.Len(t, assets.derivFrames, media.ScrubFrameCount)
	// thumb plus ten frames
	assert.Len(t, store.uploaded, 1+media.ScrubFrameCount)
	assert.Equal(t, models.IngestStateIndexed, assets.lastState())
}

func TestProcessEnrichmentFailureIsolated(t *testing.T) {
	asset := testAsset(t, "image/png", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{err: fmt.Errorf("model unavailable")}
	embedder := &fakeEmbedder{vec: []float32{1}}

	c, _ := newTestCoordinator(t, assets, &fakeTools{}, analyzer, embedder, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	assert.Equal(t, models.IngestStateDerivativesDone, assets.derivState, "derivatives survive an enrichment failure")
	assert.Nil(t, assets.savedEnrichment)
	assert.Nil(t, assets.savedVector, "indexing never runs after failed enrichment")
	assert.Equal(t, models.IngestStateEnrichmentFailed, assets.lastState())
}

func TestProcessDeletedAssetSkipsEnrichment(t *testing.T) {
	asset := testAsset(t, "image/jpeg", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: false}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}

	c, _ := newTestCoordinator(t, assets, &fakeTools{}, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	assert.Equal(t, 0, analyzer.callCount(), "no AI spend on deleted assets")
	assert.Nil(t, assets.savedEnrichment)
}

func TestProcessRetryDoesNotRedoDerivatives(t *testing.T) {
	asset := testAsset(t, "image/jpeg", models.IngestStateEnrichmentFailed)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}
	tools := &fakeTools{}

	c, _ := newTestCoordinator(t, assets, tools, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	assert.False(t, tools.thumbCalled, "retry starts after the derivative stage")
	assert.False(t, assets.derivCalled)
	require.NotNil(t, assets.savedEnrichment)
	assert.Equal(t, models.IngestStateIndexed, assets.lastState())
}

func TestProcessOtherFamilyTerminates(t *testing.T) {
	asset := testAsset(t, "application/zip", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}

	c, _ := newTestCoordinator(t, assets, &fakeTools{}, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	assert.Equal(t, 0, analyzer.callCount())
	assert.Equal(t, models.IngestStateDerivativesSkipped, assets.derivState)
	assert.Equal(t, models.IngestStateIndexSkipped, assets.lastState())
}

func TestProcessEmbeddingFailureKeepsEnrichment(t *testing.T) {
	asset := testAsset(t, "image/jpeg", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}
	embedder := &fakeEmbedder{err: fmt.Errorf("embedding api down")}

	c, _ := newTestCoordinator(t, assets, &fakeTools{}, analyzer, embedder, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	require.NotNil(t, assets.savedEnrichment, "enrichment survives an indexing failure")
	assert.Nil(t, assets.savedVector)
	assert.Equal(t, models.IngestStateIndexSkipped, assets.lastState())
}

func TestProcessPDF(t *testing.T) {
	asset := testAsset(t, "application/pdf", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}
	tools := &fakeTools{pdfText: "quarterly report text"}

	c, _ := newTestCoordinator(t, assets, tools, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{})
	c.process(asset.ID, ai.AnalyzeOptions{})

	assert.Equal(t, models.IngestStateDerivativesSkipped, assets.derivState, "pdfs have no thumbnail")
	require.NotNil(t, assets.savedEnrichment)
	assert.Equal(t, models.IngestStateIndexed, assets.lastState())
}

func TestProcessAudioWithoutTranscriptFails(t *testing.T) {
	asset := testAsset(t, "audio/mpeg", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}

	c, _ := newTestCoordinator(t, assets, &fakeTools{}, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{text: ""})
	c.process(asset.ID, ai.AnalyzeOptions{})

	assert.Equal(t, 0, analyzer.callCount())
	assert.Equal(t, models.IngestStateEnrichmentFailed, assets.lastState())
}

func TestRetrySweepEnqueuesFailedAssets(t *testing.T) {
	asset := testAsset(t, "image/jpeg", models.IngestStateEnrichmentFailed)
	asset.EnrichCreativity = 0.9
	asset.EnrichSpecificity = "high"
	assets := &fakeAssets{asset: asset, live: true, failed: []models.Asset{*asset}}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}

	c, _ := newTestCoordinator(t, assets, &fakeTools{}, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{})
	c.RetrySweep(context.Background())

	require.Eventually(t, func() bool {
		return assets.lastState() == models.IngestStateIndexed
	}, 3*time.Second, 10*time.Millisecond)

	// The sweep replays the knobs recorded at upload, not the defaults.
	opts := analyzer.seenOpts()
	assert.Equal(t, 0.9, opts.Creativity)
	assert.Equal(t, ai.SpecificityHigh, opts.Specificity)
}

func TestEnqueueReturnsWhileWorkersBusy(t *testing.T) {
	asset := testAsset(t, "image/jpeg", models.IngestStateStored)
	assets := &fakeAssets{asset: asset, live: true}
	analyzer := &fakeAnalyzer{result: defaultEnrichment()}

	c, _ := newTestCoordinator(t, assets, &fakeTools{}, analyzer, &fakeEmbedder{vec: []float32{1}}, &fakeTranscriber{})

	// Occupy the single worker so the pool is saturated.
	release := make(chan struct{})
	require.NoError(t, c.pool.Submit(func() { <-release }))

	done := make(chan struct{})
	go func() {
		c.Enqueue(asset.ID, ai.AnalyzeOptions{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hand-off waited for a free worker")
	}

	close(release)
	require.Eventually(t, func() bool {
		return assets.lastState() == models.IngestStateIndexed
	}, 3*time.Second, 10*time.Millisecond)
}
