package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/mediavault/backend/internal/ai"
	"github.com/mediavault/backend/internal/config"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/mediavault/backend/internal/pkg/media"
)

// AssetStore is the coordinator's view of asset persistence.
type AssetStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	IsLive(ctx context.Context, id uuid.UUID) bool
	UpdateDerivatives(ctx context.Context, id uuid.UUID, thumbnailURL *string, frameURLs []string, state models.IngestState) error
	UpdateEnrichment(ctx context.Context, id uuid.UUID, enr *ai.Enrichment) error
	UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error
	SetIngestState(ctx context.Context, id uuid.UUID, state models.IngestState) error
	ListEnrichmentFailed(ctx context.Context, limit int) ([]models.Asset, error)
}

// ObjectStore is the coordinator's view of object storage.
type ObjectStore interface {
	PutFile(ctx context.Context, localPath, key, contentType string) (string, error)
	DownloadTo(ctx context.Context, objectURL, destPath string) error
}

// MediaTools is the coordinator's view of the ffmpeg/pdftotext toolbox.
type MediaTools interface {
	NewScratchDir(assetID uuid.UUID) (string, func(), error)
	Probe(ctx context.Context, localPath, mimeType string) (media.ProbeResult, error)
	Thumbnail(ctx context.Context, srcPath, mimeType string, durationSeconds float64, dstDir string) (string, error)
	ScrubStrip(ctx context.Context, srcPath string, durationSeconds float64, dstDir string) ([]string, error)
	Keyframes(ctx context.Context, srcPath string, durationSeconds float64, dstDir string) ([]string, error)
	ExtractAudio(ctx context.Context, srcPath, dstDir string) (string, error)
	HasAudioStream(ctx context.Context, srcPath string) bool
	ExtractPDFText(ctx context.Context, srcPath string) (string, error)
}

// Analyzer produces enrichment documents.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, imagePath, mimeType string, opts ai.AnalyzeOptions) (*ai.Enrichment, error)
	AnalyzePDFText(ctx context.Context, text string, opts ai.AnalyzeOptions) (*ai.Enrichment, error)
	AnalyzeVideo(ctx context.Context, keyframePaths []string, transcript, assetType string, opts ai.AnalyzeOptions) (*ai.Enrichment, error)
}

// Embedder produces embedding vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Transcriber produces transcripts from audio files.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Coordinator drives an asset through the ingestion state machine on a
// bounded worker pool:
//
//	stored -> derivatives_done | derivatives_skipped
//	       -> enriched | enrichment_failed
//	       -> indexed | index_skipped
//
// Stages are isolated: a failed stage downgrades that asset to its skip or
// failed state and never takes the worker or sibling assets down with it.
// Every stage re-runs idempotently, so a crash mid-pipeline just means the
// asset is picked up again later.
type Coordinator struct {
	cfg         *config.Config
	log         *logger.Logger
	assets      AssetStore
	store       ObjectStore
	tools       MediaTools
	analyzer    Analyzer
	embedder    Embedder
	transcriber Transcriber
	limiter     *rate.Limiter
	pool        *ants.Pool
}

func NewCoordinator(cfg *config.Config, log *logger.Logger, assets AssetStore, store ObjectStore, tools MediaTools, analyzer Analyzer, embedder Embedder, transcriber Transcriber) (*Coordinator, error) {
	workers := cfg.PipelineWorkers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create pipeline pool: %w", err)
	}

	rps := cfg.AIRequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Coordinator{
		cfg:         cfg,
		log:         log.With("component", "ingest"),
		assets:      assets,
		store:       store,
		tools:       tools,
		analyzer:    analyzer,
		embedder:    embedder,
		transcriber: transcriber,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		pool:        pool,
	}, nil
}

// Close drains the worker pool. In-flight assets finish their current stage.
func (c *Coordinator) Close() {
	c.pool.Release()
}

// Enqueue schedules the full pipeline for one asset and returns immediately.
// Upload handlers call this on the request goroutine, so hand-off must never
// wait for a free worker: pipeline runs hold a worker through multi-minute
// stage timeouts, and a saturated pool would otherwise stall the HTTP
// response. A detached goroutine carries the submit instead; the asset row is
// already durable either way.
func (c *Coordinator) Enqueue(assetID uuid.UUID, opts ai.AnalyzeOptions) {
	go func() {
		if err := c.pool.Submit(func() { c.process(assetID, opts) }); err != nil {
			c.log.Error("pipeline submit failed", "asset_id", assetID, "err", err)
		}
	}()
}

// RetrySweep re-enqueues a batch of assets stuck in enrichment_failed,
// replaying the enrichment knobs captured at upload.
func (c *Coordinator) RetrySweep(ctx context.Context) {
	failed, err := c.assets.ListEnrichmentFailed(ctx, c.cfg.RetrySweepBatchSize)
	if err != nil {
		c.log.Error("retry sweep query failed", "err", err)
		return
	}
	for _, asset := range failed {
		c.Enqueue(asset.ID, ai.AnalyzeOptions{
			Creativity:  asset.EnrichCreativity,
			Specificity: ai.ParseSpecificity(asset.EnrichSpecificity),
		})
	}
	if len(failed) > 0 {
		c.log.Info("retry sweep enqueued", "count", len(failed))
	}
}

func (c *Coordinator) stageCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.cfg.StageTimeout)
}

// aiCtx applies the shared request rate limit, then returns a per-call
// timeout context. The rate limiter is the only coupling between concurrent
// pipeline workers.
func (c *Coordinator) aiCtx(parent context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(parent); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(parent, c.cfg.AIRequestTimeout)
	return ctx, cancel, nil
}

func (c *Coordinator) process(assetID uuid.UUID, opts ai.AnalyzeOptions) {
	log := c.log.With("asset_id", assetID)

	loadCtx, cancel := c.stageCtx()
	asset, err := c.assets.GetByID(loadCtx, assetID)
	cancel()
	if err != nil {
		// Deleted between enqueue and pickup, or never committed. Nothing
		// to do either way.
		log.Info("asset not live at pickup, skipping", "err", err)
		return
	}

	scratch, cleanup, err := c.tools.NewScratchDir(assetID)
	if err != nil {
		log.Error("scratch dir unavailable", "err", err)
		c.markUnprocessable(assetID, asset.IngestState)
		return
	}
	defer cleanup()

	srcPath := filepath.Join(scratch, "source"+strings.ToLower(filepath.Ext(asset.Key)))
	dlCtx, cancel := c.stageCtx()
	err = c.store.DownloadTo(dlCtx, asset.Path, srcPath)
	cancel()
	if err != nil {
		log.Error("download original failed", "err", err)
		c.markUnprocessable(assetID, asset.IngestState)
		return
	}

	family := media.FamilyOf(asset.MimeType)

	probeCtx, cancel := c.stageCtx()
	probe, err := c.tools.Probe(probeCtx, srcPath, asset.MimeType)
	cancel()
	if err != nil {
		log.Warn("probe failed, proceeding without metadata", "err", err)
	}

	// Derivatives only run from the initial state. A retry sweep pass starts
	// from enrichment_failed and must not redo or regress them.
	if asset.IngestState == models.IngestStateStored {
		c.runDerivatives(assetID, family, asset.MimeType, probe, srcPath, scratch, log)
	}

	if family == media.FamilyOther {
		// Nothing to analyze. Terminal state so the retry sweep leaves it
		// alone.
		c.setState(assetID, models.IngestStateIndexSkipped, log)
		return
	}

	if !c.assets.IsLive(context.Background(), assetID) {
		log.Info("asset deleted mid-pipeline, stopping")
		return
	}

	enr := c.runEnrichment(assetID, family, asset.MimeType, probe, srcPath, scratch, opts, log)
	if enr == nil {
		return
	}

	c.runIndexing(assetID, enr, log)
}

// markUnprocessable records that this run could not even reach the original
// file. The asset stays recoverable by the retry sweep.
func (c *Coordinator) markUnprocessable(assetID uuid.UUID, current models.IngestState) {
	ctx, cancel := c.stageCtx()
	defer cancel()
	if current == models.IngestStateStored {
		_ = c.assets.SetIngestState(ctx, assetID, models.IngestStateDerivativesSkipped)
	}
	_ = c.assets.SetIngestState(ctx, assetID, models.IngestStateEnrichmentFailed)
}

func (c *Coordinator) setState(assetID uuid.UUID, state models.IngestState, log *logger.Logger) {
	ctx, cancel := c.stageCtx()
	defer cancel()
	if err := c.assets.SetIngestState(ctx, assetID, state); err != nil {
		log.Error("state update failed", "state", state, "err", err)
	}
}

// runDerivatives generates and uploads the thumbnail and, for videos, the
// ten-frame scrub strip. Failures downgrade to derivatives_skipped and the
// pipeline continues.
func (c *Coordinator) runDerivatives(assetID uuid.UUID, family media.MediaFamily, mimeType string, probe media.ProbeResult, srcPath, scratch string, log *logger.Logger) {
	ctx, cancel := c.stageCtx()
	defer cancel()

	var thumbnailURL *string
	var frameURLs []string
	produced := false

	thumbPath, err := c.tools.Thumbnail(ctx, srcPath, mimeType, probe.DurationSeconds, scratch)
	if err != nil {
		log.Warn("thumbnail generation failed", "err", err)
	} else if thumbPath != "" {
		key := fmt.Sprintf("derivatives/%s/%s", assetID, filepath.Base(thumbPath))
		url, upErr := c.store.PutFile(ctx, thumbPath, key, derivativeContentType(thumbPath))
		if upErr != nil {
			log.Warn("thumbnail upload failed", "err", upErr)
		} else {
			thumbnailURL = &url
			produced = true
		}
	}

	if family == media.FamilyVideo {
		framePaths, err := c.tools.ScrubStrip(ctx, srcPath, probe.DurationSeconds, scratch)
		if err != nil {
			log.Warn("scrub strip generation failed", "err", err)
		} else {
			urls := make([]string, 0, len(framePaths))
			for _, fp := range framePaths {
				key := fmt.Sprintf("derivatives/%s/%s", assetID, filepath.Base(fp))
				url, upErr := c.store.PutFile(ctx, fp, key, "image/jpeg")
				if upErr != nil {
					log.Warn("scrub frame upload failed", "frame", filepath.Base(fp), "err", upErr)
					urls = nil
					break
				}
				urls = append(urls, url)
			}
			// The strip is all-or-nothing: a partial strip breaks the
			// client's position math.
			if len(urls) == len(framePaths) && len(urls) > 0 {
				frameURLs = urls
				produced = true
			}
		}
	}

	state := models.IngestStateDerivativesDone
	if !produced {
		state = models.IngestStateDerivativesSkipped
	}
	if err := c.assets.UpdateDerivatives(ctx, assetID, thumbnailURL, frameURLs, state); err != nil {
		log.Error("derivative update failed", "err", err)
	}
}

// runEnrichment performs the AI analysis stage. A nil return means the asset
// was left in enrichment_failed and the pipeline stops.
func (c *Coordinator) runEnrichment(assetID uuid.UUID, family media.MediaFamily, mimeType string, probe media.ProbeResult, srcPath, scratch string, opts ai.AnalyzeOptions, log *logger.Logger) *ai.Enrichment {
	stage, cancelStage := c.stageCtx()
	defer cancelStage()

	var enr *ai.Enrichment
	var err error

	switch family {
	case media.FamilyImage:
		enr, err = c.analyzeWithLimit(stage, func(ctx context.Context) (*ai.Enrichment, error) {
			return c.analyzer.AnalyzeImage(ctx, srcPath, mimeType, opts)
		})

	case media.FamilyGIF:
		enr, err = c.analyzeWithLimit(stage, func(ctx context.Context) (*ai.Enrichment, error) {
			return c.analyzer.AnalyzeImage(ctx, srcPath, "image/gif", opts)
		})
		if enr != nil {
			enr.AssetType = "gif"
		}

	case media.FamilyVideo:
		var keyframes []string
		keyframes, err = c.tools.Keyframes(stage, srcPath, probe.DurationSeconds, scratch)
		if err != nil {
			log.Warn("keyframe extraction failed", "err", err)
			break
		}
		transcript := c.maybeTranscribeVideo(stage, srcPath, scratch, log)
		enr, err = c.analyzeWithLimit(stage, func(ctx context.Context) (*ai.Enrichment, error) {
			return c.analyzer.AnalyzeVideo(ctx, keyframes, transcript, "video", opts)
		})

	case media.FamilyAudio:
		var transcript string
		transcript, err = c.transcribeWithLimit(stage, srcPath)
		if err != nil {
			log.Warn("audio transcription failed", "err", err)
			break
		}
		if strings.TrimSpace(transcript) == "" {
			err = fmt.Errorf("empty transcript")
			break
		}
		enr, err = c.analyzeWithLimit(stage, func(ctx context.Context) (*ai.Enrichment, error) {
			return c.analyzer.AnalyzeVideo(ctx, nil, transcript, "audio", opts)
		})

	case media.FamilyPDF:
		var text string
		text, err = c.tools.ExtractPDFText(stage, srcPath)
		if err != nil {
			log.Warn("pdf text extraction failed", "err", err)
			break
		}
		if strings.TrimSpace(text) == "" {
			err = fmt.Errorf("no extractable text")
			break
		}
		enr, err = c.analyzeWithLimit(stage, func(ctx context.Context) (*ai.Enrichment, error) {
			return c.analyzer.AnalyzePDFText(ctx, text, opts)
		})
	}

	if err != nil || enr == nil {
		log.Warn("enrichment failed", "family", family, "err", err)
		c.setState(assetID, models.IngestStateEnrichmentFailed, log)
		return nil
	}

	if err := c.assets.UpdateEnrichment(stage, assetID, enr); err != nil {
		log.Error("enrichment persist failed", "err", err)
		c.setState(assetID, models.IngestStateEnrichmentFailed, log)
		return nil
	}
	log.Info("asset enriched", "tags", len(enr.Tags), "type", enr.AssetType)
	return enr
}

// maybeTranscribeVideo extracts and transcribes a video's audio track.
// Failures here are swallowed: the transcript is additive context for the
// visual analysis, never a gate on it.
func (c *Coordinator) maybeTranscribeVideo(ctx context.Context, srcPath, scratch string, log *logger.Logger) string {
	if !c.tools.HasAudioStream(ctx, srcPath) {
		return ""
	}
	audioPath, err := c.tools.ExtractAudio(ctx, srcPath, scratch)
	if err != nil {
		log.Warn("audio extraction failed, analyzing frames only", "err", err)
		return ""
	}
	transcript, err := c.transcribeWithLimit(ctx, audioPath)
	if err != nil {
		log.Warn("transcription failed, analyzing frames only", "err", err)
		return ""
	}
	return transcript
}

func (c *Coordinator) analyzeWithLimit(parent context.Context, call func(context.Context) (*ai.Enrichment, error)) (*ai.Enrichment, error) {
	ctx, cancel, err := c.aiCtx(parent)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return call(ctx)
}

func (c *Coordinator) transcribeWithLimit(parent context.Context, audioPath string) (string, error) {
	ctx, cancel, err := c.aiCtx(parent)
	if err != nil {
		return "", err
	}
	defer cancel()
	return c.transcriber.Transcribe(ctx, audioPath)
}

// runIndexing embeds the enrichment document. Embedding is idempotent, so
// the embedder retries internally; a final failure downgrades to
// index_skipped rather than blocking the enriched asset.
func (c *Coordinator) runIndexing(assetID uuid.UUID, enr *ai.Enrichment, log *logger.Logger) {
	stage, cancelStage := c.stageCtx()
	defer cancelStage()

	text := ai.BuildEmbeddingText(enr)
	if strings.TrimSpace(text) == "" {
		c.setState(assetID, models.IngestStateIndexSkipped, log)
		return
	}

	ctx, cancel, err := c.aiCtx(stage)
	if err != nil {
		c.setState(assetID, models.IngestStateIndexSkipped, log)
		return
	}
	vector, err := c.embedder.EmbedText(ctx, text)
	cancel()
	if err != nil {
		log.Warn("embedding failed", "err", err)
		c.setState(assetID, models.IngestStateIndexSkipped, log)
		return
	}

	if err := c.assets.UpdateEmbedding(stage, assetID, vector); err != nil {
		log.Error("embedding persist failed", "err", err)
		c.setState(assetID, models.IngestStateIndexSkipped, log)
		return
	}
	log.Info("asset indexed", "dims", len(vector))
}

func derivativeContentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".gif":
		return "image/gif"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
