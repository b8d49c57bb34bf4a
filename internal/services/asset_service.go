package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mediavault/backend/internal/ai"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/mediavault/backend/pkg/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// objectDeleter is the only storage capability purge needs.
type objectDeleter interface {
	Delete(ctx context.Context, objectURL string) error
}

// AssetService owns all Asset row access. Pipeline stages write through the
// Update* methods, which are stage-scoped partial writes: each touches only
// the columns its stage owns and never regresses a previously successful
// field.
type AssetService struct {
	db  *gorm.DB
	s3  objectDeleter
	log *logger.Logger
}

func NewAssetService(db *gorm.DB, s3 objectDeleter, log *logger.Logger) *AssetService {
	return &AssetService{db: db, s3: s3, log: log.With("service", "asset")}
}

// CreatePending inserts the minimal Asset row at upload time. Only identity
// and storage fields are populated; everything else arrives asynchronously.
// The enrichment knobs are recorded here so later re-runs use the same
// settings the uploader chose.
func (s *AssetService) CreatePending(ctx context.Context, uploadedBy uuid.UUID, key, originalName, mimeType string, sizeBytes int64, path string, opts ai.AnalyzeOptions) (*models.Asset, error) {
	asset := &models.Asset{
		UploadedBy:        uploadedBy,
		Key:               key,
		OriginalName:      originalName,
		MimeType:          mimeType,
		SizeBytes:         sizeBytes,
		Path:              path,
		IngestState:       models.IngestStateStored,
		EnrichCreativity:  opts.Creativity,
		EnrichSpecificity: string(opts.Specificity),
	}
	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		return nil, fmt.Errorf("create asset record: %w", err)
	}
	return asset, nil
}

// GetByID returns a live (not soft-deleted) asset.
func (s *AssetService) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetByIDAny returns an asset regardless of soft-delete state.
func (s *AssetService) GetByIDAny(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.WithContext(ctx).Unscoped().First(&asset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// IsLive reports whether the asset exists and is not soft-deleted. Pipeline
// stages check this before starting work so enrichment of deleted assets is
// skipped.
func (s *AssetService) IsLive(ctx context.Context, id uuid.UUID) bool {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// List returns live assets, newest first.
func (s *AssetService) List(ctx context.Context, limit, offset int) ([]models.Asset, int64, error) {
	var assets []models.Asset
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Asset{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&assets).Error; err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// Recent returns the newest live assets, used by search fallback.
func (s *AssetService) Recent(ctx context.Context, limit int) ([]models.Asset, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// Rename updates the user-facing name. The storage key never changes.
func (s *AssetService) Rename(ctx context.Context, id uuid.UUID, newName string) error {
	newName = validation.SanitizeName(newName)
	if !validation.ValidateAssetName(newName) {
		return errors.New("invalid asset name")
	}
	return s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).
		Update("original_name", newName).Error
}

// SoftDelete moves the asset to the recycle bin. Files stay in storage so the
// asset remains restorable until purged.
func (s *AssetService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&models.Asset{}, "id = ?", id).Error
}

// Restore brings a soft-deleted asset back.
func (s *AssetService) Restore(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Unscoped().Model(&models.Asset{}).
		Where("id = ?", id).Update("deleted_at", nil).Error
}

// Purge permanently destroys the asset: primary file, thumbnail, preview
// frames, then the row. Storage deletes are best-effort so a half-gone object
// store cannot strand the row forever.
func (s *AssetService) Purge(ctx context.Context, id uuid.UUID) error {
	asset, err := s.GetByIDAny(ctx, id)
	if err != nil {
		return err
	}

	if asset.Path != "" {
		if err := s.s3.Delete(ctx, asset.Path); err != nil {
			s.log.Warn("purge: delete primary object failed", "asset_id", id, "err", err)
		}
	}
	if asset.ThumbnailPath != nil {
		if err := s.s3.Delete(ctx, *asset.ThumbnailPath); err != nil {
			s.log.Warn("purge: delete thumbnail failed", "asset_id", id, "err", err)
		}
	}
	for _, frameURL := range asset.PreviewFrameURLs() {
		if err := s.s3.Delete(ctx, frameURL); err != nil {
			s.log.Warn("purge: delete preview frame failed", "asset_id", id, "err", err)
		}
	}

	return s.db.WithContext(ctx).Unscoped().Delete(&models.Asset{}, "id = ?", id).Error
}

// SetIngestState records a stage transition without touching stage outputs.
func (s *AssetService) SetIngestState(ctx context.Context, id uuid.UUID, state models.IngestState) error {
	return s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).
		Update("ingest_state", state).Error
}

// UpdateDerivatives persists derivative URLs. Nil thumbnail / empty frames
// mean "this run produced nothing" and leave any previously successful value
// in place.
func (s *AssetService) UpdateDerivatives(ctx context.Context, id uuid.UUID, thumbnailURL *string, frameURLs []string, state models.IngestState) error {
	updates := map[string]interface{}{"ingest_state": state}
	if thumbnailURL != nil {
		updates["thumbnail_path"] = *thumbnailURL
	}
	if len(frameURLs) > 0 {
		encoded, err := json.Marshal(frameURLs)
		if err != nil {
			return fmt.Errorf("encode preview frames: %w", err)
		}
		updates["preview_frames"] = datatypes.JSON(encoded)
	}
	return s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).
		Updates(updates).Error
}

// UpdateEnrichment persists the enrichment document and marks the asset
// enriched. Re-runs overwrite, never duplicate.
func (s *AssetService) UpdateEnrichment(ctx context.Context, id uuid.UUID, enr *ai.Enrichment) error {
	encoded, err := json.Marshal(enr)
	if err != nil {
		return fmt.Errorf("encode enrichment: %w", err)
	}
	return s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"ai_data":      datatypes.JSON(encoded),
			"ingest_state": models.IngestStateEnriched,
		}).Error
}

// UpdateEmbedding persists the enrichment vector and marks the asset indexed.
func (s *AssetService) UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	return s.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":    datatypes.JSON(encoded),
			"ingest_state": models.IngestStateIndexed,
		}).Error
}

// ListEnrichmentFailed returns live assets stuck in enrichment_failed, oldest
// first, for the optional retry sweep.
func (s *AssetService) ListEnrichmentFailed(ctx context.Context, limit int) ([]models.Asset, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).
		Where("ingest_state = ?", models.IngestStateEnrichmentFailed).
		Order("updated_at ASC").Limit(limit).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}
