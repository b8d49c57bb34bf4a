package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IngestState tracks how far the enrichment pipeline got for an asset.
type IngestState string

const (
	IngestStateStored             IngestState = "stored"
	IngestStateDerivativesDone    IngestState = "derivatives_done"
	IngestStateDerivativesSkipped IngestState = "derivatives_skipped"
	IngestStateEnriched           IngestState = "enriched"
	IngestStateEnrichmentFailed   IngestState = "enrichment_failed"
	IngestStateIndexed            IngestState = "indexed"
	IngestStateIndexSkipped       IngestState = "index_skipped"
)

// Asset represents one uploaded media file plus its derivatives and enrichment.
// Everything past Path is filled in asynchronously by the ingest pipeline and
// may stay empty forever without making the asset unusable.
type Asset struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UploadedBy   uuid.UUID `gorm:"type:uuid;index" json:"uploaded_by"`
	Key          string    `gorm:"size:512;uniqueIndex" json:"key"` // storage key of the original
	OriginalName string    `gorm:"size:255" json:"original_name"`
	MimeType     string    `gorm:"size:120" json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`

	// Path is the URL of the stored original. Set once during the synchronous
	// upload stage and never rewritten afterwards.
	Path string `gorm:"size:1024" json:"path"`

	// ThumbnailPath is nil when no derivative exists; clients fall back to a
	// MIME-type icon.
	ThumbnailPath *string        `gorm:"size:1024" json:"thumbnail_path,omitempty"`
	PreviewFrames datatypes.JSON `gorm:"type:jsonb" json:"preview_frames,omitempty"` // ordered []string URLs, video only

	// AIData holds the enrichment document; nil until enrichment succeeds.
	AIData datatypes.JSON `gorm:"column:ai_data;type:jsonb" json:"ai_data,omitempty"`
	// Embedding holds the enrichment vector as a JSON float array; nil when
	// embedding was skipped or failed.
	Embedding datatypes.JSON `gorm:"type:jsonb" json:"-"`

	IngestState IngestState `gorm:"size:32;default:stored;index" json:"ingest_state"`

	// Enrichment knobs chosen at upload, kept so retry sweeps replay the
	// user's settings instead of the defaults.
	EnrichCreativity  float64 `json:"enrich_creativity"`
	EnrichSpecificity string  `gorm:"size:16;default:general" json:"enrich_specificity"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// PreviewFrameURLs decodes the stored preview frame list. Returns nil when no
// strip was generated.
func (a *Asset) PreviewFrameURLs() []string {
	if len(a.PreviewFrames) == 0 {
		return nil
	}
	var frames []string
	if err := json.Unmarshal(a.PreviewFrames, &frames); err != nil {
		return nil
	}
	return frames
}

// EmbeddingVector decodes the stored embedding. Returns nil when the asset has
// not been indexed.
func (a *Asset) EmbeddingVector() []float32 {
	if len(a.Embedding) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(a.Embedding, &vec); err != nil {
		return nil
	}
	return vec
}
