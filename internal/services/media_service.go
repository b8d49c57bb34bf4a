package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mediavault/backend/internal/ai"
	"github.com/mediavault/backend/internal/config"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/mediavault/backend/pkg/validation"
)

// allowedUploadExts is the accepted upload surface. Anything outside the
// derivative-capable families is still stored and searchable by name, it
// just skips thumbnailing.
var allowedUploadExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true,
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true, ".flac": true,
	".pdf": true,
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".doc": true, ".docx": true, ".ppt": true, ".pptx": true, ".xls": true, ".xlsx": true,
	".zip": true,
}

// objectStore is the slice of storage the upload path needs.
type objectStore interface {
	Put(ctx context.Context, r io.Reader, key, contentType string) (string, error)
	Delete(ctx context.Context, objectURL string) error
}

// MediaService is the upload entry point: it validates the incoming file,
// places it in object storage, and creates the pending Asset row. The
// ingestion pipeline picks the asset up afterwards.
type MediaService struct {
	cfg    *config.Config
	s3     objectStore
	assets *AssetService
	log    *logger.Logger
}

func NewMediaService(cfg *config.Config, s3 objectStore, assets *AssetService, log *logger.Logger) *MediaService {
	return &MediaService{
		cfg:    cfg,
		s3:     s3,
		assets: assets,
		log:    log.With("service", "media"),
	}
}

// Upload stores a new asset synchronously. On return the file is durably in
// object storage and the row exists in state stored; derivatives and
// enrichment arrive asynchronously using the opts recorded on the row.
func (s *MediaService) Upload(ctx context.Context, uploadedBy uuid.UUID, filename string, size int64, r io.Reader, opts ai.AnalyzeOptions) (*models.Asset, error) {
	filename = filepath.Base(validation.SanitizeName(filename))
	if !validation.ValidateAssetName(filename) {
		return nil, fmt.Errorf("missing or invalid filename")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExts[ext] {
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
	if size <= 0 {
		return nil, fmt.Errorf("empty upload")
	}
	if size > s.cfg.UploadMaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d)", size, s.cfg.UploadMaxFileSize)
	}

	// Sniff the real content type from the leading bytes, then stitch the
	// reader back together for the streamed upload.
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	mimeType := detectContentType(head, ext)
	body := io.MultiReader(bytes.NewReader(head), r)

	key := fmt.Sprintf("assets/%s%s", uuid.New().String(), ext)

	objectURL, err := s.s3.Put(ctx, body, key, mimeType)
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	asset, err := s.assets.CreatePending(ctx, uploadedBy, key, filename, mimeType, size, objectURL, opts)
	if err != nil {
		// The row is the source of truth; without it the object is orphaned.
		if delErr := s.s3.Delete(ctx, objectURL); delErr != nil {
			s.log.Warn("orphan cleanup failed after create error", "key", key, "err", delErr)
		}
		return nil, err
	}

	s.log.Info("asset stored",
		"asset_id", asset.ID,
		"key", key,
		"mime_type", mimeType,
		"size_bytes", size)
	return asset, nil
}

// detectContentType prefers content sniffing and falls back to the extension
// for types the sniffer cannot distinguish (notably everything it reports as
// octet-stream or plain text).
func detectContentType(head []byte, ext string) string {
	sniffed := http.DetectContentType(head)
	base, _, _ := strings.Cut(sniffed, ";")
	base = strings.TrimSpace(base)
	if base != "application/octet-stream" && base != "text/plain" {
		return base
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if cut, _, _ := strings.Cut(byExt, ";"); cut != "" {
			return cut
		}
	}
	return base
}
