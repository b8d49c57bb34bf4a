package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mediavault/backend/internal/ai"
	"github.com/mediavault/backend/internal/ingest"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/mediavault/backend/internal/pkg/media"
	"github.com/mediavault/backend/internal/services"
)

type AssetHandler struct {
	mediaService  *services.MediaService
	assetService  *services.AssetService
	searchService *services.SearchService
	coordinator   *ingest.Coordinator
	log           *logger.Logger
}

func NewAssetHandler(mediaService *services.MediaService, assetService *services.AssetService, searchService *services.SearchService, coordinator *ingest.Coordinator, log *logger.Logger) *AssetHandler {
	return &AssetHandler{
		mediaService:  mediaService,
		assetService:  assetService,
		searchService: searchService,
		coordinator:   coordinator,
		log:           log.With("handler", "asset"),
	}
}

// Upload handles a single asset upload.
// POST /assets/upload
// Multipart form: file (required), creativity (optional float 0..1),
// specificity (optional: general|high)
func (h *AssetHandler) Upload(c *gin.Context) {
	userID, _ := c.Get("userID")
	uploadedBy, ok := userID.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	// The default applies only when the form omits creativity; an explicit 0
	// is a real temperature and is passed through as-is.
	opts := ai.AnalyzeOptions{
		Creativity:  ai.DefaultCreativity,
		Specificity: ai.ParseSpecificity(c.PostForm("specificity")),
	}
	if raw := c.PostForm("creativity"); raw != "" {
		creativity, err := strconv.ParseFloat(raw, 64)
		if err != nil || creativity < 0 || creativity > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "creativity must be a number between 0 and 1"})
			return
		}
		opts.Creativity = creativity
	}

	asset, err := h.mediaService.Upload(c.Request.Context(), uploadedBy, header.Filename, header.Size, file, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Upload replies as soon as the file is durable; derivatives and
	// enrichment happen in the background.
	h.coordinator.Enqueue(asset.ID, opts)

	c.JSON(http.StatusCreated, assetResponse(asset))
}

// List returns live assets, newest first.
// GET /assets?limit=&offset=
func (h *AssetHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	assets, total, err := h.assetService.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assets"})
		return
	}

	items := make([]gin.H, len(assets))
	for i := range assets {
		items[i] = assetResponse(&assets[i])
	}
	c.JSON(http.StatusOK, gin.H{"assets": items, "total": total, "limit": limit, "offset": offset})
}

// Get returns a single asset.
// GET /assets/:id
func (h *AssetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	asset, err := h.assetService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, assetResponse(asset))
}

// Rename updates the display name. The storage key is immutable.
// PATCH /assets/:id
func (h *AssetHandler) Rename(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := h.assetService.Rename(c.Request.Context(), id, req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "name": req.Name})
}

// Delete soft-deletes the asset into the recycle bin.
// DELETE /assets/:id
func (h *AssetHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	if err := h.assetService.SoftDelete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete asset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "deleted"})
}

// Restore brings a soft-deleted asset back.
// POST /assets/:id/restore
func (h *AssetHandler) Restore(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	if err := h.assetService.Restore(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to restore asset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "restored"})
}

// Purge permanently removes the asset and its stored files.
// DELETE /assets/:id/purge
func (h *AssetHandler) Purge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	if err := h.assetService.Purge(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge asset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "purged"})
}

// Download redirects to the stored object.
// GET /assets/:id/download
func (h *AssetHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	asset, err := h.assetService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.Redirect(http.StatusFound, asset.Path)
}

// ScrubFrame maps a hover position to its preview frame.
// GET /assets/:id/scrub?pos=0.42
func (h *AssetHandler) ScrubFrame(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	pos, err := strconv.ParseFloat(c.DefaultQuery("pos", "0"), 64)
	if err != nil || pos < 0 || pos > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pos must be a number between 0 and 1"})
		return
	}

	asset, err := h.assetService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	frames := asset.PreviewFrameURLs()
	if len(frames) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset has no preview frames"})
		return
	}

	idx := media.FrameIndexForPercent(pos)
	if idx >= len(frames) {
		idx = len(frames) - 1
	}
	c.JSON(http.StatusOK, gin.H{"frame": frames[idx], "index": idx})
}

// Search runs hybrid search over the library.
// GET /assets/search?q=&limit=
func (h *AssetHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.searchService.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	items := make([]gin.H, len(result.Results))
	for i := range result.Results {
		items[i] = assetResponse(&result.Results[i])
	}
	c.JSON(http.StatusOK, gin.H{"results": items, "isFallback": result.IsFallback})
}

func assetResponse(asset *models.Asset) gin.H {
	resp := gin.H{
		"id":            asset.ID,
		"name":          asset.OriginalName,
		"mimeType":      asset.MimeType,
		"sizeBytes":     asset.SizeBytes,
		"url":           asset.Path,
		"ingestState":   asset.IngestState,
		"previewFrames": asset.PreviewFrameURLs(),
		"createdAt":     asset.CreatedAt,
	}
	if asset.ThumbnailPath != nil {
		resp["thumbnailUrl"] = *asset.ThumbnailPath
	}
	if len(asset.AIData) > 0 {
		resp["aiData"] = json.RawMessage(asset.AIData)
	}
	return resp
}
