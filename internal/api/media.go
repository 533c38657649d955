package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 1000
)

// catalog is implemented by *db.CatalogStore
type catalog interface {
	asset.CatalogStore
	ListEntries(ctx context.Context, limit, offset int) ([]asset.CatalogEntry, int64, error)
}

// MediaListResponse represents a paginated list of catalog entries
type MediaListResponse struct {
	Items  []asset.CatalogEntry `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// MediaHandler handles catalog API requests
type MediaHandler struct {
	catalog catalog
}

// NewMediaHandler creates a new media handler instance
func NewMediaHandler(c catalog) *MediaHandler {
	return &MediaHandler{catalog: c}
}

// ListMedia handles GET /api/media
func (h *MediaHandler) ListMedia(c *gin.Context) {
	limit, offset := parsePagination(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	items, total, err := h.catalog.ListEntries(ctx, limit, offset)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("Failed to list media")
		internalError(c, err, "query_failed", "Failed to retrieve media list")
		return
	}
	if items == nil {
		items = []asset.CatalogEntry{}
	}

	c.JSON(http.StatusOK, MediaListResponse{
		Items:  items,
		Total:  int(total),
		Limit:  limit,
		Offset: offset,
	})
}

// GetMedia handles GET /api/media/:id
func (h *MediaHandler) GetMedia(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	entry, err := h.catalog.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, asset.ErrAssetNotFound) {
			abort(c, http.StatusNotFound, "not_found", "Media not found")
			return
		}

		logger.Log.Error().
			Err(err).
			Str("id", id).
			Msg("Failed to get media")
		internalError(c, err, "query_failed", "Failed to retrieve media")
		return
	}

	c.JSON(http.StatusOK, entry)
}

// PutMedia handles PUT /api/media/:id. The entry replaces any existing one.
func (h *MediaHandler) PutMedia(c *gin.Context) {
	var entry asset.CatalogEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	entry.ID = c.Param("id")

	if err := entry.Validate(); err != nil {
		abort(c, http.StatusBadRequest, "invalid_entry", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.catalog.SaveEntry(ctx, entry); err != nil {
		logger.Log.Error().
			Err(err).
			Str("id", entry.ID).
			Msg("Failed to save media")
		internalError(c, err, "save_failed", "Failed to save media")
		return
	}

	logger.Log.Info().
		Str("id", entry.ID).
		Msg("Media saved successfully")

	c.JSON(http.StatusOK, entry)
}

// parsePagination reads limit and offset query parameters
func parsePagination(c *gin.Context) (int, int) {
	limit := defaultListLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = min(l, maxListLimit)
	}

	offset := 0
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}

// SetupMediaRoutes registers all media-related routes
func SetupMediaRoutes(apiGroup *gin.RouterGroup, c catalog) {
	handler := NewMediaHandler(c)

	mediaGroup := apiGroup.Group("/media")
	mediaGroup.GET("", handler.ListMedia)
	mediaGroup.GET("/:id", handler.GetMedia)
	mediaGroup.PUT("/:id", handler.PutMedia)
}
