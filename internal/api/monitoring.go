package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/models"
)

const defaultRecentEvents = 50

// eventReader is implemented by *db.MonitoringEventRepository
type eventReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]*models.MonitoringEvent, error)
	ListRecent(ctx context.Context, limit int) ([]*models.MonitoringEvent, error)
}

// wsServer is implemented by *monitoring.Hub
type wsServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

// EventListResponse represents a list of stored monitoring events
type EventListResponse struct {
	Events []*models.MonitoringEvent `json:"events"`
	Total  int                       `json:"total"`
}

// MonitoringHandler serves stored and live monitoring events
type MonitoringHandler struct {
	events eventReader
	hub    wsServer
}

// NewMonitoringHandler creates a new monitoring handler instance
func NewMonitoringHandler(events eventReader, hub wsServer) *MonitoringHandler {
	return &MonitoringHandler{events: events, hub: hub}
}

// ListSessionEvents handles GET /api/monitoring/sessions/:session_id/events
func (h *MonitoringHandler) ListSessionEvents(c *gin.Context) {
	sessionID := c.Param("session_id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := h.events.ListBySession(ctx, sessionID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to list monitoring events")
		internalError(c, err, "query_failed", "Failed to retrieve monitoring events")
		return
	}
	if len(events) == 0 {
		abort(c, http.StatusNotFound, "not_found", "Monitoring session not found")
		return
	}

	c.JSON(http.StatusOK, EventListResponse{Events: events, Total: len(events)})
}

// ListRecentEvents handles GET /api/monitoring/events
func (h *MonitoringHandler) ListRecentEvents(c *gin.Context) {
	limit := defaultRecentEvents
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = min(l, maxListLimit)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := h.events.ListRecent(ctx, limit)
	if err != nil {
		logger.Log.Error().Err(err).Int("limit", limit).Msg("Failed to list recent monitoring events")
		internalError(c, err, "query_failed", "Failed to retrieve monitoring events")
		return
	}
	if events == nil {
		events = []*models.MonitoringEvent{}
	}

	c.JSON(http.StatusOK, EventListResponse{Events: events, Total: len(events)})
}

// Live handles GET /api/monitoring/ws by upgrading to a websocket that
// receives every monitoring message as it is sent
func (h *MonitoringHandler) Live(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		// The upgrader already wrote the failure response
		logger.Log.Warn().Err(err).Msg("Monitoring websocket upgrade failed")
	}
}

// SetupMonitoringRoutes registers monitoring routes. The websocket route is
// only registered when a hub is provided.
func SetupMonitoringRoutes(apiGroup *gin.RouterGroup, events eventReader, hub wsServer) {
	handler := NewMonitoringHandler(events, hub)

	group := apiGroup.Group("/monitoring")
	group.GET("/events", handler.ListRecentEvents)
	group.GET("/sessions/:session_id/events", handler.ListSessionEvents)
	if hub != nil {
		group.GET("/ws", handler.Live)
	}
}
