package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthChecker is implemented by *db.DB
type healthChecker interface {
	Health(ctx context.Context) error
}

// playerCounter is implemented by *playback.Manager
type playerCounter interface {
	Count() int
}

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Players  int                    `json:"players"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db      healthChecker
	players playerCounter
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database healthChecker, players playerCounter) *HealthHandler {
	return &HealthHandler{db: database, players: players}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]interface{}),
	}
	if h.players != nil {
		response.Players = h.players.Count()
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database healthChecker, players playerCounter) {
	handler := NewHealthHandler(database, players)
	apiGroup.GET("/health", handler.Check)
}
