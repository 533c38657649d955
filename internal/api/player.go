package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/playback"
)

// playerManager defines the interface for player management operations.
// This allows for easier testing with mocks.
type playerManager interface {
	Create(ctx context.Context, req playback.CreateRequest) (*playback.PlayerSession, error)
	List() []*playback.PlayerSession
	State(ctx context.Context, id string) (*playback.State, error)
	Control(ctx context.Context, id string, req playback.ControlRequest) (*playback.State, error)
	Release(ctx context.Context, id string) error
}

// PlayerListResponse represents the list of live players
type PlayerListResponse struct {
	Players []PlayerSummary `json:"players"`
	Total   int             `json:"total"`
}

// PlayerSummary identifies a live player without querying its looper
type PlayerSummary struct {
	ID         string    `json:"id"`
	MediaItems []string  `json:"media_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// seekRequest is the body of the seek endpoint
type seekRequest struct {
	PositionMs *int64 `json:"position_ms" binding:"required"`
}

// stallRequest is the body of the stall endpoint
type stallRequest struct {
	DurationMs int64 `json:"duration_ms" binding:"required,gt=0"`
}

// errorRequest is the body of the error endpoint
type errorRequest struct {
	Message string `json:"message"`
}

// PlayerHandler handles player HTTP requests
type PlayerHandler struct {
	manager playerManager
}

// NewPlayerHandler creates a new player handler instance
func NewPlayerHandler(manager playerManager) *PlayerHandler {
	return &PlayerHandler{manager: manager}
}

// CreatePlayer handles POST /api/players
func (h *PlayerHandler) CreatePlayer(c *gin.Context) {
	var req playback.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "media_ids must list at least one media item")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	session, err := h.manager.Create(ctx, req)
	if err != nil {
		h.handleError(c, err, "")
		return
	}

	state, err := h.manager.State(ctx, session.ID)
	if err != nil {
		h.handleError(c, err, session.ID)
		return
	}

	logger.Log.Info().
		Str("player_id", session.ID).
		Strs("media_ids", req.MediaIDs).
		Bool("auto_play", req.AutoPlay).
		Msg("Player created")

	c.JSON(http.StatusCreated, state)
}

// ListPlayers handles GET /api/players
func (h *PlayerHandler) ListPlayers(c *gin.Context) {
	sessions := h.manager.List()

	players := lo.Map(sessions, func(s *playback.PlayerSession, _ int) PlayerSummary {
		return PlayerSummary{
			ID:         s.ID,
			MediaItems: lo.Map(s.MediaItems, func(item asset.MediaItem, _ int) string { return item.ID }),
			CreatedAt:  s.CreatedAt,
		}
	})

	c.JSON(http.StatusOK, PlayerListResponse{Players: players, Total: len(players)})
}

// GetPlayer handles GET /api/players/:id
func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	state, err := h.manager.State(ctx, id)
	if err != nil {
		h.handleError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, state)
}

// DeletePlayer handles DELETE /api/players/:id
func (h *PlayerHandler) DeletePlayer(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.manager.Release(ctx, id); err != nil {
		h.handleError(c, err, id)
		return
	}

	logger.Log.Info().Str("player_id", id).Msg("Player released")

	c.JSON(http.StatusOK, DeleteResponse{Message: "Player released successfully"})
}

// Command handles POST /api/players/:id/commands with a full control request
func (h *PlayerHandler) Command(c *gin.Context) {
	var req playback.ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	h.control(c, req)
}

// simple returns a handler for commands without arguments
func (h *PlayerHandler) simple(cmd playback.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.control(c, playback.ControlRequest{Command: cmd})
	}
}

// Seek handles POST /api/players/:id/seek
func (h *PlayerHandler) Seek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "position_ms is required")
		return
	}
	h.control(c, playback.ControlRequest{Command: playback.CommandSeek, PositionMs: *req.PositionMs})
}

// Stall handles POST /api/players/:id/stall
func (h *PlayerHandler) Stall(c *gin.Context) {
	var req stallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "duration_ms must be greater than 0")
		return
	}
	h.control(c, playback.ControlRequest{Command: playback.CommandStall, DurationMs: req.DurationMs})
}

// InjectError handles POST /api/players/:id/error
func (h *PlayerHandler) InjectError(c *gin.Context) {
	var req errorRequest
	// Body is optional
	_ = c.ShouldBindJSON(&req)
	h.control(c, playback.ControlRequest{Command: playback.CommandError, Message: req.Message})
}

func (h *PlayerHandler) control(c *gin.Context, req playback.ControlRequest) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	state, err := h.manager.Control(ctx, id, req)
	if err != nil {
		h.handleError(c, err, id)
		return
	}

	logger.Log.Debug().
		Str("player_id", id).
		Str("command", string(req.Command)).
		Int64("position_ms", state.PositionMs).
		Msg("Player command applied")

	c.JSON(http.StatusOK, state)
}

// handleError maps playback errors to HTTP responses
func (h *PlayerHandler) handleError(c *gin.Context, err error, id string) {
	switch {
	case errors.Is(err, playback.ErrPlayerNotFound), errors.Is(err, playback.ErrPlayerReleased):
		abort(c, http.StatusNotFound, "not_found", "Player not found")
	case errors.Is(err, playback.ErrUnknownCommand),
		errors.Is(err, playback.ErrInvalidDuration),
		errors.Is(err, playback.ErrNoMediaItems):
		abort(c, http.StatusBadRequest, "invalid_command", err.Error())
	case errors.Is(err, playback.ErrManagerStopped):
		abort(c, http.StatusServiceUnavailable, "unavailable", "Player manager is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		abort(c, http.StatusGatewayTimeout, "timeout", "Player did not respond in time")
	default:
		logger.Log.Error().
			Err(err).
			Str("player_id", id).
			Msg("Player operation failed")
		internalError(c, err, "player_failed", "Player operation failed")
	}
}

// SetupPlayerRoutes registers all player-related routes
func SetupPlayerRoutes(apiGroup *gin.RouterGroup, manager playerManager) {
	handler := NewPlayerHandler(manager)

	players := apiGroup.Group("/players")
	players.POST("", handler.CreatePlayer)
	players.GET("", handler.ListPlayers)
	players.GET("/:id", handler.GetPlayer)
	players.DELETE("/:id", handler.DeletePlayer)

	players.POST("/:id/commands", handler.Command)
	players.POST("/:id/play", handler.simple(playback.CommandPlay))
	players.POST("/:id/pause", handler.simple(playback.CommandPause))
	players.POST("/:id/stop", handler.simple(playback.CommandStop))
	players.POST("/:id/prepare", handler.simple(playback.CommandPrepare))
	players.POST("/:id/next", handler.simple(playback.CommandNext))
	players.POST("/:id/skip-credit", handler.simple(playback.CommandSkipCredit))
	players.POST("/:id/seek", handler.Seek)
	players.POST("/:id/stall", handler.Stall)
	players.POST("/:id/error", handler.InjectError)
}
