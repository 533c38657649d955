package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/models"
)

// mockEventReader is a test helper that implements the eventReader interface
type mockEventReader struct {
	listBySessionFunc func(ctx context.Context, sessionID string) ([]*models.MonitoringEvent, error)
	listRecentFunc    func(ctx context.Context, limit int) ([]*models.MonitoringEvent, error)
}

func (m *mockEventReader) ListBySession(ctx context.Context, sessionID string) ([]*models.MonitoringEvent, error) {
	if m.listBySessionFunc != nil {
		return m.listBySessionFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockEventReader) ListRecent(ctx context.Context, limit int) ([]*models.MonitoringEvent, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, limit)
	}
	return nil, nil
}

type mockWSServer struct {
	calls int
}

func (m *mockWSServer) ServeWS(w http.ResponseWriter, _ *http.Request) error {
	m.calls++
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

func setupMonitoringTestRouter(events *mockEventReader, hub wsServer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupMonitoringRoutes(router.Group("/api"), events, hub)
	return router
}

func event(sessionID, name string) *models.MonitoringEvent {
	return &models.MonitoringEvent{
		ID:          uuid.New(),
		SessionID:   sessionID,
		MediaItemID: "urn:a",
		EventName:   name,
		Payload:     "{}",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestListSessionEvents(t *testing.T) {
	var gotSession string
	reader := &mockEventReader{
		listBySessionFunc: func(_ context.Context, sessionID string) ([]*models.MonitoringEvent, error) {
			gotSession = sessionID
			return []*models.MonitoringEvent{event(sessionID, "START"), event(sessionID, "HEARTBEAT")}, nil
		},
	}
	router := setupMonitoringTestRouter(reader, nil)

	w := doJSON(router, http.MethodGet, "/api/monitoring/sessions/s1/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", gotSession)

	var resp EventListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "START", resp.Events[0].EventName)
}

func TestListSessionEvents_UnknownSession(t *testing.T) {
	router := setupMonitoringTestRouter(&mockEventReader{}, nil)

	w := doJSON(router, http.MethodGet, "/api/monitoring/sessions/unknown/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSessionEvents_QueryFailure(t *testing.T) {
	reader := &mockEventReader{
		listBySessionFunc: func(context.Context, string) ([]*models.MonitoringEvent, error) {
			return nil, errors.New("locked")
		},
	}
	router := setupMonitoringTestRouter(reader, nil)

	w := doJSON(router, http.MethodGet, "/api/monitoring/sessions/s1/events", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListRecentEvents(t *testing.T) {
	var gotLimit int
	reader := &mockEventReader{
		listRecentFunc: func(_ context.Context, limit int) ([]*models.MonitoringEvent, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	router := setupMonitoringTestRouter(reader, nil)

	w := doJSON(router, http.MethodGet, "/api/monitoring/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultRecentEvents, gotLimit)
	assert.JSONEq(t, `{"events":[],"total":0}`, w.Body.String())

	doJSON(router, http.MethodGet, "/api/monitoring/events?limit=5", "")
	assert.Equal(t, 5, gotLimit)
}

func TestMonitoringWebsocketRoute(t *testing.T) {
	hub := &mockWSServer{}
	router := setupMonitoringTestRouter(&mockEventReader{}, hub)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/monitoring/ws", nil))
	assert.Equal(t, 1, hub.calls)

	withoutHub := setupMonitoringTestRouter(&mockEventReader{}, nil)
	w = doJSON(withoutHub, http.MethodGet, "/api/monitoring/ws", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
