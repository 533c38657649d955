package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/config"
	"github.com/stwalsh4118/pillarbox/internal/db"
)

// setupTestServer creates a server over a migrated file-backed database
func setupTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), db.DefaultOptions())
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")
	moduleDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	require.NoError(t, db.RunMigrations(sqlDB, "file://"+filepath.Join(moduleDir, "migrations")))

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := New(cfg, database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServerRoutes(t *testing.T) {
	srv := setupTestServer(t, nil)
	require.NoError(t, srv.StartBackground())
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/api/health").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/media").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/players").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/monitoring/events").Code)

	metrics := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "pillarbox_active_players 0")
	assert.Contains(t, metrics.Body.String(), `pillarbox_http_requests_total{method="GET",status="200"}`)
}

func TestServerWithoutMonitoring(t *testing.T) {
	srv := setupTestServer(t, func(cfg *config.Config) { cfg.Monitoring.Enabled = false })

	assert.Nil(t, srv.store)
	assert.Nil(t, srv.hub)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/api/monitoring/ws").Code)
}

func TestImportCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("media:\n  - id: urn:a\n    title: A\n    duration_ms: 1000\n"), 0o600))

	srv := setupTestServer(t, func(cfg *config.Config) { cfg.Catalog.Path = path })
	require.NoError(t, srv.ImportCatalog(context.Background()))

	entry, err := srv.repos.Catalog.GetEntry(context.Background(), "urn:a")
	require.NoError(t, err)
	assert.Equal(t, "A", entry.Title)
}

func TestImportCatalog_NoPath(t *testing.T) {
	srv := setupTestServer(t, nil)
	assert.NoError(t, srv.ImportCatalog(context.Background()))
}

func TestImportCatalog_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("media:\n  - title: no id\n"), 0o600))

	srv := setupTestServer(t, func(cfg *config.Config) { cfg.Catalog.Path = path })
	assert.Error(t, srv.ImportCatalog(context.Background()))
}

func TestCatalogWatcherIsWired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("media:\n  - id: urn:a\n"), 0o600))

	srv := setupTestServer(t, func(cfg *config.Config) {
		cfg.Catalog.Path = path
		cfg.Catalog.Watch = true
	})
	require.NotNil(t, srv.watcher)
	require.NoError(t, srv.StartBackground())
}

func TestPlaybackConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Playback.IdleGracePeriod = 0
	cfg.Monitoring.HeartbeatPeriod = 5 * time.Second
	cfg.Analytics.CommandersAct.PosPeriod = 7 * time.Second
	cfg.Analytics.ComScore.DvrRefreshPeriod = 9 * time.Second

	pc := playbackConfig(cfg)
	assert.Equal(t, time.Duration(0), pc.IdleGracePeriod)
	assert.Equal(t, cfg.Playback.TimeRangePollInterval, pc.TimeRangePollInterval)
	assert.Equal(t, 5*time.Second, pc.Monitoring.HeartbeatPeriod)
	assert.Equal(t, 7*time.Second, pc.CommandersAct.PosPeriod)
	assert.Equal(t, 9*time.Second, pc.ComScore.DvrRefreshPeriod)
}
