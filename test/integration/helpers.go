//go:build integration
// +build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/config"
	"github.com/stwalsh4118/pillarbox/internal/db"
	"github.com/stwalsh4118/pillarbox/internal/playback"
	"github.com/stwalsh4118/pillarbox/internal/server"
)

const testCatalog = `
media:
  - id: urn:pillarbox:vod:1
    title: Short clip
    uri: https://example.org/vod1.m3u8
    duration_ms: 600000
    blocked_time_ranges:
      - id: ad
        start_ms: 100000
        end_ms: 200000
        reason: COMMERCIAL
    credits:
      - kind: opening
        start_ms: 0
        end_ms: 30000
    analytics:
      commandersact:
        media_title: Short clip
      comscore:
        ns_st_ci: "1"
  - id: urn:pillarbox:vod:2
    title: Second clip
    uri: https://example.org/vod2.m3u8
    duration_ms: 300000
`

// testServer is a fully wired server behind httptest
type testServer struct {
	server *server.Server
	http   *httptest.Server
	repos  *db.Repositories
}

// setupTestServer creates a file-backed database, imports the test catalog
// and serves the application router
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0600))

	database, err := db.New(filepath.Join(dir, "test.db"), db.DefaultOptions())
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err, "Failed to get SQL DB")

	// Get absolute path to migrations directory relative to this file
	// This ensures tests work regardless of working directory
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")
	moduleDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	require.NoError(t, db.RunMigrations(sqlDB, "file://"+filepath.Join(moduleDir, "migrations")))

	cfg := config.Default()
	cfg.Catalog.Path = catalogPath
	cfg.Playback.TimeRangePollInterval = 20 * time.Millisecond

	srv, err := server.New(cfg, database)
	require.NoError(t, err)
	require.NoError(t, srv.ImportCatalog(t.Context()))
	require.NoError(t, srv.StartBackground())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	return &testServer{server: srv, http: ts, repos: db.NewRepositories(database)}
}

// do sends a request and decodes the JSON response into out when it is not nil
func (s *testServer) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, s.http.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// waitForState polls the player until cond holds
func (s *testServer) waitForState(t *testing.T, id string, cond func(playback.State) bool) playback.State {
	t.Helper()

	var state playback.State
	require.Eventually(t, func() bool {
		state = playback.State{}
		if s.do(t, http.MethodGet, "/api/players/"+id, "", &state) != http.StatusOK {
			return false
		}
		return cond(state)
	}, 5*time.Second, 20*time.Millisecond)
	return state
}
