package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
)

// mockCatalog is an in-memory catalog implementing the catalog interface
type mockCatalog struct {
	entries map[string]asset.CatalogEntry
	order   []string
	listErr error
}

func newMockCatalog(entries ...asset.CatalogEntry) *mockCatalog {
	c := &mockCatalog{entries: make(map[string]asset.CatalogEntry)}
	for _, e := range entries {
		_ = c.SaveEntry(context.Background(), e)
	}
	return c
}

func (c *mockCatalog) SaveEntry(_ context.Context, entry asset.CatalogEntry) error {
	if _, ok := c.entries[entry.ID]; !ok {
		c.order = append(c.order, entry.ID)
	}
	c.entries[entry.ID] = entry
	return nil
}

func (c *mockCatalog) GetEntry(_ context.Context, urn string) (*asset.CatalogEntry, error) {
	e, ok := c.entries[urn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", asset.ErrAssetNotFound, urn)
	}
	return &e, nil
}

func (c *mockCatalog) ListEntries(_ context.Context, limit, offset int) ([]asset.CatalogEntry, int64, error) {
	if c.listErr != nil {
		return nil, 0, c.listErr
	}
	var out []asset.CatalogEntry
	for i := offset; i < len(c.order) && len(out) < limit; i++ {
		out = append(out, c.entries[c.order[i]])
	}
	return out, int64(len(c.order)), nil
}

func setupMediaTestRouter(c *mockCatalog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupMediaRoutes(router.Group("/api"), c)
	return router
}

func TestListMedia_Pagination(t *testing.T) {
	c := newMockCatalog(
		asset.CatalogEntry{ID: "urn:a", DurationMs: 1000},
		asset.CatalogEntry{ID: "urn:b", DurationMs: 1000},
		asset.CatalogEntry{ID: "urn:c", DurationMs: 1000},
	)
	router := setupMediaTestRouter(c)

	tests := []struct {
		name       string
		query      string
		wantIDs    []string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", []string{"urn:a", "urn:b", "urn:c"}, defaultListLimit, 0},
		{"limit", "?limit=2", []string{"urn:a", "urn:b"}, 2, 0},
		{"offset", "?limit=2&offset=2", []string{"urn:c"}, 2, 2},
		{"invalid values fall back", "?limit=abc&offset=-3", []string{"urn:a", "urn:b", "urn:c"}, defaultListLimit, 0},
		{"limit is capped", "?limit=999999", []string{"urn:a", "urn:b", "urn:c"}, maxListLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodGet, "/api/media"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var resp MediaListResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, 3, resp.Total)
			assert.Equal(t, tt.wantLimit, resp.Limit)
			assert.Equal(t, tt.wantOffset, resp.Offset)

			ids := make([]string, 0, len(resp.Items))
			for _, item := range resp.Items {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestListMedia_EmptyIsArray(t *testing.T) {
	router := setupMediaTestRouter(newMockCatalog())

	w := doJSON(router, http.MethodGet, "/api/media", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestListMedia_QueryFailure(t *testing.T) {
	c := newMockCatalog()
	c.listErr = errors.New("disk full")
	router := setupMediaTestRouter(c)

	w := doJSON(router, http.MethodGet, "/api/media", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetMedia(t *testing.T) {
	c := newMockCatalog(asset.CatalogEntry{
		ID:         "urn:rts:video:1",
		Title:      "News",
		DurationMs: 60_000,
		Credits:    []timerange.Credit{timerange.NewOpening(0, 5_000)},
	})
	router := setupMediaTestRouter(c)

	w := doJSON(router, http.MethodGet, "/api/media/urn:rts:video:1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var entry asset.CatalogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "News", entry.Title)
	require.Len(t, entry.Credits, 1)
	assert.Equal(t, timerange.CreditOpening, entry.Credits[0].Kind)

	w = doJSON(router, http.MethodGet, "/api/media/urn:missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutMedia(t *testing.T) {
	c := newMockCatalog()
	router := setupMediaTestRouter(c)

	body := `{"title":"Match","duration_ms":90000,"blocked_time_ranges":[{"start_ms":1000,"end_ms":2000,"reason":"LEGAL"}]}`
	w := doJSON(router, http.MethodPut, "/api/media/urn:match", body)
	require.Equal(t, http.StatusOK, w.Code)

	saved, err := c.GetEntry(context.Background(), "urn:match")
	require.NoError(t, err)
	assert.Equal(t, "Match", saved.Title)
	assert.Equal(t, int64(90_000), saved.DurationMs)
	require.Len(t, saved.BlockedTimeRanges, 1)
	assert.Equal(t, int64(2000), saved.BlockedTimeRanges[0].EndMs)
}

func TestPutMedia_Invalid(t *testing.T) {
	router := setupMediaTestRouter(newMockCatalog())

	w := doJSON(router, http.MethodPut, "/api/media/urn:x", `{"duration_ms":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPut, "/api/media/urn:x", `{"credits":[{"kind":"intro","start_ms":0,"end_ms":1}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPut, "/api/media/urn:x", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
