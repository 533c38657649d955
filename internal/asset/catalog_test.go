package asset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
)

const testCatalog = `
media:
  - id: urn:pillarbox:video:1
    title: Episode 1
    uri: https://example.org/1.m3u8
    duration_ms: 1800000
    blocked_time_ranges:
      - id: ad-break
        start_ms: 10000
        end_ms: 20000
        reason: COMMERCIAL
    chapters:
      - id: A
        title: Intro
        start_ms: 0
        end_ms: 10000
      - id: B
        title: Main
        start_ms: 10000
        end_ms: 20000
    credits:
      - kind: opening
        start_ms: 0
        end_ms: 5000
      - kind: closing
        start_ms: 1700000
        end_ms: 1800000
    analytics:
      commandersact:
        media_title: Episode 1
      comscore:
        ns_st_ep: Episode 1
  - id: urn:pillarbox:live:1
    title: Live
    duration_ms: 7200000
    live: true
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	require.Len(t, catalog.Media, 2)

	entry := catalog.Media[0]
	assert.Equal(t, "urn:pillarbox:video:1", entry.ID)
	assert.Equal(t, int64(1_800_000), entry.DurationMs)
	require.Len(t, entry.BlockedTimeRanges, 1)
	assert.Equal(t, timerange.BlockReasonCommercial, entry.BlockedTimeRanges[0].Reason)
	require.Len(t, entry.Chapters, 2)
	assert.Equal(t, "B", entry.Chapters[1].ID)
	require.Len(t, entry.Credits, 2)
	assert.Equal(t, timerange.CreditClosing, entry.Credits[1].Kind)
	assert.Equal(t, "Episode 1", entry.Analytics.CommandersAct["media_title"])

	assert.True(t, catalog.Media[1].Live)
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "media: [\n"},
		{"missing id", "media:\n  - title: x\n"},
		{"negative duration", "media:\n  - id: a\n    duration_ms: -1\n"},
		{"unknown credit kind", "media:\n  - id: a\n    credits:\n      - kind: recap\n"},
		{"duplicate id", "media:\n  - id: a\n  - id: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseCatalog_KeepsMalformedRanges(t *testing.T) {
	data := "media:\n  - id: a\n    blocked_time_ranges:\n      - start_ms: 20000\n        end_ms: 10000\n"
	catalog, err := ParseCatalog([]byte(data))
	require.NoError(t, err)
	require.Len(t, catalog.Media[0].BlockedTimeRanges, 1)
	assert.False(t, timerange.IsWellFormed(catalog.Media[0].BlockedTimeRanges[0]))
}

func TestCatalogEntry_RangeWarnings(t *testing.T) {
	entry := CatalogEntry{
		ID: "a",
		BlockedTimeRanges: []timerange.BlockedTimeRange{
			{StartMs: 0, EndMs: 60_000},
			{StartMs: 10_000, EndMs: 20_000},
			{StartMs: 30_000, EndMs: 30_000},
		},
		Chapters: []timerange.Chapter{
			{ID: "A", StartMs: 0, EndMs: 10_000},
			{ID: "B", StartMs: 10_000, EndMs: 20_000},
		},
		Credits: []timerange.Credit{timerange.NewClosing(50_000, 40_000)},
	}

	assert.Equal(t, []string{
		"blocked range 1 overlaps blocked range 0",
		"blocked range 2 [30000, 30000) is empty",
		"credit 0 [50000, 40000) is empty",
	}, entry.RangeWarnings())

	assert.Empty(t, CatalogEntry{ID: "b"}.RangeWarnings())
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	catalog, err := LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Len(t, catalog.Media, 2)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalogLoader_Load(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	loader := NewCatalogLoader(catalog)

	a, err := loader.Load(context.Background(), MediaItem{ID: "urn:pillarbox:video:1"})
	require.NoError(t, err)
	assert.Equal(t, "Episode 1", a.Title)
	assert.Equal(t, int64(1_800_000), a.DurationMs)
	assert.Len(t, a.Metadata.Chapters, 2)
	assert.Equal(t, "Episode 1", a.Trackers.ComScore["ns_st_ep"])

	// Assets do not share memory with the catalog
	a.Metadata.Chapters[0].Title = "changed"
	again, err := loader.Load(context.Background(), MediaItem{ID: "urn:pillarbox:video:1"})
	require.NoError(t, err)
	assert.Equal(t, "Intro", again.Metadata.Chapters[0].Title)

	_, err = loader.Load(context.Background(), MediaItem{ID: "unknown"})
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestCatalogLoader_CancelledContext(t *testing.T) {
	loader := NewCatalogLoader(nil)
	loader.Put(CatalogEntry{ID: "a", DurationMs: 1000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, MediaItem{ID: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}

// memoryStore is an in-memory CatalogStore. Saving the entry with id failOn fails.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]CatalogEntry
	failOn  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]CatalogEntry)}
}

func (m *memoryStore) GetEntry(_ context.Context, id string) (*CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	return &entry, nil
}

func (m *memoryStore) SaveEntry(_ context.Context, entry CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && entry.ID == m.failOn {
		return errors.New("write failed")
	}
	m.entries[entry.ID] = entry
	return nil
}

func TestImportCatalogAndStoreLoader(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	store := newMemoryStore()
	n, err := ImportCatalog(context.Background(), catalog, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loader := NewStoreLoader(store)
	a, err := loader.Load(context.Background(), MediaItem{ID: "urn:pillarbox:live:1"})
	require.NoError(t, err)
	assert.True(t, a.Live)

	_, err = loader.Load(context.Background(), MediaItem{ID: "nope"})
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestImportCatalog_StopsOnError(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	store := newMemoryStore()
	store.failOn = "urn:pillarbox:live:1"
	n, err := ImportCatalog(context.Background(), catalog, store)
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	n, err = ImportCatalog(context.Background(), nil, store)
	assert.NoError(t, err)
	assert.Zero(t, n)
}
