package asset

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/samber/lo"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
	"gopkg.in/yaml.v3"
)

// Catalog is the YAML document listing playable media
type Catalog struct {
	Media []CatalogEntry `yaml:"media"`
}

// CatalogEntry describes one media item and everything its asset carries
type CatalogEntry struct {
	ID                string                       `json:"id" yaml:"id"`
	Title             string                       `json:"title" yaml:"title"`
	URI               string                       `json:"uri" yaml:"uri"`
	DurationMs        int64                        `json:"duration_ms" yaml:"duration_ms"`
	Live              bool                         `json:"live" yaml:"live"`
	BlockedTimeRanges []timerange.BlockedTimeRange `json:"blocked_time_ranges,omitempty" yaml:"blocked_time_ranges"`
	Chapters          []timerange.Chapter          `json:"chapters,omitempty" yaml:"chapters"`
	Credits           []timerange.Credit           `json:"credits,omitempty" yaml:"credits"`
	Analytics         CatalogAnalytics             `json:"analytics" yaml:"analytics"`
}

// CatalogAnalytics holds vendor label maps in the catalog
type CatalogAnalytics struct {
	CommandersAct map[string]string `json:"commandersact,omitempty" yaml:"commandersact"`
	ComScore      map[string]string `json:"comscore,omitempty" yaml:"comscore"`
}

// Validate checks the entry fields a player relies on.
// Time ranges are deliberately accepted as-is.
func (e CatalogEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	}
	if e.DurationMs < 0 {
		return fmt.Errorf("%w: duration_ms must be >= 0 for %s", ErrInvalidEntry, e.ID)
	}
	for _, c := range e.Credits {
		if !c.Kind.IsValid() {
			return fmt.Errorf("%w: unknown credit kind %q for %s", ErrInvalidEntry, c.Kind, e.ID)
		}
	}
	return nil
}

// RangeWarnings describes time ranges that can never match and overlapping
// ranges, of which only the first in list order applies
func (e CatalogEntry) RangeWarnings() []string {
	var warnings []string
	warnings = append(warnings, rangeWarnings("blocked range", e.BlockedTimeRanges)...)
	warnings = append(warnings, rangeWarnings("chapter", e.Chapters)...)
	warnings = append(warnings, rangeWarnings("credit", e.Credits)...)
	return warnings
}

func rangeWarnings[T timerange.TimeRange](kind string, ranges []T) []string {
	var warnings []string
	for i, r := range ranges {
		if !timerange.IsWellFormed(r) {
			warnings = append(warnings, fmt.Sprintf("%s %d [%d, %d) is empty", kind, i, r.Start(), r.End()))
			continue
		}
		for j := i + 1; j < len(ranges); j++ {
			if timerange.IsWellFormed(ranges[j]) && timerange.Overlaps(r, ranges[j]) {
				warnings = append(warnings, fmt.Sprintf("%s %d overlaps %s %d", kind, j, kind, i))
			}
		}
	}
	return warnings
}

// Asset converts the entry into a loaded asset
func (e CatalogEntry) Asset() *Asset {
	return &Asset{
		MediaItemID: e.ID,
		Title:       e.Title,
		URI:         e.URI,
		DurationMs:  e.DurationMs,
		Live:        e.Live,
		Metadata: Metadata{
			BlockedTimeRanges: cloneSlice(e.BlockedTimeRanges),
			Chapters:          cloneSlice(e.Chapters),
			Credits:           cloneSlice(e.Credits),
		},
		Trackers: TrackerData{
			CommandersAct: lo.Assign(e.Analytics.CommandersAct),
			ComScore:      lo.Assign(e.Analytics.ComScore),
		},
	}
}

// MediaItem returns the playable item for the entry
func (e CatalogEntry) MediaItem() MediaItem {
	return MediaItem{ID: e.ID, URI: e.URI, Title: e.Title}
}

// cloneSlice copies a slice so assets never share backing arrays with the catalog
func cloneSlice[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Media))
	for _, entry := range catalog.Media {
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidEntry, entry.ID)
		}
		seen[entry.ID] = true

		for _, warning := range entry.RangeWarnings() {
			logger.Log.Warn().
				Str("media_id", entry.ID).
				Str("warning", warning).
				Msg("Catalog time range will be ignored")
		}
	}

	return &catalog, nil
}

// LoadCatalogFile reads a YAML catalog from disk
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// CatalogLoader serves assets from an in-memory catalog
type CatalogLoader struct {
	entries map[string]CatalogEntry
	mu      sync.RWMutex
}

// NewCatalogLoader indexes the catalog entries by id
func NewCatalogLoader(catalog *Catalog) *CatalogLoader {
	l := &CatalogLoader{entries: make(map[string]CatalogEntry)}
	if catalog != nil {
		for _, entry := range catalog.Media {
			l.entries[entry.ID] = entry
		}
	}
	return l
}

// Put adds or replaces an entry
func (l *CatalogLoader) Put(entry CatalogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.ID] = entry
}

// Load returns the asset for the media item id
func (l *CatalogLoader) Load(ctx context.Context, item MediaItem) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	entry, ok := l.entries[item.ID]
	l.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, item.ID)
	}
	return entry.Asset(), nil
}
