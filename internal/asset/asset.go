// Package asset describes what a media item resolves to once loaded: its
// duration, live flag, time ranges and analytics labels.
package asset

import (
	"context"
	"errors"

	"github.com/stwalsh4118/pillarbox/internal/timerange"
)

// Asset errors
var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrInvalidEntry  = errors.New("invalid catalog entry")
)

// MediaItem is what a host asks the player to play
type MediaItem struct {
	ID    string `json:"id"`
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// Metadata holds the ordered time range lists of an asset
type Metadata struct {
	BlockedTimeRanges []timerange.BlockedTimeRange `json:"blocked_time_ranges"`
	Chapters          []timerange.Chapter          `json:"chapters"`
	Credits           []timerange.Credit           `json:"credits"`
}

// IsEmpty reports whether the asset carries no time range at all
func (m Metadata) IsEmpty() bool {
	return len(m.BlockedTimeRanges) == 0 && len(m.Chapters) == 0 && len(m.Credits) == 0
}

// TrackerData holds the per-vendor label maps attached to analytics events
type TrackerData struct {
	CommandersAct map[string]string `json:"commandersact,omitempty"`
	ComScore      map[string]string `json:"comscore,omitempty"`
}

// Asset is a loaded media item
type Asset struct {
	MediaItemID string      `json:"media_item_id"`
	Title       string      `json:"title"`
	URI         string      `json:"uri"`
	DurationMs  int64       `json:"duration_ms"`
	Live        bool        `json:"live"`
	Metadata    Metadata    `json:"metadata"`
	Trackers    TrackerData `json:"trackers"`
}

// Loader resolves a media item into an asset. Implementations may block on I/O;
// callers never invoke them on a player looper.
type Loader interface {
	Load(ctx context.Context, item MediaItem) (*Asset, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, item MediaItem) (*Asset, error)

// Load calls f(ctx, item)
func (f LoaderFunc) Load(ctx context.Context, item MediaItem) (*Asset, error) {
	return f(ctx, item)
}
