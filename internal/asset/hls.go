package asset

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

// PlaylistInfo is what a media playlist says about its stream
type PlaylistInfo struct {
	DurationMs int64
	Live       bool
	Segments   int
}

// ProbePlaylist decodes an HLS media playlist and sums its segment durations.
// A playlist without EXT-X-ENDLIST is live.
func ProbePlaylist(path string) (*PlaylistInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	playlist, listType, err := m3u8.DecodeFrom(f, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist %s: %w", path, err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("%s is not a media playlist", path)
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, fmt.Errorf("%s is not a media playlist", path)
	}

	info := &PlaylistInfo{Live: !media.Closed}
	var seconds float64
	for _, seg := range media.Segments {
		// The segment ring buffer is allocated ahead of its content
		if seg == nil {
			continue
		}
		seconds += seg.Duration
		info.Segments++
	}
	info.DurationMs = int64(math.Round(seconds * 1000))
	return info, nil
}

// localPlaylistPath returns the file path of a local .m3u8 URI
func localPlaylistPath(uri string) (string, bool) {
	if !strings.HasSuffix(strings.ToLower(uri), ".m3u8") {
		return "", false
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "":
		return filepath.Clean(uri), true
	case "file":
		return filepath.Clean(u.Path), true
	default:
		return "", false
	}
}

// ProbingLoader fills in the duration and live flag of assets whose catalog
// entry has no duration by reading their local HLS media playlist
type ProbingLoader struct {
	next Loader
}

// NewProbingLoader wraps next
func NewProbingLoader(next Loader) *ProbingLoader {
	return &ProbingLoader{next: next}
}

// Load resolves the asset and probes its playlist when needed.
// A playlist that cannot be read leaves the asset unchanged.
func (l *ProbingLoader) Load(ctx context.Context, item MediaItem) (*Asset, error) {
	a, err := l.next.Load(ctx, item)
	if err != nil || a == nil || a.DurationMs > 0 {
		return a, err
	}

	path, ok := localPlaylistPath(a.URI)
	if !ok {
		return a, nil
	}

	info, err := ProbePlaylist(path)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("media_id", item.ID).
			Str("uri", a.URI).
			Msg("Failed to probe playlist")
		return a, nil
	}

	a.DurationMs = info.DurationMs
	a.Live = a.Live || info.Live

	logger.Log.Debug().
		Str("media_id", item.ID).
		Int64("duration_ms", info.DurationMs).
		Bool("live", info.Live).
		Int("segments", info.Segments).
		Msg("Probed playlist")

	return a, nil
}
