// Package player defines the player capability consumed by the playback
// trackers, and a looper-bound simulator implementing it.
package player

// State is the playback state of a player
type State string

// Playback states
const (
	StateIdle      State = "idle"      // No media prepared, or stopped, or failed
	StateBuffering State = "buffering" // Loading or stalled
	StateReady     State = "ready"     // Able to play from the current position
	StateEnded     State = "ended"     // Reached the end of the playlist
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid checks if the state is a known value
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateBuffering, StateReady, StateEnded:
		return true
	default:
		return false
	}
}

// DiscontinuityReason explains a jump of the playback position
type DiscontinuityReason string

// Discontinuity reasons
const (
	DiscontinuityAutoTransition DiscontinuityReason = "auto_transition"
	DiscontinuitySeek           DiscontinuityReason = "seek"
	DiscontinuitySeekAdjustment DiscontinuityReason = "seek_adjustment"
	DiscontinuitySkip           DiscontinuityReason = "skip"
	DiscontinuityRemove         DiscontinuityReason = "remove"
	DiscontinuityInternal       DiscontinuityReason = "internal"
)

// IsSeek reports whether the jump was requested through a seek
func (r DiscontinuityReason) IsSeek() bool {
	return r == DiscontinuitySeek || r == DiscontinuitySeekAdjustment
}

// TimelineChangeReason explains a timeline update
type TimelineChangeReason string

// Timeline change reasons
const (
	TimelineChangePlaylistChanged TimelineChangeReason = "playlist_changed"
	TimelineChangeSourceUpdate    TimelineChangeReason = "source_update"
)

// TransitionReason explains why the current media item changed
type TransitionReason string

// Media item transition reasons
const (
	TransitionRepeat          TransitionReason = "repeat"
	TransitionAuto            TransitionReason = "auto"
	TransitionSeek            TransitionReason = "seek"
	TransitionPlaylistChanged TransitionReason = "playlist_changed"
)

// Event is a single kind of player change reported in an events batch
type Event uint32

// Player events
const (
	EventTimelineChanged Event = 1 << iota
	EventMediaItemTransition
	EventPlaybackStateChanged
	EventPlayWhenReadyChanged
	EventIsPlayingChanged
	EventPositionDiscontinuity
	EventPlayerError
)

// Events is the set of changes that happened during one player operation
type Events uint32

// Contains reports whether the event is in the set
func (e Events) Contains(event Event) bool {
	return uint32(e)&uint32(event) != 0
}

// ContainsAny reports whether any of the events is in the set
func (e Events) ContainsAny(events ...Event) bool {
	for _, event := range events {
		if e.Contains(event) {
			return true
		}
	}
	return false
}

// With returns the set with the event added
func (e Events) With(event Event) Events {
	return Events(uint32(e) | uint32(event))
}

// PositionInfo locates a position in the playlist
type PositionInfo struct {
	MediaItemID    string `json:"media_item_id"`
	MediaItemIndex int    `json:"media_item_index"`
	PositionMs     int64  `json:"position_ms"`
}
