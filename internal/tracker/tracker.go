// Package tracker follows the playback position of a player against the time
// ranges of its current asset. It skips blocked ranges and reports chapter and
// credit changes.
package tracker

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/heartbeat"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/player"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
)

// ErrNilPlayer is returned when a tracker is created without a player
var ErrNilPlayer = errors.New("tracker player cannot be nil")

// Listener receives time range transitions on the player's looper
type Listener interface {
	// OnBlockedTimeRangeReached is called right before the player is moved past the range
	OnBlockedTimeRangeReached(r timerange.BlockedTimeRange)
	// OnChapterChanged is called with the new chapter, or nil when leaving all chapters
	OnChapterChanged(chapter *timerange.Chapter)
	// OnCreditChanged is called with the new credit, or nil when leaving all credits
	OnCreditChanged(credit *timerange.Credit)
}

// Tracker maintains the current chapter, the current credit and the blocked
// range guard of one player. Every method runs on the player's looper.
type Tracker struct {
	player.BaseListener

	player   player.Player
	listener Listener
	poll     *heartbeat.Heartbeat
	log      zerolog.Logger

	blocked  []timerange.BlockedTimeRange
	chapters []timerange.Chapter
	credits  []timerange.Credit
	// itemIndex is the playlist index the range lists belong to, or -1
	itemIndex int

	// blockedIndex is the blocked range a seek was issued for, or -1
	blockedIndex int
	chapter      *timerange.Chapter
	credit       *timerange.Credit
	released     bool
}

// New creates a tracker and registers it on the player. The position is
// polled every pollInterval while the player is playing.
func New(p player.Player, scheduler heartbeat.Scheduler, pollInterval time.Duration, listener Listener) (*Tracker, error) {
	if p == nil {
		return nil, ErrNilPlayer
	}

	t := &Tracker{
		player:       p,
		listener:     listener,
		blockedIndex: -1,
		itemIndex:    -1,
		log:          logger.Component("tracker"),
	}

	poll, err := heartbeat.New(0, pollInterval, scheduler, t.onPoll)
	if err != nil {
		return nil, err
	}
	t.poll = poll

	p.AddListener(t)
	if a := p.CurrentAsset(); a != nil {
		t.load(a)
	}
	if p.IsPlaying() {
		t.poll.Start(false)
	}

	return t, nil
}

// CurrentChapter returns the chapter at the last sampled position, or nil
func (t *Tracker) CurrentChapter() *timerange.Chapter {
	return t.chapter
}

// CurrentCredit returns the credit at the last sampled position, or nil
func (t *Tracker) CurrentCredit() *timerange.Credit {
	return t.credit
}

// IsBlocked reports whether a seek past a blocked range is in flight
func (t *Tracker) IsBlocked() bool {
	return t.blockedIndex >= 0
}

// SkipCredit seeks to the end of the current credit. It reports whether a seek happened.
func (t *Tracker) SkipCredit() bool {
	if t.released || t.credit == nil {
		return false
	}
	t.player.SeekTo(t.credit.EndMs)
	return true
}

// Release stops polling and unregisters the tracker from the player
func (t *Tracker) Release() {
	if t.released {
		return
	}
	t.poll.Stop()
	t.player.RemoveListener(t)
	t.released = true
	t.reset()
}

// Sample evaluates the three projections at the position of the current item
func (t *Tracker) Sample(position int64) {
	t.sampleAt(t.player.CurrentMediaItemIndex(), position)
}

// sampleAt evaluates the projections at a position of the item at index.
// Positions of another item than the one the ranges were loaded for are ignored.
func (t *Tracker) sampleAt(index int, position int64) {
	if t.released || index != t.itemIndex {
		return
	}

	blocked := timerange.IndexAtPosition(t.blocked, position)
	switch {
	case blocked < 0:
		t.blockedIndex = -1
	case blocked != t.blockedIndex:
		t.blockedIndex = blocked
		r := t.blocked[blocked]

		t.log.Info().
			Str("range_id", r.ID).
			Str("reason", string(r.Reason)).
			Int64("position_ms", position).
			Int64("seek_to_ms", r.EndMs).
			Msg("Blocked time range reached")

		if t.listener != nil {
			t.listener.OnBlockedTimeRangeReached(r)
		}
		t.player.SeekTo(r.EndMs)
		// The seek is reported back as a discontinuity, which samples again
		return
	default:
		// Seek for this range already issued
		return
	}

	var chapter *timerange.Chapter
	if c, ok := timerange.FirstAtPosition(t.chapters, position); ok {
		chapter = &c
	}
	t.setChapter(chapter)

	var credit *timerange.Credit
	if c, ok := timerange.FirstAtPosition(t.credits, position); ok {
		credit = &c
	}
	t.setCredit(credit)
}

// OnIsPlayingChanged polls while playing and samples once when playback stops
func (t *Tracker) OnIsPlayingChanged(isPlaying bool) {
	if isPlaying {
		t.poll.Start(false)
		return
	}
	t.poll.Stop()
	t.Sample(t.player.CurrentPosition())
}

// OnPositionDiscontinuity samples the new position right away. A jump to
// another item is left to the media item transition, which resets the tracker.
func (t *Tracker) OnPositionDiscontinuity(oldPosition, newPosition player.PositionInfo, reason player.DiscontinuityReason) {
	if reason == player.DiscontinuityAutoTransition || oldPosition.MediaItemIndex != newPosition.MediaItemIndex {
		return
	}
	t.sampleAt(newPosition.MediaItemIndex, newPosition.PositionMs)
}

// OnTimelineChanged picks up the time ranges once the asset is loaded
func (t *Tracker) OnTimelineChanged(reason player.TimelineChangeReason) {
	if reason != player.TimelineChangeSourceUpdate {
		return
	}
	if a := t.player.CurrentAsset(); a != nil {
		t.load(a)
		t.Sample(t.player.CurrentPosition())
	}
}

// OnMediaItemTransition drops the ranges of the previous item
func (t *Tracker) OnMediaItemTransition(*asset.MediaItem, player.TransitionReason) {
	t.reset()
}

// OnPlayerReleased releases the tracker along with the player
func (t *Tracker) OnPlayerReleased() {
	t.Release()
}

// onPoll samples the current position
func (t *Tracker) onPoll() {
	t.Sample(t.player.CurrentPosition())
}

// load replaces the range lists with the asset's
func (t *Tracker) load(a *asset.Asset) {
	t.blocked = a.Metadata.BlockedTimeRanges
	t.chapters = a.Metadata.Chapters
	t.credits = a.Metadata.Credits
	t.itemIndex = t.player.CurrentMediaItemIndex()
	t.blockedIndex = -1

	t.log.Debug().
		Str("media_item_id", a.MediaItemID).
		Int("media_item_index", t.itemIndex).
		Int("blocked", len(t.blocked)).
		Int("chapters", len(t.chapters)).
		Int("credits", len(t.credits)).
		Msg("Time ranges loaded")
}

// reset returns every projection to no active range and drops the lists
func (t *Tracker) reset() {
	t.blocked = nil
	t.chapters = nil
	t.credits = nil
	t.itemIndex = -1
	t.blockedIndex = -1
	t.setChapter(nil)
	t.setCredit(nil)
}

// setChapter records the chapter and notifies on change
func (t *Tracker) setChapter(chapter *timerange.Chapter) {
	if equal(t.chapter, chapter) {
		return
	}
	t.chapter = chapter
	if t.listener != nil {
		t.listener.OnChapterChanged(chapter)
	}
}

// setCredit records the credit and notifies on change
func (t *Tracker) setCredit(credit *timerange.Credit) {
	if equal(t.credit, credit) {
		return
	}
	t.credit = credit
	if t.listener != nil {
		t.listener.OnCreditChanged(credit)
	}
}

// equal compares two optional values
func equal[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
