package player

import (
	"context"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/looper"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
)

const defaultLoadTimeout = 10 * time.Second

// Simulator is a player that advances its position with the looper clock
// instead of decoding media. Assets are resolved asynchronously through an
// asset.Loader so a slow loader never blocks the looper.
//
// Every method must be called on the simulator's looper.
type Simulator struct {
	looper      *looper.Looper
	clock       clockwork.Clock
	loader      asset.Loader
	loadTimeout time.Duration
	log         zerolog.Logger

	listeners   []Listener
	queued      []func(Listener)
	dispatching bool
	pending     Events

	items         []asset.MediaItem
	index         int
	current       *asset.Asset
	state         State
	playWhenReady bool
	playing       bool
	positionMs    int64
	anchor        time.Time
	seekedEarly   bool
	firstFrame    bool
	released      bool
	lastError     *PlaybackError

	loadGen     uint64
	loadStarted time.Time
	cancelLoad  context.CancelFunc
	cancelEnd   func()
	cancelStall func()
}

// Compile-time check that Simulator implements Player
var _ Player = (*Simulator)(nil)

// NewSimulator creates an idle simulator bound to the looper
func NewSimulator(l *looper.Looper, loader asset.Loader, loadTimeout time.Duration) *Simulator {
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &Simulator{
		looper:      l,
		clock:       l.Clock(),
		loader:      loader,
		loadTimeout: loadTimeout,
		log:         logger.Component("player").With().Str("looper", l.Name()).Logger(),
		state:       StateIdle,
	}
}

// Looper returns the looper the simulator is bound to
func (s *Simulator) Looper() *looper.Looper {
	return s.looper
}

// AddListener registers a listener. Adding the same listener twice is a no-op.
func (s *Simulator) AddListener(l Listener) {
	if s.released || slices.Contains(s.listeners, l) {
		return
	}
	s.listeners = append(s.listeners, l)
}

// RemoveListener unregisters a listener. It receives no further callback,
// including the ones already queued.
func (s *Simulator) RemoveListener(l Listener) {
	s.listeners = slices.DeleteFunc(s.listeners, func(other Listener) bool {
		return other == l
	})
}

// CurrentPosition returns the playback position in milliseconds
func (s *Simulator) CurrentPosition() int64 {
	if !s.hasItem() {
		return 0
	}
	pos := s.positionMs
	if s.playing {
		pos += s.clock.Since(s.anchor).Milliseconds()
	}
	if s.current != nil && pos > s.current.DurationMs {
		pos = s.current.DurationMs
	}
	return pos
}

// Duration returns the current asset duration, or timerange.TimeUnset before it loads
func (s *Simulator) Duration() int64 {
	if s.current == nil {
		return timerange.TimeUnset
	}
	return s.current.DurationMs
}

// IsPlaying reports whether the position is advancing
func (s *Simulator) IsPlaying() bool {
	return s.playing
}

// PlaybackState returns the playback state
func (s *Simulator) PlaybackState() State {
	return s.state
}

// PlayWhenReady reports whether playback proceeds once ready
func (s *Simulator) PlayWhenReady() bool {
	return s.playWhenReady
}

// IsCurrentMediaItemLive reports whether the loaded asset is a live stream
func (s *Simulator) IsCurrentMediaItemLive() bool {
	return s.current != nil && s.current.Live
}

// CurrentMediaItem returns the current playlist item, or nil
func (s *Simulator) CurrentMediaItem() *asset.MediaItem {
	if !s.hasItem() {
		return nil
	}
	item := s.items[s.index]
	return &item
}

// CurrentMediaItemIndex returns the index of the current playlist item
func (s *Simulator) CurrentMediaItemIndex() int {
	return s.index
}

// MediaItemCount returns the playlist length
func (s *Simulator) MediaItemCount() int {
	return len(s.items)
}

// CurrentAsset returns the loaded asset of the current item, or nil
func (s *Simulator) CurrentAsset() *asset.Asset {
	return s.current
}

// LastError returns the error that moved the player to idle, if any
func (s *Simulator) LastError() *PlaybackError {
	return s.lastError
}

// IsReleased reports whether Release was called
func (s *Simulator) IsReleased() bool {
	return s.released
}

// SetMediaItems replaces the playlist and moves to its first item.
// A prepared player starts loading the new item right away.
func (s *Simulator) SetMediaItems(items []asset.MediaItem) {
	if s.released {
		return
	}

	hadItem := s.hasItem()
	s.stopLoading()
	s.cancelStallTimer()
	s.setPlaying(false)

	s.items = slices.Clone(items)
	s.index = 0
	s.current = nil
	s.positionMs = 0
	s.seekedEarly = false
	s.firstFrame = false

	s.pending = s.pending.With(EventTimelineChanged)
	s.dispatch(func(l Listener) { l.OnTimelineChanged(TimelineChangePlaylistChanged) })

	if s.hasItem() || hadItem {
		item := s.CurrentMediaItem()
		s.pending = s.pending.With(EventMediaItemTransition)
		s.dispatch(func(l Listener) { l.OnMediaItemTransition(item, TransitionPlaylistChanged) })
	}

	if s.state != StateIdle {
		if s.hasItem() {
			s.setState(StateBuffering)
			s.flush()
			s.startLoad()
			return
		}
		s.setState(StateEnded)
	}
	s.flush()
}

// Prepare starts loading the current item. It is a no-op unless the player is idle.
func (s *Simulator) Prepare() {
	if s.released || s.state != StateIdle {
		return
	}

	s.lastError = nil
	if !s.hasItem() {
		s.setState(StateEnded)
		s.flush()
		return
	}

	s.setState(StateBuffering)
	s.flush()
	s.startLoad()
}

// Play requests playback as soon as the player is ready
func (s *Simulator) Play() {
	s.setPlayWhenReady(true)
}

// Pause suspends playback
func (s *Simulator) Pause() {
	s.setPlayWhenReady(false)
}

// SeekTo moves the position within the current item. The position is clamped
// to the asset bounds once the asset is known.
func (s *Simulator) SeekTo(positionMs int64) {
	if s.released || !s.hasItem() {
		return
	}

	if positionMs < 0 {
		positionMs = 0
	}
	if s.current != nil && positionMs > s.current.DurationMs {
		positionMs = s.current.DurationMs
	}
	if s.current == nil {
		s.seekedEarly = true
	}

	oldPosition := s.positionInfo()
	s.positionMs = positionMs
	if s.playing {
		s.anchor = s.clock.Now()
	}
	newPosition := s.positionInfo()

	s.log.Debug().
		Int64("from_ms", oldPosition.PositionMs).
		Int64("to_ms", newPosition.PositionMs).
		Msg("Seek")

	s.pending = s.pending.With(EventPositionDiscontinuity)
	s.dispatch(func(l Listener) { l.OnPositionDiscontinuity(oldPosition, newPosition, DiscontinuitySeek) })

	if s.state == StateEnded && s.current != nil && positionMs < s.current.DurationMs {
		s.setState(StateReady)
		s.updatePlaying()
	}
	if s.playing {
		s.scheduleEnd()
	}
	s.flush()
}

// SeekToNext moves to the start of the next playlist item, if any
func (s *Simulator) SeekToNext() bool {
	if s.released || s.index+1 >= len(s.items) {
		return false
	}
	s.transition(DiscontinuitySeek, TransitionSeek)
	return true
}

// Stop halts playback and returns to idle, keeping the playlist.
// Prepare loads the current item again.
func (s *Simulator) Stop() {
	if s.released {
		return
	}

	s.stopLoading()
	s.cancelStallTimer()
	s.setPlaying(false)
	s.setState(StateIdle)
	s.flush()
}

// Release stops everything and notifies listeners one last time.
// The simulator is unusable afterwards.
func (s *Simulator) Release() {
	if s.released {
		return
	}

	s.stopLoading()
	s.cancelStallTimer()
	s.cancelEndTimer()
	s.positionMs = s.CurrentPosition()
	s.playing = false

	s.released = true
	s.dispatch(func(l Listener) { l.OnPlayerReleased() })
	if !s.dispatching {
		s.listeners = nil
	}

	s.log.Debug().Msg("Player released")
}

// InjectStall moves a playing player to buffering for the given duration
func (s *Simulator) InjectStall(d time.Duration) {
	if s.released || !s.playing || d <= 0 {
		return
	}

	s.setState(StateBuffering)
	s.setPlaying(false)
	s.flush()

	s.cancelStall = s.looper.PostDelayed(func() {
		s.cancelStall = nil
		if s.state != StateBuffering || s.current == nil {
			return
		}
		s.setState(StateReady)
		s.updatePlaying()
		s.flush()
	}, d)
}

// InjectError fails the current playback with the given cause
func (s *Simulator) InjectError(cause error) {
	if s.released || !s.hasItem() {
		return
	}
	perr := ClassifyError(cause)
	if perr.Type == ErrorTypeAssetLoadFailed && s.current != nil {
		perr = NewPlaybackError(ErrorTypeRenderer, "Playback failed", cause)
	}
	s.fail(perr)
}

// hasItem reports whether the playlist has a current item
func (s *Simulator) hasItem() bool {
	return s.index < len(s.items)
}

// positionInfo captures the current playlist position
func (s *Simulator) positionInfo() PositionInfo {
	info := PositionInfo{MediaItemIndex: s.index, PositionMs: s.CurrentPosition()}
	if item := s.CurrentMediaItem(); item != nil {
		info.MediaItemID = item.ID
	}
	return info
}

// startLoad resolves the current item on a separate goroutine and posts the
// result back to the looper
func (s *Simulator) startLoad() {
	item := s.items[s.index]
	s.loadGen++
	generation := s.loadGen

	ctx, cancel := context.WithTimeout(context.Background(), s.loadTimeout)
	s.cancelLoad = cancel
	s.loadStarted = s.clock.Now()

	s.log.Debug().Str("media_item_id", item.ID).Msg("Loading asset")
	s.dispatch(func(l Listener) { l.OnAssetLoadStarted(item) })

	go func() {
		defer cancel()
		loaded, err := s.loader.Load(ctx, item)
		s.looper.Post(func() {
			s.onAssetLoaded(generation, item, loaded, err)
		})
	}()
}

// stopLoading abandons the asset load in flight, if any
func (s *Simulator) stopLoading() {
	s.loadGen++
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

// onAssetLoaded applies a load result unless it was superseded
func (s *Simulator) onAssetLoaded(generation uint64, item asset.MediaItem, loaded *asset.Asset, err error) {
	if s.released || generation != s.loadGen {
		return
	}
	s.cancelLoad = nil

	if err == nil && loaded == nil {
		err = asset.ErrAssetNotFound
	}
	if err != nil {
		s.log.Warn().Err(err).Str("media_item_id", item.ID).Msg("Asset load failed")
		s.fail(ClassifyError(err))
		return
	}

	loadDuration := s.clock.Since(s.loadStarted)
	s.current = loaded
	if loaded.Live && !s.seekedEarly {
		// Live streams start at the live edge
		s.positionMs = loaded.DurationMs
	}
	if s.positionMs > loaded.DurationMs {
		s.positionMs = loaded.DurationMs
	}

	s.dispatch(func(l Listener) { l.OnAssetLoaded(item, loaded, loadDuration) })
	s.pending = s.pending.With(EventTimelineChanged)
	s.dispatch(func(l Listener) { l.OnTimelineChanged(TimelineChangeSourceUpdate) })

	s.setState(StateReady)
	s.updatePlaying()
	s.flush()

	if !s.firstFrame {
		s.firstFrame = true
		s.dispatch(func(l Listener) { l.OnRenderedFirstFrame() })
	}
}

// fail reports a playback error and moves to idle
func (s *Simulator) fail(err *PlaybackError) {
	s.stopLoading()
	s.cancelStallTimer()
	s.lastError = err

	s.pending = s.pending.With(EventPlayerError)
	s.dispatch(func(l Listener) { l.OnPlayerError(err) })

	s.setPlaying(false)
	s.setState(StateIdle)
	s.flush()
}

// transition moves to the next playlist item and starts loading it
func (s *Simulator) transition(discontinuity DiscontinuityReason, reason TransitionReason) {
	s.stopLoading()
	s.cancelStallTimer()
	s.setPlaying(false)

	oldPosition := s.positionInfo()
	s.index++
	s.current = nil
	s.positionMs = 0
	s.seekedEarly = false
	newPosition := s.positionInfo()
	item := s.CurrentMediaItem()

	s.log.Debug().
		Str("media_item_id", newPosition.MediaItemID).
		Str("reason", string(reason)).
		Msg("Media item transition")

	s.pending = s.pending.With(EventPositionDiscontinuity).With(EventMediaItemTransition)
	s.dispatch(func(l Listener) { l.OnPositionDiscontinuity(oldPosition, newPosition, discontinuity) })
	s.dispatch(func(l Listener) { l.OnMediaItemTransition(item, reason) })

	s.setState(StateBuffering)
	s.flush()
	s.startLoad()
}

// onEnded handles the current item reaching its end
func (s *Simulator) onEnded() {
	s.cancelEnd = nil
	if !s.playing || s.current == nil || s.current.Live {
		return
	}

	if s.index+1 < len(s.items) {
		s.transition(DiscontinuityAutoTransition, TransitionAuto)
		return
	}

	s.setState(StateEnded)
	s.setPlaying(false)
	s.flush()
}

// setPlayWhenReady updates the play intent and the resulting playing flag
func (s *Simulator) setPlayWhenReady(playWhenReady bool) {
	if s.released || s.playWhenReady == playWhenReady {
		return
	}

	s.playWhenReady = playWhenReady
	s.pending = s.pending.With(EventPlayWhenReadyChanged)
	s.dispatch(func(l Listener) { l.OnPlayWhenReadyChanged(playWhenReady) })
	s.updatePlaying()
	s.flush()
}

// updatePlaying derives the playing flag from the state and play intent
func (s *Simulator) updatePlaying() {
	s.setPlaying(s.state == StateReady && s.playWhenReady && s.current != nil)
}

// setPlaying starts or freezes the position clock
func (s *Simulator) setPlaying(playing bool) {
	if s.playing == playing {
		return
	}

	if playing {
		s.anchor = s.clock.Now()
		s.playing = true
		s.scheduleEnd()
	} else {
		s.positionMs = s.CurrentPosition()
		s.playing = false
		s.cancelEndTimer()
	}

	s.pending = s.pending.With(EventIsPlayingChanged)
	s.dispatch(func(l Listener) { l.OnIsPlayingChanged(playing) })
}

// setState changes the playback state
func (s *Simulator) setState(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.pending = s.pending.With(EventPlaybackStateChanged)
	s.dispatch(func(l Listener) { l.OnPlaybackStateChanged(state) })
}

// scheduleEnd arms the end-of-item task from the current position
func (s *Simulator) scheduleEnd() {
	s.cancelEndTimer()
	if s.current == nil || s.current.Live {
		return
	}
	remaining := time.Duration(s.current.DurationMs-s.CurrentPosition()) * time.Millisecond
	s.cancelEnd = s.looper.PostDelayed(s.onEnded, remaining)
}

// cancelEndTimer disarms the end-of-item task
func (s *Simulator) cancelEndTimer() {
	if s.cancelEnd != nil {
		s.cancelEnd()
		s.cancelEnd = nil
	}
}

// cancelStallTimer disarms a pending stall recovery
func (s *Simulator) cancelStallTimer() {
	if s.cancelStall != nil {
		s.cancelStall()
		s.cancelStall = nil
	}
}

// flush reports the accumulated batch through OnEvents
func (s *Simulator) flush() {
	if s.pending == 0 {
		return
	}
	events := s.pending
	s.pending = 0
	s.dispatch(func(l Listener) { l.OnEvents(s, events) })
}

// dispatch delivers a callback to every listener. Callbacks raised while
// dispatching are queued and delivered in order once the current one is done.
func (s *Simulator) dispatch(callback func(Listener)) {
	s.queued = append(s.queued, callback)
	if s.dispatching {
		return
	}

	s.dispatching = true
	defer func() { s.dispatching = false }()

	for len(s.queued) > 0 {
		next := s.queued[0]
		s.queued[0] = nil
		s.queued = s.queued[1:]

		for _, l := range slices.Clone(s.listeners) {
			if slices.Contains(s.listeners, l) {
				next(l)
			}
		}
	}
}
