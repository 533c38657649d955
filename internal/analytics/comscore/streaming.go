package comscore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/heartbeat"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/player"
	"github.com/stwalsh4118/pillarbox/internal/playtime"
)

// Live streams with a shorter window are reported without DVR
const dvrWindowThresholdMs = 60_000

// Streaming errors
var (
	ErrNilPlayer    = errors.New("comscore player cannot be nil")
	ErrNilAnalytics = errors.New("comscore streaming analytics cannot be nil")
)

// State is the playback state as reported to ComScore
type State string

// States
const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateHasSeek State = "has_seek"
)

// Config holds the adapter timings
type Config struct {
	DvrRefreshPeriod time.Duration
}

// DefaultConfig refreshes the DVR window length every 30s
func DefaultConfig() Config {
	return Config{DvrRefreshPeriod: 30 * time.Second}
}

// Streaming follows one player and reports it to ComScore.
// Every method runs on the player's looper.
type Streaming struct {
	player.BaseListener

	id         string
	player     player.Player
	analytics  StreamingAnalytics
	active     *ActiveTracker
	state      State
	buffering  bool
	live       bool
	playtime   *playtime.Counter
	dvrRefresh *heartbeat.Heartbeat
	log        zerolog.Logger
}

// NewStreaming creates the adapter and registers it on the player.
// The active tracker is shared between adapters and may be nil.
func NewStreaming(p player.Player, scheduler heartbeat.Scheduler, clock clockwork.Clock, cfg Config, analytics StreamingAnalytics, active *ActiveTracker) (*Streaming, error) {
	if p == nil {
		return nil, ErrNilPlayer
	}
	if analytics == nil {
		return nil, ErrNilAnalytics
	}

	s := &Streaming{
		id:        uuid.NewString(),
		player:    p,
		analytics: analytics,
		active:    active,
		state:     StateIdle,
		playtime:  playtime.NewCounter(clock),
	}
	s.log = logger.Component("comscore_streaming").With().Str("tracker_id", s.id).Logger()

	hb, err := heartbeat.New(cfg.DvrRefreshPeriod, cfg.DvrRefreshPeriod, scheduler, s.onDvrRefresh)
	if err != nil {
		return nil, err
	}
	s.dvrRefresh = hb

	if p.CurrentMediaItem() != nil {
		s.analytics.CreatePlaybackSession()
		s.useAsset(p.CurrentAsset())
	}
	p.AddListener(s)
	return s, nil
}

// ID identifies the adapter in the active tracker
func (s *Streaming) ID() string {
	return s.id
}

// State returns the reported playback state
func (s *Streaming) State() State {
	return s.state
}

// Playtime returns the total time played in the current item
func (s *Streaming) Playtime() time.Duration {
	return s.playtime.Total()
}

// Release ends the session, leaves the active tracker and unregisters the adapter
func (s *Streaming) Release() {
	s.end()
	if s.active != nil {
		s.active.Remove(s.id)
	}
	s.player.RemoveListener(s)
}

// OnMediaItemTransition ends the previous session and opens one for the new item
func (s *Streaming) OnMediaItemTransition(item *asset.MediaItem, _ player.TransitionReason) {
	s.end()
	s.playtime.Reset()
	s.live = false
	if item != nil {
		s.analytics.CreatePlaybackSession()
	}
}

// OnAssetLoaded forwards the asset labels
func (s *Streaming) OnAssetLoaded(_ asset.MediaItem, a *asset.Asset, _ time.Duration) {
	s.useAsset(a)
}

// OnIsPlayingChanged reports play, and the end of a stall
func (s *Streaming) OnIsPlayingChanged(isPlaying bool) {
	if !isPlaying {
		s.playtime.Pause()
		return
	}

	s.playtime.Play()
	if s.buffering {
		s.buffering = false
		s.analytics.NotifyBufferStop()
	}
	if s.state != StatePlaying {
		s.start()
	}
}

// OnPlaybackStateChanged reports stalls and the end of playback
func (s *Streaming) OnPlaybackStateChanged(state player.State) {
	switch state {
	case player.StateBuffering:
		if s.state == StatePlaying && !s.buffering {
			s.buffering = true
			s.analytics.NotifyBufferStart()
		}
	case player.StateEnded, player.StateIdle:
		s.end()
	}
}

// OnEvents reports pause and the restart after a seek
func (s *Streaming) OnEvents(p player.Player, events player.Events) {
	if s.state == StateHasSeek && p.IsPlaying() {
		s.start()
		return
	}

	if !events.Contains(player.EventPlayWhenReadyChanged) || p.PlayWhenReady() {
		return
	}
	if s.state == StatePlaying || s.state == StateHasSeek {
		s.state = StatePaused
		s.dvrRefresh.Stop()
		s.analytics.NotifyPause()
		s.setActive(false)
	}
}

// OnPositionDiscontinuity reports user seeks within the item
func (s *Streaming) OnPositionDiscontinuity(oldPosition, newPosition player.PositionInfo, reason player.DiscontinuityReason) {
	if !reason.IsSeek() || oldPosition.MediaItemIndex != newPosition.MediaItemIndex || s.state == StateIdle {
		return
	}
	s.state = StateHasSeek
	s.dvrRefresh.Stop()
	s.analytics.NotifySeekStart()
}

// OnPlayerReleased ends the session and leaves the active tracker
func (s *Streaming) OnPlayerReleased() {
	s.end()
	if s.active != nil {
		s.active.Remove(s.id)
	}
}

func (s *Streaming) useAsset(a *asset.Asset) {
	if a == nil {
		return
	}
	s.live = a.Live
	s.analytics.SetMetadata(lo.Assign(a.Trackers.ComScore))
}

// start reports the position then play
func (s *Streaming) start() {
	if s.hasDvrWindow() {
		window := s.player.Duration()
		s.analytics.StartFromDvrWindowOffset(window - s.player.CurrentPosition())
		s.analytics.SetDvrWindowLength(window)
		s.dvrRefresh.Start(true)
	} else if s.live {
		s.analytics.StartFromPosition(0)
	} else {
		s.analytics.StartFromPosition(s.player.CurrentPosition())
	}

	s.state = StatePlaying
	s.analytics.NotifyPlay()
	s.setActive(true)
}

// end closes a running session
func (s *Streaming) end() {
	if s.state == StateIdle {
		return
	}
	s.dvrRefresh.Stop()
	s.playtime.Pause()
	s.buffering = false
	s.analytics.NotifyEnd()
	s.state = StateIdle
	s.setActive(false)
}

func (s *Streaming) setActive(active bool) {
	if s.active != nil {
		s.active.SetActive(s.id, active)
	}
}

func (s *Streaming) hasDvrWindow() bool {
	return s.live && s.player.Duration() >= dvrWindowThresholdMs
}

func (s *Streaming) onDvrRefresh() {
	if !s.hasDvrWindow() {
		s.dvrRefresh.Stop()
		return
	}
	s.log.Debug().Int64("window_ms", s.player.Duration()).Msg("Refreshing DVR window")
	s.analytics.SetDvrWindowLength(s.player.Duration())
}
