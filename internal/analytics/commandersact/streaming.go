package commandersact

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/heartbeat"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/player"
	"github.com/stwalsh4118/pillarbox/internal/playtime"
)

// Live streams closer to the edge than this report no time shift
const timeShiftThreshold = 60 * time.Second

// Streaming errors
var (
	ErrNilPlayer = errors.New("commandersact player cannot be nil")
	ErrNilSink   = errors.New("commandersact sink cannot be nil")
)

// State is the playback state as reported to CommandersAct
type State string

// States
const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateHasSeek State = "has_seek"
)

// Config holds the heartbeat timings
type Config struct {
	HeartbeatDelay time.Duration
	PosPeriod      time.Duration
	UptimePeriod   time.Duration
}

// DefaultConfig returns pos pings every 30s and uptime pings every 60s, both after 30s
func DefaultConfig() Config {
	return Config{
		HeartbeatDelay: 30 * time.Second,
		PosPeriod:      30 * time.Second,
		UptimePeriod:   60 * time.Second,
	}
}

// Streaming follows one player and sends its media events to a Sink.
// Every method runs on the player's looper.
type Streaming struct {
	player.BaseListener

	player   player.Player
	sink     Sink
	state    State
	labels   map[string]string
	live     bool
	playtime *playtime.Counter
	pos      *heartbeat.Heartbeat
	uptime   *heartbeat.Heartbeat
	log      zerolog.Logger
}

// NewStreaming creates the adapter and registers it on the player
func NewStreaming(p player.Player, scheduler heartbeat.Scheduler, clock clockwork.Clock, cfg Config, sink Sink) (*Streaming, error) {
	if p == nil {
		return nil, ErrNilPlayer
	}
	if sink == nil {
		return nil, ErrNilSink
	}

	s := &Streaming{
		player:   p,
		sink:     sink,
		state:    StateIdle,
		playtime: playtime.NewCounter(clock),
		log:      logger.Component("commandersact_streaming"),
	}

	var err error
	if s.pos, err = heartbeat.New(cfg.HeartbeatDelay, cfg.PosPeriod, scheduler, s.onPos); err != nil {
		return nil, err
	}
	if s.uptime, err = heartbeat.New(cfg.HeartbeatDelay, cfg.UptimePeriod, scheduler, s.onUptime); err != nil {
		return nil, err
	}

	if a := p.CurrentAsset(); a != nil {
		s.useAsset(a)
	}
	p.AddListener(s)
	return s, nil
}

// State returns the reported playback state
func (s *Streaming) State() State {
	return s.state
}

// Playtime returns the total time played in the current item
func (s *Streaming) Playtime() time.Duration {
	return s.playtime.Total()
}

// Release sends stop for a running session and unregisters the adapter
func (s *Streaming) Release() {
	s.stop(MediaEventStop)
	s.player.RemoveListener(s)
}

// OnAssetLoaded picks up the labels of the new asset
func (s *Streaming) OnAssetLoaded(_ asset.MediaItem, a *asset.Asset, _ time.Duration) {
	s.useAsset(a)
}

// OnMediaItemTransition stops the session of the previous item
func (s *Streaming) OnMediaItemTransition(_ *asset.MediaItem, _ player.TransitionReason) {
	s.stop(MediaEventStop)
	s.playtime.Reset()
	s.labels = nil
	s.live = false
}

// OnIsPlayingChanged sends play when playback starts or resumes
func (s *Streaming) OnIsPlayingChanged(isPlaying bool) {
	if !isPlaying {
		s.playtime.Pause()
		return
	}

	s.playtime.Play()
	if s.state != StatePlaying {
		s.play()
	}
}

// OnEvents sends pause when the play intent is dropped and play after a seek
func (s *Streaming) OnEvents(p player.Player, events player.Events) {
	if s.state == StateHasSeek && p.IsPlaying() {
		s.play()
		return
	}

	if !events.Contains(player.EventPlayWhenReadyChanged) || p.PlayWhenReady() {
		return
	}
	if s.state == StatePlaying || s.state == StateHasSeek {
		s.state = StatePaused
		s.stopHeartbeats()
		s.send(MediaEventPause)
	}
}

// OnPositionDiscontinuity sends seek for user seeks within the item
func (s *Streaming) OnPositionDiscontinuity(oldPosition, newPosition player.PositionInfo, reason player.DiscontinuityReason) {
	if !reason.IsSeek() || oldPosition.MediaItemIndex != newPosition.MediaItemIndex {
		return
	}
	if s.state == StateIdle {
		return
	}
	s.state = StateHasSeek
	s.stopHeartbeats()
	s.send(MediaEventSeek)
}

// OnPlaybackStateChanged sends eof at the natural end and stop when the player stops
func (s *Streaming) OnPlaybackStateChanged(state player.State) {
	switch state {
	case player.StateEnded:
		s.stop(MediaEventEOF)
	case player.StateIdle:
		s.stop(MediaEventStop)
	}
}

// OnPlayerReleased sends stop for a running session
func (s *Streaming) OnPlayerReleased() {
	s.stop(MediaEventStop)
}

func (s *Streaming) useAsset(a *asset.Asset) {
	if a == nil {
		return
	}
	s.labels = lo.Assign(a.Trackers.CommandersAct)
	s.live = a.Live
}

func (s *Streaming) play() {
	s.state = StatePlaying
	s.send(MediaEventPlay)
	s.pos.Start(true)
	if s.live {
		s.uptime.Start(true)
	}
}

// stop ends a running session with the given event type
func (s *Streaming) stop(eventType MediaEventType) {
	if s.state == StateIdle {
		return
	}
	s.stopHeartbeats()
	s.playtime.Pause()
	s.send(eventType)
	s.state = StateIdle
}

func (s *Streaming) stopHeartbeats() {
	s.pos.Stop()
	s.uptime.Stop()
}

func (s *Streaming) onPos() {
	s.send(MediaEventPos)
}

func (s *Streaming) onUptime() {
	s.send(MediaEventUptime)
}

// send builds the event with the current position and time shift
func (s *Streaming) send(eventType MediaEventType) {
	event := MediaEvent{
		Type:          eventType,
		Labels:        lo.Assign(s.labels),
		MediaPosition: s.mediaPosition(),
	}
	if s.live {
		shift := s.timeShift()
		event.TimeShift = &shift
	}

	s.log.Debug().
		Str("event", string(eventType)).
		Dur("media_position", event.MediaPosition).
		Msg("Sending media event")

	s.sink.SendTcMediaEvent(event)
}

// mediaPosition is the player position for on-demand content and the total
// playtime for live content
func (s *Streaming) mediaPosition() time.Duration {
	if s.live {
		return s.playtime.Total()
	}
	return time.Duration(s.player.CurrentPosition()) * time.Millisecond
}

// timeShift is the distance to the live edge, zero near the edge
func (s *Streaming) timeShift() time.Duration {
	shift := time.Duration(s.player.Duration()-s.player.CurrentPosition()) * time.Millisecond
	if shift < timeShiftThreshold {
		return 0
	}
	return shift
}
