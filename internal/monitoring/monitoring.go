package monitoring

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/heartbeat"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/player"
)

const (
	defaultHeartbeatPeriod = 30 * time.Second
	defaultSeekThreshold   = time.Second
)

// Monitoring errors
var (
	ErrNilPlayer  = errors.New("monitoring player cannot be nil")
	ErrNilHandler = errors.New("monitoring handler cannot be nil")
)

// Config holds the monitoring pipeline settings
type Config struct {
	HeartbeatPeriod time.Duration
	SeekThreshold   time.Duration
}

// DefaultConfig returns a 30s heartbeat and a 1s seek threshold
func DefaultConfig() Config {
	return Config{
		HeartbeatPeriod: defaultHeartbeatPeriod,
		SeekThreshold:   defaultSeekThreshold,
	}
}

// Monitoring converts the callbacks of one player into session messages.
//
// Within a session START is always first and exactly one terminal message
// (STOP, EOF or ERROR) is always last. Every method runs on the player's looper.
type Monitoring struct {
	player.BaseListener

	player        player.Player
	sessions      *SessionManager
	handler       Handler
	heartbeat     *heartbeat.Heartbeat
	clock         clockwork.Clock
	seekThreshold int64
	log           zerolog.Logger
	released      bool
}

// New creates the pipeline and registers it on the player. Attach it before
// the player gets its media items so the first session is not missed.
func New(p player.Player, scheduler heartbeat.Scheduler, clock clockwork.Clock, cfg Config, handler Handler) (*Monitoring, error) {
	if p == nil {
		return nil, ErrNilPlayer
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.HeartbeatPeriod <= 0 {
		cfg.HeartbeatPeriod = defaultHeartbeatPeriod
	}
	if cfg.SeekThreshold < 0 {
		cfg.SeekThreshold = defaultSeekThreshold
	}

	m := &Monitoring{
		player:        p,
		sessions:      NewSessionManager(clock),
		handler:       handler,
		clock:         clock,
		seekThreshold: cfg.SeekThreshold.Milliseconds(),
		log:           logger.Component("monitoring"),
	}

	hb, err := heartbeat.New(0, cfg.HeartbeatPeriod, scheduler, m.onHeartbeat)
	if err != nil {
		return nil, err
	}
	m.heartbeat = hb

	m.sessions.AddListener(m)
	// The session manager sees every callback before the pipeline does
	p.AddListener(m.sessions)
	p.AddListener(m)

	return m, nil
}

// Sessions returns the session manager
func (m *Monitoring) Sessions() *SessionManager {
	return m.sessions
}

// CurrentSession returns the session of the current item, or nil
func (m *Monitoring) CurrentSession() *Session {
	return m.sessions.CurrentSession()
}

// CurrentQoSTimings returns a snapshot of the current session QoS timings
func (m *Monitoring) CurrentQoSTimings() (QoSTimings, bool) {
	s := m.sessions.CurrentSession()
	if s == nil {
		return QoSTimings{}, false
	}
	return s.QoSTimings(), true
}

// CurrentQoETimings returns a snapshot of the current session QoE timings
func (m *Monitoring) CurrentQoETimings() (QoETimings, bool) {
	s := m.sessions.CurrentSession()
	if s == nil {
		return QoETimings{}, false
	}
	return s.QoETimings(), true
}

// Stop ends the current session. StopReasonEOF sends EOF, any other reason
// sends STOP. It is a no-op when no session is running.
func (m *Monitoring) Stop(reason StopReason) {
	s := m.sessions.CurrentSession()
	if s == nil || s.finished || !s.started {
		return
	}

	if reason == StopReasonEOF {
		m.heartbeat.Stop()
		m.send(s, EventEOF, func(d *MessageData) { d.StopReason = reason })
		s.terminated = true
		s.state = SessionIdle
	}
	m.sessions.FinishCurrent(reason)
}

// Release stops the current session and unregisters the pipeline from the player
func (m *Monitoring) Release() {
	if m.released {
		return
	}
	m.sessions.FinishCurrent(StopReasonReleased)
	m.heartbeat.Stop()
	m.player.RemoveListener(m)
	m.player.RemoveListener(m.sessions)
	m.released = true
}

// OnSessionCreated logs the new session
func (m *Monitoring) OnSessionCreated(s *Session) {
	m.log.Debug().
		Str("session_id", s.ID).
		Str("media_item_id", s.MediaItem.ID).
		Msg("Monitoring session created")
}

// OnSessionFinished sends STOP for a started session without terminal message
func (m *Monitoring) OnSessionFinished(s *Session) {
	m.heartbeat.Stop()
	if !s.started || s.terminated {
		return
	}
	m.send(s, EventStop, func(d *MessageData) { d.StopReason = s.finishReason })
	s.terminated = true
	s.state = SessionIdle
}

// OnCurrentSessionChanged is part of SessionListener
func (m *Monitoring) OnCurrentSessionChanged(_, _ *Session) {}

// OnIsPlayingChanged sends START the first time the session plays
func (m *Monitoring) OnIsPlayingChanged(isPlaying bool) {
	if !isPlaying {
		return
	}

	s := m.sessions.CurrentSession()
	if s == nil {
		return
	}
	if s.finished {
		// Playback resumed after the session ended, e.g. seeking back from the end
		s = m.sessions.Restart()
	}

	if !s.started {
		s.started = true
		s.state = SessionPlaying
		m.send(s, EventStart, withTimings(s))
		m.heartbeat.Start(true)
		return
	}

	if s.state == SessionPlaying {
		// Recovered from a stall
		m.heartbeat.Start(false)
	}
}

// OnEvents sends PAUSE and PLAY when the play intent changes mid-session
func (m *Monitoring) OnEvents(p player.Player, events player.Events) {
	if !events.ContainsAny(player.EventPlaybackStateChanged, player.EventPlayWhenReadyChanged) {
		return
	}
	state := p.PlaybackState()
	if state == player.StateIdle || state == player.StateEnded {
		return
	}

	s := m.activeSession()
	if s == nil {
		return
	}

	if p.PlayWhenReady() {
		if s.state == SessionPaused {
			s.state = SessionPlaying
			m.send(s, EventPlay, nil)
			m.heartbeat.Start(false)
		}
		return
	}

	if s.state == SessionPlaying || s.state == SessionHasSeek {
		s.state = SessionPaused
		m.send(s, EventPause, nil)
		m.heartbeat.Stop()
	}
}

// OnPlaybackStateChanged finishes the session when playback ends or stops
func (m *Monitoring) OnPlaybackStateChanged(state player.State) {
	switch state {
	case player.StateEnded:
		m.sessions.FinishCurrent(StopReasonEnded)
	case player.StateIdle:
		m.sessions.FinishCurrent(StopReasonStopped)
	}
}

// OnPositionDiscontinuity sends SEEK for user seeks beyond the threshold while playing
func (m *Monitoring) OnPositionDiscontinuity(oldPosition, newPosition player.PositionInfo, reason player.DiscontinuityReason) {
	if !reason.IsSeek() || oldPosition.MediaItemIndex != newPosition.MediaItemIndex {
		return
	}

	s := m.activeSession()
	if s == nil || s.state != SessionPlaying {
		return
	}

	delta := oldPosition.PositionMs - newPosition.PositionMs
	if delta < 0 {
		delta = -delta
	}
	if delta <= m.seekThreshold {
		return
	}

	s.state = SessionHasSeek
	from := oldPosition.PositionMs
	m.send(s, EventSeek, func(d *MessageData) {
		d.FromPositionMs = &from
		d.PositionMs = newPosition.PositionMs
	})
	s.state = SessionPlaying
}

// OnPlayerError sends ERROR and finishes the session. A session that never
// started gets its START first.
func (m *Monitoring) OnPlayerError(err *player.PlaybackError) {
	s := m.sessions.CurrentSession()
	if s == nil || s.finished {
		return
	}

	m.heartbeat.Stop()
	if !s.started {
		s.started = true
		m.send(s, EventStart, withTimings(s))
	}

	m.send(s, EventError, func(d *MessageData) {
		withTimings(s)(d)
		d.Error = &ErrorPayload{
			Type:        err.Type.String(),
			Severity:    err.Severity.String(),
			Message:     err.Error(),
			Recoverable: err.Recoverable,
		}
	})
	s.terminated = true
	s.state = SessionIdle

	m.log.Warn().
		Str("session_id", s.ID).
		Str("error_type", err.Type.String()).
		Msg("Monitoring session failed")

	m.sessions.FinishCurrent(StopReasonStopped)
}

// OnPlayerReleased stops the heartbeat; the session manager already finished the session
func (m *Monitoring) OnPlayerReleased() {
	m.heartbeat.Stop()
	m.released = true
}

// onHeartbeat sends HEARTBEAT while the session is running
func (m *Monitoring) onHeartbeat() {
	s := m.activeSession()
	if s == nil {
		m.heartbeat.Stop()
		return
	}
	m.send(s, EventHeartbeat, withTimings(s))
}

// activeSession returns the current session if it started and has not terminated
func (m *Monitoring) activeSession() *Session {
	s := m.sessions.CurrentSession()
	if s == nil || !s.started || s.terminated || s.finished {
		return nil
	}
	return s
}

// send builds a message for the session and hands it to the handler
func (m *Monitoring) send(s *Session, name EventName, decorate func(d *MessageData)) {
	data := MessageData{
		MediaItemID:        s.MediaItem.ID,
		URI:                s.MediaItem.URI,
		PositionMs:         m.player.CurrentPosition(),
		PlaybackDurationMs: s.PlaybackDuration().Milliseconds(),
	}
	if s.frozenPositionMs != nil {
		data.PositionMs = *s.frozenPositionMs
	}
	if a := s.asset; a != nil {
		data.DurationMs = a.DurationMs
		data.Live = a.Live
		if a.URI != "" {
			data.URI = a.URI
		}
	}
	if decorate != nil {
		decorate(&data)
	}

	msg := Message{
		SessionID: s.ID,
		EventName: name,
		Timestamp: m.clock.Now(),
		Version:   MessageVersion,
		Data:      data,
	}

	m.log.Debug().
		Str("session_id", s.ID).
		Str("event", string(name)).
		Int64("position_ms", data.PositionMs).
		Msg("Monitoring message")

	m.handler.Handle(msg)
}

// withTimings attaches fresh QoS and QoE snapshots
func withTimings(s *Session) func(d *MessageData) {
	return func(d *MessageData) {
		qos := s.QoSTimings()
		qoe := s.QoETimings()
		d.QoS = &qos
		d.QoE = &qoe
	}
}
