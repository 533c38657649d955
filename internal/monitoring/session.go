package monitoring

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/player"
	"github.com/stwalsh4118/pillarbox/internal/playtime"
)

// SessionState mirrors actual playback activity within a session
type SessionState string

// Session states
const (
	SessionIdle    SessionState = "idle"
	SessionPlaying SessionState = "playing"
	SessionPaused  SessionState = "paused"
	SessionHasSeek SessionState = "has_seek"
)

// Session is one playthrough of a media item
type Session struct {
	ID        string
	MediaItem asset.MediaItem
	CreatedAt time.Time

	clock        clockwork.Clock
	asset        *asset.Asset
	state        SessionState
	started      bool
	terminated   bool
	finished     bool
	finishReason StopReason
	playtime     *playtime.Counter

	// Position reported once the player moved on to another item
	frozenPositionMs *int64

	loadStartedAt     time.Time
	assetLoadDuration time.Duration
	readyAt           time.Time
	firstFrameAt      time.Time
	startedAt         time.Time
	stallCount        int
	stallStartedAt    time.Time
	stallDuration     time.Duration
}

// newSession creates a session for the media item
func newSession(clock clockwork.Clock, item asset.MediaItem) *Session {
	now := clock.Now()
	return &Session{
		ID:            uuid.NewString(),
		MediaItem:     item,
		CreatedAt:     now,
		clock:         clock,
		state:         SessionIdle,
		playtime:      playtime.NewCounter(clock),
		loadStartedAt: now,
	}
}

// State returns the playback activity state
func (s *Session) State() SessionState {
	return s.state
}

// Asset returns the loaded asset, or nil before it loads
func (s *Session) Asset() *asset.Asset {
	return s.asset
}

// IsStarted reports whether START was sent for the session
func (s *Session) IsStarted() bool {
	return s.started
}

// IsFinished reports whether the session reached a terminal state
func (s *Session) IsFinished() bool {
	return s.finished
}

// FinishReason returns why the session finished
func (s *Session) FinishReason() StopReason {
	return s.finishReason
}

// PlaybackDuration returns the total time spent playing
func (s *Session) PlaybackDuration() time.Duration {
	return s.playtime.Total()
}

// QoSTimings returns a snapshot of the quality of service timings
func (s *Session) QoSTimings() QoSTimings {
	timings := QoSTimings{
		AssetLoadMs:     s.assetLoadDuration.Milliseconds(),
		StallCount:      s.stallCount,
		StallDurationMs: s.currentStallDuration().Milliseconds(),
	}
	if !s.readyAt.IsZero() {
		timings.TimeToReadyMs = s.readyAt.Sub(s.loadStartedAt).Milliseconds()
	}
	if !s.firstFrameAt.IsZero() {
		timings.TimeToFirstFrameMs = s.firstFrameAt.Sub(s.CreatedAt).Milliseconds()
	}
	return timings
}

// QoETimings returns a snapshot of the quality of experience timings
func (s *Session) QoETimings() QoETimings {
	timings := QoETimings{
		PlaybackDurationMs: s.playtime.Total().Milliseconds(),
	}
	if !s.startedAt.IsZero() {
		timings.StartupTimeMs = s.startedAt.Sub(s.CreatedAt).Milliseconds()
	}

	initial := time.Duration(0)
	switch {
	case !s.readyAt.IsZero():
		initial = s.readyAt.Sub(s.loadStartedAt)
	case !s.finished:
		initial = s.clock.Since(s.loadStartedAt)
	}
	timings.BufferingDurationMs = (initial + s.currentStallDuration()).Milliseconds()
	return timings
}

// currentStallDuration includes a stall still in progress
func (s *Session) currentStallDuration() time.Duration {
	if s.stallStartedAt.IsZero() {
		return s.stallDuration
	}
	return s.stallDuration + s.clock.Since(s.stallStartedAt)
}

// SessionListener is notified of session lifecycle changes on the player looper
type SessionListener interface {
	OnSessionCreated(session *Session)
	// OnSessionFinished is called while the finished session is still current
	OnSessionFinished(session *Session)
	OnCurrentSessionChanged(oldSession, newSession *Session)
}

// SessionManager creates one session per media item playthrough and captures
// its timings from player callbacks
type SessionManager struct {
	player.BaseListener

	clock     clockwork.Clock
	current   *Session
	listeners []SessionListener
}

// NewSessionManager creates a session manager without sessions
func NewSessionManager(clock clockwork.Clock) *SessionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionManager{clock: clock}
}

// AddListener registers a session listener
func (m *SessionManager) AddListener(l SessionListener) {
	m.listeners = append(m.listeners, l)
}

// CurrentSession returns the session of the current item, or nil
func (m *SessionManager) CurrentSession() *Session {
	return m.current
}

// Restart replaces the current session with a new one for the same item.
// The new session is considered playing right away.
func (m *SessionManager) Restart() *Session {
	if m.current == nil {
		return nil
	}
	previous := m.current
	m.begin(previous.MediaItem, StopReasonUser)

	now := m.clock.Now()
	m.current.asset = previous.asset
	m.current.readyAt = now
	m.current.startedAt = now
	m.current.playtime.Play()
	return m.current
}

// FinishCurrent marks the current session as finished and notifies listeners
func (m *SessionManager) FinishCurrent(reason StopReason) {
	s := m.current
	if s == nil || s.finished {
		return
	}
	s.finishReason = reason
	for _, l := range m.listeners {
		l.OnSessionFinished(s)
	}
	s.finished = true
	s.playtime.Pause()
	if !s.stallStartedAt.IsZero() {
		s.stallDuration += s.clock.Since(s.stallStartedAt)
		s.stallStartedAt = time.Time{}
	}
}

// begin finishes the current session and starts a new one for the item
func (m *SessionManager) begin(item asset.MediaItem, reason StopReason) {
	m.FinishCurrent(reason)

	previous := m.current
	m.current = newSession(m.clock, item)
	for _, l := range m.listeners {
		l.OnSessionCreated(m.current)
	}
	for _, l := range m.listeners {
		l.OnCurrentSessionChanged(previous, m.current)
	}
}

// OnMediaItemTransition starts a session for the new item
func (m *SessionManager) OnMediaItemTransition(item *asset.MediaItem, _ player.TransitionReason) {
	if item == nil {
		m.FinishCurrent(StopReasonTransition)
		previous := m.current
		m.current = nil
		for _, l := range m.listeners {
			l.OnCurrentSessionChanged(previous, nil)
		}
		return
	}
	m.begin(*item, StopReasonTransition)
}

// OnPositionDiscontinuity keeps the last position of an item the player is leaving
func (m *SessionManager) OnPositionDiscontinuity(oldPosition, newPosition player.PositionInfo, _ player.DiscontinuityReason) {
	if m.current == nil || oldPosition.MediaItemIndex == newPosition.MediaItemIndex {
		return
	}
	pos := oldPosition.PositionMs
	m.current.frozenPositionMs = &pos
}

// OnAssetLoadStarted opens a new session when the current one already finished
func (m *SessionManager) OnAssetLoadStarted(item asset.MediaItem) {
	if m.current == nil || m.current.finished || m.current.MediaItem.ID != item.ID {
		m.begin(item, StopReasonTransition)
		return
	}
	m.current.loadStartedAt = m.clock.Now()
}

// OnAssetLoaded records the asset and its load time
func (m *SessionManager) OnAssetLoaded(_ asset.MediaItem, a *asset.Asset, loadDuration time.Duration) {
	if m.current == nil {
		return
	}
	m.current.asset = a
	m.current.assetLoadDuration = loadDuration
}

// OnPlaybackStateChanged measures time to ready and stalls
func (m *SessionManager) OnPlaybackStateChanged(state player.State) {
	s := m.current
	if s == nil || s.finished {
		return
	}

	switch state {
	case player.StateReady:
		if s.readyAt.IsZero() {
			s.readyAt = m.clock.Now()
		}
		if !s.stallStartedAt.IsZero() {
			s.stallDuration += m.clock.Since(s.stallStartedAt)
			s.stallStartedAt = time.Time{}
		}
	case player.StateBuffering:
		if !s.readyAt.IsZero() && s.stallStartedAt.IsZero() {
			s.stallCount++
			s.stallStartedAt = m.clock.Now()
		}
	}
}

// OnRenderedFirstFrame records the time to first frame
func (m *SessionManager) OnRenderedFirstFrame() {
	if m.current != nil && m.current.firstFrameAt.IsZero() {
		m.current.firstFrameAt = m.clock.Now()
	}
}

// OnIsPlayingChanged drives the session playtime counter
func (m *SessionManager) OnIsPlayingChanged(isPlaying bool) {
	s := m.current
	if s == nil || s.finished {
		return
	}
	if isPlaying {
		if s.startedAt.IsZero() {
			s.startedAt = m.clock.Now()
		}
		s.playtime.Play()
		return
	}
	s.playtime.Pause()
}

// OnPlayerReleased finishes the current session
func (m *SessionManager) OnPlayerReleased() {
	m.FinishCurrent(StopReasonReleased)
}
