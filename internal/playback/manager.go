// Package playback runs simulated player sessions on behalf of HTTP hosts.
// Each session wires a player to the time range tracker, the monitoring
// pipeline and both analytics adapters.
package playback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"github.com/stwalsh4118/pillarbox/internal/analytics/commandersact"
	"github.com/stwalsh4118/pillarbox/internal/analytics/comscore"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/metrics"
	"github.com/stwalsh4118/pillarbox/internal/monitoring"
)

const releaseTimeout = 5 * time.Second

// Config holds the timings used by every player session
type Config struct {
	TimeRangePollInterval time.Duration
	AssetLoadTimeout      time.Duration
	IdleGracePeriod       time.Duration
	CleanupInterval       time.Duration
	Monitoring            monitoring.Config
	CommandersAct         commandersact.Config
	ComScore              comscore.Config
}

// DefaultConfig returns the default session timings
func DefaultConfig() Config {
	return Config{
		TimeRangePollInterval: 200 * time.Millisecond,
		AssetLoadTimeout:      10 * time.Second,
		IdleGracePeriod:       10 * time.Minute,
		CleanupInterval:       time.Minute,
		Monitoring:            monitoring.DefaultConfig(),
		CommandersAct:         commandersact.DefaultConfig(),
		ComScore:              comscore.DefaultConfig(),
	}
}

// Dependencies are the collaborators shared by all sessions.
// A nil Monitoring handler disables the monitoring pipeline; nil analytics
// sinks fall back to logging implementations.
type Dependencies struct {
	Loader        asset.Loader
	Clock         clockwork.Clock
	Monitoring    monitoring.Handler
	CommandersAct commandersact.Sink
	ComScore      comscore.StreamingAnalytics
	ActiveTracker *comscore.ActiveTracker
	Metrics       *metrics.Metrics
}

// CreateRequest lists the media items of a new player
type CreateRequest struct {
	MediaIDs []string `json:"media_ids" binding:"required,min=1"`
	AutoPlay bool     `json:"auto_play"`
}

// Manager owns the live player sessions
type Manager struct {
	deps        sessionDeps
	sessions    map[string]*PlayerSession
	ticker      clockwork.Ticker
	stopChan    chan struct{}
	cleanupDone chan struct{}
	mu          sync.RWMutex
	stopped     bool
}

// NewManager creates a player manager
func NewManager(cfg Config, deps Dependencies) (*Manager, error) {
	if deps.Loader == nil {
		return nil, ErrNilLoader
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.CommandersAct == nil {
		deps.CommandersAct = commandersact.NewLogSink()
	}
	if deps.ComScore == nil {
		deps.ComScore = comscore.NewLogAnalytics("")
	}

	return &Manager{
		deps: sessionDeps{
			cfg:           cfg,
			loader:        deps.Loader,
			clock:         deps.Clock,
			handler:       deps.Monitoring,
			sink:          deps.CommandersAct,
			analytics:     deps.ComScore,
			activeTracker: deps.ActiveTracker,
			metrics:       deps.Metrics,
		},
		sessions:    make(map[string]*PlayerSession),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}, nil
}

// Start launches the idle session cleanup loop
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.ticker != nil {
		return nil
	}

	m.ticker = m.deps.clock.NewTicker(m.deps.cfg.CleanupInterval)
	go m.runCleanupLoop()

	logger.Log.Info().
		Dur("cleanup_interval", m.deps.cfg.CleanupInterval).
		Dur("idle_grace_period", m.deps.cfg.IdleGracePeriod).
		Msg("Player manager started")

	return nil
}

// Stop ends the cleanup loop and releases every session
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	ticker := m.ticker
	sessions := lo.Values(m.sessions)
	m.sessions = make(map[string]*PlayerSession)
	m.mu.Unlock()

	logger.Log.Info().Msg("Stopping player manager...")

	close(m.stopChan)
	if ticker != nil {
		<-m.cleanupDone
		ticker.Stop()
	}

	for _, s := range sessions {
		m.release(s)
	}
	m.updateGauge()

	logger.Log.Info().
		Int("released_players", len(sessions)).
		Msg("Player manager stopped")
}

// Create builds a player for the media items
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*PlayerSession, error) {
	if len(req.MediaIDs) == 0 {
		return nil, ErrNoMediaItems
	}

	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, ErrManagerStopped
	}

	items := lo.Map(req.MediaIDs, func(id string, _ int) asset.MediaItem {
		return asset.MediaItem{ID: id}
	})

	s, err := newPlayerSession(ctx, m.deps, items, req.AutoPlay)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		m.release(s)
		return nil, ErrManagerStopped
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.updateGauge()
	return s, nil
}

// Get returns the session with the id
func (m *Manager) Get(id string) (*PlayerSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return s, nil
}

// List returns the sessions ordered by creation time
func (m *Manager) List() []*PlayerSession {
	m.mu.RLock()
	sessions := lo.Values(m.sessions)
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// State returns the snapshot of the session with the id
func (m *Manager) State(ctx context.Context, id string) (*State, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.State(ctx)
}

// Control applies a command to the session with the id
func (m *Manager) Control(ctx context.Context, id string, req ControlRequest) (*State, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Control(ctx, req)
}

// Release removes the session and tears its player down
func (m *Manager) Release(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrPlayerNotFound
	}

	m.updateGauge()
	return s.Release(ctx)
}

// CleanupIdle releases sessions that stayed idle for the grace period and
// returns how many were released. A zero grace period disables cleanup.
func (m *Manager) CleanupIdle(ctx context.Context) int {
	grace := m.deps.cfg.IdleGracePeriod
	if grace <= 0 {
		return 0
	}

	idle := lo.Filter(m.List(), func(s *PlayerSession, _ int) bool {
		return s.isIdle(ctx, grace)
	})

	released := 0
	for _, s := range idle {
		if err := m.Release(ctx, s.ID); err == nil {
			released++
		}
	}

	if released > 0 {
		logger.Log.Info().
			Int("released", released).
			Dur("idle_grace_period", grace).
			Msg("Released idle players")
	}
	return released
}

// runCleanupLoop releases idle sessions on every tick until Stop
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	for {
		select {
		case <-m.stopChan:
			return
		case <-m.ticker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			m.CleanupIdle(ctx)
			cancel()
		}
	}
}

func (m *Manager) release(s *PlayerSession) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := s.Release(ctx); err != nil {
		logger.Log.Error().
			Err(err).
			Str("player_id", s.ID).
			Msg("Failed to release player")
	}
}

func (m *Manager) updateGauge() {
	if m.deps.metrics != nil {
		m.deps.metrics.SetActivePlayers(m.Count())
	}
}
