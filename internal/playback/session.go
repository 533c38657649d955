package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stwalsh4118/pillarbox/internal/analytics/commandersact"
	"github.com/stwalsh4118/pillarbox/internal/analytics/comscore"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/looper"
	"github.com/stwalsh4118/pillarbox/internal/metrics"
	"github.com/stwalsh4118/pillarbox/internal/monitoring"
	"github.com/stwalsh4118/pillarbox/internal/player"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
	"github.com/stwalsh4118/pillarbox/internal/tracker"
)

const (
	pageViewType    = "player"
	skipCreditEvent = "skip_credit"
)

// State is a snapshot of a player session
type State struct {
	ID                  string                   `json:"id"`
	MediaItems          []asset.MediaItem        `json:"media_items"`
	CurrentIndex        int                      `json:"current_index"`
	CurrentMediaItem    *asset.MediaItem         `json:"current_media_item,omitempty"`
	PlaybackState       player.State             `json:"playback_state"`
	PlayWhenReady       bool                     `json:"play_when_ready"`
	IsPlaying           bool                     `json:"is_playing"`
	Live                bool                     `json:"live"`
	PositionMs          int64                    `json:"position_ms"`
	DurationMs          *int64                   `json:"duration_ms,omitempty"`
	Chapter             *timerange.Chapter       `json:"chapter,omitempty"`
	Credit              *timerange.Credit        `json:"credit,omitempty"`
	Blocked             bool                     `json:"blocked"`
	MonitoringSessionID string                   `json:"monitoring_session_id,omitempty"`
	QoS                 *monitoring.QoSTimings   `json:"qos,omitempty"`
	QoE                 *monitoring.QoETimings   `json:"qoe,omitempty"`
	CommandersAct       commandersact.State      `json:"commandersact_state"`
	ComScore            comscore.State           `json:"comscore_state"`
	Error               *monitoring.ErrorPayload `json:"error,omitempty"`
	CreatedAt           time.Time                `json:"created_at"`
	LastActivity        time.Time                `json:"last_activity"`
}

// PlayerSession owns one simulated player and everything that listens to it.
// All player work runs on the session looper.
type PlayerSession struct {
	ID         string
	MediaItems []asset.MediaItem
	CreatedAt  time.Time

	looper        *looper.Looper
	clock         clockwork.Clock
	sim           *player.Simulator
	tracker       *tracker.Tracker
	monitoring    *monitoring.Monitoring
	commandersAct *commandersact.Streaming
	comScore      *comscore.Streaming
	sink          commandersact.Sink
	log           zerolog.Logger

	mu           sync.Mutex
	lastActivity time.Time
	released     bool
}

// sessionDeps are the shared collaborators every session is built from
type sessionDeps struct {
	cfg           Config
	loader        asset.Loader
	clock         clockwork.Clock
	handler       monitoring.Handler
	sink          commandersact.Sink
	analytics     comscore.StreamingAnalytics
	activeTracker *comscore.ActiveTracker
	metrics       *metrics.Metrics
}

// newPlayerSession builds the player and its listeners on a fresh looper
func newPlayerSession(ctx context.Context, deps sessionDeps, items []asset.MediaItem, autoPlay bool) (*PlayerSession, error) {
	id := uuid.NewString()
	now := deps.clock.Now()

	s := &PlayerSession{
		ID:           id,
		MediaItems:   items,
		CreatedAt:    now,
		looper:       looper.New("player-"+id[:8], deps.clock),
		clock:        deps.clock,
		log:          logger.Component("playback").With().Str("player_id", id).Logger(),
		lastActivity: now,
	}

	var buildErr error
	err := s.looper.Run(ctx, func() {
		buildErr = s.build(deps, items, autoPlay)
		if buildErr != nil {
			s.teardown()
		}
	})
	if err == nil {
		err = buildErr
	}
	if err != nil {
		s.looper.Quit()
		s.looper.Wait()
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	s.log.Info().
		Int("media_items", len(items)).
		Bool("auto_play", autoPlay).
		Msg("Player created")

	return s, nil
}

// build runs on the looper
func (s *PlayerSession) build(deps sessionDeps, items []asset.MediaItem, autoPlay bool) error {
	s.sim = player.NewSimulator(s.looper, deps.loader, deps.cfg.AssetLoadTimeout)

	var err error
	s.tracker, err = tracker.New(s.sim, s.looper, deps.cfg.TimeRangePollInterval, &rangeEvents{log: s.log, metrics: deps.metrics})
	if err != nil {
		return fmt.Errorf("tracker: %w", err)
	}

	if deps.handler != nil {
		s.monitoring, err = monitoring.New(s.sim, s.looper, deps.clock, deps.cfg.Monitoring, deps.handler)
		if err != nil {
			return fmt.Errorf("monitoring: %w", err)
		}
	}

	s.commandersAct, err = commandersact.NewStreaming(s.sim, s.looper, deps.clock, deps.cfg.CommandersAct, deps.sink)
	if err != nil {
		return fmt.Errorf("commandersact: %w", err)
	}

	s.comScore, err = comscore.NewStreaming(s.sim, s.looper, deps.clock, deps.cfg.ComScore, deps.analytics, deps.activeTracker)
	if err != nil {
		return fmt.Errorf("comscore: %w", err)
	}

	s.sink = deps.sink
	s.sink.SendPageView(commandersact.PageView{
		Type:   pageViewType,
		Title:  s.ID,
		Levels: lo.Map(items, func(item asset.MediaItem, _ int) string { return item.ID }),
	})

	s.sim.SetMediaItems(items)
	s.sim.Prepare()
	if autoPlay {
		s.sim.Play()
	}
	return nil
}

// Control applies a command on the looper and returns the resulting state
func (s *PlayerSession) Control(ctx context.Context, req ControlRequest) (*State, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.isReleased() {
		return nil, ErrPlayerReleased
	}

	var state State
	err := s.looper.Run(ctx, func() {
		s.apply(req)
		state = s.snapshot()
	})
	if err != nil {
		return nil, s.runError(err)
	}

	s.touch()
	s.log.Debug().
		Str("command", string(req.Command)).
		Int64("position_ms", state.PositionMs).
		Str("playback_state", state.PlaybackState.String()).
		Msg("Player command applied")

	return &state, nil
}

// apply runs on the looper
func (s *PlayerSession) apply(req ControlRequest) {
	switch req.Command {
	case CommandPlay:
		if s.sim.PlaybackState() == player.StateIdle {
			s.sim.Prepare()
		}
		s.sim.Play()
	case CommandPause:
		s.sim.Pause()
	case CommandSeek:
		s.sim.SeekTo(req.PositionMs)
	case CommandStop:
		s.sim.Stop()
	case CommandPrepare:
		s.sim.Prepare()
	case CommandNext:
		s.sim.SeekToNext()
	case CommandSkipCredit:
		s.skipCredit()
	case CommandStall:
		s.sim.InjectStall(req.stallDuration())
	case CommandError:
		s.sim.InjectError(req.injectedError())
	}
}

// skipCredit runs on the looper
func (s *PlayerSession) skipCredit() {
	credit := s.tracker.CurrentCredit()
	if credit == nil || !s.tracker.SkipCredit() {
		return
	}

	labels := map[string]string{
		"credit_kind": string(credit.Kind),
		"player_id":   s.ID,
	}
	if item := s.sim.CurrentMediaItem(); item != nil {
		labels["media_id"] = item.ID
	}
	s.sink.SendEvent(commandersact.Event{Name: skipCreditEvent, Labels: labels})
}

// State returns a snapshot taken on the looper
func (s *PlayerSession) State(ctx context.Context) (*State, error) {
	if s.isReleased() {
		return nil, ErrPlayerReleased
	}

	var state State
	if err := s.looper.Run(ctx, func() { state = s.snapshot() }); err != nil {
		return nil, s.runError(err)
	}
	return &state, nil
}

// snapshot runs on the looper
func (s *PlayerSession) snapshot() State {
	s.mu.Lock()
	lastActivity := s.lastActivity
	s.mu.Unlock()

	state := State{
		ID:               s.ID,
		MediaItems:       s.MediaItems,
		CurrentIndex:     s.sim.CurrentMediaItemIndex(),
		CurrentMediaItem: s.sim.CurrentMediaItem(),
		PlaybackState:    s.sim.PlaybackState(),
		PlayWhenReady:    s.sim.PlayWhenReady(),
		IsPlaying:        s.sim.IsPlaying(),
		Live:             s.sim.IsCurrentMediaItemLive(),
		PositionMs:       s.sim.CurrentPosition(),
		Chapter:          s.tracker.CurrentChapter(),
		Credit:           s.tracker.CurrentCredit(),
		Blocked:          s.tracker.IsBlocked(),
		CommandersAct:    s.commandersAct.State(),
		ComScore:         s.comScore.State(),
		CreatedAt:        s.CreatedAt,
		LastActivity:     lastActivity,
	}

	if d := s.sim.Duration(); d != timerange.TimeUnset {
		state.DurationMs = &d
	}

	if s.monitoring != nil {
		if session := s.monitoring.CurrentSession(); session != nil {
			state.MonitoringSessionID = session.ID
		}
		if qos, ok := s.monitoring.CurrentQoSTimings(); ok {
			state.QoS = &qos
		}
		if qoe, ok := s.monitoring.CurrentQoETimings(); ok {
			state.QoE = &qoe
		}
	}

	if perr := s.sim.LastError(); perr != nil {
		state.Error = &monitoring.ErrorPayload{
			Type:        perr.Type.String(),
			Severity:    perr.Severity.String(),
			Message:     perr.Error(),
			Recoverable: perr.Recoverable,
		}
	}
	return state
}

// Release tears the player down and stops its looper. It is idempotent.
func (s *PlayerSession) Release(ctx context.Context) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	err := s.looper.Run(ctx, s.teardown)
	s.looper.Quit()
	s.looper.Wait()

	s.log.Info().Msg("Player released")

	if err != nil && !errors.Is(err, looper.ErrLooperQuit) {
		return fmt.Errorf("failed to release player: %w", err)
	}
	return nil
}

// teardown runs on the looper. Releasing the player first lets every
// listener close its session through its own release callback.
func (s *PlayerSession) teardown() {
	if s.sim != nil {
		s.sim.Release()
	}
	if s.monitoring != nil {
		s.monitoring.Release()
	}
	if s.commandersAct != nil {
		s.commandersAct.Release()
	}
	if s.comScore != nil {
		s.comScore.Release()
	}
	if s.tracker != nil {
		s.tracker.Release()
	}
}

// isIdle reports whether the player has not played nor been controlled for the grace period
func (s *PlayerSession) isIdle(ctx context.Context, grace time.Duration) bool {
	var playing bool
	if err := s.looper.Run(ctx, func() { playing = s.sim.IsPlaying() }); err != nil {
		return false
	}
	if playing {
		s.touch()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.lastActivity) >= grace
}

func (s *PlayerSession) touch() {
	s.mu.Lock()
	s.lastActivity = s.clock.Now()
	s.mu.Unlock()
}

func (s *PlayerSession) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *PlayerSession) runError(err error) error {
	if errors.Is(err, looper.ErrLooperQuit) {
		return ErrPlayerReleased
	}
	return err
}

// rangeEvents logs time range transitions and counts them
type rangeEvents struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func (e *rangeEvents) OnBlockedTimeRangeReached(r timerange.BlockedTimeRange) {
	e.log.Info().
		Int64("start_ms", r.StartMs).
		Int64("end_ms", r.EndMs).
		Str("reason", string(r.Reason)).
		Msg("Blocked time range skipped")
	if e.metrics != nil {
		e.metrics.IncBlockedRangeSkips()
	}
}

func (e *rangeEvents) OnChapterChanged(chapter *timerange.Chapter) {
	event := e.log.Debug()
	if chapter != nil {
		event = event.Str("chapter_id", chapter.ID)
	}
	event.Msg("Chapter changed")
	if e.metrics != nil {
		e.metrics.IncChapterChanges()
	}
}

func (e *rangeEvents) OnCreditChanged(credit *timerange.Credit) {
	event := e.log.Debug()
	if credit != nil {
		event = event.Str("credit_kind", string(credit.Kind))
	}
	event.Msg("Credit changed")
	if e.metrics != nil {
		e.metrics.IncCreditChanges()
	}
}
