package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/analytics/commandersact"
	"github.com/stwalsh4118/pillarbox/internal/analytics/comscore"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/metrics"
	"github.com/stwalsh4118/pillarbox/internal/monitoring"
	"github.com/stwalsh4118/pillarbox/internal/player"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
)

// uxRecorder counts ComScore ux notifications
type uxRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *uxRecorder) NotifyUxActive()   { r.record("active") }
func (r *uxRecorder) NotifyUxInactive() { r.record("inactive") }

func (r *uxRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *uxRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// recordingSink keeps CommandersAct page views and custom events
type recordingSink struct {
	mu        sync.Mutex
	pageViews []commandersact.PageView
	events    []commandersact.Event
}

func (s *recordingSink) SendTcMediaEvent(commandersact.MediaEvent) {}

func (s *recordingSink) SendPageView(pageView commandersact.PageView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageViews = append(s.pageViews, pageView)
}

func (s *recordingSink) SendEvent(event commandersact.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) PageViews() []commandersact.PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commandersact.PageView(nil), s.pageViews...)
}

func (s *recordingSink) Events() []commandersact.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commandersact.Event(nil), s.events...)
}

type fixture struct {
	t       *testing.T
	clock   clockwork.FakeClock
	manager *Manager
	events  *monitoring.MemoryHandler
	ux      *uxRecorder
	active  *comscore.ActiveTracker
	sink    *recordingSink
}

func newFixture(t *testing.T, mutate func(cfg *Config), entries ...asset.CatalogEntry) *fixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.AssetLoadTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		t:      t,
		clock:  clockwork.NewFakeClock(),
		events: monitoring.NewMemoryHandler(),
		ux:     &uxRecorder{},
		sink:   &recordingSink{},
	}
	f.active = comscore.NewActiveTracker(f.ux)

	m, err := NewManager(cfg, Dependencies{
		Loader:        asset.NewCatalogLoader(&asset.Catalog{Media: entries}),
		Clock:         f.clock,
		Monitoring:    f.events,
		CommandersAct: f.sink,
		ActiveTracker: f.active,
		Metrics:       metrics.New(),
	})
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	f.manager = m
	return f
}

func (f *fixture) create(autoPlay bool, ids ...string) string {
	f.t.Helper()
	s, err := f.manager.Create(context.Background(), CreateRequest{MediaIDs: ids, AutoPlay: autoPlay})
	require.NoError(f.t, err)
	return s.ID
}

func (f *fixture) state(id string) *State {
	f.t.Helper()
	st, err := f.manager.State(context.Background(), id)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) control(id string, req ControlRequest) *State {
	f.t.Helper()
	st, err := f.manager.Control(context.Background(), id, req)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) waitFor(id string, cond func(st *State) bool) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		st, err := f.manager.State(context.Background(), id)
		return err == nil && cond(st)
	}, 2*time.Second, time.Millisecond)
}

func (f *fixture) waitPlaying(id string) {
	f.t.Helper()
	f.waitFor(id, func(st *State) bool { return st.IsPlaying })
}

// advance moves virtual time in steps, using a state read as a barrier
func (f *fixture) advance(id string, total, step time.Duration) {
	f.t.Helper()
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		f.clock.Advance(step)
		f.state(id)
	}
}

func vod(id string, durationMs int64) asset.CatalogEntry {
	return asset.CatalogEntry{ID: id, Title: id, DurationMs: durationMs}
}

func TestManager_CreatePlaysAndReportsState(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 10_000))

	id := f.create(true, "urn:a")
	f.waitPlaying(id)

	st := f.state(id)
	assert.Equal(t, player.StateReady, st.PlaybackState)
	require.NotNil(t, st.DurationMs)
	assert.Equal(t, int64(10_000), *st.DurationMs)
	require.NotNil(t, st.CurrentMediaItem)
	assert.Equal(t, "urn:a", st.CurrentMediaItem.ID)
	assert.NotEmpty(t, st.MonitoringSessionID)
	assert.NotNil(t, st.QoS)
	assert.Equal(t, "playing", string(st.CommandersAct))
	assert.Equal(t, "playing", string(st.ComScore))
	assert.True(t, f.active.IsActive())

	assert.Equal(t, 1, f.manager.Count())
	assert.Equal(t, []monitoring.EventName{monitoring.EventStart, monitoring.EventHeartbeat}, f.events.EventNames())
}

func TestManager_PlayToEnd(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 10_000))

	id := f.create(true, "urn:a")
	f.waitPlaying(id)
	f.advance(id, 10*time.Second, time.Second)

	st := f.state(id)
	assert.Equal(t, player.StateEnded, st.PlaybackState)
	assert.Equal(t, int64(10_000), st.PositionMs)
	assert.Equal(t, []monitoring.EventName{
		monitoring.EventStart,
		monitoring.EventHeartbeat,
		monitoring.EventStop,
	}, f.events.EventNames())
	assert.Equal(t, []string{"active", "inactive"}, f.ux.Calls())
}

func TestManager_ControlCommands(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000))

	id := f.create(false, "urn:a")
	f.waitFor(id, func(st *State) bool { return st.PlaybackState == player.StateReady })

	st := f.control(id, ControlRequest{Command: CommandPlay})
	assert.True(t, st.IsPlaying)

	st = f.control(id, ControlRequest{Command: CommandSeek, PositionMs: 30_000})
	assert.Equal(t, int64(30_000), st.PositionMs)

	st = f.control(id, ControlRequest{Command: CommandPause})
	assert.False(t, st.IsPlaying)
	assert.False(t, st.PlayWhenReady)

	st = f.control(id, ControlRequest{Command: CommandPlay})
	assert.True(t, st.IsPlaying)

	st = f.control(id, ControlRequest{Command: CommandStop})
	assert.Equal(t, player.StateIdle, st.PlaybackState)

	assert.Equal(t, []monitoring.EventName{
		monitoring.EventStart,
		monitoring.EventHeartbeat,
		monitoring.EventSeek,
		monitoring.EventPause,
		monitoring.EventPlay,
		monitoring.EventHeartbeat,
		monitoring.EventStop,
	}, f.events.EventNames())
}

func TestManager_StallIsReportedInQoS(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000))

	id := f.create(true, "urn:a")
	f.waitPlaying(id)

	st := f.control(id, ControlRequest{Command: CommandStall, DurationMs: 2_000})
	assert.Equal(t, player.StateBuffering, st.PlaybackState)

	f.advance(id, 2*time.Second, time.Second)
	st = f.state(id)
	assert.True(t, st.IsPlaying)
	require.NotNil(t, st.QoS)
	assert.Equal(t, 1, st.QoS.StallCount)
	assert.Equal(t, int64(2_000), st.QoS.StallDurationMs)
}

func TestManager_BlockedRangeIsSkipped(t *testing.T) {
	entry := vod("urn:a", 60_000)
	entry.BlockedTimeRanges = []timerange.BlockedTimeRange{{StartMs: 1_000, EndMs: 5_000}}
	f := newFixture(t, nil, entry)

	id := f.create(true, "urn:a")
	f.waitPlaying(id)
	f.advance(id, 1200*time.Millisecond, 200*time.Millisecond)

	st := f.state(id)
	assert.GreaterOrEqual(t, st.PositionMs, int64(5_000))
	assert.Contains(t, f.events.EventNames(), monitoring.EventSeek, "the blocked range jump is a seek above threshold")
}

func TestManager_SkipCredit(t *testing.T) {
	entry := vod("urn:a", 60_000)
	entry.Credits = []timerange.Credit{timerange.NewOpening(0, 20_000)}
	f := newFixture(t, nil, entry)

	id := f.create(true, "urn:a")
	f.waitPlaying(id)
	f.advance(id, 400*time.Millisecond, 200*time.Millisecond)

	st := f.state(id)
	require.NotNil(t, st.Credit)
	assert.Equal(t, timerange.CreditOpening, st.Credit.Kind)

	st = f.control(id, ControlRequest{Command: CommandSkipCredit})
	assert.Equal(t, int64(20_000), st.PositionMs)
	assert.Nil(t, st.Credit)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "skip_credit", events[0].Name)
	assert.Equal(t, "opening", events[0].Labels["credit_kind"])
	assert.Equal(t, "urn:a", events[0].Labels["media_id"])

	// Outside a credit there is nothing to skip
	st = f.control(id, ControlRequest{Command: CommandSkipCredit})
	assert.Equal(t, int64(20_000), st.PositionMs)
	assert.Len(t, f.sink.Events(), 1)
}

func TestManager_CreateSendsPageView(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000), vod("urn:b", 30_000))

	id := f.create(false, "urn:a", "urn:b")

	views := f.sink.PageViews()
	require.Len(t, views, 1)
	assert.Equal(t, "player", views[0].Type)
	assert.Equal(t, id, views[0].Title)
	assert.Equal(t, []string{"urn:a", "urn:b"}, views[0].Levels)
}

func TestManager_InjectedErrorEndsMonitoringSession(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000))

	id := f.create(true, "urn:a")
	f.waitPlaying(id)

	st := f.control(id, ControlRequest{Command: CommandError, Message: "network unreachable"})
	assert.Equal(t, player.StateIdle, st.PlaybackState)
	require.NotNil(t, st.Error)
	assert.Equal(t, "network", st.Error.Type)

	assert.Equal(t, []monitoring.EventName{
		monitoring.EventStart,
		monitoring.EventHeartbeat,
		monitoring.EventError,
	}, f.events.EventNames())
}

func TestManager_UnknownMediaReportsError(t *testing.T) {
	f := newFixture(t, nil)

	id := f.create(true, "urn:missing")
	f.waitFor(id, func(st *State) bool { return st.Error != nil })

	st := f.state(id)
	assert.Equal(t, "source_not_found", st.Error.Type)
	assert.Nil(t, st.DurationMs)
}

func TestManager_ReleaseClosesEverything(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000))

	id := f.create(true, "urn:a")
	f.waitPlaying(id)

	require.NoError(t, f.manager.Release(context.Background(), id))

	msgs := f.events.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, monitoring.EventStop, msgs[2].EventName)
	assert.Equal(t, monitoring.StopReasonReleased, msgs[2].Data.StopReason)
	assert.False(t, f.active.IsActive())
	assert.Zero(t, f.manager.Count())

	_, err := f.manager.State(context.Background(), id)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	assert.ErrorIs(t, f.manager.Release(context.Background(), id), ErrPlayerNotFound)
}

func TestManager_SharedActiveTracker(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000), vod("urn:b", 60_000))

	a := f.create(true, "urn:a")
	b := f.create(true, "urn:b")
	f.waitPlaying(a)
	f.waitPlaying(b)

	f.control(a, ControlRequest{Command: CommandPause})
	assert.True(t, f.active.IsActive(), "one player still plays")

	f.control(b, ControlRequest{Command: CommandPause})
	assert.False(t, f.active.IsActive())
	assert.Equal(t, []string{"active", "inactive"}, f.ux.Calls())
}

func TestManager_CleanupIdle(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.IdleGracePeriod = time.Minute }, vod("urn:a", 3_600_000))

	idle := f.create(false, "urn:a")
	playing := f.create(true, "urn:a")
	f.waitPlaying(playing)

	assert.Zero(t, f.manager.CleanupIdle(context.Background()))

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.manager.CleanupIdle(context.Background()))

	_, err := f.manager.Get(idle)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = f.manager.Get(playing)
	assert.NoError(t, err)
}

func TestManager_CleanupDisabledWithZeroGrace(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.IdleGracePeriod = 0 }, vod("urn:a", 60_000))

	f.create(false, "urn:a")
	f.clock.Advance(time.Hour)
	assert.Zero(t, f.manager.CleanupIdle(context.Background()))
}

func TestManager_ListOrdersByCreation(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000))

	first := f.create(false, "urn:a")
	f.clock.Advance(time.Second)
	second := f.create(false, "urn:a")

	list := f.manager.List()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)
}

func TestManager_StartAndStop(t *testing.T) {
	f := newFixture(t, nil, vod("urn:a", 60_000))

	require.NoError(t, f.manager.Start())
	require.NoError(t, f.manager.Start(), "start is idempotent")
	f.create(true, "urn:a")

	f.manager.Stop()
	f.manager.Stop()

	assert.Zero(t, f.manager.Count())
	_, err := f.manager.Create(context.Background(), CreateRequest{MediaIDs: []string{"urn:a"}})
	assert.ErrorIs(t, err, ErrManagerStopped)
	assert.ErrorIs(t, f.manager.Start(), ErrManagerStopped)
}

func TestManager_Validation(t *testing.T) {
	_, err := NewManager(DefaultConfig(), Dependencies{})
	assert.ErrorIs(t, err, ErrNilLoader)

	f := newFixture(t, nil, vod("urn:a", 60_000))
	_, err = f.manager.Create(context.Background(), CreateRequest{})
	assert.ErrorIs(t, err, ErrNoMediaItems)

	_, err = f.manager.Control(context.Background(), "missing", ControlRequest{Command: CommandPlay})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	id := f.create(false, "urn:a")
	_, err = f.manager.Control(context.Background(), id, ControlRequest{Command: "rewind"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	_, err = f.manager.Control(context.Background(), id, ControlRequest{Command: CommandStall})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestManager_MonitoringDisabled(t *testing.T) {
	m, err := NewManager(DefaultConfig(), Dependencies{
		Loader: asset.NewCatalogLoader(&asset.Catalog{Media: []asset.CatalogEntry{vod("urn:a", 60_000)}}),
		Clock:  clockwork.NewFakeClock(),
	})
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	s, err := m.Create(context.Background(), CreateRequest{MediaIDs: []string{"urn:a"}})
	require.NoError(t, err)

	st, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.MonitoringSessionID)
	assert.Nil(t, st.QoS)
}
