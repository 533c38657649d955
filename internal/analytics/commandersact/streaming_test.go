package commandersact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/player"
	"github.com/stwalsh4118/pillarbox/internal/player/playertest"
)

// recordingSink keeps media events; it is only touched from the looper
type recordingSink struct {
	events    []MediaEvent
	pageViews []PageView
	custom    []Event
}

func (s *recordingSink) SendTcMediaEvent(event MediaEvent) { s.events = append(s.events, event) }
func (s *recordingSink) SendPageView(pageView PageView) { s.pageViews = append(s.pageViews, pageView) }
func (s *recordingSink) SendEvent(event Event) { s.custom = append(s.custom, event) }

type fixture struct {
	*playertest.Harness
	streaming *Streaming
	sink      *recordingSink
}

func newFixture(t *testing.T, entries ...asset.CatalogEntry) *fixture {
	t.Helper()

	f := &fixture{Harness: playertest.New(t, entries...), sink: &recordingSink{}}
	var err error
	f.Run(func() { f.streaming, err = NewStreaming(f.Sim, f.Looper, f.Clock, DefaultConfig(), f.sink) })
	require.NoError(t, err)
	return f
}

func (f *fixture) types() []MediaEventType {
	f.T.Helper()
	var types []MediaEventType
	f.Run(func() {
		for _, e := range f.sink.events {
			types = append(types, e.Type)
		}
	})
	return types
}

func (f *fixture) events() []MediaEvent {
	f.T.Helper()
	var events []MediaEvent
	f.Run(func() { events = append(events, f.sink.events...) })
	return events
}

func withLabels(entry asset.CatalogEntry) asset.CatalogEntry {
	entry.Analytics.CommandersAct = map[string]string{"media_title": entry.Title}
	return entry
}

func TestStreaming_PlayToEnd(t *testing.T) {
	f := newFixture(t, withLabels(playertest.VOD("a", 100_000)))

	f.Play("a")
	f.WaitReady()
	f.Step(100*time.Second, 10*time.Second)

	assert.Equal(t, []MediaEventType{
		MediaEventPlay, MediaEventPos, MediaEventPos, MediaEventPos, MediaEventEOF,
	}, f.types())

	events := f.events()
	assert.Equal(t, time.Duration(0), events[0].MediaPosition)
	assert.Equal(t, 30*time.Second, events[1].MediaPosition)
	assert.Equal(t, 100*time.Second, events[4].MediaPosition)
	assert.Equal(t, "a", events[0].Labels["media_title"])
	for _, e := range events {
		assert.Nil(t, e.TimeShift, "on-demand events carry no time shift")
	}
}

func TestStreaming_PauseSeekResume(t *testing.T) {
	f := newFixture(t, playertest.VOD("a", 100_000))

	f.Play("a")
	f.WaitReady()
	f.Advance(5 * time.Second)
	f.Run(func() { f.Sim.Pause() })
	f.Run(func() { f.Sim.SeekTo(50_000) })
	f.Advance(time.Minute)
	f.Run(func() { f.Sim.Play() })

	assert.Equal(t, []MediaEventType{
		MediaEventPlay, MediaEventPause, MediaEventSeek, MediaEventPlay,
	}, f.types(), "no pos ping while paused")

	events := f.events()
	assert.Equal(t, 5*time.Second, events[1].MediaPosition)
	assert.Equal(t, 50*time.Second, events[3].MediaPosition)

	f.Run(func() { assert.Equal(t, StatePlaying, f.streaming.State()) })
}

func TestStreaming_SeekWhilePlaying(t *testing.T) {
	f := newFixture(t, playertest.VOD("a", 100_000))

	f.Play("a")
	f.WaitReady()
	f.Run(func() { f.Sim.SeekTo(40_000) })

	assert.Equal(t, []MediaEventType{MediaEventPlay, MediaEventSeek, MediaEventPlay}, f.types())
}

func TestStreaming_TransitionSendsStop(t *testing.T) {
	f := newFixture(t, playertest.VOD("a", 10_000), playertest.VOD("b", 10_000))

	f.Play("a", "b")
	f.WaitReady()
	f.Advance(10 * time.Second)
	f.WaitFor(func(s *player.Simulator) bool {
		return s.CurrentMediaItemIndex() == 1 && s.PlaybackState() == player.StateReady
	})
	f.Advance(10 * time.Second)

	assert.Equal(t, []MediaEventType{
		MediaEventPlay, MediaEventStop, MediaEventPlay, MediaEventEOF,
	}, f.types())
}

func TestStreaming_StallIsNotAPause(t *testing.T) {
	f := newFixture(t, playertest.VOD("a", 100_000))

	f.Play("a")
	f.WaitReady()
	f.Advance(5 * time.Second)
	f.Run(func() { f.Sim.InjectStall(3 * time.Second) })
	f.Advance(3 * time.Second)

	assert.Equal(t, []MediaEventType{MediaEventPlay}, f.types())
	f.Run(func() { assert.Equal(t, 5*time.Second, f.streaming.Playtime()) })
}

func TestStreaming_LiveUsesPlaytimeAndTimeShift(t *testing.T) {
	f := newFixture(t, playertest.Live("live", 2*60*60_000))

	f.Play("live")
	f.WaitReady()
	f.Step(30*time.Second, 10*time.Second)

	events := f.events()
	require.Len(t, events, 3, "play, pos, uptime")
	assert.Equal(t, MediaEventPlay, events[0].Type)
	assert.Equal(t, MediaEventPos, events[1].Type)
	assert.Equal(t, MediaEventUptime, events[2].Type)

	assert.Equal(t, 30*time.Second, events[1].MediaPosition, "live position is the playtime")
	require.NotNil(t, events[1].TimeShift)
	assert.Equal(t, time.Duration(0), *events[1].TimeShift, "at the live edge")

	f.Run(func() { f.Sim.SeekTo(60 * 60_000) })
	events = f.events()
	seek := events[len(events)-2]
	assert.Equal(t, MediaEventSeek, seek.Type)
	require.NotNil(t, seek.TimeShift)
	assert.Equal(t, time.Hour, *seek.TimeShift)
}

func TestStreaming_TimeShiftBelowThresholdIsZero(t *testing.T) {
	f := newFixture(t, playertest.Live("live", 10*60_000))

	f.Play("live")
	f.WaitReady()
	f.Run(func() { f.Sim.SeekTo(10*60_000 - 45_000) })

	events := f.events()
	seek := events[1]
	require.NotNil(t, seek.TimeShift)
	assert.Equal(t, time.Duration(0), *seek.TimeShift)
}

func TestStreaming_ReleaseSendsStopOnce(t *testing.T) {
	f := newFixture(t, playertest.VOD("a", 100_000))

	f.Play("a")
	f.WaitReady()
	f.Run(func() {
		f.streaming.Release()
		f.streaming.Release()
	})
	f.Run(func() { f.Sim.Pause() })

	assert.Equal(t, []MediaEventType{MediaEventPlay, MediaEventStop}, f.types())
}

func TestStreaming_PlayerStop(t *testing.T) {
	f := newFixture(t, playertest.VOD("a", 100_000))

	f.Play("a")
	f.WaitReady()
	f.Run(func() { f.Sim.Stop() })
	f.Advance(time.Minute)

	assert.Equal(t, []MediaEventType{MediaEventPlay, MediaEventStop}, f.types())
}

func TestNewStreaming_Validation(t *testing.T) {
	h := playertest.New(t)

	_, err := NewStreaming(nil, h.Looper, h.Clock, DefaultConfig(), &recordingSink{})
	assert.ErrorIs(t, err, ErrNilPlayer)

	_, err = NewStreaming(h.Sim, h.Looper, h.Clock, DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrNilSink)

	_, err = NewStreaming(h.Sim, h.Looper, h.Clock, Config{PosPeriod: 0, UptimePeriod: time.Second}, &recordingSink{})
	assert.Error(t, err)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink()
	shift := time.Minute
	assert.NotPanics(t, func() {
		sink.SendTcMediaEvent(MediaEvent{Type: MediaEventPlay, TimeShift: &shift})
		sink.SendPageView(PageView{Type: "home", Title: "Home", Levels: []string{"tv"}})
		sink.SendEvent(Event{Name: "click"})
	})
}
