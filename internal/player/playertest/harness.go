// Package playertest drives a Simulator on a fake-clock looper for tests of
// components that listen to a player.
package playertest

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/looper"
	"github.com/stwalsh4118/pillarbox/internal/player"
)

// LoadTimeout is the asset load timeout of harness simulators
const LoadTimeout = time.Second

// Harness owns a looper running on a fake clock and a simulator bound to it
type Harness struct {
	T      *testing.T
	Clock  clockwork.FakeClock
	Looper *looper.Looper
	Sim    *player.Simulator
}

// New creates a harness whose simulator loads assets from the entries
func New(t *testing.T, entries ...asset.CatalogEntry) *Harness {
	t.Helper()

	clock := clockwork.NewFakeClock()
	l := looper.New(t.Name(), clock)
	t.Cleanup(func() {
		l.Quit()
		l.Wait()
	})

	loader := asset.NewCatalogLoader(&asset.Catalog{Media: entries})
	return &Harness{
		T:      t,
		Clock:  clock,
		Looper: l,
		Sim:    player.NewSimulator(l, loader, LoadTimeout),
	}
}

// Run executes fn on the looper and waits for it. Use assert, not require, inside fn.
func (h *Harness) Run(fn func()) {
	h.T.Helper()
	require.NoError(h.T, h.Looper.Run(context.Background(), fn))
}

// Advance moves virtual time forward and waits for the tasks that became due
func (h *Harness) Advance(d time.Duration) {
	h.T.Helper()
	h.Clock.Advance(d)
	h.Run(func() {})
}

// Step advances virtual time in increments so periodic tasks fire in order
func (h *Harness) Step(total, step time.Duration) {
	h.T.Helper()
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		h.Advance(step)
	}
}

// WaitFor polls a condition evaluated on the looper
func (h *Harness) WaitFor(cond func(s *player.Simulator) bool) {
	h.T.Helper()
	require.Eventually(h.T, func() bool {
		var ok bool
		if err := h.Looper.Run(context.Background(), func() { ok = cond(h.Sim) }); err != nil {
			return false
		}
		return ok
	}, 2*time.Second, time.Millisecond)
}

// WaitReady waits until the simulator reaches the ready state
func (h *Harness) WaitReady() {
	h.T.Helper()
	h.WaitFor(func(s *player.Simulator) bool { return s.PlaybackState() == player.StateReady })
}

// Play sets the playlist, prepares and plays without waiting
func (h *Harness) Play(ids ...string) {
	h.T.Helper()
	items := make([]asset.MediaItem, len(ids))
	for i, id := range ids {
		items[i] = asset.MediaItem{ID: id}
	}
	h.Run(func() {
		h.Sim.SetMediaItems(items)
		h.Sim.Prepare()
		h.Sim.Play()
	})
}

// VOD returns an on-demand catalog entry
func VOD(id string, durationMs int64) asset.CatalogEntry {
	return asset.CatalogEntry{ID: id, Title: id, DurationMs: durationMs}
}

// Live returns a live catalog entry with a DVR window of the given length
func Live(id string, windowMs int64) asset.CatalogEntry {
	return asset.CatalogEntry{ID: id, Title: id, DurationMs: windowMs, Live: true}
}
