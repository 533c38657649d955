package comscore

import (
	"sync"
	"sync/atomic"
)

// ActiveTracker tells ComScore whether any tracked player is playing.
//
// One instance is shared by every Streaming adapter of the application.
// NotifyUxActive fires once when the first tracker becomes active and
// NotifyUxInactive once when the last one stops, however many trackers overlap.
// It is safe for concurrent use from several player loopers.
type ActiveTracker struct {
	analytics Analytics
	mu        sync.Mutex
	trackers  map[string]bool
	active    atomic.Bool
}

// NewActiveTracker creates a tracker reporting to the analytics
func NewActiveTracker(analytics Analytics) *ActiveTracker {
	return &ActiveTracker{
		analytics: analytics,
		trackers:  make(map[string]bool),
	}
}

// SetActive records the activity of one tracker and notifies on global changes
func (t *ActiveTracker) SetActive(trackerID string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trackers[trackerID] = active
	t.update()
}

// Remove forgets a tracker, as if it became inactive
func (t *ActiveTracker) Remove(trackerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.trackers, trackerID)
	t.update()
}

// IsActive reports whether at least one tracker is active
func (t *ActiveTracker) IsActive() bool {
	return t.active.Load()
}

// ActiveCount returns the number of active trackers
func (t *ActiveTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countActive()
}

// update flips the global flag. Callers hold mu so notifications keep the
// order of the map changes.
func (t *ActiveTracker) update() {
	if t.countActive() > 0 {
		if t.active.CompareAndSwap(false, true) {
			t.analytics.NotifyUxActive()
		}
		return
	}
	if t.active.CompareAndSwap(true, false) {
		t.analytics.NotifyUxInactive()
	}
}

func (t *ActiveTracker) countActive() int {
	n := 0
	for _, active := range t.trackers {
		if active {
			n++
		}
	}
	return n
}
