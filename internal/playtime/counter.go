// Package playtime measures how long a player has actually been playing.
package playtime

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Counter accumulates time between Play and Pause calls.
// It is not safe for concurrent use; owners drive it from the player looper.
type Counter struct {
	clock     clockwork.Clock
	total     time.Duration
	startedAt time.Time
	running   bool
}

// NewCounter creates a paused counter
func NewCounter(clock clockwork.Clock) *Counter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Counter{clock: clock}
}

// Play resumes counting. It is a no-op while already counting.
func (c *Counter) Play() {
	if c.running {
		return
	}
	c.startedAt = c.clock.Now()
	c.running = true
}

// Pause stops counting and keeps the accumulated total
func (c *Counter) Pause() {
	if !c.running {
		return
	}
	c.total += c.clock.Since(c.startedAt)
	c.running = false
}

// Reset clears the total and stops counting
func (c *Counter) Reset() {
	c.total = 0
	c.running = false
}

// IsRunning reports whether time is being counted
func (c *Counter) IsRunning() bool {
	return c.running
}

// Total returns the accumulated playtime, including the running stretch
func (c *Counter) Total() time.Duration {
	if c.running {
		return c.total + c.clock.Since(c.startedAt)
	}
	return c.total
}
