// Package heartbeat provides a restartable periodic task bound to a scheduler.
package heartbeat

import (
	"errors"
	"time"
)

// Scheduler runs delayed work on the owner's execution context.
// *looper.Looper implements it.
type Scheduler interface {
	PostDelayed(fn func(), delay time.Duration) (cancel func())
}

// Heartbeat errors
var (
	ErrInvalidPeriod    = errors.New("heartbeat period must be greater than 0")
	ErrInvalidDelay     = errors.New("heartbeat start delay cannot be negative")
	ErrNilScheduler     = errors.New("heartbeat scheduler cannot be nil")
	ErrNilHeartbeatTask = errors.New("heartbeat task cannot be nil")
)

// Heartbeat waits startDelay, then runs task every period until stopped.
//
// A Heartbeat is not safe for concurrent use: Start, Stop and the task all run
// on the scheduler's goroutine, exactly like the player callbacks that drive it.
type Heartbeat struct {
	startDelay time.Duration
	period     time.Duration
	scheduler  Scheduler
	task       func()

	cancel     func()
	generation uint64
	running    bool
}

// New creates a stopped heartbeat
func New(startDelay, period time.Duration, scheduler Scheduler, task func()) (*Heartbeat, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if startDelay < 0 {
		return nil, ErrInvalidDelay
	}
	if scheduler == nil {
		return nil, ErrNilScheduler
	}
	if task == nil {
		return nil, ErrNilHeartbeatTask
	}

	return &Heartbeat{
		startDelay: startDelay,
		period:     period,
		scheduler:  scheduler,
		task:       task,
	}, nil
}

// Start schedules the task. When already running, restart=false is a no-op and
// restart=true cancels the current run and starts over from startDelay.
func (h *Heartbeat) Start(restart bool) {
	if h.running && !restart {
		return
	}

	h.Stop()
	h.running = true
	h.generation++
	h.schedule(h.generation, h.startDelay)
}

// Stop cancels the pending run. It is idempotent and safe to call before Start.
func (h *Heartbeat) Stop() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.running = false
}

// IsRunning reports whether a run is scheduled
func (h *Heartbeat) IsRunning() bool {
	return h.running
}

// Period returns the interval between two task executions
func (h *Heartbeat) Period() time.Duration {
	return h.period
}

// schedule arms the next tick for the given run
func (h *Heartbeat) schedule(generation uint64, delay time.Duration) {
	h.cancel = h.scheduler.PostDelayed(func() {
		h.tick(generation)
	}, delay)
}

// tick runs the task and re-arms, unless the run was stopped or replaced
func (h *Heartbeat) tick(generation uint64) {
	if !h.running || generation != h.generation {
		return
	}

	h.task()

	// The task itself may have stopped or restarted the heartbeat
	if !h.running || generation != h.generation {
		return
	}
	h.schedule(generation, h.period)
}
