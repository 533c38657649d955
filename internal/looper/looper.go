// Package looper provides a serialized execution context for a single player.
// Every player callback, heartbeat tick and control command of one player runs
// on the same looper goroutine, so per-player state needs no locking.
package looper

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

// ErrLooperQuit is returned when work is submitted to a looper that has quit
var ErrLooperQuit = errors.New("looper has quit")

// Looper runs posted tasks one at a time, in posting order, on a dedicated goroutine.
//
// Delayed tasks whose due time has passed always run before the next posted
// task. With a fake clock this means a Run issued after Advance observes every
// task that became due.
type Looper struct {
	name     string
	clock    clockwork.Clock
	mu       sync.Mutex
	queue    []func()
	delayed  delayedQueue
	seq      uint64
	wake     chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	quitOnce sync.Once
	stopped  atomic.Bool

	// alarm is owned by the loop goroutine
	alarm    clockwork.Timer
	alarmDue time.Time
}

// New creates a looper and starts its goroutine
func New(name string, clock clockwork.Clock) *Looper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := &Looper{
		name:     name,
		clock:    clock,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.loop()
	return l
}

// Name returns the looper name used in logs
func (l *Looper) Name() string {
	return l.name
}

// Clock returns the clock used for delayed tasks
func (l *Looper) Clock() clockwork.Clock {
	return l.clock
}

// Post enqueues a task. It returns false if the looper has quit.
func (l *Looper) Post(fn func()) bool {
	if l.stopped.Load() {
		return false
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.signal()
	return true
}

// PostDelayed enqueues a task after the delay elapses on the looper clock.
// Once cancel returns the task never runs.
func (l *Looper) PostDelayed(fn func(), delay time.Duration) (cancel func()) {
	var cancelled atomic.Bool
	task := func() {
		if !cancelled.Load() {
			fn()
		}
	}

	if delay <= 0 {
		l.Post(task)
		return func() { cancelled.Store(true) }
	}

	if l.stopped.Load() {
		return func() {}
	}

	l.mu.Lock()
	l.seq++
	entry := &delayedTask{
		fn:  task,
		due: l.clock.Now().Add(delay),
		seq: l.seq,
	}
	heap.Push(&l.delayed, entry)
	l.mu.Unlock()

	l.signal()

	return func() {
		cancelled.Store(true)
		l.mu.Lock()
		if entry.index >= 0 {
			heap.Remove(&l.delayed, entry.index)
		}
		l.mu.Unlock()
	}
}

// Run posts the task and waits until it has executed.
// It must not be called from the looper goroutine.
func (l *Looper) Run(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLooperQuit
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLooperQuit
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quit stops the looper after the task currently executing. Pending tasks are dropped.
func (l *Looper) Quit() {
	l.quitOnce.Do(func() {
		l.stopped.Store(true)
		close(l.stopChan)
	})
}

// Wait blocks until the looper goroutine has exited
func (l *Looper) Wait() {
	<-l.done
}

// Done returns a channel closed when the looper goroutine has exited
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of tasks waiting to run, delayed ones included
func (l *Looper) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + len(l.delayed)
}

// signal wakes the loop goroutine without blocking
func (l *Looper) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// loop drains the task queues until Quit is called
func (l *Looper) loop() {
	defer close(l.done)
	defer l.disarm()

	logger.Log.Debug().Str("looper", l.name).Msg("Looper started")

	for {
		l.drain()
		if l.stopped.Load() {
			logger.Log.Debug().Str("looper", l.name).Msg("Looper stopping")
			return
		}

		var alarm <-chan time.Time
		if l.arm() {
			alarm = l.alarm.Chan()
		}

		select {
		case <-l.stopChan:
			logger.Log.Debug().Str("looper", l.name).Msg("Looper stopping")
			return
		case <-l.wake:
		case <-alarm:
			l.alarm = nil
		}
	}
}

// drain runs due delayed tasks first, then posted tasks, until both are empty
func (l *Looper) drain() {
	for !l.stopped.Load() {
		if fn, ok := l.nextDue(); ok {
			fn()
			continue
		}
		fn, ok := l.next()
		if !ok {
			return
		}
		fn()
	}
}

// next pops the oldest posted task
func (l *Looper) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// nextDue pops the earliest delayed task whose due time has passed
func (l *Looper) nextDue() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.delayed) == 0 || l.delayed[0].due.After(l.clock.Now()) {
		return nil, false
	}
	entry := heap.Pop(&l.delayed).(*delayedTask)
	return entry.fn, true
}

// arm points the alarm timer at the earliest delayed task.
// It reports whether an alarm is set.
func (l *Looper) arm() bool {
	l.mu.Lock()
	if len(l.delayed) == 0 {
		l.mu.Unlock()
		l.disarm()
		return false
	}
	due := l.delayed[0].due
	l.mu.Unlock()

	if l.alarm != nil && l.alarmDue.Equal(due) {
		return true
	}
	l.disarm()
	l.alarm = l.clock.NewTimer(due.Sub(l.clock.Now()))
	l.alarmDue = due
	return true
}

// disarm stops the alarm timer
func (l *Looper) disarm() {
	if l.alarm != nil {
		l.alarm.Stop()
		l.alarm = nil
	}
}

// delayedTask is a task waiting for its due time
type delayedTask struct {
	fn    func()
	due   time.Time
	seq   uint64
	index int
}

// delayedQueue is a min-heap ordered by due time, then posting order
type delayedQueue []*delayedTask

func (q delayedQueue) Len() int { return len(q) }

func (q delayedQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q delayedQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *delayedQueue) Push(x any) {
	entry := x.(*delayedTask)
	entry.index = len(*q)
	*q = append(*q, entry)
}

func (q *delayedQueue) Pop() any {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*q = old[:n-1]
	return entry
}
