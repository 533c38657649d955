package asset

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// CircuitClosed lets every load through
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects loads until the reset timeout elapses
	CircuitOpen
	// CircuitHalfOpen lets loads through to probe recovery
	CircuitHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the loader circuit is open
var ErrCircuitOpen = errors.New("asset loader circuit breaker is open")

// BreakerLoader guards a Loader with a circuit breaker. A loader that keeps
// failing is short-circuited for resetTimeout so players fail fast.
// Missing assets and cancelled loads do not count as failures.
type BreakerLoader struct {
	next             Loader
	clock            clockwork.Clock
	failureThreshold int
	resetTimeout     time.Duration

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastFailureTime time.Time
}

// NewBreakerLoader wraps next. A nil clock uses the real clock.
func NewBreakerLoader(next Loader, failureThreshold int, resetTimeout time.Duration, clock clockwork.Clock) *BreakerLoader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &BreakerLoader{
		next:             next,
		clock:            clock,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitClosed,
	}
}

// Load calls the wrapped loader unless the circuit is open
func (b *BreakerLoader) Load(ctx context.Context, item MediaItem) (*Asset, error) {
	if !b.CanAttempt() {
		return nil, ErrCircuitOpen
	}

	a, err := b.next.Load(ctx, item)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil, errors.Is(err, ErrAssetNotFound), errors.Is(err, context.Canceled):
		b.recordSuccessLocked()
	default:
		b.recordFailureLocked()
	}
	return a, err
}

// State returns the current state of the circuit
func (b *BreakerLoader) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

// Failures returns the current consecutive failure count
func (b *BreakerLoader) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// CanAttempt reports whether a load would reach the wrapped loader
func (b *BreakerLoader) CanAttempt() bool {
	return b.State() != CircuitOpen
}

// Reset closes the circuit
func (b *BreakerLoader) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.failures = 0
	b.lastFailureTime = time.Time{}
}

// refreshLocked moves an open circuit to half-open once the timeout elapsed (must hold lock)
func (b *BreakerLoader) refreshLocked() {
	if b.state == CircuitOpen && b.clock.Since(b.lastFailureTime) >= b.resetTimeout {
		b.state = CircuitHalfOpen
		b.failures = 0
	}
}

// recordSuccessLocked records a successful load (must hold lock)
func (b *BreakerLoader) recordSuccessLocked() {
	b.failures = 0
	if b.state == CircuitHalfOpen {
		b.state = CircuitClosed
		logger.Log.Info().Msg("Asset loader circuit closed")
	}
}

// recordFailureLocked records a failed load (must hold lock)
func (b *BreakerLoader) recordFailureLocked() {
	b.failures++
	b.lastFailureTime = b.clock.Now()

	if b.state == CircuitHalfOpen || b.failures >= b.failureThreshold {
		if b.state != CircuitOpen {
			logger.Log.Warn().
				Int("failures", b.failures).
				Dur("reset_timeout", b.resetTimeout).
				Msg("Asset loader circuit opened")
		}
		b.state = CircuitOpen
	}
}
