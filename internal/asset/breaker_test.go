package asset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyLoader fails while err is set and counts calls
type flakyLoader struct {
	err   error
	calls int
}

func (l *flakyLoader) Load(_ context.Context, item MediaItem) (*Asset, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return &Asset{MediaItemID: item.ID}, nil
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state    CircuitState
		expected string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half_open"},
		{CircuitState(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestBreakerLoader_OpensAfterThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	next := &flakyLoader{err: errors.New("connection refused")}
	b := NewBreakerLoader(next, 3, 10*time.Second, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Load(ctx, MediaItem{ID: "a"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, CircuitOpen, b.State())

	_, err := b.Load(ctx, MediaItem{ID: "a"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, next.calls, "open circuit does not reach the loader")
}

func TestBreakerLoader_HalfOpenRecovery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	next := &flakyLoader{err: errors.New("boom")}
	b := NewBreakerLoader(next, 1, 10*time.Second, clock)
	ctx := context.Background()

	_, _ = b.Load(ctx, MediaItem{ID: "a"})
	require.Equal(t, CircuitOpen, b.State())

	clock.Advance(10 * time.Second)
	assert.Equal(t, CircuitHalfOpen, b.State())

	// A failed probe reopens the circuit
	_, err := b.Load(ctx, MediaItem{ID: "a"})
	require.Error(t, err)
	assert.Equal(t, CircuitOpen, b.State())

	clock.Advance(10 * time.Second)
	next.err = nil
	a, err := b.Load(ctx, MediaItem{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", a.MediaItemID)
	assert.Equal(t, CircuitClosed, b.State())
	assert.Zero(t, b.Failures())
}

func TestBreakerLoader_NotFoundIsNotAFailure(t *testing.T) {
	next := &flakyLoader{err: ErrAssetNotFound}
	b := NewBreakerLoader(next, 1, time.Minute, clockwork.NewFakeClock())

	for i := 0; i < 5; i++ {
		_, err := b.Load(context.Background(), MediaItem{ID: "missing"})
		assert.ErrorIs(t, err, ErrAssetNotFound)
	}
	assert.Equal(t, CircuitClosed, b.State())
	assert.Equal(t, 5, next.calls)
}

func TestBreakerLoader_Reset(t *testing.T) {
	b := NewBreakerLoader(&flakyLoader{err: errors.New("boom")}, 1, time.Hour, clockwork.NewFakeClock())

	_, _ = b.Load(context.Background(), MediaItem{ID: "a"})
	require.False(t, b.CanAttempt())

	b.Reset()
	assert.True(t, b.CanAttempt())
	assert.Equal(t, CircuitClosed, b.State())
}
