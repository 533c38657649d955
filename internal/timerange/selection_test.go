package timerange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains_HalfOpenInterval(t *testing.T) {
	ranges := []TimeRange{
		BlockedTimeRange{StartMs: 10_000, EndMs: 20_000},
		Chapter{ID: "c1", StartMs: 10_000, EndMs: 20_000},
		NewOpening(10_000, 20_000),
		NewClosing(10_000, 20_000),
	}

	tests := []struct {
		name     string
		position int64
		expected bool
	}{
		{"before start", 9_999, false},
		{"at start", 10_000, true},
		{"inside", 15_000, true},
		{"last millisecond", 19_999, true},
		{"at end", 20_000, false},
		{"after end", 25_000, false},
	}

	for _, r := range ranges {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, r.Contains(tt.position))
			})
		}
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, int64(10_000), BlockedTimeRange{StartMs: 5_000, EndMs: 15_000}.Duration())
	assert.Equal(t, int64(10_000), Chapter{StartMs: 15_000, EndMs: 5_000}.Duration(), "duration is absolute")
	assert.Equal(t, int64(0), NewClosing(3_000, 3_000).Duration())
}

func TestFirstAtPosition(t *testing.T) {
	chapters := []Chapter{
		{ID: "A", StartMs: 0, EndMs: 10_000},
		{ID: "B", StartMs: 10_000, EndMs: 20_000},
	}

	tests := []struct {
		name     string
		position int64
		wantID   string
		wantOK   bool
	}{
		{"first chapter", 0, "A", true},
		{"boundary belongs to second", 10_000, "B", true},
		{"past all chapters", 20_000, "", false},
		{"negative position", -1, "", false},
		{"unset position", TimeUnset, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstAtPosition(chapters, tt.position)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestFirstAtPosition_OverlappingFirstInListWins(t *testing.T) {
	ranges := []BlockedTimeRange{
		{ID: "wide", StartMs: 0, EndMs: 60_000},
		{ID: "narrow", StartMs: 10_000, EndMs: 20_000},
	}

	got, ok := FirstAtPosition(ranges, 15_000)
	assert.True(t, ok)
	assert.Equal(t, "wide", got.ID)
}

func TestIndexAtPosition(t *testing.T) {
	ranges := []BlockedTimeRange{
		{StartMs: 0, EndMs: 10_000},
		{StartMs: 0, EndMs: 10_000},
		{StartMs: 20_000, EndMs: 30_000},
	}

	assert.Equal(t, 0, IndexAtPosition(ranges, 5_000), "identical ranges resolve to the first")
	assert.Equal(t, 2, IndexAtPosition(ranges, 20_000))
	assert.Equal(t, -1, IndexAtPosition(ranges, 15_000))
	assert.Equal(t, -1, IndexAtPosition(ranges, TimeUnset))
}

func TestFirstAtPosition_EmptyList(t *testing.T) {
	_, ok := FirstAtPosition([]Credit(nil), 1_000)
	assert.False(t, ok)
}

func TestMalformedRangesNeverMatch(t *testing.T) {
	inverted := BlockedTimeRange{StartMs: 20_000, EndMs: 10_000}
	empty := Chapter{StartMs: 5_000, EndMs: 5_000}

	for _, p := range []int64{5_000, 10_000, 15_000, 20_000} {
		assert.False(t, inverted.Contains(p))
		assert.False(t, empty.Contains(p))
	}
	assert.False(t, IsWellFormed(inverted))
	assert.False(t, IsWellFormed(empty))
	assert.True(t, IsWellFormed(NewOpening(0, 1)))
}

func TestOverlaps(t *testing.T) {
	a := Chapter{StartMs: 0, EndMs: 10_000}
	b := Chapter{StartMs: 5_000, EndMs: 15_000}
	c := Chapter{StartMs: 10_000, EndMs: 20_000}

	assert.True(t, Overlaps(a, b))
	assert.True(t, Overlaps(b, c))
	assert.False(t, Overlaps(a, c), "adjacent ranges do not overlap")
}

func TestCreditKind_IsValid(t *testing.T) {
	assert.True(t, CreditOpening.IsValid())
	assert.True(t, CreditClosing.IsValid())
	assert.False(t, CreditKind("intro").IsValid())
}
