// Package timerange provides the time range model attached to a loaded asset
// (blocked segments, chapters and credits) and the selection engine that finds
// which range covers a given playback position.
package timerange

import "math"

// TimeUnset is the sentinel value for an unknown playback position
const TimeUnset int64 = math.MinInt64 + 1

// TimeRange is a segment of the player timeline expressed in milliseconds
type TimeRange interface {
	// Start is the inclusive start position in milliseconds
	Start() int64
	// End is the exclusive end position in milliseconds
	End() int64
	// Duration is the absolute distance between start and end
	Duration() int64
	// Contains reports whether start <= position < end
	Contains(position int64) bool
}

// duration computes |end - start| for every range variant
func duration(start, end int64) int64 {
	if end < start {
		return start - end
	}
	return end - start
}

// contains implements the half-open interval rule shared by all variants
func contains(start, end, position int64) bool {
	return position >= start && position < end
}

// BlockReason explains why a time range must be skipped
type BlockReason string

// Known block reasons
const (
	BlockReasonGeoblock    BlockReason = "GEOBLOCK"
	BlockReasonLegal       BlockReason = "LEGAL"
	BlockReasonCommercial  BlockReason = "COMMERCIAL"
	BlockReasonAgeRating18 BlockReason = "AGERATING18"
	BlockReasonAgeRating12 BlockReason = "AGERATING12"
	BlockReasonStartDate   BlockReason = "STARTDATE"
	BlockReasonEndDate     BlockReason = "ENDDATE"
	BlockReasonUnknown     BlockReason = "UNKNOWN"
)

// BlockedTimeRange is a segment the player must never remain inside.
// Reaching its start makes the player jump to its end.
type BlockedTimeRange struct {
	StartMs int64       `json:"start_ms" yaml:"start_ms"`
	EndMs   int64       `json:"end_ms" yaml:"end_ms"`
	Reason  BlockReason `json:"reason,omitempty" yaml:"reason,omitempty"`
	ID      string      `json:"id,omitempty" yaml:"id,omitempty"`
}

// Start returns the start position in milliseconds
func (b BlockedTimeRange) Start() int64 { return b.StartMs }

// End returns the end position in milliseconds
func (b BlockedTimeRange) End() int64 { return b.EndMs }

// Duration returns the length of the range in milliseconds
func (b BlockedTimeRange) Duration() int64 { return duration(b.StartMs, b.EndMs) }

// Contains reports whether the position falls inside the range
func (b BlockedTimeRange) Contains(position int64) bool {
	return contains(b.StartMs, b.EndMs, position)
}

// Chapter is an informational segment with its own metadata
type Chapter struct {
	ID          string `json:"id" yaml:"id"`
	StartMs     int64  `json:"start_ms" yaml:"start_ms"`
	EndMs       int64  `json:"end_ms" yaml:"end_ms"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	ArtworkURI  string `json:"artwork_uri,omitempty" yaml:"artwork_uri,omitempty"`
}

// Start returns the start position in milliseconds
func (c Chapter) Start() int64 { return c.StartMs }

// End returns the end position in milliseconds
func (c Chapter) End() int64 { return c.EndMs }

// Duration returns the length of the chapter in milliseconds
func (c Chapter) Duration() int64 { return duration(c.StartMs, c.EndMs) }

// Contains reports whether the position falls inside the chapter
func (c Chapter) Contains(position int64) bool {
	return contains(c.StartMs, c.EndMs, position)
}

// CreditKind tags a credit as opening or closing
type CreditKind string

// Credit kinds
const (
	CreditOpening CreditKind = "opening"
	CreditClosing CreditKind = "closing"
)

// IsValid checks if the credit kind is a known value
func (k CreditKind) IsValid() bool {
	return k == CreditOpening || k == CreditClosing
}

// Credit is an opening or closing credits segment
type Credit struct {
	Kind    CreditKind `json:"kind" yaml:"kind"`
	StartMs int64      `json:"start_ms" yaml:"start_ms"`
	EndMs   int64      `json:"end_ms" yaml:"end_ms"`
}

// NewOpening creates an opening credit
func NewOpening(start, end int64) Credit {
	return Credit{Kind: CreditOpening, StartMs: start, EndMs: end}
}

// NewClosing creates a closing credit
func NewClosing(start, end int64) Credit {
	return Credit{Kind: CreditClosing, StartMs: start, EndMs: end}
}

// Start returns the start position in milliseconds
func (c Credit) Start() int64 { return c.StartMs }

// End returns the end position in milliseconds
func (c Credit) End() int64 { return c.EndMs }

// Duration returns the length of the credit in milliseconds
func (c Credit) Duration() int64 { return duration(c.StartMs, c.EndMs) }

// Contains reports whether the position falls inside the credit
func (c Credit) Contains(position int64) bool {
	return contains(c.StartMs, c.EndMs, position)
}
