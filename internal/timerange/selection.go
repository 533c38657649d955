package timerange

import "github.com/samber/lo"

// FirstAtPosition returns the first range, in list order, that contains the
// position. Overlapping ranges are not ranked: the earliest entry in the list
// wins. An unset position never matches.
//
// The lookup is a linear scan; callers throttle how often they sample.
func FirstAtPosition[T TimeRange](ranges []T, position int64) (T, bool) {
	if position == TimeUnset {
		var zero T
		return zero, false
	}
	return lo.Find(ranges, func(r T) bool {
		return r.Contains(position)
	})
}

// IndexAtPosition is FirstAtPosition returning the index of the match, or -1.
// The index identifies a range instance even when two entries are equal.
func IndexAtPosition[T TimeRange](ranges []T, position int64) int {
	if position == TimeUnset {
		return -1
	}
	_, index, _ := lo.FindIndexOf(ranges, func(r T) bool {
		return r.Contains(position)
	})
	return index
}

// Overlaps reports whether two ranges share at least one position
func Overlaps(a, b TimeRange) bool {
	return a.Start() < b.End() && b.Start() < a.End()
}

// IsWellFormed reports whether the range can ever contain a position.
// Ranges are not validated on construction; an inverted or empty range simply
// never matches.
func IsWellFormed(r TimeRange) bool {
	return r.Start() < r.End()
}
