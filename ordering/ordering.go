// Package ordering computes position shifts for dense, zero-based manual ordering.
//
// An owner with n items holds positions 0..n-1. Moving one item touches exactly
// |to-from| others, and the bounds are asymmetric in the two directions so the
// boundary item is never shifted twice.
package ordering

import (
	"fmt"
	"math"

	"taskboard/domain"
)

// NoUpperBound marks an open-ended range
const NoUpperBound = math.MaxInt32

// Range is an inclusive band of positions shifted by Delta
type Range struct {
	Min   int
	Max   int
	Delta int
}

// Contains reports whether p falls within the range
func (r Range) Contains(p int) bool {
	return p >= r.Min && p <= r.Max
}

// Len returns the number of positions covered, or -1 when the range is open-ended
func (r Range) Len() int {
	if r.Max == NoUpperBound {
		return -1
	}
	if r.Max < r.Min {
		return 0
	}
	return r.Max - r.Min + 1
}

func (r Range) String() string {
	if r.Max == NoUpperBound {
		return fmt.Sprintf("[%d..) %+d", r.Min, r.Delta)
	}
	return fmt.Sprintf("[%d..%d] %+d", r.Min, r.Max, r.Delta)
}

// Move relocates a single item. Shift is nil for a no-op.
type Move struct {
	From  int
	To    int
	Shift *Range
}

// NoOp reports whether the move leaves every position unchanged
func (m Move) NoOp() bool {
	return m.From == m.To
}

// Clamp validates a requested target and clamps it into [0, count-1]
func Clamp(requested, count int) (int, error) {
	if requested < 0 {
		return 0, fmt.Errorf("%w: position %d is negative", domain.ErrInvalidArgument, requested)
	}
	if count <= 0 {
		return 0, domain.ErrNotFound
	}
	if requested > count-1 {
		return count - 1, nil
	}
	return requested, nil
}

// Plan computes the shift needed to move an item from one position to another.
// Both positions must already be valid for the list.
func Plan(from, to int) Move {
	m := Move{From: from, To: to}
	switch {
	case to > from:
		// moving later: close the gap at from, open a slot at to
		m.Shift = &Range{Min: from + 1, Max: to, Delta: -1}
	case to < from:
		m.Shift = &Range{Min: to, Max: from - 1, Delta: 1}
	}
	return m
}

// Compaction returns the shift that re-densifies positions after removing the item at removed
func Compaction(removed int) Range {
	return Range{Min: removed + 1, Max: NoUpperBound, Delta: -1}
}

// Apply performs a move on an in-memory ordering where positions[i] is the position of item i.
// The slice is modified in place.
func Apply(positions []int, item int, m Move) {
	if m.Shift != nil {
		for i, p := range positions {
			if i != item && m.Shift.Contains(p) {
				positions[i] = p + m.Shift.Delta
			}
		}
	}
	positions[item] = m.To
}

// Dense reports whether positions is exactly a permutation of 0..len-1
func Dense(positions []int) bool {
	seen := make([]bool, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(positions) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}
