// Package lyrics maps a playback position to the active lyric line and keeps
// a listener informed as the active line changes.
package lyrics

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// Line is one lyric line of a song. StartMs and EndMs are nil for untimed
// (decorative) lines, which are never selected as active.
type Line struct {
	ID          string  `json:"id"`
	LineNumber  int     `json:"line_number"`
	Text        string  `json:"text"`
	StartMs     *int64  `json:"start_ms"`
	EndMs       *int64  `json:"end_ms"`
	Translation *string `json:"translation"`
}

// Timed reports whether both timing bounds are present.
func (l Line) Timed() bool {
	return l.StartMs != nil && l.EndMs != nil
}

// Contains reports whether positionMs falls inside the line's inclusive
// [StartMs, EndMs] window. Untimed lines contain nothing.
func (l Line) Contains(positionMs int64) bool {
	return l.Timed() && *l.StartMs <= positionMs && positionMs <= *l.EndMs
}

// Sort orders lines by LineNumber in place. The sort is stable so lines that
// share a number keep their load order.
func Sort(lines []Line) {
	slices.SortStableFunc(lines, func(a, b Line) int {
		return cmp.Compare(a.LineNumber, b.LineNumber)
	})
}

// Timed returns the subset of lines with both timing bounds set.
func Timed(lines []Line) []Line {
	return lo.Filter(lines, func(l Line, _ int) bool { return l.Timed() })
}

// Ms returns a pointer to ms, for building timed lines.
func Ms(ms int64) *int64 { return &ms }
