package lyrics

// ActiveIndex returns the index of the line whose window contains positionMs,
// or -1 if none does. Lines are scanned in slice order and the first match
// wins, so overlapping windows resolve to the earliest line.
func ActiveIndex(positionMs int64, lines []Line) int {
	for i, l := range lines {
		if l.Contains(positionMs) {
			return i
		}
	}
	return -1
}
