package scheduler

import "time"

// Window is a half-open [Earliest, Latest) wall-clock hour range. Earliest
// greater than Latest spans midnight; equal hours mean an empty window.
// Latest may be 24 to include the full last hour of the day.
type Window struct {
	Earliest int
	Latest   int
}

// Contains reports whether the clock hour of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.Hour()
	switch {
	case w.Earliest < w.Latest:
		return h >= w.Earliest && h < w.Latest
	case w.Earliest > w.Latest:
		return h >= w.Earliest || h < w.Latest
	default:
		return false
	}
}
