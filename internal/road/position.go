// Package road holds the recorded road trace for the clock face, the circular
// smoothing filter applied to it and the CSV encoding used to hand it to the
// renderer.
package road

import "fmt"

// Position is a single observed pointer position in client coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Trace is a time-ordered sequence of recorded positions. A trace describes a
// closed loop: the last sample is followed by the first.
type Trace []Position

// Last returns the most recently appended position.
func (t Trace) Last() (Position, bool) {
	if len(t) == 0 {
		return Position{}, false
	}
	return t[len(t)-1], true
}

// Clone returns a copy that shares no storage with t.
func (t Trace) Clone() Trace {
	out := make(Trace, len(t))
	copy(out, t)
	return out
}
