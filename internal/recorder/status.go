package recorder

import (
	"fmt"
	"time"
)

// Status is the display snapshot of a recorder. It is plain data; rendering
// it is up to the caller.
type Status struct {
	Phase     Phase `json:"phase"`
	Countdown bool  `json:"countdown"`

	// SecondsUntilStart is set during the countdown.
	SecondsUntilStart float64 `json:"seconds_until_start,omitempty"`

	// Segment, NextSegment and SecondsRemaining describe the segment being
	// recorded.
	Segment          int     `json:"segment"`
	NextSegment      int     `json:"next_segment"`
	SecondsRemaining float64 `json:"seconds_remaining"`

	Samples int `json:"samples"`
}

// Status reports the recorder state at now without changing it.
func (r *Recorder) Status(now time.Time) Status {
	st := Status{Phase: r.phase, Samples: len(r.trace)}
	if r.phase != PhaseRecording {
		return st
	}

	e := r.elapsedSegments(now)
	if e < 0 {
		st.Countdown = true
		st.SecondsUntilStart = -e * r.interval.Seconds()
		return st
	}

	st.Segment, st.SecondsRemaining = r.Progress(now)
	st.NextSegment = (st.Segment + 1) % r.segments
	return st
}

// String renders the status banner shown while calibrating.
func (s Status) String() string {
	switch {
	case s.Phase == PhaseIdle:
		return "idle"
	case s.Phase == PhaseFinished:
		return fmt.Sprintf("recording finished, %d samples", s.Samples)
	case s.Countdown:
		return fmt.Sprintf("recording starts in %.2fs", s.SecondsUntilStart)
	default:
		return fmt.Sprintf("recording %dh-%dh, %.2fs left", s.Segment, s.NextSegment, s.SecondsRemaining)
	}
}
