// Package recorder captures a manual pointer trace of the clock road. An
// external ticker feeds it positions; it waits out one countdown interval,
// then records one clock segment per interval until all segments are done.
package recorder

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/clockdrive/internal/road"
)

// DefaultSegments is the number of clock positions recorded, 0h through 11h.
const DefaultSegments = 12

var (
	// ErrAlreadyRecording is returned by Start while a session is running.
	ErrAlreadyRecording = errors.New("recorder: already recording")

	// ErrInvalidConfig is returned by New for a non-positive interval or
	// segment count.
	ErrInvalidConfig = errors.New("recorder: invalid configuration")
)

// Phase is the recorder state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText lets Phase appear by name in JSON status payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Recorder is the Idle -> Recording -> Finished state machine. Start is the
// only way into Recording and the elapsed-time threshold the only way into
// Finished.
//
// A Recorder is not safe for concurrent use; Session serialises access.
type Recorder struct {
	interval time.Duration
	segments int

	phase   Phase
	started time.Time
	trace   road.Trace
}

// New returns an idle Recorder that spends interval on each of segments clock
// segments, preceded by one interval of countdown.
func New(interval time.Duration, segments int) (*Recorder, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, interval)
	}
	if segments <= 0 {
		return nil, fmt.Errorf("%w: segments must be positive, got %d", ErrInvalidConfig, segments)
	}
	return &Recorder{interval: interval, segments: segments}, nil
}

// Start clears the trace and begins a session at now. It fails with
// ErrAlreadyRecording if a session is in progress; a finished recorder may be
// started again.
func (r *Recorder) Start(now time.Time) error {
	if r.phase == PhaseRecording {
		return ErrAlreadyRecording
	}
	r.trace = r.trace[:0]
	r.started = now
	r.phase = PhaseRecording
	return nil
}

// SampleResult reports what a single Sample or Observe call did.
type SampleResult struct {
	Status Status
	// Appended is true when the position was stored.
	Appended bool
	// Finished is true only on the call that moved the recorder into
	// PhaseFinished.
	Finished bool
}

// Sample offers pos as the pointer position observed at now. The position is
// stored only during the recording phase and only when it differs from the
// previously stored position. Calls while idle or finished are no-ops.
func (r *Recorder) Sample(pos road.Position, now time.Time) SampleResult {
	res := r.advance(now)
	if r.phase != PhaseRecording || res.Status.Countdown {
		return res
	}

	if last, ok := r.trace.Last(); !ok || last != pos {
		r.trace = append(r.trace, pos)
		res.Appended = true
		res.Status.Samples = len(r.trace)
	}
	return res
}

// Observe advances the state machine to now without offering a position. The
// session uses it on ticks where the pointer source has nothing yet.
func (r *Recorder) Observe(now time.Time) SampleResult {
	return r.advance(now)
}

func (r *Recorder) advance(now time.Time) SampleResult {
	if r.phase != PhaseRecording {
		return SampleResult{Status: r.Status(now)}
	}
	if r.elapsedSegments(now) >= float64(r.segments) {
		r.phase = PhaseFinished
		return SampleResult{Status: r.Status(now), Finished: true}
	}
	return SampleResult{Status: r.Status(now)}
}

// Progress returns the clock segment being recorded at now and the seconds
// left in it. During the countdown the segment index wraps to the last
// segment; use Status for countdown reporting.
func (r *Recorder) Progress(now time.Time) (segment int, secondsRemaining float64) {
	e := r.elapsedSegments(now)
	whole := math.Floor(e)

	segment = int(whole) % r.segments
	if segment < 0 {
		segment += r.segments
	}

	interval := r.interval.Seconds()
	return segment, interval - interval*(e-whole)
}

// elapsedSegments is the session progress measured in segments, negative
// during the countdown.
func (r *Recorder) elapsedSegments(now time.Time) float64 {
	return now.Sub(r.started).Seconds()/r.interval.Seconds() - 1.0
}

// Phase returns the current state.
func (r *Recorder) Phase() Phase { return r.phase }

// Trace returns a copy of the positions recorded so far.
func (r *Recorder) Trace() road.Trace { return r.trace.Clone() }

// Len returns the number of recorded positions.
func (r *Recorder) Len() int { return len(r.trace) }

// StartedAt returns the time passed to the last Start.
func (r *Recorder) StartedAt() time.Time { return r.started }

// RecordingStart is the end of the countdown, when segment 0 begins.
func (r *Recorder) RecordingStart() time.Time { return r.started.Add(r.interval) }

// Deadline is the time at which the session finishes.
func (r *Recorder) Deadline() time.Time {
	return r.started.Add(r.interval * time.Duration(r.segments+1))
}

// Interval returns the per-segment duration.
func (r *Recorder) Interval() time.Duration { return r.interval }

// Segments returns the number of recorded segments.
func (r *Recorder) Segments() int { return r.segments }
