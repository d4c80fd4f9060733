package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/clockdrive/internal/monitoring"
	"github.com/banshee-data/clockdrive/internal/pointer"
	"github.com/banshee-data/clockdrive/internal/road"
	"github.com/banshee-data/clockdrive/internal/timeutil"
)

// Result is handed to the Finisher once a session completes.
type Result struct {
	SessionID  uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Interval   time.Duration
	Segments   int
	Trace      road.Trace
}

// Finisher consumes a completed recording, typically by smoothing and
// exporting it. It runs once per session on the session goroutine, so no
// further ticks are processed until it returns.
type Finisher func(ctx context.Context, res Result) error

// Session drives a Recorder from a clock ticker and a pointer source.
type Session struct {
	ID uuid.UUID

	rec    *Recorder
	clock  timeutil.Clock
	source pointer.Source
	tick   time.Duration
	finish Finisher

	mu     sync.RWMutex
	status Status
}

// NewSession wires rec to a clock and source. tick is the sampling cadence.
// finish may be nil.
func NewSession(rec *Recorder, clock timeutil.Clock, source pointer.Source, tick time.Duration, finish Finisher) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Session{
		ID:     uuid.New(),
		rec:    rec,
		clock:  clock,
		source: source,
		tick:   tick,
		finish: finish,
		status: Status{Phase: rec.Phase()},
	}
}

// Run starts the recorder and samples the source on every tick until the
// recorder finishes, then calls the Finisher and returns its error. If ctx is
// cancelled first Run returns ctx.Err() and nothing is exported.
func (s *Session) Run(ctx context.Context) error {
	if s.tick <= 0 {
		return fmt.Errorf("%w: tick must be positive, got %v", ErrInvalidConfig, s.tick)
	}
	if err := s.Start(s.clock.Now()); err != nil {
		return err
	}
	monitoring.Logf("session %s: recording %d segments of %v, countdown until %s",
		s.ID, s.rec.Segments(), s.rec.Interval(), s.rec.RecordingStart().Format(time.TimeOnly))

	ticker := s.clock.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("session %s: cancelled with %d samples", s.ID, s.Len())
			return ctx.Err()
		case now := <-ticker.C():
			if !s.Tick(now) {
				continue
			}
			return s.complete(ctx, now)
		}
	}
}

// Start begins recording at now.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rec.Start(now); err != nil {
		return err
	}
	s.status = s.rec.Status(now)
	return nil
}

// Tick samples the source once at now. It reports true on the tick that
// finished the recording. The source is only read while positions can be
// stored, so replay scripts are not consumed by the countdown.
func (s *Session) Tick(now time.Time) (finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		pos road.Position
		ok  bool
	)
	if st := s.rec.Status(now); st.Phase == PhaseRecording && !st.Countdown {
		pos, ok = s.source.Position()
	}

	var res SampleResult
	if ok {
		res = s.rec.Sample(pos, now)
	} else {
		res = s.rec.Observe(now)
	}
	s.status = res.Status
	return res.Finished
}

func (s *Session) complete(ctx context.Context, now time.Time) error {
	s.mu.RLock()
	res := Result{
		SessionID:  s.ID,
		StartedAt:  s.rec.StartedAt(),
		FinishedAt: now,
		Interval:   s.rec.Interval(),
		Segments:   s.rec.Segments(),
		Trace:      s.rec.Trace(),
	}
	s.mu.RUnlock()

	monitoring.Logf("session %s: finished with %d samples", s.ID, len(res.Trace))
	if s.finish == nil {
		return nil
	}
	if err := s.finish(ctx, res); err != nil {
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	return nil
}

// Status returns the snapshot from the most recent tick.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Trace returns a copy of the positions recorded so far.
func (s *Session) Trace() road.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Trace()
}

// Len returns the number of positions recorded so far.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Len()
}
