package recorder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clockdrive/internal/monitoring"
	"github.com/banshee-data/clockdrive/internal/pointer"
	"github.com/banshee-data/clockdrive/internal/road"
	"github.com/banshee-data/clockdrive/internal/timeutil"
)

func quietLogs(t *testing.T) {
	t.Helper()
	t.Cleanup(monitoring.Quiet())
}

func TestSession_TickWithMockClock(t *testing.T) {
	quietLogs(t)

	rec := newTestRecorder(t, time.Second)
	clock := timeutil.NewMockClock(t0)
	script := road.Trace{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 3, Y: 3}}
	src := pointer.NewScripted(script)
	s := NewSession(rec, clock, src, 100*time.Millisecond, nil)

	require.NoError(t, s.Start(clock.Now()))
	assert.True(t, s.Status().Countdown)

	// Countdown ticks store nothing and leave the script untouched.
	assert.False(t, s.Tick(t0.Add(500*time.Millisecond)))
	assert.Zero(t, s.Len())
	assert.Equal(t, len(script), src.Remaining())

	for i := 0; i < len(script); i++ {
		assert.False(t, s.Tick(t0.Add(time.Second+time.Duration(i)*100*time.Millisecond)))
	}
	assert.Equal(t, road.Trace{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}, s.Trace())
	assert.Equal(t, 0, s.Status().Segment)

	assert.True(t, s.Tick(rec.Deadline()))
	assert.Equal(t, PhaseFinished, s.Status().Phase)
	assert.False(t, s.Tick(rec.Deadline().Add(time.Second)))
}

func TestSession_ReplayKeepsWholeScript(t *testing.T) {
	quietLogs(t)

	rec := newTestRecorder(t, time.Second)
	clock := timeutil.NewMockClock(t0)
	script := road.Trace{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}, {X: 5}}
	src := pointer.NewScripted(script)
	s := NewSession(rec, clock, src, 250*time.Millisecond, nil)
	require.NoError(t, s.Start(t0))

	finished := 0
	for now := t0; !now.After(rec.Deadline()); now = now.Add(250 * time.Millisecond) {
		if s.Tick(now) {
			finished++
		}
	}

	assert.Equal(t, 1, finished)
	assert.Equal(t, script, s.Trace())
	assert.Zero(t, src.Remaining())
}

func TestSession_TickWithoutPosition(t *testing.T) {
	quietLogs(t)

	rec := newTestRecorder(t, time.Second)
	s := NewSession(rec, timeutil.NewMockClock(t0), pointer.NewScripted(nil), time.Millisecond, nil)
	require.NoError(t, s.Start(t0))

	assert.False(t, s.Tick(t0.Add(5*time.Second)))
	assert.Equal(t, 4, s.Status().Segment)
	assert.True(t, s.Tick(rec.Deadline()))
	assert.Zero(t, s.Len())
}

func TestSession_RunCompletesOnMockClock(t *testing.T) {
	quietLogs(t)

	rec := newTestRecorder(t, time.Second)
	clock := timeutil.NewMockClock(t0)
	src := pointer.NewScripted(road.Trace{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}})

	var calls atomic.Int32
	var got Result
	s := NewSession(rec, clock, src, 500*time.Millisecond, func(ctx context.Context, res Result) error {
		calls.Add(1)
		got = res
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return clock.TickerCount() == 1 }, time.Second, time.Millisecond)

	var err error
	for i := 0; ; i++ {
		require.Less(t, i, 10000, "session did not finish")
		select {
		case err = <-done:
		default:
			clock.Advance(500 * time.Millisecond)
			time.Sleep(100 * time.Microsecond)
			continue
		}
		break
	}

	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, s.ID, got.SessionID)
	assert.Equal(t, t0, got.StartedAt)
	assert.Equal(t, time.Second, got.Interval)
	assert.Equal(t, DefaultSegments, got.Segments)
	assert.False(t, got.FinishedAt.Before(rec.Deadline()))
	assert.LessOrEqual(t, len(got.Trace), 4)
	assert.Equal(t, PhaseFinished, s.Status().Phase)
}

func TestSession_RunRealClockFixedSource(t *testing.T) {
	quietLogs(t)

	rec, err := New(5*time.Millisecond, DefaultSegments)
	require.NoError(t, err)

	var calls atomic.Int32
	var got Result
	s := NewSession(rec, nil, pointer.Fixed{X: 3, Y: 4}, time.Millisecond, func(ctx context.Context, res Result) error {
		calls.Add(1)
		got = res
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, road.Trace{{X: 3, Y: 4}}, got.Trace)
}

func TestSession_RunCancelled(t *testing.T) {
	quietLogs(t)

	rec := newTestRecorder(t, time.Hour)
	var calls atomic.Int32
	s := NewSession(rec, nil, pointer.Fixed{}, time.Millisecond, func(context.Context, Result) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Status().Phase == PhaseRecording }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, calls.Load())
}

func TestSession_RunFinisherError(t *testing.T) {
	quietLogs(t)

	rec, err := New(time.Millisecond, 2)
	require.NoError(t, err)

	boom := errors.New("disk full")
	s := NewSession(rec, nil, pointer.Fixed{X: 1}, time.Millisecond, func(context.Context, Result) error {
		return boom
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), s.ID.String())
}

func TestSession_RunRejectsBadTick(t *testing.T) {
	rec := newTestRecorder(t, time.Second)
	s := NewSession(rec, nil, pointer.Fixed{}, 0, nil)
	assert.ErrorIs(t, s.Run(context.Background()), ErrInvalidConfig)
	assert.Equal(t, PhaseIdle, rec.Phase())
}

func TestSession_StartWhileRecording(t *testing.T) {
	rec := newTestRecorder(t, time.Second)
	s := NewSession(rec, nil, pointer.Fixed{}, time.Millisecond, nil)
	require.NoError(t, s.Start(t0))
	assert.ErrorIs(t, s.Start(t0.Add(time.Second)), ErrAlreadyRecording)
}
