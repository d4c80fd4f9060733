package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	if now.Before(before) {
		t.Errorf("Now() = %v, expected >= %v", now, before)
	}
	if d := clock.Since(now.Add(-time.Second)); d < time.Second {
		t.Errorf("Since() = %v, expected >= 1s", d)
	}

	ticker := clock.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_NowSetSince(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Set(start.Add(90 * time.Second))
	if d := clock.Since(start); d != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", d)
	}
}

func TestMockClock_TickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Second)

	if clock.TickerCount() != 1 {
		t.Fatalf("TickerCount() = %d, want 1", clock.TickerCount())
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case got := <-ticker.C():
		if want := start.Add(time.Second); !got.Equal(want) {
			t.Errorf("tick = %v, want %v", got, want)
		}
	default:
		t.Fatal("ticker did not fire at its deadline")
	}
}

func TestMockTicker_StopAndTrigger(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second).(*MockTicker)

	ticker.Stop()
	clock.Advance(2 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}

	at := time.Unix(42, 0)
	ticker.Trigger(at)
	if got := <-ticker.C(); !got.Equal(at) {
		t.Errorf("Trigger delivered %v, want %v", got, at)
	}
}

func TestMockTicker_DropsWhenFull(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	clock.Advance(time.Second)
	clock.Advance(time.Second)

	first := <-ticker.C()
	if !first.Equal(time.Unix(1, 0)) {
		t.Errorf("first tick = %v, want %v", first, time.Unix(1, 0))
	}
	select {
	case extra := <-ticker.C():
		t.Errorf("unexpected queued tick %v", extra)
	default:
	}
}
