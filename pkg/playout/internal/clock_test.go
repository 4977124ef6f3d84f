package internal

import (
	"testing"
	"time"
)

func TestMockClockAdvance(t *testing.T) {
	clock := NewMockClock(time.Time{})
	start := clock.Now()

	clock.Advance(250 * time.Millisecond)
	if got := clock.Now().Sub(start); got != 250*time.Millisecond {
		t.Errorf("advance moved clock by %v, want 250ms", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("negative advance should panic")
		}
	}()
	clock.Advance(-time.Millisecond)
}

func TestStopwatchElapsed(t *testing.T) {
	clock := NewMockClock(time.Time{})
	sw := NewStopwatch(clock)

	if got := sw.ElapsedMs(); got != 0 {
		t.Errorf("ElapsedMs() = %d right after creation, want 0", got)
	}

	clock.Advance(20 * time.Millisecond)
	if got := sw.ElapsedMs(); got != 20 {
		t.Errorf("ElapsedMs() = %d, want 20", got)
	}

	// Sub-millisecond remainders truncate.
	clock.Advance(1500 * time.Microsecond)
	if got := sw.ElapsedMs(); got != 21 {
		t.Errorf("ElapsedMs() = %d, want 21", got)
	}
	if got := sw.Elapsed(); got != 21500*time.Microsecond {
		t.Errorf("Elapsed() = %v, want 21.5ms", got)
	}
}

func TestStopwatchRestartByReplacement(t *testing.T) {
	clock := NewMockClock(time.Time{})
	sw := NewStopwatch(clock)
	clock.Advance(time.Second)

	sw = NewStopwatch(clock)
	if got := sw.ElapsedMs(); got != 0 {
		t.Errorf("fresh stopwatch ElapsedMs() = %d, want 0", got)
	}
}

func TestMonotonicClockNow(t *testing.T) {
	clock := MonotonicClock{}
	a := clock.Now()
	b := clock.Now()
	if b.Before(a) {
		t.Error("monotonic clock went backwards")
	}
}
