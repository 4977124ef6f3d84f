// Package internal provides internal utilities for the playout package.
package internal

import "time"

// Clock is an interface for obtaining monotonic time.
// This abstraction allows deterministic testing of time-dependent code.
type Clock interface {
	// Now returns the current time. Implementations must return
	// monotonically increasing time values.
	Now() time.Time
}

// MonotonicClock is a Clock backed by the system's monotonic clock.
// In Go, time.Now() carries a monotonic reading, so elapsed-time
// measurements are immune to wall-clock adjustments.
type MonotonicClock struct{}

// Now returns the current system time with monotonic clock reading.
func (MonotonicClock) Now() time.Time {
	return time.Now()
}

// MockClock is a Clock for tests that advances only when told to.
// It is not safe for concurrent use.
type MockClock struct {
	current time.Time
}

// NewMockClock creates a MockClock initialized to the given time.
// If t is zero, a fixed non-zero start time is used to avoid edge
// cases around the zero time.Time.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0) // 2001-09-09
	}
	return &MockClock{current: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	return m.current
}

// Advance moves the clock forward by d.
// Panics if d is negative to maintain monotonicity.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.current = m.current.Add(d)
}

// Set sets the clock to the given time.
// Intended for initialization; prefer Advance inside tests.
func (m *MockClock) Set(t time.Time) {
	m.current = t
}

// Stopwatch measures elapsed time from a fixed start point on a Clock.
// Measurement is restarted by creating a new Stopwatch; instances are
// not resettable.
type Stopwatch struct {
	clock Clock
	start time.Time
}

// NewStopwatch creates a Stopwatch anchored at the clock's current time.
func NewStopwatch(clock Clock) *Stopwatch {
	return &Stopwatch{clock: clock, start: clock.Now()}
}

// ElapsedMs returns the whole milliseconds elapsed since the stopwatch
// was created.
func (s *Stopwatch) ElapsedMs() int {
	return int(s.clock.Now().Sub(s.start) / time.Millisecond)
}

// Elapsed returns the time elapsed since the stopwatch was created.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.start)
}
