package playout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Basic Functionality Tests
// =============================================================================

func TestDelayStats_EmptyReturnsNotOk(t *testing.T) {
	s := NewDelayStats(DefaultDelayStatsConfig())
	now := time.Now()

	maxMs, ok := s.Max(now)
	assert.False(t, ok, "Max() should return ok=false when no samples")
	assert.Equal(t, 0, maxMs)

	meanMs, ok := s.Mean(now)
	assert.False(t, ok, "Mean() should return ok=false when no samples")
	assert.Equal(t, 0, meanMs)

	assert.Equal(t, 0, s.Count(now))
}

func TestDelayStats_MaxAndMean(t *testing.T) {
	s := NewDelayStats(DefaultDelayStatsConfig())
	t0 := time.Now()

	s.Update(10, t0)
	s.Update(40, t0.Add(20*time.Millisecond))
	s.Update(10, t0.Add(40*time.Millisecond))

	now := t0.Add(40 * time.Millisecond)
	maxMs, ok := s.Max(now)
	assert.True(t, ok)
	assert.Equal(t, 40, maxMs)

	meanMs, ok := s.Mean(now)
	assert.True(t, ok)
	assert.Equal(t, 20, meanMs)
	assert.Equal(t, 3, s.Count(now))
}

func TestDelayStats_MeanTruncatesTowardZero(t *testing.T) {
	s := NewDelayStats(DefaultDelayStatsConfig())
	t0 := time.Now()

	s.Update(10, t0)
	s.Update(15, t0.Add(time.Millisecond))

	meanMs, ok := s.Mean(t0.Add(time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 12, meanMs)
}

func TestDelayStats_DefaultWindowSize(t *testing.T) {
	s := NewDelayStats(DelayStatsConfig{})
	assert.Equal(t, 5*time.Second, s.windowSize)
}

// =============================================================================
// Window Sliding Tests
// =============================================================================

func TestDelayStats_WindowSliding(t *testing.T) {
	s := NewDelayStats(DelayStatsConfig{WindowSize: time.Second})
	t0 := time.Now()

	s.Update(100, t0)
	s.Update(20, t0.Add(500*time.Millisecond))

	// Both samples inside the window.
	maxMs, ok := s.Max(t0.Add(900 * time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 100, maxMs)

	// The first sample ages out.
	now := t0.Add(1100 * time.Millisecond)
	maxMs, ok = s.Max(now)
	assert.True(t, ok)
	assert.Equal(t, 20, maxMs)
	assert.Equal(t, 1, s.Count(now))

	meanMs, ok := s.Mean(now)
	assert.True(t, ok)
	assert.Equal(t, 20, meanMs, "expired samples must leave the running total")

	// A gap larger than the window clears everything.
	_, ok = s.Max(t0.Add(10 * time.Second))
	assert.False(t, ok)
}

func TestDelayStats_Reset(t *testing.T) {
	s := NewDelayStats(DefaultDelayStatsConfig())
	t0 := time.Now()

	s.Update(50, t0)
	s.Update(70, t0.Add(time.Millisecond))
	s.Reset()

	_, ok := s.Max(t0.Add(time.Millisecond))
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.totalDelayMs)
}
