package playout

import "time"

// DelayStatsConfig configures the sliding window delay statistics.
type DelayStatsConfig struct {
	// WindowSize is the duration of the sliding window over which delay
	// statistics are aggregated.
	// Default: 5 seconds
	WindowSize time.Duration
}

// DefaultDelayStatsConfig returns default configuration for delay
// statistics.
func DefaultDelayStatsConfig() DelayStatsConfig {
	return DelayStatsConfig{
		WindowSize: 5 * time.Second,
	}
}

// delaySample is a single relative delay observation at a point in time.
type delaySample struct {
	timestamp time.Time
	delayMs   int
}

// DelayStats aggregates relative arrival delays over a sliding time
// window. It is a diagnostics companion to the DelayManager: the window
// maximum approximates the worst jitter recently seen, the mean its
// typical level. The manager does not consume these values.
//
// Usage:
//
//	s := NewDelayStats(DefaultDelayStatsConfig())
//	s.Update(delayMs, arrivalTime)
//	if maxMs, ok := s.Max(now); ok {
//	    fmt.Printf("worst recent jitter: %d ms\n", maxMs)
//	}
type DelayStats struct {
	windowSize   time.Duration
	samples      []delaySample
	totalDelayMs int64
}

// NewDelayStats creates a delay statistics tracker with the given
// configuration.
func NewDelayStats(config DelayStatsConfig) *DelayStats {
	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = 5 * time.Second
	}
	return &DelayStats{
		windowSize: windowSize,
		samples:    make([]delaySample, 0, 64), // Pre-allocate for typical packet rates
	}
}

// Update adds a relative delay observation at the given time. Call this
// with each delay reported by DelayManager.Update.
//
// Samples that have aged beyond the sliding window are removed; after a
// gap larger than the window all previous samples are dropped.
func (s *DelayStats) Update(delayMs int, now time.Time) {
	s.removeExpired(now)

	s.samples = append(s.samples, delaySample{
		timestamp: now,
		delayMs:   delayMs,
	})
	s.totalDelayMs += int64(delayMs)
}

// Max returns the largest delay in the window, in milliseconds.
// Returns (0, false) if the window holds no samples.
func (s *DelayStats) Max(now time.Time) (delayMs int, ok bool) {
	s.removeExpired(now)

	if len(s.samples) == 0 {
		return 0, false
	}
	maxMs := s.samples[0].delayMs
	for _, sample := range s.samples[1:] {
		maxMs = max(maxMs, sample.delayMs)
	}
	return maxMs, true
}

// Mean returns the average delay in the window, in milliseconds, rounded
// toward zero. Returns (0, false) if the window holds no samples.
func (s *DelayStats) Mean(now time.Time) (delayMs int, ok bool) {
	s.removeExpired(now)

	if len(s.samples) == 0 {
		return 0, false
	}
	return int(s.totalDelayMs / int64(len(s.samples))), true
}

// Count returns the number of samples currently in the window.
func (s *DelayStats) Count(now time.Time) int {
	s.removeExpired(now)
	return len(s.samples)
}

// Reset clears all samples and accumulated state.
// Call this when the stream resets.
func (s *DelayStats) Reset() {
	s.samples = s.samples[:0] // Keep capacity, clear contents
	s.totalDelayMs = 0
}

// removeExpired removes all samples older than windowSize from now.
// This maintains the sliding window invariant.
func (s *DelayStats) removeExpired(now time.Time) {
	cutoff := now.Add(-s.windowSize)

	expiredCount := 0
	for i, sample := range s.samples {
		if !sample.timestamp.Before(cutoff) {
			break
		}
		s.totalDelayMs -= int64(sample.delayMs)
		expiredCount = i + 1
	}

	if expiredCount > 0 {
		s.samples = s.samples[expiredCount:]
	}
}
