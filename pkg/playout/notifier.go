package playout

import "time"

// NotifierConfig configures target delay change notification.
type NotifierConfig struct {
	// MinInterval is the regular notification interval (default: 1 second).
	// Routine target changes are published at most this often.
	MinInterval time.Duration

	// ChangeThresholdMs is the minimum target delay increase, in
	// milliseconds, that triggers an immediate notification.
	// Default: 20 (one histogram bucket).
	ChangeThresholdMs int
}

// DefaultNotifierConfig returns default notifier configuration.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		MinInterval:       time.Second,
		ChangeThresholdMs: bucketSizeMs,
	}
}

// TargetDelayNotifier decides when a changed target delay is worth
// publishing to an observer. Target delay moves on nearly every packet;
// consumers such as jitter buffer controls or stats exporters want the
// signal, not fifty updates a second.
//
// Increases are urgent: a target that grew means the buffer is at risk of
// underruns, so growth past the threshold is published immediately.
// Decreases merely allow latency to drain and ride the regular interval.
type TargetDelayNotifier struct {
	config       NotifierConfig
	lastNotified time.Time
	lastValue    int
}

// NewTargetDelayNotifier creates a notifier. Zero-valued config fields
// are replaced with defaults.
func NewTargetDelayNotifier(config NotifierConfig) *TargetDelayNotifier {
	if config.MinInterval <= 0 {
		config.MinInterval = time.Second
	}
	if config.ChangeThresholdMs <= 0 {
		config.ChangeThresholdMs = bucketSizeMs
	}
	return &TargetDelayNotifier{
		config: config,
	}
}

// ShouldNotify reports whether the target delay should be published now.
// Returns true if:
//   - nothing has been published yet
//   - the target grew by at least ChangeThresholdMs since the last
//     notification
//   - the target changed and MinInterval has elapsed
//
// Parameters:
//   - targetMs: current target delay in milliseconds
//   - now: current time
func (n *TargetDelayNotifier) ShouldNotify(targetMs int, now time.Time) bool {
	if n.lastNotified.IsZero() {
		return true
	}

	if targetMs-n.lastValue >= n.config.ChangeThresholdMs {
		return true
	}

	return targetMs != n.lastValue && now.Sub(n.lastNotified) >= n.config.MinInterval
}

// Record marks the target delay as published.
// Call this after ShouldNotify returns true and the observer has been
// invoked.
func (n *TargetDelayNotifier) Record(targetMs int, now time.Time) {
	n.lastNotified = now
	n.lastValue = targetMs
}

// MaybeNotify combines ShouldNotify and Record.
// Returns true if the value should be published; the notifier then
// assumes it was.
//
// This is the primary API for the notifier.
func (n *TargetDelayNotifier) MaybeNotify(targetMs int, now time.Time) bool {
	if !n.ShouldNotify(targetMs, now) {
		return false
	}
	n.Record(targetMs, now)
	return true
}

// LastNotifiedValue returns the last published target delay in
// milliseconds. Returns 0 if nothing has been published yet.
func (n *TargetDelayNotifier) LastNotifiedValue() int {
	return n.lastValue
}

// LastNotifiedTime returns when the last notification was recorded.
// Returns zero time if nothing has been published yet.
func (n *TargetDelayNotifier) LastNotifiedTime() time.Time {
	return n.lastNotified
}

// Reset clears notifier state (last notified time and value).
func (n *TargetDelayNotifier) Reset() {
	n.lastNotified = time.Time{}
	n.lastValue = 0
}
