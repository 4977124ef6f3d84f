package playout

import (
	"github.com/pion/logging"

	"github.com/thesyncim/playout/pkg/playout/internal"
)

// DelayManagerConfig configures a DelayManager.
type DelayManagerConfig struct {
	// MaxPacketsInBuffer is the capacity of the packet buffer the target
	// delay feeds. At most 75% of it may be spent on buffering delay.
	// Default: 200
	MaxPacketsInBuffer int

	// BaseMinimumDelayMs is the initial base minimum delay in
	// milliseconds. Must be in [0, 10000].
	// Default: 0
	BaseMinimumDelayMs int

	// Quantile of the arrival delay distribution the target delay is
	// sized for, in Q30 fixed point (1<<30 equals 1.0).
	// Default: 1041529569 (0.97)
	Quantile int

	// Histogram configures the DelayHistogram that is built when no
	// Histogram instance is injected into NewDelayManager.
	Histogram HistogramConfig

	// LoggerFactory creates the logger used for diagnostics.
	// Default: logging.NewDefaultLoggerFactory()
	LoggerFactory logging.LoggerFactory
}

// DefaultDelayManagerConfig returns the default configuration.
func DefaultDelayManagerConfig() DelayManagerConfig {
	return DelayManagerConfig{
		MaxPacketsInBuffer: defaultMaxPacketsInBuffer,
		BaseMinimumDelayMs: 0,
		Quantile:           defaultQuantile,
		Histogram:          DefaultHistogramConfig(),
	}
}

// DelayManager computes the target playout delay for one audio stream.
// It combines:
//   - ArrivalDelayEstimator for per-packet relative arrival delay
//   - Histogram for tracking the delay distribution over time
//   - DelayBoundsController for configured and capacity-derived bounds
//
// The target delay is the quantile of the tracked delay distribution,
// rounded up to a whole bucket and clamped by the active bounds. Before
// any statistics exist it starts at 80 ms.
//
// A DelayManager is not safe for concurrent use. Drive it from a single
// goroutine, one instance per stream, with packets in receive order.
type DelayManager struct {
	clock internal.Clock
	log   logging.LeveledLogger

	histogram Histogram
	quantile  int
	estimator *ArrivalDelayEstimator
	bounds    *DelayBoundsController

	firstPacketReceived bool
	lastTimestamp       uint32
	numReorderedPackets int
	targetLevelMs       int
	stopwatch           *internal.Stopwatch
}

// NewDelayManager creates a delay manager.
//
// Zero-valued config fields are replaced with defaults. If histogram is
// nil a DelayHistogram is built from config.Histogram; an injected
// histogram is owned by the manager and reset during construction. If
// clock is nil a MonotonicClock is used.
//
// Returns ErrBaseMinimumDelayOutOfRange if config.BaseMinimumDelayMs is
// outside [0, 10000].
func NewDelayManager(config DelayManagerConfig, histogram Histogram, clock internal.Clock) (*DelayManager, error) {
	if config.Quantile == 0 {
		config.Quantile = defaultQuantile
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if histogram == nil {
		histogram = NewDelayHistogram(config.Histogram)
	}
	if clock == nil {
		clock = internal.MonotonicClock{}
	}

	bounds, err := NewDelayBoundsController(config.MaxPacketsInBuffer, config.BaseMinimumDelayMs)
	if err != nil {
		return nil, err
	}

	m := &DelayManager{
		clock:     clock,
		log:       config.LoggerFactory.NewLogger("playout"),
		histogram: histogram,
		quantile:  config.Quantile,
		estimator: NewArrivalDelayEstimator(),
		bounds:    bounds,
	}
	m.Reset()

	m.log.Infof("delay manager created: quantile=%d buckets=%d base_minimum_delay_ms=%d",
		m.quantile, m.histogram.NumBuckets(), m.bounds.BaseMinimumDelay())
	return m, nil
}

// Update processes one received packet and recomputes the target delay.
// This is the main entry point - call this for every received RTP packet.
//
// Parameters:
//   - timestamp: the packet's RTP timestamp
//   - sampleRateHz: the stream sample rate
//   - reset: restart estimation from this packet (use on a stream
//     discontinuity such as a codec change)
//
// Returns:
//   - relativeDelayMs: this packet's relative arrival delay in
//     milliseconds (only valid if ok is true)
//   - ok: false if sampleRateHz is not positive (nothing changes) or if
//     this packet (re)started estimation and no delay is available yet
func (m *DelayManager) Update(timestamp uint32, sampleRateHz int, reset bool) (relativeDelayMs int, ok bool) {
	if sampleRateHz <= 0 {
		return 0, false
	}

	if !m.firstPacketReceived || reset {
		// Restart relative delay estimation from this packet.
		m.estimator.Reset()
		m.stopwatch = internal.NewStopwatch(m.clock)
		m.lastTimestamp = timestamp
		m.firstPacketReceived = true
		m.numReorderedPackets = 0
		return 0, false
	}

	delay, ok := m.estimator.Update(timestamp, m.lastTimestamp, sampleRateHz, m.stopwatch.ElapsedMs())
	if !ok {
		return 0, false
	}

	index := delay.DelayMs / bucketSizeMs
	if index < m.histogram.NumBuckets() {
		// Delays beyond the histogram range (2000 ms at the default
		// bucket count) are not recorded.
		m.histogram.Add(index)
	}

	// Size the target for the configured quantile of observed delays,
	// then apply the bounds.
	bucketIndex := m.histogram.Quantile(m.quantile)
	m.targetLevelMs = m.bounds.clampTarget((1 + bucketIndex) * bucketSizeMs)

	// Prepare for the next packet arrival.
	if delay.Reordered {
		// Tolerate a short run of reordered packets before restarting
		// estimation. The inter-arrival reference stays anchored on the
		// last in-order packet meanwhile.
		if m.numReorderedPackets < maxReorderedPackets {
			m.numReorderedPackets++
			return delay.DelayMs, true
		}
		m.log.Tracef("reorder tolerance exceeded, clearing delay history")
		m.estimator.Reset()
	}
	m.numReorderedPackets = 0
	m.stopwatch = internal.NewStopwatch(m.clock)
	m.lastTimestamp = timestamp
	return delay.DelayMs, true
}

// SetPacketAudioLength records the codec packet length in milliseconds.
// The packet length bounds the target delay from both sides: at least one
// packet, at most 75% of the packet buffer. Returns
// ErrInvalidPacketLength if lengthMs is not positive.
func (m *DelayManager) SetPacketAudioLength(lengthMs int) error {
	if lengthMs <= 0 {
		m.log.Errorf("invalid packet audio length: %d ms", lengthMs)
		return ErrInvalidPacketLength
	}
	m.bounds.setPacketLength(lengthMs)
	m.targetLevelMs = m.bounds.clampTarget(m.targetLevelMs)
	return nil
}

// Reset returns the manager to its post-construction state: statistics,
// history, packet length and target delay are cleared and estimation
// restarts with the next packet. Bound configuration (minimum, maximum
// and base minimum delay) survives the reset. Call this when the stream
// restarts.
func (m *DelayManager) Reset() {
	m.bounds.setPacketLength(0)
	m.histogram.Reset()
	m.estimator.Reset()
	m.targetLevelMs = startDelayMs
	m.stopwatch = internal.NewStopwatch(m.clock)
	m.firstPacketReceived = false
	m.numReorderedPackets = 0
}

// TargetDelayMs returns the current target playout delay in milliseconds.
func (m *DelayManager) TargetDelayMs() int {
	return m.targetLevelMs
}

// SetMinimumDelay configures the minimum playout delay in milliseconds.
// On success the published target delay is re-clamped into the new
// bounds. Returns ErrMinimumDelayOutOfRange if delayMs is negative or
// exceeds MinimumDelayUpperBound.
func (m *DelayManager) SetMinimumDelay(delayMs int) error {
	if err := m.bounds.SetMinimumDelay(delayMs); err != nil {
		return err
	}
	m.targetLevelMs = m.bounds.clampTarget(m.targetLevelMs)
	return nil
}

// SetMaximumDelay configures the maximum playout delay in milliseconds.
// Zero unsets the maximum. On success the published target delay is
// re-clamped into the new bounds. Returns ErrMaximumDelayTooLow if a
// nonzero delayMs is below the minimum delay or shorter than one packet.
func (m *DelayManager) SetMaximumDelay(delayMs int) error {
	if err := m.bounds.SetMaximumDelay(delayMs); err != nil {
		return err
	}
	m.targetLevelMs = m.bounds.clampTarget(m.targetLevelMs)
	return nil
}

// SetBaseMinimumDelay configures the base minimum delay in milliseconds.
// On success the published target delay is re-clamped into the new
// bounds. Returns ErrBaseMinimumDelayOutOfRange for values outside
// [0, 10000].
func (m *DelayManager) SetBaseMinimumDelay(delayMs int) error {
	if err := m.bounds.SetBaseMinimumDelay(delayMs); err != nil {
		return err
	}
	m.targetLevelMs = m.bounds.clampTarget(m.targetLevelMs)
	return nil
}

// MinimumDelay returns the configured minimum delay in milliseconds.
func (m *DelayManager) MinimumDelay() int {
	return m.bounds.MinimumDelay()
}

// MaximumDelay returns the configured maximum delay in milliseconds.
// Zero means no maximum is set.
func (m *DelayManager) MaximumDelay() int {
	return m.bounds.MaximumDelay()
}

// BaseMinimumDelay returns the configured base minimum delay in
// milliseconds.
func (m *DelayManager) BaseMinimumDelay() int {
	return m.bounds.BaseMinimumDelay()
}

// EffectiveMinimumDelay returns the derived lower bound applied to the
// target delay, in milliseconds.
func (m *DelayManager) EffectiveMinimumDelay() int {
	return m.bounds.EffectiveMinimumDelay()
}

// MinimumDelayUpperBound returns the largest minimum delay that can be
// honored, in milliseconds.
func (m *DelayManager) MinimumDelayUpperBound() int {
	return m.bounds.MinimumDelayUpperBound()
}
