// Package playout implements adaptive playout delay estimation for
// real-time RTP audio receivers.
//
// The DelayManager is driven with one call per received packet and
// maintains a target playout delay in milliseconds: the buffering depth a
// jitter buffer should hold so that network jitter is absorbed without
// adding more latency than necessary. The estimate is derived from a
// decaying histogram of relative packet arrival delays and clamped
// against configurable minimum/maximum bounds and the capacity of the
// packet buffer.
package playout

import "errors"

// Fixed algorithm constants. Bucket geometry and the history horizon are
// not tunable; the statistical knobs live in DelayManagerConfig and
// HistogramConfig.
const (
	// maxHistoryMs is the age of the oldest packet kept in the delay
	// history used to compute relative packet arrival delay.
	maxHistoryMs = 2000

	// bucketSizeMs is the width of one histogram bucket. The histogram
	// tracks delays up to NumBuckets*bucketSizeMs milliseconds.
	bucketSizeMs = 20

	// startDelayMs is the target delay published before any statistics
	// have been gathered.
	startDelayMs = 80

	// maxReorderedPackets is how many consecutive reordered packets are
	// tolerated before the delay history is considered untrustworthy and
	// discarded.
	maxReorderedPackets = 5

	// minBaseMinimumDelayMs and maxBaseMinimumDelayMs bound the base
	// minimum delay a caller may configure.
	minBaseMinimumDelayMs = 0
	maxBaseMinimumDelayMs = 10000
)

// Defaults applied by DefaultDelayManagerConfig and DefaultHistogramConfig.
const (
	// defaultQuantile is 0.97 in Q30 fixed point. The target delay is
	// sized so that roughly 97% of observed arrival delays fit within it.
	defaultQuantile = 1041529569

	// defaultForgetFactor is 0.9993 in Q15 fixed point.
	defaultForgetFactor = 32745

	// defaultStartForgetWeight makes the histogram adapt faster during
	// the first packets after a reset.
	defaultStartForgetWeight = 2

	// defaultNumBuckets covers 0..2000 ms in 20 ms buckets.
	defaultNumBuckets = 100

	// defaultMaxPacketsInBuffer is the assumed packet buffer capacity
	// when the caller does not provide one: several seconds of audio at
	// a 20 ms packet duration.
	defaultMaxPacketsInBuffer = 200
)

// Errors returned by DelayManager and DelayBoundsController setters.
// A failed setter leaves all state unchanged.
var (
	// ErrMinimumDelayOutOfRange is returned by SetMinimumDelay when the
	// requested delay is negative or above MinimumDelayUpperBound.
	ErrMinimumDelayOutOfRange = errors.New("minimum delay out of range")

	// ErrBaseMinimumDelayOutOfRange is returned by SetBaseMinimumDelay,
	// and by NewDelayManager, when the base minimum delay is outside
	// [0, 10000] ms.
	ErrBaseMinimumDelayOutOfRange = errors.New("base minimum delay out of range")

	// ErrMaximumDelayTooLow is returned by SetMaximumDelay when the
	// requested delay is below the minimum delay or shorter than one
	// packet.
	ErrMaximumDelayTooLow = errors.New("maximum delay below minimum delay or packet length")

	// ErrInvalidPacketLength is returned by SetPacketAudioLength when the
	// length is not positive.
	ErrInvalidPacketLength = errors.New("packet audio length must be positive")
)
