package playout

import "time"

// RTP timestamps are unsigned 32-bit media clock values that wrap around
// (about once a day at 48 kHz). All comparisons and deltas in this package
// therefore use modular arithmetic: two values are ordered by which signed
// interpretation of their unsigned difference is smaller, per RFC 3550.

// IsNewerTimestamp reports whether timestamp is strictly newer than
// prevTimestamp under wraparound-aware comparison.
//
// Values exactly half the range apart are ambiguous; they are broken by
// plain magnitude so that exactly one of IsNewerTimestamp(a, b) and
// IsNewerTimestamp(b, a) holds for any distinct pair.
func IsNewerTimestamp(timestamp, prevTimestamp uint32) bool {
	if timestamp-prevTimestamp == 0x80000000 {
		return timestamp > prevTimestamp
	}
	return timestamp != prevTimestamp && timestamp-prevTimestamp < 0x80000000
}

// UnwrapTimestampDelta returns the signed difference curr-prev in timestamp
// units. The subtraction uses unsigned wraparound arithmetic and the result
// is reinterpreted as a signed 32-bit value (two's complement), so deltas
// within half the timestamp range are recovered exactly across wrap
// boundaries.
func UnwrapTimestampDelta(prev, curr uint32) int64 {
	return int64(int32(curr - prev))
}

// TimestampDeltaMs converts the signed wraparound delta between two RTP
// timestamps to milliseconds at the given sample rate. The math is widened
// to 64 bits before the multiply, so the conversion is defined for every
// input pair. Division truncates toward zero. sampleRateHz must be
// positive.
func TimestampDeltaMs(prev, curr uint32, sampleRateHz int) int {
	return int(1000 * UnwrapTimestampDelta(prev, curr) / int64(sampleRateHz))
}

// DurationToTimestamp converts a duration to RTP timestamp units at the
// given sample rate. Useful for constructing timestamp sequences in tests
// and simulations.
func DurationToTimestamp(d time.Duration, sampleRateHz int) uint32 {
	return uint32(d * time.Duration(sampleRateHz) / time.Second)
}
