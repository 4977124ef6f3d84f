package playout

// PacketArrivalSample records one in-order packet's deviation between
// actual and expected inter-arrival time, together with the packet's
// stream timestamp used to age the sample out of the window.
type PacketArrivalSample struct {
	// IATDelayMs is actual minus expected inter-arrival time in
	// milliseconds. Positive means the packet arrived later than its
	// timestamp spacing predicts.
	IATDelayMs int

	// Timestamp is the packet's RTP timestamp.
	Timestamp uint32
}

// ArrivalDelay is the per-packet result of the ArrivalDelayEstimator.
type ArrivalDelay struct {
	// DelayMs is the non-negative relative arrival delay in milliseconds:
	// how far behind a floating reference point within the history window
	// this packet arrived.
	DelayMs int

	// Reordered reports whether the packet's timestamp was not strictly
	// newer than the previous accepted packet's. Reordered packets are
	// kept out of the history window.
	Reordered bool
}

// ArrivalDelayEstimator maintains a bounded window of per-packet arrival
// delay samples and computes each packet's delay relative to the least
// delayed packet in the window. It distinguishes genuine jitter from
// packet reordering: reordered packets still get a delay estimate but do
// not contribute samples.
//
// The window spans at most 2000 ms of stream time. Each update runs in
// time linear in the window size.
type ArrivalDelayEstimator struct {
	history []PacketArrivalSample
}

// NewArrivalDelayEstimator creates an estimator with an empty history.
func NewArrivalDelayEstimator() *ArrivalDelayEstimator {
	return &ArrivalDelayEstimator{}
}

// Update processes one packet arrival.
//
// Parameters:
//   - timestamp: the packet's RTP timestamp
//   - lastTimestamp: the RTP timestamp of the previous accepted packet
//   - sampleRateHz: the stream sample rate
//   - actualIATMs: wall-clock milliseconds elapsed since the previous
//     accepted packet arrived
//
// Returns:
//   - delay: the relative arrival delay and reordering classification
//     (only valid if ok is true)
//   - ok: false if sampleRateHz is not positive; the sample is discarded
//     and no state changes
func (e *ArrivalDelayEstimator) Update(timestamp, lastTimestamp uint32, sampleRateHz, actualIATMs int) (delay ArrivalDelay, ok bool) {
	if sampleRateHz <= 0 {
		return ArrivalDelay{}, false
	}

	expectedIATMs := TimestampDeltaMs(lastTimestamp, timestamp, sampleRateHz)
	iatDelayMs := actualIATMs - expectedIATMs

	if !IsNewerTimestamp(timestamp, lastTimestamp) {
		// A reordered packet carries no reliable inter-arrival signal
		// relative to the timestamp sequence, so it must not pollute the
		// history. It still gets a delay estimate fed forward.
		return ArrivalDelay{DelayMs: max(iatDelayMs, 0), Reordered: true}, true
	}

	e.updateHistory(iatDelayMs, timestamp, sampleRateHz)
	return ArrivalDelay{DelayMs: e.relativeDelay()}, true
}

// updateHistory appends a sample and evicts entries older than the
// history horizon, converted to timestamp units at the given sample rate.
// The age comparison uses unsigned wraparound arithmetic.
func (e *ArrivalDelayEstimator) updateHistory(iatDelayMs int, timestamp uint32, sampleRateHz int) {
	e.history = append(e.history, PacketArrivalSample{
		IATDelayMs: iatDelayMs,
		Timestamp:  timestamp,
	})
	horizon := uint32(maxHistoryMs * sampleRateHz / 1000)
	for timestamp-e.history[0].Timestamp > horizon {
		e.history = e.history[1:]
	}
}

// relativeDelay computes the running sum of inter-arrival delays across
// the window, clamped to zero at every step. This measures the newest
// packet's arrival delay relative to the packet preceding the window; if
// the sum ever drops below zero that reference is invalid, and clamping
// implicitly moves it forward to the current packet.
func (e *ArrivalDelayEstimator) relativeDelay() int {
	relativeDelay := 0
	for _, sample := range e.history {
		relativeDelay += sample.IATDelayMs
		relativeDelay = max(relativeDelay, 0)
	}
	return relativeDelay
}

// HistoryLen returns the number of samples currently in the window.
func (e *ArrivalDelayEstimator) HistoryLen() int {
	return len(e.history)
}

// Reset drops all recorded history. Call this when the stream restarts or
// when sustained reordering has made the window untrustworthy.
func (e *ArrivalDelayEstimator) Reset() {
	e.history = e.history[:0]
}
