package playout

// DelayBoundsController holds the configurable delay bounds and derives
// the constraints applied to the target delay:
//   - an effective minimum, combining the configured minimum with the
//     base minimum clamped into the usable range
//   - an upper bound from the configured maximum and from buffer capacity
//     (at most 75% of the packet buffer may be dedicated to delay)
//
// Setters validate their input and leave all state unchanged on failure.
// Bounds survive a stream reset; see DelayManager.Reset.
type DelayBoundsController struct {
	maxPacketsInBuffer int
	packetLenMs        int // 0 until the codec packet length is known

	minimumDelayMs          int
	maximumDelayMs          int // 0 means unconstrained
	baseMinimumDelayMs      int
	effectiveMinimumDelayMs int
}

// NewDelayBoundsController creates a controller for a packet buffer of the
// given capacity. If maxPacketsInBuffer is not positive a default capacity
// of 200 packets is assumed. Returns ErrBaseMinimumDelayOutOfRange if
// baseMinimumDelayMs is outside [0, 10000].
func NewDelayBoundsController(maxPacketsInBuffer, baseMinimumDelayMs int) (*DelayBoundsController, error) {
	if maxPacketsInBuffer <= 0 {
		maxPacketsInBuffer = defaultMaxPacketsInBuffer
	}
	if !isValidBaseMinimumDelay(baseMinimumDelayMs) {
		return nil, ErrBaseMinimumDelayOutOfRange
	}

	c := &DelayBoundsController{
		maxPacketsInBuffer: maxPacketsInBuffer,
		baseMinimumDelayMs: baseMinimumDelayMs,
	}
	c.updateEffectiveMinimumDelay()
	return c, nil
}

func isValidBaseMinimumDelay(delayMs int) bool {
	return minBaseMinimumDelayMs <= delayMs && delayMs <= maxBaseMinimumDelayMs
}

// SetMinimumDelay configures the minimum playout delay in milliseconds.
// Returns ErrMinimumDelayOutOfRange if delayMs is negative or exceeds
// MinimumDelayUpperBound.
func (c *DelayBoundsController) SetMinimumDelay(delayMs int) error {
	if delayMs < 0 || delayMs > c.MinimumDelayUpperBound() {
		return ErrMinimumDelayOutOfRange
	}

	c.minimumDelayMs = delayMs
	c.updateEffectiveMinimumDelay()
	return nil
}

// SetMaximumDelay configures the maximum playout delay in milliseconds.
// Zero unsets the maximum and leaves the target delay unconstrained from
// above. Returns ErrMaximumDelayTooLow if a nonzero delayMs is below the
// minimum delay or shorter than one packet.
func (c *DelayBoundsController) SetMaximumDelay(delayMs int) error {
	if delayMs != 0 && (delayMs < c.minimumDelayMs || delayMs < c.packetLenMs) {
		return ErrMaximumDelayTooLow
	}

	c.maximumDelayMs = delayMs
	c.updateEffectiveMinimumDelay()
	return nil
}

// SetBaseMinimumDelay configures the base minimum delay in milliseconds.
// Unlike the minimum delay it is accepted over the full [0, 10000] range
// and clamped into the usable range when the effective minimum is derived.
// Returns ErrBaseMinimumDelayOutOfRange for values outside [0, 10000].
func (c *DelayBoundsController) SetBaseMinimumDelay(delayMs int) error {
	if !isValidBaseMinimumDelay(delayMs) {
		return ErrBaseMinimumDelayOutOfRange
	}

	c.baseMinimumDelayMs = delayMs
	c.updateEffectiveMinimumDelay()
	return nil
}

// setPacketLength records the codec packet length. Validation is the
// caller's responsibility. The effective minimum is deliberately not
// recomputed here; it refreshes on the next successful bound setter.
func (c *DelayBoundsController) setPacketLength(lengthMs int) {
	c.packetLenMs = lengthMs
}

// updateEffectiveMinimumDelay recomputes the effective minimum after any
// successful setter. Each bound can change how the others interact, so
// the full expression is evaluated every time.
func (c *DelayBoundsController) updateEffectiveMinimumDelay() {
	// Clamp the base minimum into the range that can take effect.
	base := min(max(c.baseMinimumDelayMs, 0), c.MinimumDelayUpperBound())
	c.effectiveMinimumDelayMs = max(c.minimumDelayMs, base)
}

// MinimumDelayUpperBound returns the largest minimum delay that can be
// honored, in milliseconds: the lower of the configured maximum delay and
// 75% of the packet buffer capacity, where an unset value (zero) means
// unconstrained.
func (c *DelayBoundsController) MinimumDelayUpperBound() int {
	q75 := c.maxPacketsInBuffer * c.packetLenMs * 3 / 4
	if q75 <= 0 {
		q75 = maxBaseMinimumDelayMs
	}
	maximumDelayMs := c.maximumDelayMs
	if maximumDelayMs <= 0 {
		maximumDelayMs = maxBaseMinimumDelayMs
	}
	return min(maximumDelayMs, q75)
}

// clampTarget applies the active bounds to a candidate target delay, in a
// fixed order: effective minimum, then maximum, then the packet-length
// floor and the 75%-of-buffer ceiling.
func (c *DelayBoundsController) clampTarget(targetMs int) int {
	targetMs = max(targetMs, c.effectiveMinimumDelayMs)
	if c.maximumDelayMs > 0 {
		targetMs = min(targetMs, c.maximumDelayMs)
	}
	if c.packetLenMs > 0 {
		// Hold at least one packet, and no more than 75% of the buffer.
		targetMs = max(targetMs, c.packetLenMs)
		targetMs = min(targetMs, 3*c.maxPacketsInBuffer*c.packetLenMs/4)
	}
	return targetMs
}

// MinimumDelay returns the configured minimum delay in milliseconds.
func (c *DelayBoundsController) MinimumDelay() int {
	return c.minimumDelayMs
}

// MaximumDelay returns the configured maximum delay in milliseconds.
// Zero means no maximum is set.
func (c *DelayBoundsController) MaximumDelay() int {
	return c.maximumDelayMs
}

// BaseMinimumDelay returns the configured base minimum delay in
// milliseconds.
func (c *DelayBoundsController) BaseMinimumDelay() int {
	return c.baseMinimumDelayMs
}

// EffectiveMinimumDelay returns the derived lower bound applied to the
// target delay, in milliseconds.
func (c *DelayBoundsController) EffectiveMinimumDelay() int {
	return c.effectiveMinimumDelayMs
}
