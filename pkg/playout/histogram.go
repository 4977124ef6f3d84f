package playout

// Histogram is the distribution estimator consumed by DelayManager. It
// tracks how often each bucketed delay value is observed and answers
// quantile queries over the tracked distribution.
//
// DelayHistogram is the default implementation. The interface exists so
// tests and experiments can substitute their own statistics without
// touching the manager.
type Histogram interface {
	// Add records one observation in the given bucket. Indexes outside
	// [0, NumBuckets) are ignored.
	Add(index int)

	// Quantile returns the lowest bucket index such that the probability
	// mass at or below it reaches the given probability, expressed in Q30
	// fixed point (1<<30 equals 1.0).
	Quantile(probabilityQ30 int) int

	// NumBuckets returns the number of buckets.
	NumBuckets() int

	// Reset restores the initial distribution.
	Reset()
}

// HistogramConfig configures a DelayHistogram.
type HistogramConfig struct {
	// NumBuckets is the number of delay buckets tracked. Together with
	// the 20 ms bucket width this caps the largest delay the histogram
	// can represent.
	// Default: 100 (covers 0..2000 ms)
	NumBuckets int

	// ForgetFactor is the exponential decay applied to the distribution
	// on every added sample, in Q15 fixed point (1<<15 equals 1.0).
	// Values closer to 1<<15 make the histogram remember longer.
	// Default: 32745 (~0.9993)
	ForgetFactor int

	// StartForgetWeight accelerates adaptation right after a reset: the
	// effective forget factor starts small and converges to ForgetFactor
	// as samples accumulate, so the first packets dominate the young
	// distribution. A zero value selects the default. Nonzero values
	// below 1 disable the startup ramp in favor of a fixed geometric
	// ramp.
	// Default: 2
	StartForgetWeight float64
}

// DefaultHistogramConfig returns the default histogram configuration.
func DefaultHistogramConfig() HistogramConfig {
	return HistogramConfig{
		NumBuckets:        defaultNumBuckets,
		ForgetFactor:      defaultForgetFactor,
		StartForgetWeight: defaultStartForgetWeight,
	}
}

// DelayHistogram maintains an exponentially-decaying empirical
// distribution over discrete delay buckets. Bucket values are
// probabilities in Q30 fixed point and always sum to 1<<30, so quantile
// queries are a single scan.
type DelayHistogram struct {
	buckets           []int
	forgetFactor      int // Q15, ramps up toward baseForgetFactor after Reset
	baseForgetFactor  int // Q15
	addCount          int
	startForgetWeight float64
}

var _ Histogram = (*DelayHistogram)(nil)

// NewDelayHistogram creates a histogram with the given configuration.
// Zero-valued fields are replaced with defaults. The returned histogram
// is in its post-Reset state.
func NewDelayHistogram(config HistogramConfig) *DelayHistogram {
	// Apply defaults for zero values
	if config.NumBuckets <= 0 {
		config.NumBuckets = defaultNumBuckets
	}
	if config.ForgetFactor <= 0 {
		config.ForgetFactor = defaultForgetFactor
	}
	if config.ForgetFactor >= 1<<15 {
		config.ForgetFactor = 1<<15 - 1
	}
	if config.StartForgetWeight == 0 {
		config.StartForgetWeight = defaultStartForgetWeight
	}

	h := &DelayHistogram{
		buckets:           make([]int, config.NumBuckets),
		baseForgetFactor:  config.ForgetFactor,
		startForgetWeight: config.StartForgetWeight,
	}
	h.Reset()
	return h
}

// Reset restores the initial distribution: an exponentially decaying
// series (bucket i holds roughly 2^-(i+1)) that sums to one, and a zero
// forget factor so the first samples after the reset adapt quickly.
func (h *DelayHistogram) Reset() {
	tempProb := uint16(0x4002) // 16384 + 2, ~0.5 in Q15.
	for i := range h.buckets {
		tempProb >>= 1
		h.buckets[i] = int(tempProb) << 16
	}
	h.forgetFactor = 0
	h.addCount = 0
}

// Add records one observation in the given bucket: every bucket is
// decayed by the current forget factor and the observed bucket gains the
// complementary probability mass. Indexes outside [0, NumBuckets) are
// ignored.
func (h *DelayHistogram) Add(index int) {
	if index < 0 || index >= len(h.buckets) {
		return
	}

	vectorSum := 0
	for i := range h.buckets {
		h.buckets[i] = int(int64(h.buckets[i]) * int64(h.forgetFactor) >> 15)
		vectorSum += h.buckets[i]
	}

	// The new observation gets weight 1 - forgetFactor (Q15 widened to Q30).
	delta := (1<<15 - h.forgetFactor) << 15
	h.buckets[index] += delta
	vectorSum += delta

	// Fixed-point rounding makes the distribution drift away from summing
	// to exactly 1 in Q30. Spread the drift over the first buckets, at
	// most 1/16 of a bucket each, until it is gone.
	vectorSum -= 1 << 30
	if vectorSum != 0 {
		flipSign := 1
		if vectorSum > 0 {
			flipSign = -1
		}
		for i := range h.buckets {
			absSum := vectorSum
			if absSum < 0 {
				absSum = -absSum
			}
			correction := flipSign * min(absSum, h.buckets[i]>>4)
			h.buckets[i] += correction
			vectorSum += correction
			if vectorSum == 0 {
				break
			}
		}
	}

	h.addCount++

	// Ramp the forget factor toward its base value. The histogram is
	// updated recursively, old distribution weighted by forgetFactor and
	// the new sample by its complement, so starting the factor low gives
	// the first samples after a reset most of the weight.
	if h.startForgetWeight >= 1 {
		if h.forgetFactor != h.baseForgetFactor {
			ff := int(float64(1<<15) * (1 - h.startForgetWeight/float64(h.addCount+1)))
			h.forgetFactor = max(0, min(h.baseForgetFactor, ff))
		}
	} else {
		h.forgetFactor += (h.baseForgetFactor - h.forgetFactor + 3) >> 2
	}
}

// Quantile returns the lowest bucket index such that the probability mass
// at or below it reaches probabilityQ30. It walks the distribution from
// the front, subtracting bucket probabilities until the remaining tail is
// no larger than 1 - probability.
func (h *DelayHistogram) Quantile(probabilityQ30 int) int {
	inverseProbability := 1<<30 - probabilityQ30
	index := 0
	sum := 1 << 30
	sum -= h.buckets[index]
	for sum > inverseProbability && index < len(h.buckets)-1 {
		index++
		sum -= h.buckets[index]
	}
	return index
}

// NumBuckets returns the number of buckets.
func (h *DelayHistogram) NumBuckets() int {
	return len(h.buckets)
}
