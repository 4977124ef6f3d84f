package playout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Packets at 48 kHz advance the RTP timestamp by 960 per 20 ms packet.
const testSampleRate = 48000

func TestArrivalDelayEstimatorInvalidSampleRate(t *testing.T) {
	e := NewArrivalDelayEstimator()

	_, ok := e.Update(960, 0, 0, 20)
	assert.False(t, ok)
	_, ok = e.Update(960, 0, -48000, 20)
	assert.False(t, ok)
	assert.Equal(t, 0, e.HistoryLen(), "discarded samples must not enter history")
}

func TestArrivalDelayEstimatorNoJitter(t *testing.T) {
	e := NewArrivalDelayEstimator()

	// Three packets spaced exactly as their timestamps predict.
	last := uint32(0)
	for i := 0; i < 3; i++ {
		ts := last + 960
		delay, ok := e.Update(ts, last, testSampleRate, 20)
		require.True(t, ok)
		assert.False(t, delay.Reordered)
		assert.Equal(t, 0, delay.DelayMs)
		last = ts
	}
	assert.Equal(t, 3, e.HistoryLen())
}

func TestArrivalDelayEstimatorAccumulatesJitter(t *testing.T) {
	e := NewArrivalDelayEstimator()

	// Each packet 10 ms later than its spacing predicts: the relative
	// delay builds up across the window.
	delay, ok := e.Update(960, 0, testSampleRate, 30)
	require.True(t, ok)
	assert.Equal(t, 10, delay.DelayMs)

	delay, ok = e.Update(1920, 960, testSampleRate, 30)
	require.True(t, ok)
	assert.Equal(t, 20, delay.DelayMs)

	// On-time packet keeps the accumulated delay.
	delay, ok = e.Update(2880, 1920, testSampleRate, 20)
	require.True(t, ok)
	assert.Equal(t, 20, delay.DelayMs)

	// An early packet drains it.
	delay, ok = e.Update(3840, 2880, testSampleRate, 10)
	require.True(t, ok)
	assert.Equal(t, 10, delay.DelayMs)
}

func TestArrivalDelayEstimatorClampsAtZero(t *testing.T) {
	e := NewArrivalDelayEstimator()

	delay, ok := e.Update(960, 0, testSampleRate, 25) // +5
	require.True(t, ok)
	assert.Equal(t, 5, delay.DelayMs)

	// A sample early enough to drive the sum negative clamps to zero and
	// moves the implicit reference.
	delay, ok = e.Update(1920, 960, testSampleRate, 5) // -15
	require.True(t, ok)
	assert.Equal(t, 0, delay.DelayMs)

	delay, ok = e.Update(2880, 1920, testSampleRate, 27) // +7
	require.True(t, ok)
	assert.Equal(t, 7, delay.DelayMs, "delay is measured from the moved reference")
}

func TestArrivalDelayEstimatorReordered(t *testing.T) {
	e := NewArrivalDelayEstimator()

	delay, ok := e.Update(1920, 960, testSampleRate, 20)
	require.True(t, ok)
	require.False(t, delay.Reordered)
	require.Equal(t, 1, e.HistoryLen())

	// Older timestamp: classified as reordered, kept out of history. Its
	// delay is the elapsed time minus the (negative) expected spacing.
	delay, ok = e.Update(960, 1920, testSampleRate, 100)
	require.True(t, ok)
	assert.True(t, delay.Reordered)
	assert.Equal(t, 120, delay.DelayMs)
	assert.Equal(t, 1, e.HistoryLen())

	// An equal timestamp is not strictly newer either.
	delay, ok = e.Update(1920, 1920, testSampleRate, 5)
	require.True(t, ok)
	assert.True(t, delay.Reordered)
	assert.Equal(t, 5, delay.DelayMs)
	assert.Equal(t, 1, e.HistoryLen())
}

func TestArrivalDelayEstimatorHistoryHorizon(t *testing.T) {
	e := NewArrivalDelayEstimator()
	// 2000 ms at 48 kHz.
	const horizon = 96000

	_, ok := e.Update(960, 0, testSampleRate, 20)
	require.True(t, ok)

	// Exactly at the horizon: still kept.
	_, ok = e.Update(960+horizon, 960, testSampleRate, 2000)
	require.True(t, ok)
	assert.Equal(t, 2, e.HistoryLen())

	// One packet further: the oldest sample ages out.
	_, ok = e.Update(960+horizon+960, 960+horizon, testSampleRate, 20)
	require.True(t, ok)
	assert.Equal(t, 2, e.HistoryLen())
	assert.Equal(t, uint32(960+horizon), e.history[0].Timestamp)
}

func TestArrivalDelayEstimatorTimestampWraparound(t *testing.T) {
	e := NewArrivalDelayEstimator()
	last := uint32(0xFFFFFF00)

	// The timestamp wraps past zero but the packet is in order.
	ts := last + 960
	require.True(t, ts < last, "test should cross the wrap boundary")
	delay, ok := e.Update(ts, last, testSampleRate, 20)
	require.True(t, ok)
	assert.False(t, delay.Reordered)
	assert.Equal(t, 0, delay.DelayMs)

	delay, ok = e.Update(ts+960, ts, testSampleRate, 25)
	require.True(t, ok)
	assert.False(t, delay.Reordered)
	assert.Equal(t, 5, delay.DelayMs)
}

func TestArrivalDelayEstimatorReset(t *testing.T) {
	e := NewArrivalDelayEstimator()

	_, ok := e.Update(960, 0, testSampleRate, 30)
	require.True(t, ok)
	_, ok = e.Update(1920, 960, testSampleRate, 30)
	require.True(t, ok)
	require.Equal(t, 2, e.HistoryLen())

	e.Reset()
	assert.Equal(t, 0, e.HistoryLen())

	// The window restarts from scratch.
	delay, ok := e.Update(2880, 1920, testSampleRate, 30)
	require.True(t, ok)
	assert.Equal(t, 10, delay.DelayMs)
}
