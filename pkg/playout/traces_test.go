package playout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/playout/pkg/playout/internal"
	"github.com/thesyncim/playout/pkg/playout/testutil"
)

// newTraceManager creates a manager for trace replay with a 20ms packet
// length, the common Opus configuration.
func newTraceManager(t *testing.T) (*DelayManager, *internal.MockClock) {
	t.Helper()
	clock := internal.NewMockClock(time.Time{})
	m, err := NewDelayManager(DefaultDelayManagerConfig(), nil, clock)
	require.NoError(t, err)
	require.NoError(t, m.SetPacketAudioLength(20))
	return m, clock
}

// replayTrace drives the manager through a generated arrival trace and
// returns the target delay after each packet. The manager's clock is set
// to each event's arrival time, so traces can be generated on a separate
// clock beforehand.
func replayTrace(m *DelayManager, clock *internal.MockClock, events []testutil.PacketEvent) []int {
	targets := make([]int, len(events))
	for i, ev := range events {
		clock.Set(ev.ArrivalTime)
		m.Update(ev.Timestamp, ev.SampleRate, false)
		targets[i] = m.TargetDelayMs()
	}
	return targets
}

func TestTraceSteadyHoldsOnePacket(t *testing.T) {
	gen := internal.NewMockClock(time.Time{})
	events := testutil.SteadyTrace(gen, 200, 20)

	m, clock := newTraceManager(t)
	targets := replayTrace(m, clock, events)

	// After the first packet primes the estimator, a jitter-free stream
	// never needs more than one packet of buffering.
	for i, target := range targets[1:] {
		require.Equal(t, 20, target, "packet %d", i+1)
	}
}

func TestTraceJitterRaisesTarget(t *testing.T) {
	gen := internal.NewMockClock(time.Time{})
	events := testutil.JitteredTrace(gen, 400, 20, 30, 1)

	m, clock := newTraceManager(t)
	targets := replayTrace(m, clock, events)

	final := targets[len(targets)-1]
	assert.Greater(t, final, 20, "jitter requires more than the one-packet floor")
	for i, target := range targets {
		require.GreaterOrEqual(t, target, 20, "packet %d", i)
		require.LessOrEqual(t, target, 3000, "packet %d exceeds 75%% of buffer capacity", i)
	}
}

func TestTraceSpikesRaiseTarget(t *testing.T) {
	gen := internal.NewMockClock(time.Time{})
	events := testutil.SpikeTrace(gen, 300, 20, 50, 200)

	m, clock := newTraceManager(t)
	targets := replayTrace(m, clock, events)

	maxTarget := 0
	for _, target := range targets {
		maxTarget = max(maxTarget, target)
		require.LessOrEqual(t, target, 3000)
	}
	assert.GreaterOrEqual(t, maxTarget, 100,
		"periodic 200ms spikes must push the target well above the floor")

	final := targets[len(targets)-1]
	assert.GreaterOrEqual(t, final, 40, "spikes stay within the decay horizon")
}

func TestTraceReorderingTolerated(t *testing.T) {
	gen := internal.NewMockClock(time.Time{})
	events := testutil.ReorderedTrace(gen, 200, 20, 10)

	m, clock := newTraceManager(t)
	targets := replayTrace(m, clock, events)

	// A swapped pair makes the late packet arrive one interval behind its
	// timestamp, so occasional reordering reads as bounded jitter.
	final := targets[len(targets)-1]
	assert.GreaterOrEqual(t, final, 20)
	assert.LessOrEqual(t, final, 100)

	// Isolated swaps never trip the reorder tolerance, so the delay
	// history keeps covering the full window.
	assert.GreaterOrEqual(t, m.estimator.HistoryLen(), 50)
}

func TestTraceWraparoundSeamless(t *testing.T) {
	gen := internal.NewMockClock(time.Time{})
	events := testutil.WraparoundTrace(gen, 200, 20)

	// The trace crosses the 32-bit timestamp boundary halfway through.
	require.Greater(t, events[0].Timestamp, events[len(events)-1].Timestamp)

	m, clock := newTraceManager(t)
	targets := replayTrace(m, clock, events)

	for i, target := range targets[1:] {
		require.Equal(t, 20, target, "packet %d around the wrap", i+1)
	}
}

func TestTraceTalkspurtGapsStayFlat(t *testing.T) {
	gen := internal.NewMockClock(time.Time{})
	events := testutil.TalkspurtTrace(gen, 5, 50, 20, 400)

	m, clock := newTraceManager(t)
	targets := replayTrace(m, clock, events)

	// Silence gaps advance the timestamp clock along with the wall clock,
	// so they carry no jitter signal and must not inflate the target.
	for i, target := range targets[1:] {
		require.Equal(t, 20, target, "packet %d", i+1)
	}
}
