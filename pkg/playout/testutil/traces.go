// Package testutil provides test support for the playout packages:
// deterministic arrival-trace generators covering common network
// conditions, and a browser client for the end-to-end tests.
package testutil

import (
	"math/rand"
	"time"

	"github.com/thesyncim/playout/pkg/playout/internal"
)

// PacketEvent describes one received audio packet for trace generation.
// Feed the fields to DelayManager.Update in arrival order.
type PacketEvent struct {
	ArrivalTime time.Time
	Timestamp   uint32
	SampleRate  int
	SSRC        uint32
}

// TraceClock is the deterministic clock the trace generators run on. It
// also satisfies the clock dependency of NewDelayManager, so a manager
// under test can replay a trace on the clock that produced it.
type TraceClock = internal.MockClock

// NewTraceClock creates a TraceClock initialized to start. A zero start
// is replaced with a fixed non-zero time.
func NewTraceClock(start time.Time) *TraceClock {
	return internal.NewMockClock(start)
}

// Constants for typical Opus audio streams.
const (
	// DefaultSampleRate is the RTP clock rate used by the generators.
	DefaultSampleRate = 48000

	// TicksPerMs is the number of RTP timestamp ticks per millisecond
	// at DefaultSampleRate.
	TicksPerMs = DefaultSampleRate / 1000
)

// SteadyTrace generates packets with constant spacing (no jitter).
// Each packet arrives exactly when its timestamp says it should, so the
// inter-arrival delay is zero throughout.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of packets to generate
//   - intervalMs: Inter-packet interval in milliseconds
//
// Returns a slice of PacketEvent simulating a jitter-free stream.
func SteadyTrace(clock *internal.MockClock, count int, intervalMs int) []PacketEvent {
	packets := make([]PacketEvent, count)
	timestamp := uint32(0)

	for i := 0; i < count; i++ {
		packets[i] = PacketEvent{
			ArrivalTime: clock.Now(),
			Timestamp:   timestamp,
			SampleRate:  DefaultSampleRate,
			SSRC:        0x12345678,
		}
		// Timestamp and wall clock advance in lockstep.
		timestamp += uint32(intervalMs * TicksPerMs)
		clock.Advance(time.Duration(intervalMs) * time.Millisecond)
	}
	return packets
}

// JitteredTrace generates packets with bounded random arrival jitter.
// Timestamps advance at the nominal rate while arrivals wander by up to
// jitterMs in either direction, which is what a load-balanced internet
// path looks like.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of packets to generate
//   - intervalMs: Nominal inter-packet interval in milliseconds
//   - jitterMs: Maximum deviation from the nominal interval
//   - seed: Seed for the jitter sequence, fixed for reproducibility
//
// Returns a slice of PacketEvent simulating a jittery stream.
func JitteredTrace(clock *internal.MockClock, count int, intervalMs, jitterMs int, seed int64) []PacketEvent {
	packets := make([]PacketEvent, count)
	timestamp := uint32(0)
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < count; i++ {
		packets[i] = PacketEvent{
			ArrivalTime: clock.Now(),
			Timestamp:   timestamp,
			SampleRate:  DefaultSampleRate,
			SSRC:        0x12345678,
		}
		timestamp += uint32(intervalMs * TicksPerMs)

		advanceMs := intervalMs + rng.Intn(2*jitterMs+1) - jitterMs
		if advanceMs < 1 {
			advanceMs = 1 // Keep arrival times monotonic
		}
		clock.Advance(time.Duration(advanceMs) * time.Millisecond)
	}
	return packets
}

// SpikeTrace generates packets with periodic delay spikes.
// Every spikeEveryN packets one packet is held back by spikeMs, and the
// packets queued behind it then arrive in a burst at 1ms spacing until
// the stream catches back up. This is the classic bufferbloat shape.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of packets to generate
//   - intervalMs: Nominal inter-packet interval in milliseconds
//   - spikeEveryN: Spike period in packets
//   - spikeMs: Extra delay added at each spike
//
// Returns a slice of PacketEvent simulating periodic congestion spikes.
func SpikeTrace(clock *internal.MockClock, count int, intervalMs, spikeEveryN, spikeMs int) []PacketEvent {
	packets := make([]PacketEvent, count)
	timestamp := uint32(0)
	debtMs := 0

	for i := 0; i < count; i++ {
		packets[i] = PacketEvent{
			ArrivalTime: clock.Now(),
			Timestamp:   timestamp,
			SampleRate:  DefaultSampleRate,
			SSRC:        0x12345678,
		}
		timestamp += uint32(intervalMs * TicksPerMs)

		advanceMs := intervalMs
		if spikeEveryN > 0 && (i+1)%spikeEveryN == 0 {
			advanceMs += spikeMs
			debtMs += spikeMs
		} else if debtMs > 0 {
			// Queued packets drain in a burst after the spike.
			advanceMs = 1
			debtMs -= intervalMs - 1
			if debtMs < 0 {
				debtMs = 0
			}
		}
		clock.Advance(time.Duration(advanceMs) * time.Millisecond)
	}
	return packets
}

// ReorderedTrace generates packets where every reorderEveryN-th packet
// swaps arrival order with its successor. Timestamps stay in send order,
// so the receiver sees an older timestamp after a newer one.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of packets to generate
//   - intervalMs: Inter-packet interval in milliseconds
//   - reorderEveryN: Swap period in packets (0 disables swapping)
//
// Returns a slice of PacketEvent containing out-of-order arrivals.
func ReorderedTrace(clock *internal.MockClock, count int, intervalMs, reorderEveryN int) []PacketEvent {
	packets := SteadyTrace(clock, count, intervalMs)
	if reorderEveryN <= 0 {
		return packets
	}
	for i := reorderEveryN; i+1 < count; i += reorderEveryN {
		// Arrival times keep their order; the timestamps trade places.
		packets[i].Timestamp, packets[i+1].Timestamp = packets[i+1].Timestamp, packets[i].Timestamp
	}
	return packets
}

// WraparoundTrace generates packets that cross the 32-bit RTP timestamp
// boundary. At 48 kHz the timestamp wraps roughly once a day, so long-run
// behavior around the wrap needs explicit coverage.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of packets to generate
//   - intervalMs: Inter-packet interval in milliseconds
//
// Returns packets whose timestamps start below the boundary and wrap
// halfway through the trace.
func WraparoundTrace(clock *internal.MockClock, count int, intervalMs int) []PacketEvent {
	packets := make([]PacketEvent, count)

	// Start so the wrap lands in the middle of the trace.
	ticksPerPacket := uint32(intervalMs * TicksPerMs)
	timestamp := uint32(0) - ticksPerPacket*uint32(count/2)

	for i := 0; i < count; i++ {
		packets[i] = PacketEvent{
			ArrivalTime: clock.Now(),
			Timestamp:   timestamp,
			SampleRate:  DefaultSampleRate,
			SSRC:        0x12345678,
		}
		timestamp += ticksPerPacket
		clock.Advance(time.Duration(intervalMs) * time.Millisecond)
	}
	return packets
}

// TalkspurtTrace generates speech-shaped traffic: bursts of packets
// separated by silence gaps. During a gap no packets are sent but the
// RTP timestamp keeps counting, which is how DTX encoders behave.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - spurts: Number of talkspurts
//   - packetsPerSpurt: Packets in each talkspurt
//   - intervalMs: Inter-packet interval within a spurt
//   - gapMs: Silence gap between spurts in milliseconds
//
// Returns packets organized in talkspurts.
func TalkspurtTrace(clock *internal.MockClock, spurts, packetsPerSpurt, intervalMs, gapMs int) []PacketEvent {
	packets := make([]PacketEvent, 0, spurts*packetsPerSpurt)
	timestamp := uint32(0)

	for s := 0; s < spurts; s++ {
		for p := 0; p < packetsPerSpurt; p++ {
			packets = append(packets, PacketEvent{
				ArrivalTime: clock.Now(),
				Timestamp:   timestamp,
				SampleRate:  DefaultSampleRate,
				SSRC:        0x12345678,
			})
			timestamp += uint32(intervalMs * TicksPerMs)
			if p < packetsPerSpurt-1 {
				clock.Advance(time.Duration(intervalMs) * time.Millisecond)
			}
		}
		if s < spurts-1 {
			// Silence: the sampling clock runs on while nothing is sent.
			timestamp += uint32(gapMs * TicksPerMs)
			clock.Advance(time.Duration(gapMs+intervalMs) * time.Millisecond)
		}
	}
	return packets
}
