// Package testutil provides testing utilities for the playout package.
// This file provides reference trace replay infrastructure for validation testing.
//
// Note: This package is designed to avoid importing playout to prevent import
// cycles. Tests that use this package should feed the packets to the manager
// under test themselves.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/thesyncim/playout/pkg/playout/internal"
)

// TracedPacket represents a single packet in a reference trace.
// It includes both the packet data needed for replay and the expected
// reference target delay from libwebrtc (if available).
type TracedPacket struct {
	// ArrivalTimeUs is the arrival time in microseconds since trace start.
	ArrivalTimeUs int64 `json:"arrival_time_us"`

	// Timestamp is the 32-bit RTP timestamp from the packet header.
	Timestamp uint32 `json:"timestamp"`

	// SampleRate is the RTP clock rate of the stream in Hz.
	SampleRate int `json:"sample_rate"`

	// SSRC is the synchronization source identifier.
	SSRC uint32 `json:"ssrc"`

	// ReferenceTargetMs is the expected target delay from libwebrtc.
	// A value of 0 means "unknown" (should be skipped in comparison).
	ReferenceTargetMs int `json:"reference_target_ms"`
}

// ArrivalTime converts the arrival time from microseconds to time.Time.
// Useful for initializing mock clocks at the trace start time.
func (p TracedPacket) ArrivalTime() time.Time {
	return time.Unix(0, p.ArrivalTimeUs*1000) // microseconds to nanoseconds
}

// ReferenceTrace represents a complete packet trace with reference targets.
// Traces can be:
//   - Synthetic: Generated programmatically for testing infrastructure
//   - Captured: Extracted from RTC event logs using neteq_rtpplay
type ReferenceTrace struct {
	// Name is a short identifier for the trace (e.g., "jitter_recovery").
	Name string `json:"name"`

	// Description explains what network conditions the trace represents.
	Description string `json:"description"`

	// Packets is the ordered list of packets in the trace.
	Packets []TracedPacket `json:"packets"`
}

// LoadTrace reads a reference trace from a JSON file.
// Returns an error if the file cannot be read or parsed.
//
// File format:
//
//	{
//	    "name": "trace_name",
//	    "description": "Description of network scenario",
//	    "packets": [
//	        {"arrival_time_us": 0, "timestamp": 0, "sample_rate": 48000, "ssrc": 12345, "reference_target_ms": 0},
//	        ...
//	    ]
//	}
func LoadTrace(path string) (*ReferenceTrace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file %s: %w", path, err)
	}

	var trace ReferenceTrace
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, fmt.Errorf("failed to parse trace file %s: %w", path, err)
	}

	return &trace, nil
}

// PacketProcessor is a function that processes a single packet and returns
// the target delay after the update. This allows the Replay method to work
// without depending on the playout package. The function should:
//   - Accept the traced packet data
//   - Process it through the delay manager being tested
//   - Return the target playout delay in milliseconds
type PacketProcessor func(arrivalTime time.Time, timestamp uint32, sampleRate int, ssrc uint32) int

// Replay replays the trace through a packet processor and returns the targets.
// The clock is advanced to match packet arrival times in the trace.
//
// Parameters:
//   - processor: A function that processes packets and returns target delays
//   - clock: A MockClock for deterministic replay
//
// Returns a slice of target delays, one per packet.
// The slice has the same length as trace.Packets.
func (t *ReferenceTrace) Replay(processor PacketProcessor, clock *internal.MockClock) []int {
	targets := make([]int, len(t.Packets))

	// Track the start time for calculating arrival deltas
	startTime := clock.Now()
	var lastArrivalUs int64 = 0

	for i, pkt := range t.Packets {
		// Advance clock to match packet arrival time
		if pkt.ArrivalTimeUs > lastArrivalUs {
			delta := time.Duration(pkt.ArrivalTimeUs-lastArrivalUs) * time.Microsecond
			clock.Advance(delta)
		}
		lastArrivalUs = pkt.ArrivalTimeUs

		// Calculate actual arrival time
		arrivalTime := startTime.Add(time.Duration(pkt.ArrivalTimeUs) * time.Microsecond)

		// Process packet and record target
		targets[i] = processor(arrivalTime, pkt.Timestamp, pkt.SampleRate, pkt.SSRC)
	}

	return targets
}

// DivergenceResult contains the results of a divergence calculation.
type DivergenceResult struct {
	// MaxDivergenceMs is the maximum divergence observed in milliseconds.
	MaxDivergenceMs int

	// AvgDivergenceMs is the average divergence in milliseconds.
	AvgDivergenceMs float64

	// ComparedPackets is the number of packets actually compared
	// (excluding warmup and packets without reference targets).
	ComparedPackets int

	// TotalPackets is the total number of packets in the trace.
	TotalPackets int
}

// CalculateDivergence compares our target delays against reference values.
// It calculates both maximum and average divergence in milliseconds.
// Targets are quantized to 20ms buckets, so absolute differences are more
// meaningful than percentages here.
//
// Parameters:
//   - ourTargets: Slice of our target delays (from Replay)
//   - trace: The reference trace containing expected targets
//   - warmupPackets: Number of initial packets to skip (histogram needs warmup)
//
// Packets are only compared where ReferenceTargetMs > 0 (meaning we have
// expected values from libwebrtc).
func CalculateDivergence(ourTargets []int, trace *ReferenceTrace, warmupPackets int) DivergenceResult {
	result := DivergenceResult{
		TotalPackets: len(trace.Packets),
	}

	if len(ourTargets) != len(trace.Packets) {
		// Mismatch - return zero result
		return result
	}

	var totalDivergence int
	var maxDivergence int
	var comparedCount int

	for i := warmupPackets; i < len(trace.Packets); i++ {
		ref := trace.Packets[i].ReferenceTargetMs
		if ref <= 0 {
			// Skip packets without reference targets
			continue
		}

		divergence := ourTargets[i] - ref
		if divergence < 0 {
			divergence = -divergence
		}

		totalDivergence += divergence
		if divergence > maxDivergence {
			maxDivergence = divergence
		}
		comparedCount++
	}

	result.MaxDivergenceMs = maxDivergence
	result.ComparedPackets = comparedCount

	if comparedCount > 0 {
		result.AvgDivergenceMs = float64(totalDivergence) / float64(comparedCount)
	}

	return result
}

// GenerateSyntheticTrace creates a synthetic trace for testing.
// This is useful when real reference data is not available.
//
// The trace simulates a jitter event:
//   - Phase 1: Clean network (target should sit at one packet of delay)
//   - Phase 2: Jitter (delays spread out, target should rise)
//   - Phase 3: Recovery (jitter stops, target should decay back down)
//
// Parameters:
//   - packetCount: Total number of packets
//   - packetIntervalMs: Interval between packets in milliseconds
//   - jitterMs: Peak arrival jitter during the jitter phase
//   - ssrc: SSRC to use for packets
//
// Returns a ReferenceTrace with synthetic reference targets set.
func GenerateSyntheticTrace(packetCount int, packetIntervalMs int, jitterMs int, ssrc uint32) *ReferenceTrace {
	trace := &ReferenceTrace{
		Name:        "synthetic_jitter",
		Description: "Synthetic trace with clean, jitter, and recovery phases",
		Packets:     make([]TracedPacket, packetCount),
	}

	// Phase boundaries (roughly 40% clean, 30% jitter, 30% recovery)
	phase1End := packetCount * 40 / 100
	phase2End := packetCount * 70 / 100
	warmupPackets := packetCount / 5 // First 20% are warmup (no reference targets)

	// Reference targets: one packet interval on a clean network, the
	// ~97th percentile of the jitter spread (rounded up to a bucket)
	// while jitter is active.
	cleanTargetMs := packetIntervalMs
	jitterTargetMs := packetIntervalMs
	if jitterMs > 0 {
		jitterTargetMs = ((jitterMs-1)/20 + 1) * 20
	}

	ticksPerMs := DefaultSampleRate / 1000
	var sendTimeUs int64 = 0
	var prevArrivalUs int64 = 0

	for i := 0; i < packetCount; i++ {
		// Deterministic jitter: a modular sweep covers 0..jitterMs-1
		// roughly uniformly without pulling in a random source.
		jitterUs := int64(0)
		if i >= phase1End && i < phase2End && jitterMs > 0 {
			jitterUs = int64((i*7)%jitterMs) * 1000
		}
		arrivalTimeUs := sendTimeUs + 10000 + jitterUs // 10ms base network delay
		if arrivalTimeUs < prevArrivalUs {
			// In-order delivery: a late packet holds back the ones
			// queued behind it.
			arrivalTimeUs = prevArrivalUs
		}
		prevArrivalUs = arrivalTimeUs

		// Determine reference target based on phase
		refTargetMs := 0
		if i >= warmupPackets {
			switch {
			case i < phase1End:
				refTargetMs = cleanTargetMs
			case i < phase2End:
				refTargetMs = jitterTargetMs
			default:
				// Recovery is gradual (the histogram forgets slowly),
				// so no point reference exists; leave it unset.
				refTargetMs = 0
			}
		}

		trace.Packets[i] = TracedPacket{
			ArrivalTimeUs:     arrivalTimeUs,
			Timestamp:         uint32((sendTimeUs / 1000) * int64(ticksPerMs)),
			SampleRate:        DefaultSampleRate,
			SSRC:              ssrc,
			ReferenceTargetMs: refTargetMs,
		}

		sendTimeUs += int64(packetIntervalMs * 1000)
	}

	return trace
}
