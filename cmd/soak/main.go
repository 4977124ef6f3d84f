// Soak runner for long-duration playout delay testing.
//
// This tool replays hours of synthetic audio traffic through a DelayManager
// on a simulated clock and monitors for target-delay anomalies, memory
// growth, and timestamp wraparound issues. Time is simulated, so a 24 hour
// stream finishes in well under a minute of wall time.
//
// Usage:
//
//	go run ./cmd/soak -duration 24h
//	go run ./cmd/soak -duration 1h -scenario bursty.yaml -v
//
// A scenario file overrides any subset of the default traffic shape:
//
//	name: bursty
//	packet_interval_ms: 20
//	jitter:
//	  base_ms: 15
//	  stddev_ms: 12
//	  spike_probability: 0.01
//	  spike_ms: 250
//	reorder_probability: 0.005
//	talkspurt:
//	  enabled: true
//	  spurt_ms: 1500
//	  gap_ms: 800
//	minimum_delay_ms: 40
//	maximum_delay_ms: 500
//
// Exposes a pprof endpoint for live profiling:
//
//	curl http://localhost:6060/debug/pprof/heap > heap.pprof
//	go tool pprof heap.pprof
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thesyncim/playout/pkg/playout"
	"github.com/thesyncim/playout/pkg/playout/testutil"
)

const (
	soakSSRC        = 0x12345678
	warmupPackets   = 250 // 5 seconds of clean stream before impairments
	statusInterval  = time.Hour // simulated time between progress lines
	maxHeapMB       = 100
	maxAnomalyLines = 10
)

// Scenario describes the simulated traffic shape. Zero probabilities and
// a disabled talkspurt model reduce it to a steady stream.
type Scenario struct {
	Name               string         `yaml:"name"`
	SampleRateHz       int            `yaml:"sample_rate_hz"`
	PacketIntervalMs   int            `yaml:"packet_interval_ms"`
	Jitter             JitterModel    `yaml:"jitter"`
	ReorderProbability float64        `yaml:"reorder_probability"`
	Talkspurt          TalkspurtModel `yaml:"talkspurt"`
	MinimumDelayMs     int            `yaml:"minimum_delay_ms"`
	MaximumDelayMs     int            `yaml:"maximum_delay_ms"`
}

// JitterModel describes the per-packet one-way delay: a constant base, the
// positive half of a normal distribution, and occasional spikes.
type JitterModel struct {
	BaseMs           int     `yaml:"base_ms"`
	StddevMs         float64 `yaml:"stddev_ms"`
	SpikeProbability float64 `yaml:"spike_probability"`
	SpikeMs          int     `yaml:"spike_ms"`
}

// TalkspurtModel describes speech-shaped on/off traffic. During a gap no
// packets are sent while the RTP timestamp keeps counting, as with DTX.
type TalkspurtModel struct {
	Enabled bool `yaml:"enabled"`
	SpurtMs int  `yaml:"spurt_ms"`
	GapMs   int  `yaml:"gap_ms"`
}

func defaultScenario() Scenario {
	return Scenario{
		Name:             "default",
		SampleRateHz:     testutil.DefaultSampleRate,
		PacketIntervalMs: 20,
		Jitter: JitterModel{
			BaseMs:           10,
			StddevMs:         8,
			SpikeProbability: 0.002,
			SpikeMs:          150,
		},
		ReorderProbability: 0.001,
		Talkspurt: TalkspurtModel{
			Enabled: true,
			SpurtMs: 2000,
			GapMs:   600,
		},
	}
}

// loadScenario reads a YAML scenario file. Fields absent from the file
// keep their default values.
func loadScenario(path string) (Scenario, error) {
	scn := defaultScenario()
	data, err := os.ReadFile(path)
	if err != nil {
		return scn, err
	}
	if err := yaml.Unmarshal(data, &scn); err != nil {
		return scn, fmt.Errorf("parse %s: %w", path, err)
	}
	return scn, scn.validate()
}

func (s Scenario) validate() error {
	switch {
	case s.SampleRateHz < 1000 || s.SampleRateHz%1000 != 0:
		return fmt.Errorf("sample_rate_hz must be a positive multiple of 1000, got %d", s.SampleRateHz)
	case s.PacketIntervalMs <= 0:
		return fmt.Errorf("packet_interval_ms must be positive, got %d", s.PacketIntervalMs)
	case s.Jitter.BaseMs < 0 || s.Jitter.StddevMs < 0 || s.Jitter.SpikeMs < 0:
		return fmt.Errorf("jitter values must be non-negative")
	case s.Jitter.SpikeProbability < 0 || s.Jitter.SpikeProbability > 1:
		return fmt.Errorf("jitter.spike_probability must be in [0, 1], got %g", s.Jitter.SpikeProbability)
	case s.ReorderProbability < 0 || s.ReorderProbability > 1:
		return fmt.Errorf("reorder_probability must be in [0, 1], got %g", s.ReorderProbability)
	case s.Talkspurt.Enabled && s.Talkspurt.SpurtMs < s.PacketIntervalMs:
		return fmt.Errorf("talkspurt.spurt_ms must cover at least one packet, got %d", s.Talkspurt.SpurtMs)
	case s.Talkspurt.Enabled && s.Talkspurt.GapMs <= 0:
		return fmt.Errorf("talkspurt.gap_ms must be positive, got %d", s.Talkspurt.GapMs)
	case s.MinimumDelayMs < 0 || s.MaximumDelayMs < 0:
		return fmt.Errorf("delay bounds must be non-negative")
	}
	return nil
}

// SoakResult contains the results of a soak run.
type SoakResult struct {
	SimulatedDuration time.Duration
	WallDuration      time.Duration
	TotalPackets      int
	FinalTargetMs     int
	PeakTargetMs      int
	PeakHeapMB        float64
	TotalGCCycles     uint32
	WraparoundCount   int
	SuspiciousEvents  int
	Status            string
}

func (r *SoakResult) anomaly(elapsed time.Duration, format string, args ...any) {
	r.SuspiciousEvents++
	r.Status = "FAIL"
	if r.SuspiciousEvents <= maxAnomalyLines {
		fmt.Printf("[%s] ERROR: %s\n", formatDuration(elapsed), fmt.Sprintf(format, args...))
	}
}

func main() {
	// Parse flags
	duration := flag.Duration("duration", 24*time.Hour, "Simulated stream duration (e.g., 1h, 24h)")
	scenarioPath := flag.String("scenario", "", "YAML scenario file overriding the default traffic shape")
	seed := flag.Int64("seed", 1, "Seed for the traffic generator")
	pprofPort := flag.Int("pprof", 6060, "Port for pprof HTTP server (0 disables)")
	verbose := flag.Bool("v", false, "Print delay statistics with each progress line")
	flag.Parse()

	scn := defaultScenario()
	if *scenarioPath != "" {
		var err error
		scn, err = loadScenario(*scenarioPath)
		if err != nil {
			fmt.Printf("ERROR: load scenario: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Playout Delay Soak Runner\n")
	fmt.Printf("=========================\n")
	fmt.Printf("Scenario: %s\n", scn.Name)
	fmt.Printf("Duration: %v simulated\n", *duration)
	fmt.Printf("Seed:     %d\n", *seed)
	fmt.Printf("Traffic:  %d ms packets at %d Hz\n", scn.PacketIntervalMs, scn.SampleRateHz)
	fmt.Printf("Jitter:   base %d ms, stddev %.1f ms, spike p=%g (+%d ms), reorder p=%g\n",
		scn.Jitter.BaseMs, scn.Jitter.StddevMs, scn.Jitter.SpikeProbability, scn.Jitter.SpikeMs,
		scn.ReorderProbability)
	if scn.Talkspurt.Enabled {
		fmt.Printf("Speech:   %d ms spurts, %d ms gaps\n", scn.Talkspurt.SpurtMs, scn.Talkspurt.GapMs)
	}
	if *pprofPort > 0 {
		fmt.Printf("Pprof:    http://localhost:%d/debug/pprof/\n", *pprofPort)
	}
	fmt.Printf("\n")

	// Start pprof server in background
	if *pprofPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", *pprofPort)
			if err := http.ListenAndServe(addr, nil); err != nil {
				fmt.Printf("Warning: pprof server failed: %v\n", err)
			}
		}()
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived %v, shutting down gracefully...\n", sig)
		cancel()
	}()

	result := runSoak(ctx, scn, *duration, *seed, *verbose)

	printSummary(result)

	if result.Status == "PASS" {
		os.Exit(0)
	}
	os.Exit(1)
}

func runSoak(ctx context.Context, scn Scenario, duration time.Duration, seed int64, verbose bool) SoakResult {
	result := SoakResult{Status: "PASS"}

	config := playout.DefaultDelayManagerConfig()
	clock := testutil.NewTraceClock(time.Time{})
	simStart := clock.Now()

	manager, err := playout.NewDelayManager(config, nil, clock)
	if err != nil {
		fmt.Printf("ERROR: create delay manager: %v\n", err)
		result.Status = "FAIL"
		return result
	}
	if err := configureBounds(manager, scn); err != nil {
		fmt.Printf("ERROR: apply scenario bounds: %v\n", err)
		result.Status = "FAIL"
		return result
	}

	// The target may never leave these bounds, whatever the traffic does.
	floorMs := scn.PacketIntervalMs
	capMs := 3 * config.MaxPacketsInBuffer * scn.PacketIntervalMs / 4

	stats := playout.NewDelayStats(playout.DefaultDelayStatsConfig())

	wallStart := time.Now()
	fmt.Printf("[%s] Starting soak run...\n", formatDuration(0))

	// A clean stretch first, so impairments land on a primed estimator.
	primed := 0
	if scn.SampleRateHz == testutil.DefaultSampleRate {
		for _, ev := range testutil.SteadyTrace(clock, warmupPackets, scn.PacketIntervalMs) {
			clock.Set(ev.ArrivalTime)
			manager.Update(ev.Timestamp, ev.SampleRate, false)
			result.TotalPackets++
		}
		primed = warmupPackets
	}

	src := newTrafficSource(scn, rand.New(rand.NewSource(seed)), clock, simStart, primed)

	var memStats runtime.MemStats
	var lastStatus time.Duration

	for {
		elapsed := time.Duration(src.scheduledMs) * time.Millisecond
		if elapsed >= duration {
			break
		}

		select {
		case <-ctx.Done():
			result.SimulatedDuration = elapsed
			result.WallDuration = time.Since(wallStart)
			result.FinalTargetMs = manager.TargetDelayMs()
			result.WraparoundCount = src.wraparounds
			finishMemStats(&result, &memStats)
			return result
		default:
		}

		ev := src.next()
		delayMs, ok := manager.Update(ev.Timestamp, ev.SampleRate, false)
		target := manager.TargetDelayMs()
		result.TotalPackets++
		if target > result.PeakTargetMs {
			result.PeakTargetMs = target
		}

		// Check the published values against the documented bounds.
		if ok {
			stats.Update(delayMs, ev.ArrivalTime)
			if delayMs < 0 {
				result.anomaly(elapsed, "negative relative delay: %d ms", delayMs)
			}
		}
		if target < floorMs {
			result.anomaly(elapsed, "target %d ms below packet length %d ms", target, floorMs)
		}
		if target > capMs {
			result.anomaly(elapsed, "target %d ms above buffer capacity bound %d ms", target, capMs)
		}
		if minMs := manager.EffectiveMinimumDelay(); target < minMs {
			result.anomaly(elapsed, "target %d ms below effective minimum %d ms", target, minMs)
		}
		if maxMs := manager.MaximumDelay(); maxMs > 0 && target > maxMs {
			result.anomaly(elapsed, "target %d ms above maximum %d ms", target, maxMs)
		}

		// Periodic status output on the simulated clock.
		if elapsed-lastStatus >= statusInterval {
			lastStatus = elapsed
			runtime.ReadMemStats(&memStats)
			heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
			if heapMB > result.PeakHeapMB {
				result.PeakHeapMB = heapMB
			}
			result.TotalGCCycles = memStats.NumGC

			fmt.Printf("[%s] Packets: %d, Target: %d ms, HeapAlloc: %.2f MB, NumGC: %d\n",
				formatDuration(elapsed), result.TotalPackets, target, heapMB, memStats.NumGC)
			if verbose {
				if maxMs, ok := stats.Max(clock.Now()); ok {
					meanMs, _ := stats.Mean(clock.Now())
					fmt.Printf("           window max: %d ms, window mean: %d ms, wraparounds: %d\n",
						maxMs, meanMs, src.wraparounds)
				}
			}

			if heapMB > maxHeapMB {
				fmt.Printf("[%s] ERROR: Memory limit exceeded: %.2f MB\n", formatDuration(elapsed), heapMB)
				result.Status = "FAIL"
			}
		}
	}

	result.SimulatedDuration = time.Duration(src.scheduledMs) * time.Millisecond
	result.WallDuration = time.Since(wallStart)
	result.FinalTargetMs = manager.TargetDelayMs()
	result.WraparoundCount = src.wraparounds
	finishMemStats(&result, &memStats)
	return result
}

// configureBounds applies the scenario's packet length and delay limits.
// The packet length goes first since the bound setters validate against it.
func configureBounds(manager *playout.DelayManager, scn Scenario) error {
	if err := manager.SetPacketAudioLength(scn.PacketIntervalMs); err != nil {
		return err
	}
	if scn.MinimumDelayMs > 0 {
		if err := manager.SetMinimumDelay(scn.MinimumDelayMs); err != nil {
			return fmt.Errorf("minimum_delay_ms %d: %w", scn.MinimumDelayMs, err)
		}
	}
	if scn.MaximumDelayMs > 0 {
		if err := manager.SetMaximumDelay(scn.MaximumDelayMs); err != nil {
			return fmt.Errorf("maximum_delay_ms %d: %w", scn.MaximumDelayMs, err)
		}
	}
	return nil
}

func finishMemStats(result *SoakResult, memStats *runtime.MemStats) {
	runtime.ReadMemStats(memStats)
	heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
	if heapMB > result.PeakHeapMB {
		result.PeakHeapMB = heapMB
	}
	result.TotalGCCycles = memStats.NumGC
}

// trafficSource generates the impaired packet stream described by a
// Scenario. Packets are sent on a fixed schedule; each one picks up an
// independent one-way delay, so the receiver sees bounded jitter rather
// than a random walk. A FIFO path cannot overtake, so an arrival is never
// earlier than the packet before it.
type trafficSource struct {
	scn   Scenario
	rng   *rand.Rand
	clock *testutil.TraceClock

	start         time.Time
	scheduledMs   int64 // send offset of the next packet
	lastArrivalMs int64
	timestamp     uint32
	ticksPerMs    int

	spurtLeftMs   int
	heldTimestamp uint32
	hasHeld       bool
	wraparounds   int
}

// newTrafficSource continues a stream of which primed packets have already
// been delivered jitter-free on the same clock.
func newTrafficSource(scn Scenario, rng *rand.Rand, clock *testutil.TraceClock, simStart time.Time, primed int) *trafficSource {
	return &trafficSource{
		scn:           scn,
		rng:           rng,
		clock:         clock,
		start:         simStart,
		scheduledMs:   int64(primed * scn.PacketIntervalMs),
		lastArrivalMs: int64(primed-1) * int64(scn.PacketIntervalMs),
		timestamp:     uint32(primed * scn.PacketIntervalMs * (scn.SampleRateHz / 1000)),
		ticksPerMs:    scn.SampleRateHz / 1000,
		spurtLeftMs:   scn.Talkspurt.SpurtMs,
	}
}

// next produces the next packet arrival and moves the simulated clock to
// its arrival time.
func (src *trafficSource) next() testutil.PacketEvent {
	ts := src.nextTimestamp()

	// Per-packet one-way delay.
	delayMs := float64(src.scn.Jitter.BaseMs)
	if src.scn.Jitter.StddevMs > 0 {
		delayMs += math.Abs(src.rng.NormFloat64()) * src.scn.Jitter.StddevMs
	}
	if src.scn.Jitter.SpikeProbability > 0 && src.rng.Float64() < src.scn.Jitter.SpikeProbability {
		delayMs += float64(src.scn.Jitter.SpikeMs)
	}

	arrivalMs := src.scheduledMs + int64(delayMs)
	if arrivalMs <= src.lastArrivalMs {
		// Queued behind the previous packet.
		arrivalMs = src.lastArrivalMs + 1
	}
	src.lastArrivalMs = arrivalMs
	src.clock.Set(src.start.Add(time.Duration(arrivalMs) * time.Millisecond))

	ev := testutil.PacketEvent{
		ArrivalTime: src.clock.Now(),
		Timestamp:   ts,
		SampleRate:  src.scn.SampleRateHz,
		SSRC:        soakSSRC,
	}

	// Advance the send schedule, inserting silence when a spurt ends.
	src.scheduledMs += int64(src.scn.PacketIntervalMs)
	if src.scn.Talkspurt.Enabled {
		src.spurtLeftMs -= src.scn.PacketIntervalMs
		if src.spurtLeftMs <= 0 {
			src.spurtLeftMs = src.scn.Talkspurt.SpurtMs
			src.scheduledMs += int64(src.scn.Talkspurt.GapMs)
			src.advanceTimestamp(uint32(src.scn.Talkspurt.GapMs * src.ticksPerMs))
		}
	}
	return ev
}

// nextTimestamp hands out send timestamps, occasionally swapping a packet
// with its successor so the receiver sees out-of-order arrivals.
func (src *trafficSource) nextTimestamp() uint32 {
	if src.hasHeld {
		src.hasHeld = false
		return src.heldTimestamp
	}
	ts := src.timestamp
	src.advanceTimestamp(src.packetTicks())
	if src.scn.ReorderProbability > 0 && src.rng.Float64() < src.scn.ReorderProbability {
		// Deliver the successor first; this packet follows one slot late.
		src.heldTimestamp = ts
		src.hasHeld = true
		ts = src.timestamp
		src.advanceTimestamp(src.packetTicks())
	}
	return ts
}

func (src *trafficSource) packetTicks() uint32 {
	return uint32(src.scn.PacketIntervalMs * src.ticksPerMs)
}

func (src *trafficSource) advanceTimestamp(ticks uint32) {
	next := src.timestamp + ticks
	if next < src.timestamp {
		src.wraparounds++
	}
	src.timestamp = next
}

func printSummary(result SoakResult) {
	fmt.Printf("\n")
	fmt.Printf("Soak Run Complete\n")
	fmt.Printf("=================\n")
	fmt.Printf("Simulated stream:  %v\n", result.SimulatedDuration.Round(time.Second))
	fmt.Printf("Wall time:         %v\n", result.WallDuration.Round(time.Millisecond))
	fmt.Printf("Total packets:     %d\n", result.TotalPackets)
	fmt.Printf("Final target:      %d ms\n", result.FinalTargetMs)
	fmt.Printf("Peak target:       %d ms\n", result.PeakTargetMs)
	fmt.Printf("Peak HeapAlloc:    %.2f MB\n", result.PeakHeapMB)
	fmt.Printf("Total GC cycles:   %d\n", result.TotalGCCycles)
	fmt.Printf("Wraparounds:       %d\n", result.WraparoundCount)
	fmt.Printf("Suspicious events: %d\n", result.SuspiciousEvents)
	fmt.Printf("Status:            %s\n", result.Status)
	fmt.Printf("\n")

	// Pass criteria
	fmt.Printf("Pass Criteria:\n")
	fmt.Printf("  - No panics:               %s\n", checkMark(true))
	fmt.Printf("  - Final target positive:   %s\n", checkMark(result.FinalTargetMs > 0))
	fmt.Printf("  - Peak memory < %d MB:    %s\n", maxHeapMB, checkMark(result.PeakHeapMB < maxHeapMB))
	fmt.Printf("  - No invariant violations: %s\n", checkMark(result.SuspiciousEvents == 0))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
