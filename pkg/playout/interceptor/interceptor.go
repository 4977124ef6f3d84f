// Package interceptor provides a Pion WebRTC interceptor that computes
// adaptive playout delay targets for received audio streams.
package interceptor

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/rtcp"

	"github.com/thesyncim/playout/pkg/playout"
	"github.com/thesyncim/playout/pkg/playout/internal"
)

const (
	// defaultStreamTimeout is how long to keep tracking an idle stream.
	// Audio streams pause legitimately during DTX silence, so the timeout
	// is generous. Streams with no packets for this duration are removed.
	defaultStreamTimeout = 10 * time.Second

	// Plausible packet durations when learning from timestamp deltas.
	// Opus frames run from 10 ms to 120 ms.
	minLearnablePacketMs = 10
	maxLearnablePacketMs = 120
)

// PlayoutDelayInterceptor is a Pion interceptor that estimates the target
// playout delay for each received audio stream. It observes incoming RTP
// packets, feeds their timestamps and arrival times to a per-SSRC
// DelayManager, and applies sender-signaled playout-delay limits.
//
// Usage:
//
//	i := NewPlayoutDelayInterceptor(playout.DefaultDelayManagerConfig())
//	// Add to interceptor registry...
//	target, ok := i.TargetDelay(ssrc)
type PlayoutDelayInterceptor struct {
	interceptor.NoOp // Embed for interface compliance

	config  playout.DelayManagerConfig
	streams sync.Map // SSRC (uint32) -> *streamState

	// Extension ID (atomic for concurrent access)
	delayExtID atomic.Uint32

	clock         internal.Clock
	packetLenMs   int
	streamTimeout time.Duration
	onTargetDelay func(ssrc uint32, targetDelayMs int)
	log           logging.LeveledLogger

	// Lifecycle
	closed    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once // Ensures cleanup loop starts only once
}

// StreamSnapshot is a point-in-time view of one tracked stream.
type StreamSnapshot struct {
	SSRC          uint32
	TargetDelayMs int
	MaxDelayMs    int // windowed max relative arrival delay
	MeanDelayMs   int // windowed mean relative arrival delay
	Packets       int // samples in the stats window
}

// InterceptorOption is a functional option for configuring PlayoutDelayInterceptor.
type InterceptorOption func(*PlayoutDelayInterceptor)

// WithClock sets the time source. Intended for deterministic tests;
// the default is the monotonic wall clock.
func WithClock(clock internal.Clock) InterceptorOption {
	return func(i *PlayoutDelayInterceptor) {
		i.clock = clock
	}
}

// WithOnTargetDelay sets a callback that is invoked when a stream's target
// delay is worth delivering downstream (rate limited per stream).
// The callback must not block; it runs on the RTP read path.
func WithOnTargetDelay(fn func(ssrc uint32, targetDelayMs int)) InterceptorOption {
	return func(i *PlayoutDelayInterceptor) {
		i.onTargetDelay = fn
	}
}

// WithStreamTimeout sets how long an idle stream is kept before cleanup.
// Default is 10 seconds.
func WithStreamTimeout(d time.Duration) InterceptorOption {
	return func(i *PlayoutDelayInterceptor) {
		i.streamTimeout = d
	}
}

// WithPacketAudioLength fixes the packet duration in milliseconds.
// When unset, the duration is learned from in-order timestamp deltas.
func WithPacketAudioLength(lengthMs int) InterceptorOption {
	return func(i *PlayoutDelayInterceptor) {
		i.packetLenMs = lengthMs
	}
}

// WithLoggerFactory sets the logger factory used for the
// "playout_interceptor" scope.
func WithLoggerFactory(f logging.LoggerFactory) InterceptorOption {
	return func(i *PlayoutDelayInterceptor) {
		i.log = f.NewLogger("playout_interceptor")
	}
}

// NewPlayoutDelayInterceptor creates a new playout delay interceptor.
//
// The config parameter configures the per-stream DelayManager built for
// each remote audio SSRC.
//
// Options can be provided to customize behavior:
//   - WithPacketAudioLength: fix the packet duration (default: learned)
//   - WithStreamTimeout: idle stream cleanup threshold (default 10s)
//   - WithOnTargetDelay: target delay delivery callback
func NewPlayoutDelayInterceptor(config playout.DelayManagerConfig, opts ...InterceptorOption) *PlayoutDelayInterceptor {
	i := &PlayoutDelayInterceptor{
		config:        config,
		clock:         internal.MonotonicClock{},
		streamTimeout: defaultStreamTimeout,
		closed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.log == nil {
		i.log = logging.NewDefaultLoggerFactory().NewLogger("playout_interceptor")
	}
	return i
}

// Close shuts down the interceptor and releases resources.
func (i *PlayoutDelayInterceptor) Close() error {
	close(i.closed)
	i.wg.Wait()
	return nil
}

// BindRemoteStream is called by Pion when a new remote stream is detected.
// It sets up per-stream delay tracking and wraps the reader to observe packets.
// Non-audio streams pass through untouched.
func (i *PlayoutDelayInterceptor) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	if !isAudio(info.MimeType) || info.ClockRate == 0 {
		return reader // Only audio streams feed a playout buffer
	}

	// Start cleanup loop on first stream (only once)
	i.startOnce.Do(func() {
		i.wg.Add(1)
		go i.cleanupLoop()
	})

	// Extract the playout-delay extension ID (first stream to provide it wins)
	if delayID := FindPlayoutDelayID(info.RTPHeaderExtensions); delayID != 0 {
		i.delayExtID.CompareAndSwap(0, uint32(delayID))
	}

	m, err := playout.NewDelayManager(i.config, nil, i.clock)
	if err != nil {
		i.log.Errorf("failed to create delay manager for stream %d: %v", info.SSRC, err)
		return reader
	}

	// Track stream
	state := newStreamState(info.SSRC, int(info.ClockRate), m, i.clock.Now())
	if i.packetLenMs > 0 {
		if err := m.SetPacketAudioLength(i.packetLenMs); err == nil {
			state.packetLenMs = i.packetLenMs
		}
	} else {
		state.learnPacketLen = true
	}
	i.streams.Store(info.SSRC, state)
	i.log.Infof("tracking stream %d (%s, %d Hz)", info.SSRC, info.MimeType, info.ClockRate)

	// Return observing reader
	return interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, a, err := reader.Read(b, a)
		if err == nil && n > 0 {
			i.processRTP(b[:n], info.SSRC)
		}
		return n, a, err
	})
}

// UnbindRemoteStream is called by Pion when a remote stream is removed.
func (i *PlayoutDelayInterceptor) UnbindRemoteStream(info *interceptor.StreamInfo) {
	if _, ok := i.streams.LoadAndDelete(info.SSRC); ok {
		i.log.Infof("stream %d unbound", info.SSRC)
	}
}

// BindRTCPReader is called by Pion when the RTCP reader is ready.
// It wraps the reader to observe BYE packets, which mark a stream restart.
func (i *PlayoutDelayInterceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, a, err := reader.Read(b, a)
		if err == nil && n > 0 {
			i.processRTCP(b[:n])
		}
		return n, a, err
	})
}

// TargetDelay returns the current target playout delay for a tracked stream.
// The second return value reports whether the SSRC is tracked.
func (i *PlayoutDelayInterceptor) TargetDelay(ssrc uint32) (int, bool) {
	value, ok := i.streams.Load(ssrc)
	if !ok {
		return 0, false
	}
	state := value.(*streamState)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.manager.TargetDelayMs(), true
}

// Snapshot returns a point-in-time view of every tracked stream,
// ordered by SSRC.
func (i *PlayoutDelayInterceptor) Snapshot() []StreamSnapshot {
	now := i.clock.Now()
	var snaps []StreamSnapshot
	i.streams.Range(func(_, value any) bool {
		state := value.(*streamState)
		state.mu.Lock()
		snap := StreamSnapshot{
			SSRC:          state.SSRC(),
			TargetDelayMs: state.manager.TargetDelayMs(),
			Packets:       state.stats.Count(now),
		}
		if maxDelay, ok := state.stats.Max(now); ok {
			snap.MaxDelayMs = maxDelay
		}
		if meanDelay, ok := state.stats.Mean(now); ok {
			snap.MeanDelayMs = meanDelay
		}
		state.mu.Unlock()
		snaps = append(snaps, snap)
		return true
	})
	sort.Slice(snaps, func(a, b int) bool { return snaps[a].SSRC < snaps[b].SSRC })
	return snaps
}

// processRTP parses an RTP packet and feeds it to the stream's delay manager.
func (i *PlayoutDelayInterceptor) processRTP(raw []byte, ssrc uint32) {
	value, ok := i.streams.Load(ssrc)
	if !ok {
		return
	}
	state := value.(*streamState)

	header := getHeader()
	defer putHeader(header)
	if _, err := header.Unmarshal(raw); err != nil {
		return // Invalid RTP, skip
	}

	now := i.clock.Now()
	state.UpdateLastPacket(now)

	// Decode the sender's playout-delay hint if the packet carries one.
	var hint PlayoutDelayExtension
	hasHint := false
	if delayID := uint8(i.delayExtID.Load()); delayID != 0 {
		if extData := header.GetExtension(delayID); len(extData) >= playoutDelayExtensionSize {
			hasHint = hint.Unmarshal(extData) == nil
		}
	}

	state.mu.Lock()
	i.learnPacketLength(state, header.Timestamp)

	if delay, ok := state.manager.Update(header.Timestamp, state.clockRate, false); ok {
		state.stats.Update(delay, now)
	}
	if hasHint {
		i.applyDelayHint(state, hint)
	}
	target := state.manager.TargetDelayMs()
	notify := i.onTargetDelay != nil && state.notifier.MaybeNotify(target, now)
	state.mu.Unlock()

	if notify {
		i.onTargetDelay(ssrc, target)
	}
}

// learnPacketLength infers the packet duration from in-order timestamp
// deltas when no explicit length was configured: for back-to-back packets
// of a talkspurt the timestamp advance equals the audio length of the
// previous packet. Gaps and reordered packets fall outside the plausible
// range and are ignored. Caller holds state.mu.
func (i *PlayoutDelayInterceptor) learnPacketLength(state *streamState, timestamp uint32) {
	if !state.learnPacketLen {
		return
	}
	if state.hasLastTimestamp && playout.IsNewerTimestamp(timestamp, state.lastTimestamp) {
		lengthMs := playout.TimestampDeltaMs(state.lastTimestamp, timestamp, state.clockRate)
		if lengthMs >= minLearnablePacketMs && lengthMs <= maxLearnablePacketMs && lengthMs != state.packetLenMs {
			if err := state.manager.SetPacketAudioLength(lengthMs); err == nil {
				state.packetLenMs = lengthMs
				i.log.Tracef("stream %d packet length %d ms", state.ssrc, lengthMs)
			}
		}
	}
	if !state.hasLastTimestamp || playout.IsNewerTimestamp(timestamp, state.lastTimestamp) {
		state.lastTimestamp = timestamp
		state.hasLastTimestamp = true
	}
}

// applyDelayHint applies a sender playout-delay hint to the stream's
// bounds. Invalid values are logged and ignored; a sender hint must not
// wedge the receiver. The hint is cached only once both bounds applied,
// so a hint rejected against stale bounds is retried on the next packet.
// Caller holds state.mu.
func (i *PlayoutDelayInterceptor) applyDelayHint(state *streamState, hint PlayoutDelayExtension) {
	if hint.MinDelayMs == state.lastHintMinMs && hint.MaxDelayMs == state.lastHintMaxMs {
		return
	}

	minErr := state.manager.SetMinimumDelay(hint.MinDelayMs)
	if minErr != nil {
		i.log.Debugf("stream %d: ignoring min delay hint %d ms: %v", state.ssrc, hint.MinDelayMs, minErr)
	}
	maxErr := state.manager.SetMaximumDelay(hint.MaxDelayMs)
	if maxErr != nil {
		i.log.Debugf("stream %d: ignoring max delay hint %d ms: %v", state.ssrc, hint.MaxDelayMs, maxErr)
	}
	if minErr == nil && maxErr == nil {
		state.lastHintMinMs = hint.MinDelayMs
		state.lastHintMaxMs = hint.MaxDelayMs
	}
}

// processRTCP scans incoming RTCP for BYE packets and resets the delay
// tracking of any stream that said goodbye. A source that restarts after
// a BYE starts a fresh timestamp base, so stale history must not be
// carried across.
func (i *PlayoutDelayInterceptor) processRTCP(raw []byte) {
	pkts, err := rtcp.Unmarshal(raw)
	if err != nil {
		return // Invalid RTCP, skip
	}
	for _, pkt := range pkts {
		bye, ok := pkt.(*rtcp.Goodbye)
		if !ok {
			continue
		}
		for _, ssrc := range bye.Sources {
			if value, ok := i.streams.Load(ssrc); ok {
				value.(*streamState).reset()
				i.log.Debugf("stream %d sent BYE, delay tracking reset", ssrc)
			}
		}
	}
}

// cleanupLoop runs periodically to remove inactive streams.
// It checks every second and removes streams that haven't received
// packets for longer than the configured stream timeout.
func (i *PlayoutDelayInterceptor) cleanupLoop() {
	defer i.wg.Done()

	ticker := time.NewTicker(time.Second) // Check every second
	defer ticker.Stop()

	for {
		select {
		case <-i.closed:
			return
		case <-ticker.C:
			i.cleanupInactiveStreams(i.clock.Now())
		}
	}
}

// cleanupInactiveStreams removes streams that haven't received packets
// for longer than the stream timeout. Uses sync.Map.Range for thread-safe iteration.
func (i *PlayoutDelayInterceptor) cleanupInactiveStreams(now time.Time) {
	i.streams.Range(func(key, value any) bool {
		state := value.(*streamState)
		if now.Sub(state.LastPacket()) > i.streamTimeout {
			i.streams.Delete(key)
			i.log.Infof("stream %d idle, dropped from tracking", state.SSRC())
		}
		return true // Continue iteration
	})
}

// isAudio reports whether a MIME type describes an audio stream. An empty
// MIME type is accepted; some callers bind synthetic streams without one.
func isAudio(mimeType string) bool {
	return mimeType == "" || strings.HasPrefix(strings.ToLower(mimeType), "audio/")
}
