package interceptor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thesyncim/playout/pkg/playout"
)

// streamState tracks per-stream state for the playout delay interceptor.
//
// Each remote audio SSRC gets its own DelayManager because jitter tracking
// is anchored to the stream's RTP timestamp base; streams cannot share one.
//
// The lastPacketTime uses atomic.Value for thread-safe access because:
// - the BindRemoteStream reader updates it on every incoming packet
// - cleanupLoop reads it periodically to detect inactive streams
// - Both operations happen concurrently without taking mu
//
// Everything else is guarded by mu: the manager is single-threaded by
// contract, and the RTP reader, RTCP reader (BYE resets), and snapshot
// queries all reach it from different goroutines.
type streamState struct {
	ssrc           uint32
	clockRate      int
	lastPacketTime atomic.Value // stores time.Time

	mu       sync.Mutex
	manager  *playout.DelayManager
	stats    *playout.DelayStats
	notifier *playout.TargetDelayNotifier

	// Packet duration learned from in-order timestamp deltas when no
	// explicit length was configured.
	learnPacketLen bool
	packetLenMs    int

	// Anchor for packet length learning, advanced on in-order packets only.
	hasLastTimestamp bool
	lastTimestamp    uint32

	// Last applied sender delay hint, so unchanged hints are not re-applied
	// on every packet. -1 means no hint seen yet.
	lastHintMinMs int
	lastHintMaxMs int
}

// newStreamState creates a new stream state for the given SSRC.
// The lastPacketTime is initialized to now.
func newStreamState(ssrc uint32, clockRate int, m *playout.DelayManager, now time.Time) *streamState {
	s := &streamState{
		ssrc:          ssrc,
		clockRate:     clockRate,
		manager:       m,
		stats:         playout.NewDelayStats(playout.DefaultDelayStatsConfig()),
		notifier:      playout.NewTargetDelayNotifier(playout.DefaultNotifierConfig()),
		lastHintMinMs: -1,
		lastHintMaxMs: -1,
	}
	s.lastPacketTime.Store(now)
	return s
}

// UpdateLastPacket stores the given time as the last packet arrival time.
// This is called on every incoming RTP packet for this stream.
func (s *streamState) UpdateLastPacket(t time.Time) {
	s.lastPacketTime.Store(t)
}

// LastPacket returns the arrival time of the most recent packet for this stream.
// Used by the cleanup loop to detect inactive streams.
func (s *streamState) LastPacket() time.Time {
	return s.lastPacketTime.Load().(time.Time)
}

// SSRC returns the stream's SSRC identifier.
func (s *streamState) SSRC() uint32 {
	return s.ssrc
}

// reset clears the delay tracking for a stream restart (RTCP BYE).
// Bounds configuration survives, matching DelayManager.Reset. A learned
// packet length is relearned from the restarted stream; a configured one
// is re-applied, since the manager's reset cleared it.
func (s *streamState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manager.Reset()
	s.stats.Reset()
	s.notifier.Reset()
	s.hasLastTimestamp = false
	if s.learnPacketLen {
		s.packetLenMs = 0
	} else if s.packetLenMs > 0 {
		_ = s.manager.SetPacketAudioLength(s.packetLenMs)
	}
}
