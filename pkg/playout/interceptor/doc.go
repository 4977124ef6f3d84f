// Package interceptor provides a Pion WebRTC interceptor that computes
// adaptive playout delay targets for received audio streams.
//
// The interceptor observes incoming RTP packets, feeds their timestamps and
// arrival times to a per-SSRC delay manager, honors sender playout-delay
// header extension hints, and exposes the resulting target delays to the
// application's playout buffer.
//
// # Quick Start
//
// Register the interceptor factory with your Pion WebRTC API:
//
//	import (
//	    "github.com/pion/interceptor"
//	    "github.com/pion/webrtc/v4"
//	    playoutint "github.com/thesyncim/playout/pkg/playout/interceptor"
//	)
//
//	func setupPeerConnection() (*webrtc.PeerConnection, error) {
//	    // Create media engine with the playout-delay extension
//	    m := &webrtc.MediaEngine{}
//	    if err := m.RegisterDefaultCodecs(); err != nil {
//	        return nil, err
//	    }
//	    if err := m.RegisterHeaderExtension(
//	        webrtc.RTPHeaderExtensionCapability{URI: playoutint.PlayoutDelayURI},
//	        webrtc.RTPCodecTypeAudio,
//	    ); err != nil {
//	        return nil, err
//	    }
//
//	    // Create interceptor registry
//	    i := &interceptor.Registry{}
//
//	    // Register playout delay interceptor
//	    factory, err := playoutint.NewPlayoutDelayInterceptorFactory()
//	    if err != nil {
//	        return nil, err
//	    }
//	    i.Add(factory)
//
//	    // Create API
//	    api := webrtc.NewAPI(
//	        webrtc.WithMediaEngine(m),
//	        webrtc.WithInterceptorRegistry(i),
//	    )
//
//	    return api.NewPeerConnection(webrtc.Configuration{})
//	}
//
// # Configuration
//
// The factory accepts options to customize behavior:
//
//	factory, err := playoutint.NewPlayoutDelayInterceptorFactory(
//	    playoutint.WithBaseMinimumDelay(40),          // Never aim below 40 ms
//	    playoutint.WithFactoryPacketAudioLength(20),  // 20 ms Opus frames
//	    playoutint.WithFactoryOnTargetDelay(func(ssrc uint32, targetMs int) {
//	        // Feed the playout buffer
//	    }),
//	)
//
// # How It Works
//
// 1. When a remote audio stream is bound (BindRemoteStream), the interceptor
// creates a DelayManager for the SSRC using the stream's clock rate, and
// resolves the playout-delay extension ID from the SDP negotiation.
//
// 2. For each incoming RTP packet, the interceptor measures the deviation
// between actual and expected inter-arrival time and updates the stream's
// target delay. Sender playout-delay hints carried in the packet are applied
// as minimum/maximum delay bounds.
//
// 3. Target delay changes are delivered through the OnTargetDelay callback,
// rate limited per stream so downstream consumers are not poked on every
// packet.
//
// 4. Streams idle for longer than the stream timeout (default 10 seconds)
// are automatically cleaned up. An RTCP BYE resets the stream's tracking so
// a restarted source begins from a fresh state.
//
// # Requirements
//
// The delay estimation itself only needs RTP timestamps and arrival times,
// which every stream has. Sender delay hints additionally require the
// playout-delay header extension to be negotiated; without it the hints are
// simply never seen.
package interceptor
