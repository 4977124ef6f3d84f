package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	playoutinterceptor "github.com/thesyncim/playout/pkg/playout/interceptor"
)

// handleOffer answers WebRTC offers from the browser. It creates a peer
// connection that receives one audio stream through the playout delay
// interceptor and logs every published target delay.
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse incoming offer
	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		log.Printf("Failed to decode offer: %v", err)
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}

	// Create media engine with default codecs
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		log.Printf("Failed to register codecs: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Register the playout-delay header extension for audio. This must
	// happen before the PeerConnection exists so it ends up in the SDP
	// negotiation; Chrome then marks its audio packets with the extension
	// and the interceptor picks the sender's hints up from there.
	if err := m.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{
		URI: playoutinterceptor.PlayoutDelayURI,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		log.Printf("Failed to register playout-delay extension: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Create interceptor registry
	i := &interceptor.Registry{}

	// Add the playout delay interceptor. The notifier inside it already
	// rate-limits the callback, so every invocation is worth a log line.
	factory, err := playoutinterceptor.NewPlayoutDelayInterceptorFactory(
		playoutinterceptor.WithFactoryOnTargetDelay(func(ssrc uint32, targetMs int) {
			log.Printf("target playout delay: ssrc=%d target=%d ms", ssrc, targetMs)
			s.recordTarget(ssrc, targetMs)
		}),
	)
	if err != nil {
		log.Printf("Failed to create playout delay factory: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	i.Add(factory)

	// Only RTCP reports beyond that. The default interceptor set adds
	// video-oriented feedback (TWCC, NACK) that an audio-only endpoint
	// does not need and that would clutter the logs.
	if err := webrtc.ConfigureRTCPReports(i); err != nil {
		log.Printf("Failed to configure RTCP reports: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Create API with custom media engine and interceptors
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
	)

	peerConnection, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{}, // Local testing
	})
	if err != nil {
		log.Printf("Failed to create peer connection: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Receive audio only
	_, err = peerConnection.AddTransceiverFromKind(
		webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
	)
	if err != nil {
		log.Printf("Failed to add transceiver: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	peerConnection.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Printf("Received audio track: codec=%s, ssrc=%d", track.Codec().MimeType, track.SSRC())

		// Log the negotiated header extensions so a missing playout-delay
		// extmap is easy to spot.
		params := receiver.GetParameters()
		log.Printf("Header extensions for track:")
		for _, ext := range params.HeaderExtensions {
			log.Printf("  - ID=%d, URI=%s", ext.ID, ext.URI)
		}

		// Read packets to keep the stream alive; the interceptor sees
		// every packet on the way through.
		go func() {
			buf := make([]byte, 1500)
			for {
				_, _, err := track.Read(buf)
				if err != nil {
					log.Printf("Track read ended: %v", err)
					return
				}
			}
		}()
	})

	peerConnection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("Connection state: %s", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			peerConnection.Close()
		}
	})

	// Set remote description (the offer from browser)
	if err := peerConnection.SetRemoteDescription(offer); err != nil {
		log.Printf("Failed to set remote description: %v", err)
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}

	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		log.Printf("Failed to create answer: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if err := peerConnection.SetLocalDescription(answer); err != nil {
		log.Printf("Failed to set local description: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Wait for ICE gathering to complete so the answer carries all
	// candidates.
	gatherComplete := webrtc.GatheringCompletePromise(peerConnection)
	<-gatherComplete

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(peerConnection.LocalDescription())

	log.Println("WebRTC connection established, watching target playout delay...")
}
