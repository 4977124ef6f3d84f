// Audio interop test server.
//
// This server creates a Pion WebRTC endpoint that receives audio from a
// browser and computes target playout delays for it. Use this to verify
// the playout-delay extension is negotiated with Chrome and the target
// delay tracks real microphone traffic.
package main

import (
	"fmt"
	"log"

	"github.com/thesyncim/playout/cmd/audio-interop/server"
)

func main() {
	// Print welcome message
	fmt.Println(`
Playout Delay Interop Server
============================
1. Open chrome://webrtc-internals in Chrome
2. Open http://localhost:8080 in another tab
3. Click "Start Call" and allow microphone access
4. Watch the server console for target playout delay updates

Server ready on :8080`)

	// Create server with fixed port for CLI use
	cfg := server.Config{Addr: ":8080"}
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Start server
	addr, err := srv.Start()
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Printf("Listening on %s", addr)

	// Block forever
	select {}
}
