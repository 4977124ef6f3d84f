// Package server provides the importable HTTP server backing the audio
// interop tool. End-to-end tests start and stop it programmatically
// instead of running main().
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8080" or ":0" for a random port)
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout
}

// DefaultConfig returns a configuration suitable for testing. It binds to
// a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:         ":0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// TargetReport is one stream's current target delay as served by the
// /targets endpoint.
type TargetReport struct {
	SSRC          uint32 `json:"ssrc"`
	TargetDelayMs int    `json:"target_delay_ms"`
}

// Server serves the interop page and answers WebRTC offers with an
// audio endpoint that runs the playout delay interceptor.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	mu         sync.Mutex
	running    bool

	targetMu sync.Mutex
	targets  map[uint32]int
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	s := &Server{
		targets: make(map[uint32]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/offer", s.handleOffer)
	mux.HandleFunc("/targets", s.handleTargets)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// handleIndex serves the interop page.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexHTML))
}

// recordTarget stores the latest target delay published for a stream.
func (s *Server) recordTarget(ssrc uint32, targetMs int) {
	s.targetMu.Lock()
	defer s.targetMu.Unlock()
	s.targets[ssrc] = targetMs
}

// handleTargets reports the latest target delay per stream as JSON. The
// interop page polls it for display and the end-to-end tests assert on it.
func (s *Server) handleTargets(w http.ResponseWriter, _ *http.Request) {
	s.targetMu.Lock()
	reports := make([]TargetReport, 0, len(s.targets))
	for ssrc, targetMs := range s.targets {
		reports = append(reports, TargetReport{SSRC: ssrc, TargetDelayMs: targetMs})
	}
	s.targetMu.Unlock()

	sort.Slice(reports, func(i, j int) bool { return reports[i].SSRC < reports[j].SSRC })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}

// Start begins listening and serving HTTP requests. It returns the actual
// address the server is listening on, which matters when the configured
// port is 0. Start is non-blocking; the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		// Serve returns ErrServerClosed after Shutdown; other errors show
		// up as failing requests on the caller's side.
		_ = s.httpServer.Serve(ln)
	}()

	return s.addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is listening on, or an empty string
// if the server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
