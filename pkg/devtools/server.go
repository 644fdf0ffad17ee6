// Package devtools serves runtime introspection over HTTP: a health
// check, live timer snapshots, recent frame timings, and a WebSocket
// stream of periodic runtime snapshots. The server is optional; hosts
// start one only when given a listen address.
//
// Handlers never touch loop-owned state directly. Snapshot reads are
// marshalled onto the run loop and awaited, so inspection cannot race
// the scheduler.
package devtools

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/errors"
	"github.com/go-strait/strait/pkg/runloop"
	"github.com/go-strait/strait/pkg/timing"
)

// snapshotTimeout bounds how long a handler waits for the run loop to
// service a snapshot read.
const snapshotTimeout = time.Second

// Options configures a Server.
type Options struct {
	// Addr is the TCP listen address, for example "127.0.0.1:9229".
	// ":0" binds an ephemeral port; Addr reports the chosen one.
	Addr string

	// Loop is the run loop owning the inspected state. Required.
	Loop *runloop.Loop

	// Timing enables the /timers endpoint and the timer section of
	// stream snapshots. Optional.
	Timing *timing.Module

	// Bridge, when set, adds the outbound call backlog to stream
	// snapshots. Optional.
	Bridge *bridge.Bridge

	// StreamInterval is the cadence of /events snapshots. Defaults to
	// one second.
	StreamInterval time.Duration
}

// Server exposes the introspection endpoints.
type Server struct {
	opts Options

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	closed    chan struct{}
	closeOnce sync.Once
}

// NewServer creates a Server. Start binds and serves; Handler exposes
// the routes for embedding into another mux.
func NewServer(opts Options) *Server {
	if opts.Loop == nil {
		panic("strait: devtools requires a run loop")
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}
	return &Server{
		opts:   opts,
		closed: make(chan struct{}),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/timers", s.handleTimers)
	mux.HandleFunc("/frames", s.handleFrames)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Start binds the listener and serves in the background. It returns
// once the port is bound, so Addr is valid immediately after.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	// Bind first to fail fast on port conflicts.
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("devtools listen: %w", err)
	}

	server := &http.Server{Handler: s.Handler()}
	s.server = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errors.Report(&errors.StraitError{
				Op:  "devtools.Serve",
				Err: err,
			})
		}
	}()
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully and ends active event
// streams. Idempotent.
func (s *Server) Stop() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})

	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// timersResponse is the /timers payload.
type timersResponse struct {
	Count          int               `json:"count"`
	SendIdleEvents bool              `json:"sendIdleEvents"`
	Timers         []timing.Snapshot `json:"timers"`
}

// handleTimers returns the live timer registry as JSON.
func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m := s.opts.Timing
	if m == nil {
		http.Error(w, "timer inspection disabled", http.StatusServiceUnavailable)
		return
	}

	var resp timersResponse
	if !s.readOnLoop(func() {
		resp.Count = m.TimerCount()
		resp.SendIdleEvents = m.SendIdleEvents()
		resp.Timers = m.Timers()
	}) {
		http.Error(w, "run loop unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, resp)
}

// framesResponse is the /frames payload. Intervals are reported in
// milliseconds to match the script-side clock units.
type framesResponse struct {
	TargetMs float64   `json:"targetMs"`
	Samples  []float64 `json:"samples"`
}

// handleFrames returns recent frame intervals as JSON.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	samples := s.opts.Loop.Timings().Samples()
	ms := make([]float64, len(samples))
	for i, d := range samples {
		ms[i] = float64(d) / float64(time.Millisecond)
	}
	ms = applyFrameFilters(r, ms)

	writeJSON(w, framesResponse{
		TargetMs: float64(s.opts.Loop.FrameInterval()) / float64(time.Millisecond),
		Samples:  ms,
	})
}

// applyFrameFilters narrows samples by the min_ms and limit query
// parameters.
func applyFrameFilters(r *http.Request, samples []float64) []float64 {
	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filtered := make([]float64, 0, len(samples))
		for _, sample := range samples {
			if sample >= v {
				filtered = append(filtered, sample)
			}
		}
		samples = filtered
	}

	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}

// writeJSON encodes through the bridge codec, buffering first so
// encoding errors can still become an HTTP error. Payloads carry the
// same value shapes the codec moves across the script boundary.
func writeJSON(w http.ResponseWriter, v any) {
	data, err := bridge.DefaultCodec.Encode(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// readOnLoop runs fn on the loop goroutine and waits for it. It
// returns false when the loop is not servicing tasks.
func (s *Server) readOnLoop(fn func()) bool {
	done := make(chan struct{})
	s.opts.Loop.Dispatch(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return true
	case <-s.opts.Loop.Done():
		return false
	case <-time.After(snapshotTimeout):
		return false
	}
}
