package devtools

import (
	"net/http"
	"time"

	cws "github.com/coder/websocket"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/runloop"
)

// streamSnapshot is one /events message.
type streamSnapshot struct {
	TimestampMs  float64     `json:"timestampMs"`
	Timers       *timerStats `json:"timers,omitempty"`
	Frames       frameStats  `json:"frames"`
	PendingCalls int         `json:"pendingCalls"`
}

type timerStats struct {
	Count          int  `json:"count"`
	SendIdleEvents bool `json:"sendIdleEvents"`
}

type frameStats struct {
	Count     int     `json:"count"`
	LastMs    float64 `json:"lastMs"`
	AverageMs float64 `json:"averageMs"`
}

// handleEvents upgrades the request to a WebSocket and streams one
// snapshot per interval until the client disconnects or the server
// stops.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		return
	}
	// The stream is write-only; CloseRead keeps control frames
	// serviced and cancels the context when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.opts.StreamInterval)
	defer ticker.Stop()

	for {
		snap, ok := s.snapshot()
		if !ok {
			conn.Close(cws.StatusGoingAway, "run loop stopped")
			return
		}
		data, err := bridge.DefaultCodec.Encode(snap)
		if err != nil {
			conn.Close(cws.StatusInternalError, "snapshot encode failed")
			return
		}
		if err := conn.Write(ctx, cws.MessageText, data); err != nil {
			conn.Close(cws.StatusNormalClosure, "")
			return
		}

		select {
		case <-ctx.Done():
			conn.Close(cws.StatusNormalClosure, "")
			return
		case <-s.closed:
			conn.Close(cws.StatusGoingAway, "server stopped")
			return
		case <-ticker.C:
		}
	}
}

// snapshot assembles one stream message, reading loop-owned state on
// the loop goroutine.
func (s *Server) snapshot() (streamSnapshot, bool) {
	snap := streamSnapshot{
		TimestampMs: runloop.EpochMillis(s.opts.Loop.Clock().Now()),
	}

	samples := s.opts.Loop.Timings().Samples()
	snap.Frames.Count = len(samples)
	if len(samples) > 0 {
		var total time.Duration
		for _, d := range samples {
			total += d
		}
		snap.Frames.LastMs = float64(samples[len(samples)-1]) / float64(time.Millisecond)
		snap.Frames.AverageMs = float64(total) / float64(len(samples)) / float64(time.Millisecond)
	}

	if s.opts.Bridge != nil {
		snap.PendingCalls = s.opts.Bridge.PendingCalls()
	}

	if m := s.opts.Timing; m != nil {
		stats := &timerStats{}
		if !s.readOnLoop(func() {
			stats.Count = m.TimerCount()
			stats.SendIdleEvents = m.SendIdleEvents()
		}) {
			return snap, false
		}
		snap.Timers = stats
	}
	return snap, true
}
