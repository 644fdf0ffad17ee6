package devtools

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cws "github.com/coder/websocket"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/runloop"
)

// streamMessage mirrors the /events payload for decoding.
type streamMessage struct {
	TimestampMs float64 `json:"timestampMs"`
	Timers      *struct {
		Count          int  `json:"count"`
		SendIdleEvents bool `json:"sendIdleEvents"`
	} `json:"timers"`
	Frames struct {
		Count     int     `json:"count"`
		LastMs    float64 `json:"lastMs"`
		AverageMs float64 `json:"averageMs"`
	} `json:"frames"`
	PendingCalls int `json:"pendingCalls"`
}

func dialEvents(t *testing.T, ctx context.Context, srvURL string) *cws.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/events"
	conn, _, err := cws.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	return conn
}

func TestEventStreamSnapshots(t *testing.T) {
	loop := newTestLoop(t)
	loop.Timings().Add(16 * time.Millisecond)
	loop.Timings().Add(17 * time.Millisecond)

	m := newTestTiming(t, loop)
	var createErr error
	onLoop(t, loop, func() {
		now := runloop.EpochMillis(loop.Clock().Now())
		_, createErr = m.Invoke("createTimer", []any{7, 60000.0, now, false})
	})
	if createErr != nil {
		t.Fatalf("createTimer error: %v", createErr)
	}

	b := bridge.New(loop.Dispatch)
	s := NewServer(Options{
		Loop:           loop,
		Timing:         m,
		Bridge:         b,
		StreamInterval: 10 * time.Millisecond,
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialEvents(t, ctx, srv.URL)
	defer conn.Close(cws.StatusNormalClosure, "")

	for i := 0; i < 2; i++ {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %d failed: %v", i, err)
		}
		if msg.TimestampMs <= 0 {
			t.Errorf("timestampMs = %v, want positive", msg.TimestampMs)
		}
		if msg.Timers == nil || msg.Timers.Count != 1 {
			t.Errorf("timers = %+v, want count 1", msg.Timers)
		}
		if msg.Frames.Count != 2 || msg.Frames.LastMs != 17 {
			t.Errorf("frames = %+v, want count 2 lastMs 17", msg.Frames)
		}
		if msg.Frames.AverageMs < 16 || msg.Frames.AverageMs > 17 {
			t.Errorf("averageMs = %v, want between 16 and 17", msg.Frames.AverageMs)
		}
		if msg.PendingCalls != 0 {
			t.Errorf("pendingCalls = %d, want 0", msg.PendingCalls)
		}
	}
}

func TestEventStreamOmitsTimersWithoutModule(t *testing.T) {
	loop := newTestLoop(t)
	s := NewServer(Options{Loop: loop, StreamInterval: 10 * time.Millisecond})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialEvents(t, ctx, srv.URL)
	defer conn.Close(cws.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.Timers != nil {
		t.Errorf("timers = %+v, want omitted without a timing module", msg.Timers)
	}
}

func TestEventStreamEndsOnServerStop(t *testing.T) {
	loop := newTestLoop(t)
	s := NewServer(Options{Loop: loop, StreamInterval: 10 * time.Millisecond})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialEvents(t, ctx, srv.URL)

	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("first read failed: %v", err)
	}

	s.Stop()

	for {
		_, _, err := conn.Read(ctx)
		if err == nil {
			continue
		}
		if status := cws.CloseStatus(err); status != cws.StatusGoingAway {
			t.Errorf("close status = %v, want StatusGoingAway", status)
		}
		return
	}
}
