package devtools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-strait/strait/pkg/runloop"
	"github.com/go-strait/strait/pkg/timing"
)

// nullDispatcher and nullFrameDriver satisfy the timing module's
// dependencies for tests that only inspect it.
type nullDispatcher struct{}

func (nullDispatcher) CallTimers(ids []int64)                {}
func (nullDispatcher) CallIdleCallbacks(frameStartMS float64) {}

type nullFrameDriver struct{}

func (nullFrameDriver) SetPaused(paused bool) {}

func newTestLoop(t *testing.T) *runloop.Loop {
	t.Helper()
	loop := runloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop
}

// onLoop runs fn on the loop goroutine and waits for it.
func onLoop(t *testing.T, loop *runloop.Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	loop.Dispatch(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never serviced the task")
	}
}

func newTestTiming(t *testing.T, loop *runloop.Loop) *timing.Module {
	t.Helper()
	return timing.NewModule(loop.Clock(), loop.Dispatch, nullDispatcher{}, nullFrameDriver{})
}

func TestHealthEndpoint(t *testing.T) {
	loop := newTestLoop(t)
	s := NewServer(Options{Loop: loop})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %s", body)
	}

	post, err := http.Post(srv.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /health error: %v", err)
	}
	defer post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", post.StatusCode)
	}
}

func TestTimersEndpoint(t *testing.T) {
	loop := newTestLoop(t)
	m := newTestTiming(t, loop)
	s := NewServer(Options{Loop: loop, Timing: m})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	var err1, err2 error
	onLoop(t, loop, func() {
		now := runloop.EpochMillis(loop.Clock().Now())
		_, err1 = m.Invoke("createTimer", []any{1, 60000.0, now, false})
		_, err2 = m.Invoke("createTimer", []any{2, 120000.0, now, true})
	})
	if err1 != nil || err2 != nil {
		t.Fatalf("createTimer errors: %v, %v", err1, err2)
	}

	resp, err := http.Get(srv.URL + "/timers")
	if err != nil {
		t.Fatalf("GET /timers error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Count          int  `json:"count"`
		SendIdleEvents bool `json:"sendIdleEvents"`
		Timers         []struct {
			ID      int64 `json:"id"`
			Repeats bool  `json:"repeats"`
		} `json:"timers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Count != 2 || len(payload.Timers) != 2 {
		t.Fatalf("count = %d, timers = %d, want 2 each", payload.Count, len(payload.Timers))
	}
	if payload.Timers[0].ID != 1 || payload.Timers[1].ID != 2 {
		t.Errorf("timer order = %d, %d, want soonest first", payload.Timers[0].ID, payload.Timers[1].ID)
	}
	if payload.Timers[0].Repeats || !payload.Timers[1].Repeats {
		t.Errorf("repeats flags = %v, %v", payload.Timers[0].Repeats, payload.Timers[1].Repeats)
	}
	if payload.SendIdleEvents {
		t.Error("sendIdleEvents = true, want false by default")
	}
}

func TestTimersEndpointDisabled(t *testing.T) {
	loop := newTestLoop(t)
	s := NewServer(Options{Loop: loop})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/timers")
	if err != nil {
		t.Fatalf("GET /timers error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a timing module", resp.StatusCode)
	}
}

func TestTimersUnavailableAfterLoopStops(t *testing.T) {
	loop := runloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	m := newTestTiming(t, loop)
	s := NewServer(Options{Loop: loop, Timing: m})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	cancel()
	<-loop.Done()

	resp, err := http.Get(srv.URL + "/timers")
	if err != nil {
		t.Fatalf("GET /timers error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 once the loop stopped", resp.StatusCode)
	}
}

func TestFramesEndpoint(t *testing.T) {
	loop := newTestLoop(t)
	loop.Timings().Add(16 * time.Millisecond)
	loop.Timings().Add(33 * time.Millisecond)
	loop.Timings().Add(40 * time.Millisecond)

	s := NewServer(Options{Loop: loop})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	fetch := func(query string) framesResponse {
		t.Helper()
		resp, err := http.Get(srv.URL + "/frames" + query)
		if err != nil {
			t.Fatalf("GET /frames%s error: %v", query, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var payload framesResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		return payload
	}

	all := fetch("")
	if all.TargetMs < 16 || all.TargetMs > 17 {
		t.Errorf("targetMs = %v, want ~16.7", all.TargetMs)
	}
	if len(all.Samples) != 3 || all.Samples[0] != 16 || all.Samples[2] != 40 {
		t.Errorf("samples = %v, want [16 33 40]", all.Samples)
	}

	slow := fetch("?min_ms=20")
	if len(slow.Samples) != 2 {
		t.Errorf("min_ms=20 samples = %v, want 2 entries", slow.Samples)
	}

	last := fetch("?min_ms=20&limit=1")
	if len(last.Samples) != 1 || last.Samples[0] != 40 {
		t.Errorf("limited samples = %v, want [40]", last.Samples)
	}
}

func TestStartStop(t *testing.T) {
	loop := newTestLoop(t)
	s := NewServer(Options{Loop: loop, Addr: "127.0.0.1:0"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	addr := s.Addr()
	if addr == "" {
		t.Fatal("Addr() empty after Start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	s.Stop()
	if _, err := http.Get("http://" + addr + "/health"); err == nil {
		t.Error("server still serving after Stop")
	}
}
