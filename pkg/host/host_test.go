package host

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/runloop"
	"github.com/go-strait/strait/pkg/timing"
	"github.com/go-strait/strait/pkg/views"
)

// probeModule records bridge invocations from test bundles and lets
// tests await specific methods.
type probeModule struct {
	mu      sync.Mutex
	methods []string
	closed  map[string]bool
	signals map[string]chan struct{}
}

func newProbe(methods ...string) *probeModule {
	p := &probeModule{
		closed:  make(map[string]bool),
		signals: make(map[string]chan struct{}),
	}
	for _, name := range methods {
		p.signals[name] = make(chan struct{})
	}
	return p
}

func (p *probeModule) ModuleName() string { return "probe" }

func (p *probeModule) Invoke(method string, args []any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.methods = append(p.methods, method)
	if ch, ok := p.signals[method]; ok && !p.closed[method] {
		p.closed[method] = true
		close(ch)
	}
	return nil, nil
}

func (p *probeModule) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.methods...)
}

func (p *probeModule) await(t *testing.T, method string) {
	t.Helper()
	p.mu.Lock()
	ch, ok := p.signals[method]
	p.mu.Unlock()
	if !ok {
		t.Fatalf("probe was not armed for %q", method)
	}
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("probe %q was never invoked", method)
	}
}

func writeBundle(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.js")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

// runHost drives h.Run in the background and returns the channel
// carrying its result.
func runHost(t *testing.T, ctx context.Context, h *Host, bundle string) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, bundle) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

// onLoop runs fn on the host's loop goroutine and waits for it.
func onLoop(t *testing.T, loop *runloop.Loop, fn func()) {
	t.Helper()
	ran := make(chan struct{})
	loop.Dispatch(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("loop task did not run")
	}
}

func TestNewWiresModules(t *testing.T) {
	h, err := New(Options{Clock: runloop.NewFakeClock()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h.Bridge().Module(timing.ModuleName) == nil {
		t.Error("timing module not registered")
	}
	if h.Bridge().Module(views.ModuleName) == nil {
		t.Error("views module not registered")
	}
	if h.Views() == nil {
		t.Error("nil view registry")
	}
	if addr := h.DevtoolsAddr(); addr != "" {
		t.Errorf("devtools addr = %q, want empty", addr)
	}
}

func TestRunEvaluatesBundle(t *testing.T) {
	h, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe := newProbe("booted")
	h.RegisterModule(probe)

	bundle := writeBundle(t, `__strait_invoke("probe", "booted");`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runHost(t, ctx, h, bundle)

	probe.await(t, "booted")
	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := probe.calls(); len(got) != 1 || got[0] != "booted" {
		t.Fatalf("probe calls = %v, want [booted]", got)
	}
}

func TestRunReportsLoadError(t *testing.T) {
	h, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	missing := filepath.Join(t.TempDir(), "missing.js")
	if err := h.Run(context.Background(), missing); err == nil {
		t.Fatal("expected a load error for a missing bundle")
	}
}

func TestRunTwice(t *testing.T) {
	h, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bundle := writeBundle(t, ``)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Run(ctx, bundle); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := h.Run(ctx, bundle); err == nil {
		t.Fatal("second Run should fail")
	}
}

func TestTimerFiresThroughHost(t *testing.T) {
	h, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe := newProbe("fired")
	h.RegisterModule(probe)

	bundle := writeBundle(t, `
		setTimeout(function () {
			__strait_invoke("probe", "fired");
		}, 30);
	`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runHost(t, ctx, h, bundle)

	probe.await(t, "fired")
	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestDeliverViewEventRoundTrip(t *testing.T) {
	h, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe := newProbe("ready", "event:onScroll")
	h.RegisterModule(probe)

	bundle := writeBundle(t, `
		__strait_invoke("views", "createView", "scrollview", {});
		registerCallableModule("views", {
			dispatchEvent: function (viewID, event, payload) {
				__strait_invoke("probe", "event:" + event);
			},
		});
		__strait_invoke("probe", "ready");
	`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runHost(t, ctx, h, bundle)

	probe.await(t, "ready")
	h.DeliverViewEvent(1, "scroll", map[string]any{"x": 0.0, "y": 12.5})
	probe.await(t, "event:onScroll")

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestTerminateStopsRun(t *testing.T) {
	h, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe := newProbe("ready")
	h.RegisterModule(probe)

	bundle := writeBundle(t, `
		setInterval(function () {}, 60000);
		__strait_invoke("probe", "ready");
	`)
	done := runHost(t, context.Background(), h, bundle)

	probe.await(t, "ready")
	h.Terminate()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestNotifyLifecycleControlsTicking(t *testing.T) {
	h, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe := newProbe("ready")
	h.RegisterModule(probe)

	bundle := writeBundle(t, `
		setInterval(function () {}, 30);
		__strait_invoke("probe", "ready");
	`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runHost(t, ctx, h, bundle)
	probe.await(t, "ready")

	var paused bool
	onLoop(t, h.Loop(), func() { paused = h.Timing().Paused() })
	if paused {
		t.Fatal("timing should tick with a live repeating timer")
	}

	h.NotifyLifecycle(bridge.LifecycleStateInactive)
	onLoop(t, h.Loop(), func() { paused = h.Timing().Paused() })
	if !paused {
		t.Fatal("timing should pause when the app goes inactive")
	}

	h.NotifyLifecycle(bridge.LifecycleStateResumed)
	onLoop(t, h.Loop(), func() { paused = h.Timing().Paused() })
	if paused {
		t.Fatal("timing should resume with the app")
	}

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestDevtoolsLifecycle(t *testing.T) {
	h, err := New(Options{DevtoolsAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe := newProbe("ready")
	h.RegisterModule(probe)

	bundle := writeBundle(t, `__strait_invoke("probe", "ready");`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runHost(t, ctx, h, bundle)
	probe.await(t, "ready")

	addr := h.DevtoolsAddr()
	if addr == "" {
		t.Fatal("devtools address not published")
	}
	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if resp, err := http.Get("http://" + addr + "/health"); err == nil {
		resp.Body.Close()
		t.Fatal("devtools still reachable after Run returned")
	}
}
