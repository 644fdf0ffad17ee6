// Package host assembles a complete Strait runtime: the run loop, the
// bridge with its native modules, the script VM, and the optional
// devtools server. A Host owns their lifetimes. Construct one, run it
// once, and it tears the pieces down in dependency order when the run
// ends.
package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/devtools"
	"github.com/go-strait/strait/pkg/errors"
	"github.com/go-strait/strait/pkg/runloop"
	"github.com/go-strait/strait/pkg/script"
	"github.com/go-strait/strait/pkg/timing"
	"github.com/go-strait/strait/pkg/views"
)

// Options configures a Host. The zero value is a working headless
// setup with the system clock and no devtools server.
type Options struct {
	// FrameInterval overrides the run loop frame cadence.
	FrameInterval time.Duration

	// Clock substitutes the loop clock. Tests install a FakeClock.
	Clock runloop.Clock

	// Views is the toolkit adapter widgets are created against.
	// Defaults to views.HeadlessHost, which accepts and discards
	// widget traffic.
	Views views.Host

	// DevtoolsAddr enables the devtools HTTP server on the given
	// listen address when non-empty.
	DevtoolsAddr string
}

// Host wires the runtime pieces together and drives their shared
// lifecycle. Module state lives on the run loop; embedders reach it
// through Loop().Dispatch or the marshalling helpers below.
type Host struct {
	loop     *runloop.Loop
	bridge   *bridge.Bridge
	timing   *timing.Module
	views    *views.Module
	runtime  *script.Runtime
	devtools *devtools.Server

	started      atomic.Bool
	shutdownOnce sync.Once
}

// New constructs the full runtime graph. Each module registers on a
// fresh bridge exactly once; the bridge panics if anything wires
// twice.
func New(opts Options) (*Host, error) {
	var loopOpts []runloop.Option
	if opts.Clock != nil {
		loopOpts = append(loopOpts, runloop.WithClock(opts.Clock))
	}
	if opts.FrameInterval > 0 {
		loopOpts = append(loopOpts, runloop.WithFrameInterval(opts.FrameInterval))
	}
	loop := runloop.New(loopOpts...)
	b := bridge.New(loop.Dispatch)

	// The frame observer needs the timing module and the module needs
	// the observer as its frame driver; close over the late half.
	// Observers start paused, so nothing ticks before wiring is done.
	var tm *timing.Module
	observer := loop.AddFrameObserver(func(frameStart time.Time) {
		tm.HandleFrame(frameStart)
	})
	tm = timing.NewModule(loop.Clock(), loop.Dispatch, timing.BridgeDispatcher{Bridge: b}, observer,
		timing.WithFrameInterval(loop.FrameInterval()))
	b.RegisterModule(tm)
	tm.ObserveLifecycle(b.Lifecycle())

	toolkit := opts.Views
	if toolkit == nil {
		toolkit = views.HeadlessHost{}
	}
	registry := views.NewRegistry(views.Env{
		Host:   toolkit,
		Events: &views.BridgeEventSink{Bridge: b},
		Clock:  loop.Clock(),
	})
	viewsModule := views.NewModule(registry)
	b.RegisterModule(viewsModule)

	runtime, err := script.NewRuntime(b, loop.Clock())
	if err != nil {
		return nil, err
	}
	b.SetCallReceiver(runtime)

	h := &Host{
		loop:    loop,
		bridge:  b,
		timing:  tm,
		views:   viewsModule,
		runtime: runtime,
	}
	if opts.DevtoolsAddr != "" {
		h.devtools = devtools.NewServer(devtools.Options{
			Addr:   opts.DevtoolsAddr,
			Loop:   loop,
			Timing: tm,
			Bridge: b,
		})
	}
	return h, nil
}

// Run starts devtools, evaluates the bundle, and drives the run loop
// on the calling goroutine until ctx is cancelled or Terminate is
// called. It returns after teardown completes, reporting the bundle
// load error if evaluation failed. A Host runs once.
func (h *Host) Run(ctx context.Context, bundlePath string) error {
	if !h.started.CompareAndSwap(false, true) {
		return fmt.Errorf("host: Run called twice")
	}
	if h.devtools != nil {
		if err := h.devtools.Start(); err != nil {
			return fmt.Errorf("host: start devtools: %w", err)
		}
	}

	// The load task is drained by Run on this goroutine, so reading
	// loadErr after Run returns needs no further synchronization.
	var loadErr error
	h.loop.Dispatch(func() {
		if err := h.runtime.LoadBundle(bundlePath); err != nil {
			loadErr = err
			h.loop.Stop()
		}
	})

	h.loop.Run(ctx)
	h.shutdown()
	return loadErr
}

// Terminate requests an orderly stop from any goroutine: the
// lifecycle moves to detached and the loop winds down. Run returns
// once teardown finishes.
func (h *Host) Terminate() {
	h.loop.Dispatch(func() {
		h.bridge.Lifecycle().NotifyState(bridge.LifecycleStateDetached)
		h.loop.Stop()
	})
}

// shutdown tears the runtime down: lifecycle detach, script and
// bridge invalidation, then the devtools server. It runs after the
// loop has stopped, so touching loop-affine state is safe here.
func (h *Host) shutdown() {
	h.shutdownOnce.Do(func() {
		h.bridge.Lifecycle().NotifyState(bridge.LifecycleStateDetached)
		h.runtime.Invalidate()
		h.bridge.Invalidate()
		h.loop.Stop()
		if h.devtools != nil {
			h.devtools.Stop()
		}
	})
}

// RegisterModule adds an embedder module to the bridge. Call it
// before Run; duplicate names panic.
func (h *Host) RegisterModule(m bridge.Module) {
	h.bridge.RegisterModule(m)
}

// DeliverViewEvent forwards a toolkit widget event to its component.
// Safe from any goroutine; the event is marshalled onto the loop.
func (h *Host) DeliverViewEvent(viewID int64, event string, payload map[string]any) {
	h.loop.Dispatch(func() {
		if err := h.views.Registry().DeliverHostEvent(viewID, event, payload); err != nil {
			errors.Report(&errors.StraitError{
				Op:     "host.DeliverViewEvent",
				Kind:   errors.KindBridge,
				Module: views.ModuleName,
				Err:    err,
			})
		}
	})
}

// NotifyLifecycle reports a host application lifecycle transition,
// marshalled onto the loop. The timing module pauses its frame driver
// outside the resumed state.
func (h *Host) NotifyLifecycle(state bridge.LifecycleState) {
	h.loop.Dispatch(func() {
		h.bridge.Lifecycle().NotifyState(state)
	})
}

// Loop returns the run loop.
func (h *Host) Loop() *runloop.Loop {
	return h.loop
}

// Bridge returns the module bridge.
func (h *Host) Bridge() *bridge.Bridge {
	return h.bridge
}

// Timing returns the timer module.
func (h *Host) Timing() *timing.Module {
	return h.timing
}

// Views returns the component registry behind the views module.
func (h *Host) Views() *views.Registry {
	return h.views.Registry()
}

// Runtime returns the script runtime. Touch it only on the loop
// goroutine.
func (h *Host) Runtime() *script.Runtime {
	return h.runtime
}

// DevtoolsAddr reports the devtools listen address, or "" when the
// server is disabled or not yet started.
func (h *Host) DevtoolsAddr() string {
	if h.devtools == nil {
		return ""
	}
	return h.devtools.Addr()
}
