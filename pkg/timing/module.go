// Package timing reconciles the script runtime's timer API against the
// host run loop. Timers registered by scripts live in a registry that a
// per-frame scheduler scans while active; when nothing is due soon the
// scheduler stops frame ticking and arms a single coarse wake-up
// instead, so an app with one timer an hour out costs no frames.
//
// Everything here runs on the loop goroutine. The one exception is the
// coarse wake-up firing on the clock's goroutine, which marshals back
// through the dispatch function before touching state.
package timing

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/runloop"
)

// ModuleName is the name scripts use to address this module.
const ModuleName = "timing"

// Dispatcher delivers batched notifications to the script runtime.
// Implementations enqueue; they must not execute script synchronously.
type Dispatcher interface {
	// CallTimers announces the timers due this tick, in fire order.
	CallTimers(ids []int64)
	// CallIdleCallbacks announces leftover frame budget, carrying the
	// frame start as epoch milliseconds.
	CallIdleCallbacks(frameStartMS float64)
}

// FrameDriver controls delivery of per-frame ticks to the scheduler.
// *runloop.FrameObserver satisfies it.
type FrameDriver interface {
	SetPaused(paused bool)
}

// Module is the timer scheduling subsystem. Construct exactly one per
// bridge; it registers under ModuleName and panics on double wiring
// through bridge.RegisterModule.
type Module struct {
	clock    runloop.Clock
	dispatch func(func())
	out      Dispatcher
	frames   FrameDriver

	reg            *registry
	paused         bool
	sendIdleEvents bool

	wakeTimer    runloop.Timer
	wakeDeadline time.Time

	frameInterval   time.Duration
	removeLifecycle func()
	invalidated     bool
}

// Option configures a Module.
type Option func(*Module)

// WithFrameInterval sets the frame budget used for idle-callback
// headroom. Hosts pass their loop's frame interval.
func WithFrameInterval(d time.Duration) Option {
	return func(m *Module) {
		if d > 0 {
			m.frameInterval = d
		}
	}
}

// NewModule creates the timer subsystem. dispatch marshals the coarse
// wake-up back onto the loop goroutine; out receives the batched
// script notifications; frames starts and stops per-frame ticks.
func NewModule(clock runloop.Clock, dispatch func(func()), out Dispatcher, frames FrameDriver, opts ...Option) *Module {
	if clock == nil || dispatch == nil || out == nil || frames == nil {
		panic("strait: timing.NewModule requires clock, dispatch, dispatcher, and frame driver")
	}
	m := &Module{
		clock:         clock,
		dispatch:      dispatch,
		out:           out,
		frames:        frames,
		reg:           newRegistry(),
		paused:        true,
		frameInterval: runloop.DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ModuleName implements bridge.Module.
func (m *Module) ModuleName() string {
	return ModuleName
}

// Invoke implements bridge.Module. Methods mirror the script runtime's
// timer bookkeeping layer:
//
//	createTimer(id, durationMS, schedulingTimeMS, repeats)
//	deleteTimer(id)
//	setSendIdleEvents(enabled)
func (m *Module) Invoke(method string, args []any) (any, error) {
	switch method {
	case "createTimer":
		if len(args) != 4 {
			return nil, fmt.Errorf("%w: createTimer expects (id, duration, schedulingTime, repeats)", bridge.ErrInvalidArguments)
		}
		id, ok := bridge.ToInt64(args[0])
		if !ok {
			return nil, fmt.Errorf("%w: createTimer id must be a number", bridge.ErrInvalidArguments)
		}
		durationMS, ok := bridge.ToFloat64(args[1])
		if !ok {
			return nil, fmt.Errorf("%w: createTimer duration must be a number", bridge.ErrInvalidArguments)
		}
		schedulingMS, ok := bridge.ToFloat64(args[2])
		if !ok {
			return nil, fmt.Errorf("%w: createTimer schedulingTime must be a number", bridge.ErrInvalidArguments)
		}
		m.CreateTimer(id, durationFromMillis(durationMS), runloop.FromEpochMillis(schedulingMS), bridge.ParseBool(args[3]))
		return nil, nil

	case "deleteTimer":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: deleteTimer expects (id)", bridge.ErrInvalidArguments)
		}
		id, ok := bridge.ToInt64(args[0])
		if !ok {
			return nil, fmt.Errorf("%w: deleteTimer id must be a number", bridge.ErrInvalidArguments)
		}
		m.DeleteTimer(id)
		return nil, nil

	case "setSendIdleEvents":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: setSendIdleEvents expects (enabled)", bridge.ErrInvalidArguments)
		}
		m.SetSendIdleEvents(bridge.ParseBool(args[0]))
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: timing.%s", bridge.ErrMethodNotFound, method)
	}
}

// CreateTimer registers a timer. schedulingTime is when the script
// issued the call; the elapsed cross-boundary latency is subtracted
// from duration so timers fire relative to the script's intent, not
// the bridge's delivery. Registering an id that is already live
// replaces the old entry.
//
// A zero-duration non-repeating timer never reaches the registry: it
// is dispatched immediately as its own batch.
func (m *Module) CreateTimer(id int64, duration time.Duration, schedulingTime time.Time, repeats bool) {
	if m.invalidated {
		return
	}
	if duration == 0 && !repeats {
		m.out.CallTimers([]int64{id})
		return
	}

	now := m.clock.Now()
	overhead := now.Sub(schedulingTime)
	if overhead < 0 {
		overhead = 0
	}
	adjusted := duration - overhead
	if adjusted < 0 {
		adjusted = 0
	}

	// Sub-frame durations fire effectively every tick; rescheduling by
	// the nominal interval would add nothing but drift, so repeats
	// re-arm immediately. The first fire keeps its adjusted target.
	interval := duration
	if duration < shortIntervalThreshold {
		interval = 0
	}

	t := &timer{
		id:       id,
		target:   now.Add(adjusted),
		interval: interval,
		repeats:  repeats,
	}
	m.reg.insert(t)

	if m.paused {
		if t.target.Sub(now) > minimumSleepInterval {
			// Far enough out to stay asleep; just make sure the
			// wake-up covers it.
			m.armWakeUp(t.target)
		} else {
			m.resumeTicking()
		}
	}
}

// DeleteTimer cancels a timer. Unknown ids are a no-op: script-side
// clears race benignly against native-side expiry. A timer deleted
// after its due tick was snapshotted may still fire once.
func (m *Module) DeleteTimer(id int64) {
	if m.invalidated {
		return
	}
	m.reg.remove(id)
}

// SetSendIdleEvents toggles idle-callback notifications. Enabling
// forces frame ticking back on: idle headroom is measured per tick, so
// a sleeping scheduler could never report it. Disabling is lazy; the
// scheduler re-evaluates sleep on the next tick.
func (m *Module) SetSendIdleEvents(enabled bool) {
	if m.invalidated {
		return
	}
	m.sendIdleEvents = enabled
	if enabled {
		m.resumeTicking()
	}
}

// SendIdleEvents reports whether idle notifications are enabled.
func (m *Module) SendIdleEvents() bool {
	return m.sendIdleEvents
}

// ObserveLifecycle pauses ticking while the host is inactive and
// resumes it when the host returns to the foreground. Termination
// stops ticking and releases the coarse wake-up for good.
func (m *Module) ObserveLifecycle(lc *bridge.LifecycleNotifier) {
	if m.removeLifecycle != nil {
		m.removeLifecycle()
	}
	m.removeLifecycle = lc.AddHandler(func(state bridge.LifecycleState) {
		switch state {
		case bridge.LifecycleStateResumed:
			m.resumeTicking()
		case bridge.LifecycleStateInactive, bridge.LifecycleStatePaused:
			m.pauseTicking()
		case bridge.LifecycleStateDetached:
			m.pauseTicking()
			m.clearWake()
		}
	})
}

// TimerCount returns the number of live registered timers. Zero-delay
// one-shot timers never appear here.
func (m *Module) TimerCount() int {
	return m.reg.len()
}

// Snapshot describes one live timer for the devtools surface.
type Snapshot struct {
	ID       int64         `json:"id"`
	Target   time.Time     `json:"target"`
	Interval time.Duration `json:"interval"`
	Repeats  bool          `json:"repeats"`
}

// Timers returns a description of the live timers, soonest first.
func (m *Module) Timers() []Snapshot {
	out := make([]Snapshot, 0, m.reg.len())
	for _, t := range m.reg.timers {
		out = append(out, Snapshot{ID: t.id, Target: t.target, Interval: t.interval, Repeats: t.repeats})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Target.Equal(out[j].Target) {
			return out[i].Target.Before(out[j].Target)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Invalidate tears the subsystem down: stops ticking, releases the
// wake-up, clears the registry, and detaches the lifecycle
// subscription. Idempotent; every entry point no-ops afterward.
func (m *Module) Invalidate() {
	if m.invalidated {
		return
	}
	m.invalidated = true
	m.pauseTicking()
	m.clearWake()
	m.reg.clear()
	if m.removeLifecycle != nil {
		m.removeLifecycle()
		m.removeLifecycle = nil
	}
}

// durationFromMillis converts a script-side millisecond duration.
func durationFromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
