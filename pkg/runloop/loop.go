// Package runloop provides the single-threaded execution context that
// hosts the Strait framework: a task queue drained on one goroutine,
// per-frame observer callbacks with on-demand scheduling, and a
// mockable clock.
package runloop

import (
	"context"
	"sync"
	"time"

	"github.com/go-strait/strait/pkg/errors"
)

// DefaultFrameInterval is the frame cadence used when none is configured.
const DefaultFrameInterval = time.Second / 60

// Loop is the designated execution context. All framework state is
// owned by the goroutine running Run; other goroutines hand work over
// with Dispatch.
type Loop struct {
	clock         Clock
	frameInterval time.Duration

	mu        sync.Mutex
	tasks     []func()
	observers []*FrameObserver

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	stopOnce sync.Once

	// Loop-goroutine state. Touched only from Run and the tasks it drains.
	frameTimer     Timer
	frameArmed     bool
	lastFrameStart time.Time
	timings        *TimingBuffer
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock substitutes the clock. Used by tests and embedders that
// already own a frame pulse.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithFrameInterval overrides the frame cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.frameInterval = d
		}
	}
}

// New creates a Loop. It does not start running until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:         SystemClock(),
		frameInterval: DefaultFrameInterval,
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		timings:       NewTimingBuffer(120),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the loop's clock.
func (l *Loop) Clock() Clock {
	return l.clock
}

// FrameInterval returns the configured frame cadence.
func (l *Loop) FrameInterval() time.Duration {
	return l.frameInterval
}

// Timings returns the buffer of recent frame intervals.
func (l *Loop) Timings() *TimingBuffer {
	return l.timings
}

// Dispatch schedules a callback to run on the loop goroutine
// and is safe to call from any goroutine. Callbacks run in
// submission order. A nil callback is ignored.
func (l *Loop) Dispatch(callback func()) {
	if callback == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, callback)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains tasks and drives frame observers until ctx is cancelled
// or Stop is called. It blocks; callers usually run it on a dedicated
// goroutine or as the program's main loop.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case <-l.stop:
			l.shutdown()
			return
		case <-l.wake:
			l.drainTasks()
		}
	}
}

// Stop requests the loop to exit. Safe to call from any goroutine,
// idempotent. Pending tasks are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// shutdown runs on the loop goroutine as Run exits.
func (l *Loop) shutdown() {
	l.mu.Lock()
	l.tasks = nil
	if l.frameTimer != nil {
		l.frameTimer.Stop()
		l.frameTimer = nil
	}
	l.frameArmed = false
	l.mu.Unlock()
}

// drainTasks runs queued callbacks. Tasks enqueued while draining are
// picked up by the next wake, preserving FIFO order without starving
// the stop channel.
func (l *Loop) drainTasks() {
	l.mu.Lock()
	callbacks := l.tasks
	l.tasks = nil
	l.mu.Unlock()
	for _, callback := range callbacks {
		l.runTask(callback)
	}
}

func (l *Loop) runTask(callback func()) {
	defer errors.Recover("runloop.task")
	callback()
}

// FrameObserver receives a callback at every frame tick while unpaused.
type FrameObserver struct {
	loop   *Loop
	fn     func(frameStart time.Time)
	paused bool
	gone   bool
}

// AddFrameObserver registers fn to run once per frame on the loop
// goroutine. The observer starts paused; call SetPaused(false) to
// begin receiving frames. Must be called on the loop goroutine or
// before Run starts.
func (l *Loop) AddFrameObserver(fn func(frameStart time.Time)) *FrameObserver {
	o := &FrameObserver{loop: l, fn: fn, paused: true}
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
	return o
}

// SetPaused pauses or resumes frame delivery for this observer.
// The loop arms its frame timer only while at least one observer is
// unpaused, so a fully paused loop costs nothing between dispatches.
// Must be called on the loop goroutine.
func (o *FrameObserver) SetPaused(paused bool) {
	l := o.loop
	l.mu.Lock()
	if o.gone || o.paused == paused {
		l.mu.Unlock()
		return
	}
	o.paused = paused
	l.mu.Unlock()
	l.updateFrameScheduling()
}

// Paused reports whether frame delivery is currently suspended.
func (o *FrameObserver) Paused() bool {
	o.loop.mu.Lock()
	defer o.loop.mu.Unlock()
	return o.paused
}

// Remove detaches the observer. Idempotent.
// Must be called on the loop goroutine.
func (o *FrameObserver) Remove() {
	l := o.loop
	l.mu.Lock()
	if o.gone {
		l.mu.Unlock()
		return
	}
	o.gone = true
	for i, obs := range l.observers {
		if obs == o {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	l.updateFrameScheduling()
}

// needsFramesLocked reports whether any observer wants frame ticks.
func (l *Loop) needsFramesLocked() bool {
	for _, o := range l.observers {
		if !o.paused && !o.gone {
			return true
		}
	}
	return false
}

// updateFrameScheduling arms or disarms the frame timer to match
// observer demand. Runs on the loop goroutine.
func (l *Loop) updateFrameScheduling() {
	l.mu.Lock()
	needs := l.needsFramesLocked()
	switch {
	case needs && !l.frameArmed:
		l.frameArmed = true
		if l.frameTimer == nil {
			l.frameTimer = l.clock.AfterFunc(l.frameInterval, l.onFrameTimer)
		} else {
			l.frameTimer.Reset(l.frameInterval)
		}
	case !needs && l.frameArmed:
		l.frameArmed = false
		if l.frameTimer != nil {
			l.frameTimer.Stop()
		}
	}
	l.mu.Unlock()
}

// onFrameTimer fires on the clock goroutine; the actual frame step is
// marshalled onto the loop.
func (l *Loop) onFrameTimer() {
	l.Dispatch(l.stepFrame)
}

// stepFrame delivers one frame tick to every unpaused observer, then
// re-arms the timer if demand remains.
func (l *Loop) stepFrame() {
	l.mu.Lock()
	l.frameArmed = false
	active := make([]*FrameObserver, 0, len(l.observers))
	for _, o := range l.observers {
		if !o.paused && !o.gone {
			active = append(active, o)
		}
	}
	l.mu.Unlock()

	frameStart := l.clock.Now()
	if !l.lastFrameStart.IsZero() {
		if interval := frameStart.Sub(l.lastFrameStart); interval > 0 {
			l.timings.Add(interval)
		}
	}
	l.lastFrameStart = frameStart

	for _, o := range active {
		l.runFrameCallback(o, frameStart)
	}
	l.updateFrameScheduling()
}

func (l *Loop) runFrameCallback(o *FrameObserver, frameStart time.Time) {
	defer errors.Recover("runloop.frame")
	o.fn(frameStart)
}
