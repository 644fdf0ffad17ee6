package timing

import (
	"sort"
	"time"

	"github.com/go-strait/strait/pkg/runloop"
)

const (
	// shortIntervalThreshold is the duration below which a repeating
	// timer is treated as firing every frame.
	shortIntervalThreshold = 18 * time.Millisecond

	// minimumSleepInterval is how far out the nearest deadline must be
	// before frame ticking stops in favor of one coarse wake-up.
	minimumSleepInterval = time.Second

	// idleCallbackDeadline is the minimum leftover frame budget worth
	// announcing to idle callbacks.
	idleCallbackDeadline = time.Millisecond
)

// HandleFrame is the per-frame tick. It snapshots the registry against
// a single captured now, dispatches due timers as one ordered batch,
// reschedules repeats, and decides whether ticking keeps running or
// the scheduler goes to sleep. Hosts wire it to a frame observer.
func (m *Module) HandleFrame(frameStart time.Time) {
	if m.invalidated {
		return
	}

	now := m.clock.Now()
	due, next, hasNext := m.reg.snapshot(now)

	if len(due) > 0 {
		sort.Slice(due, func(i, j int) bool {
			if !due[i].target.Equal(due[j].target) {
				return due[i].target.Before(due[j].target)
			}
			return due[i].seq < due[j].seq
		})
		ids := make([]int64, len(due))
		for i, t := range due {
			ids[i] = t.id
		}
		m.out.CallTimers(ids)
	}

	for _, t := range due {
		if t.repeats {
			// Reschedule from this tick's now, not from the old
			// target: a late tick slides the cadence instead of
			// producing a catch-up burst.
			t.target = now.Add(t.interval)
			if !hasNext || t.target.Before(next) {
				next = t.target
				hasNext = true
			}
		} else {
			m.reg.remove(t.id)
		}
	}

	// Sleep only on a quiet tick. If a timer fired, the next frame is
	// likely needed anyway; deciding then avoids pausing and resuming
	// around every repeating timer.
	if !m.sendIdleEvents && len(due) == 0 {
		if m.reg.len() == 0 {
			m.pauseTicking()
		} else if hasNext && next.Sub(now) > minimumSleepInterval {
			m.pauseTicking()
			m.armWakeUp(next)
		}
	}

	if m.sendIdleEvents {
		frameElapsed := now.Sub(frameStart)
		if m.frameInterval-frameElapsed >= idleCallbackDeadline {
			m.out.CallIdleCallbacks(runloop.EpochMillis(frameStart))
		}
	}
}

// Paused reports whether frame ticking is currently suspended.
func (m *Module) Paused() bool {
	return m.paused
}

// WakeDeadline returns the armed coarse wake-up deadline; the second
// return is false when none is armed.
func (m *Module) WakeDeadline() (time.Time, bool) {
	return m.wakeDeadline, m.wakeTimer != nil
}

// resumeTicking restarts frame delivery if there is anything to tick
// for. Resuming with an empty registry and idle events off would just
// burn frames proving there is no work.
func (m *Module) resumeTicking() {
	if m.invalidated || !m.paused {
		return
	}
	if m.reg.len() == 0 && !m.sendIdleEvents {
		return
	}
	m.paused = false
	m.frames.SetPaused(false)
}

// pauseTicking suspends frame delivery. Registered timers keep their
// targets; the wake-up, if any, is managed by the callers.
func (m *Module) pauseTicking() {
	if m.paused {
		return
	}
	m.paused = true
	m.frames.SetPaused(true)
}

// armWakeUp schedules the coarse wall-clock wake-up. At most one is
// armed: with none present it arms at deadline, an armed-later wake
// moves earlier in place, and an armed-earlier one is left untouched.
// A wake-up is never pushed later; stale early fires are absorbed by
// the tick finding nothing due.
func (m *Module) armWakeUp(deadline time.Time) {
	if m.invalidated {
		return
	}
	if m.wakeTimer != nil && !deadline.Before(m.wakeDeadline) {
		return
	}
	delay := deadline.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	if m.wakeTimer == nil {
		m.wakeTimer = m.clock.AfterFunc(delay, m.onWakeTimer)
	} else {
		m.wakeTimer.Reset(delay)
	}
	m.wakeDeadline = deadline
}

// onWakeTimer fires on the clock's goroutine. This is the subsystem's
// only cross-context entry; everything it does is marshalled onto the
// loop before any state is touched.
func (m *Module) onWakeTimer() {
	m.dispatch(m.handleWake)
}

// handleWake runs on the loop goroutine after the coarse wake-up
// fires. It resumes ticking and issues one synthetic tick immediately
// so the deadline that caused the wake is honored now rather than a
// frame later.
func (m *Module) handleWake() {
	m.wakeTimer = nil
	m.wakeDeadline = time.Time{}
	if m.invalidated || !m.paused {
		return
	}
	m.resumeTicking()
	if !m.paused {
		m.HandleFrame(m.clock.Now())
	}
}

// clearWake cancels any armed wake-up.
func (m *Module) clearWake() {
	if m.wakeTimer != nil {
		m.wakeTimer.Stop()
		m.wakeTimer = nil
	}
	m.wakeDeadline = time.Time{}
}
