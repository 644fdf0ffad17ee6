package bridge

import "sync"

// LifecycleState represents the host application lifecycle state.
type LifecycleState string

const (
	// LifecycleStateResumed indicates the host is active and processing frames.
	LifecycleStateResumed LifecycleState = "resumed"

	// LifecycleStateInactive indicates the host is transitioning and should
	// stop non-essential work (timers keep their state but stop firing).
	LifecycleStateInactive LifecycleState = "inactive"

	// LifecycleStatePaused indicates the host is backgrounded but running.
	LifecycleStatePaused LifecycleState = "paused"

	// LifecycleStateDetached indicates the host is shutting down.
	// This state is terminal.
	LifecycleStateDetached LifecycleState = "detached"
)

// LifecycleHandler is called when lifecycle state changes.
type LifecycleHandler func(state LifecycleState)

type lifecycleEntry struct {
	id int
	fn LifecycleHandler
}

// LifecycleNotifier distributes host lifecycle transitions to modules.
// The host shell feeds it; modules subscribe to pause and resume work.
type LifecycleNotifier struct {
	mu       sync.RWMutex
	state    LifecycleState
	handlers []lifecycleEntry
	nextID   int
}

// NewLifecycleNotifier creates a notifier in the resumed state.
func NewLifecycleNotifier() *LifecycleNotifier {
	return &LifecycleNotifier{
		state: LifecycleStateResumed,
	}
}

// State returns the current lifecycle state.
func (l *LifecycleNotifier) State() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsResumed returns true if the host is in the resumed state.
func (l *LifecycleNotifier) IsResumed() bool {
	return l.State() == LifecycleStateResumed
}

// IsDetached returns true if the host has shut down.
func (l *LifecycleNotifier) IsDetached() bool {
	return l.State() == LifecycleStateDetached
}

// AddHandler registers a handler to be called on lifecycle changes.
// Returns a function that removes the handler; removal is idempotent
// and safe in any order.
func (l *LifecycleNotifier) AddHandler(handler LifecycleHandler) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.handlers = append(l.handlers, lifecycleEntry{id: id, fn: handler})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		for i, e := range l.handlers {
			if e.id == id {
				l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
	}
}

// NotifyState records a transition and calls the handlers. Handlers run
// on the caller's goroutine; the host notifies from the loop so module
// reactions keep loop affinity. Re-notifying the current state is a
// no-op, and nothing leaves the detached state.
func (l *LifecycleNotifier) NotifyState(newState LifecycleState) {
	l.mu.Lock()
	if l.state == newState || l.state == LifecycleStateDetached {
		l.mu.Unlock()
		return
	}
	l.state = newState
	handlers := make([]LifecycleHandler, 0, len(l.handlers))
	for _, e := range l.handlers {
		handlers = append(handlers, e.fn)
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(newState)
	}
}
