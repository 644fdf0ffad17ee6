// Package bridge connects the embedded script runtime to native modules.
// Inbound calls (script to native) are routed synchronously to registered
// modules on the loop goroutine. Outbound calls (native to script) are
// appended to a queue and delivered to the call receiver in FIFO batches,
// with at most one drain scheduled at a time.
package bridge

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Module is a native module callable from the script runtime.
type Module interface {
	// ModuleName returns the name scripts use to address the module.
	ModuleName() string
	// Invoke handles one call. It runs on the loop goroutine.
	Invoke(method string, args []any) (any, error)
}

// Invalidatable is implemented by modules that hold resources needing
// release when the bridge shuts down.
type Invalidatable interface {
	Invalidate()
}

// Call is one queued native-to-script invocation.
type Call struct {
	Module string
	Method string
	Args   []any
}

// CallReceiver consumes batched outbound calls, in submission order.
// Delivery happens on the loop goroutine; the receiver reports its own
// execution failures.
type CallReceiver interface {
	ReceiveCalls(calls []Call)
}

// Standard errors for bridge operations.
var (
	// ErrModuleNotFound indicates no module is registered under the name.
	ErrModuleNotFound = errors.New("bridge module not found")

	// ErrMethodNotFound indicates the module does not implement the method.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments indicates the arguments passed to the method were invalid.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrInvalidated indicates the bridge has been shut down.
	ErrInvalidated = errors.New("bridge invalidated")
)

// Bridge routes calls between the script runtime and native modules.
// Construct one per host; registering two modules under one name is a
// wiring bug and panics.
type Bridge struct {
	dispatch func(func())

	mu      sync.RWMutex
	modules map[string]Module

	queueMu        sync.Mutex
	queue          []Call
	receiver       CallReceiver
	drainPending   atomic.Bool
	invalidated    atomic.Bool
	lifecycle      *LifecycleNotifier
	invalidateOnce sync.Once
}

// New creates a Bridge. The dispatch function marshals work onto the
// loop goroutine; hosts pass the run loop's Dispatch.
func New(dispatch func(func())) *Bridge {
	if dispatch == nil {
		panic("strait: bridge requires a dispatch function")
	}
	return &Bridge{
		dispatch:  dispatch,
		modules:   make(map[string]Module),
		lifecycle: NewLifecycleNotifier(),
	}
}

// Lifecycle returns the bridge's lifecycle notifier.
func (b *Bridge) Lifecycle() *LifecycleNotifier {
	return b.lifecycle
}

// RegisterModule makes m callable from scripts. Registering a second
// module under the same name panics: module construction happens once
// per bridge lifetime, so a duplicate means the host wired itself twice.
func (b *Bridge) RegisterModule(m Module) {
	if m == nil {
		panic("strait: RegisterModule called with nil module")
	}
	name := m.ModuleName()
	if name == "" {
		panic("strait: module has empty name")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.modules[name]; exists {
		panic(fmt.Sprintf("strait: module %q already registered", name))
	}
	b.modules[name] = m
}

// Module returns the module registered under name, or nil.
func (b *Bridge) Module(name string) Module {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.modules[name]
}

// ModuleNames returns the registered module names, sorted.
func (b *Bridge) ModuleNames() []string {
	b.mu.RLock()
	names := make([]string, 0, len(b.modules))
	for name := range b.modules {
		names = append(names, name)
	}
	b.mu.RUnlock()
	sort.Strings(names)
	return names
}

// InvokeModule routes one inbound script call to its module.
// Must be called on the loop goroutine; the script runtime already
// executes there, so its host functions call this directly.
func (b *Bridge) InvokeModule(module, method string, args []any) (any, error) {
	if b.invalidated.Load() {
		return nil, ErrInvalidated
	}
	m := b.Module(module)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, module)
	}
	return m.Invoke(method, args)
}

// SetCallReceiver attaches the consumer of outbound calls. Calls
// enqueued before a receiver is attached are buffered and delivered
// once it arrives, preserving order.
func (b *Bridge) SetCallReceiver(r CallReceiver) {
	b.queueMu.Lock()
	b.receiver = r
	hasBuffered := len(b.queue) > 0
	b.queueMu.Unlock()
	if r != nil && hasBuffered {
		b.scheduleDrain()
	}
}

// EnqueueCall appends one outbound call and schedules a coalesced
// drain. Safe to call from any goroutine; never blocks.
func (b *Bridge) EnqueueCall(call Call) {
	if b.invalidated.Load() {
		return
	}
	b.queueMu.Lock()
	b.queue = append(b.queue, call)
	b.queueMu.Unlock()
	b.scheduleDrain()
}

// PendingCalls returns the number of undelivered outbound calls.
func (b *Bridge) PendingCalls() int {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return len(b.queue)
}

// scheduleDrain queues at most one drain task on the loop.
func (b *Bridge) scheduleDrain() {
	if b.drainPending.CompareAndSwap(false, true) {
		b.dispatch(b.drainCalls)
	}
}

// drainCalls delivers the queued batch. Runs on the loop goroutine.
func (b *Bridge) drainCalls() {
	b.drainPending.Store(false)
	b.queueMu.Lock()
	if b.receiver == nil {
		// Hold the batch until a receiver attaches.
		b.queueMu.Unlock()
		return
	}
	calls := b.queue
	b.queue = nil
	receiver := b.receiver
	b.queueMu.Unlock()

	if len(calls) == 0 {
		return
	}
	receiver.ReceiveCalls(calls)
}

// Invalidate shuts the bridge down: notifies modules holding resources,
// drops undelivered calls, and rejects further traffic. Idempotent.
// Must be called on the loop goroutine.
func (b *Bridge) Invalidate() {
	b.invalidateOnce.Do(func() {
		b.invalidated.Store(true)

		b.mu.RLock()
		modules := make([]Module, 0, len(b.modules))
		for _, m := range b.modules {
			modules = append(modules, m)
		}
		b.mu.RUnlock()

		for _, m := range modules {
			if inv, ok := m.(Invalidatable); ok {
				inv.Invalidate()
			}
		}

		b.queueMu.Lock()
		b.queue = nil
		b.receiver = nil
		b.queueMu.Unlock()
	})
}
