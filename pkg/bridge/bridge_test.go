package bridge

import (
	"errors"
	"fmt"
	"testing"
)

// manualLoop queues dispatched tasks and runs them on demand, standing
// in for the run loop goroutine.
type manualLoop struct {
	tasks []func()
}

func (m *manualLoop) dispatch(fn func()) {
	m.tasks = append(m.tasks, fn)
}

func (m *manualLoop) run() {
	for len(m.tasks) > 0 {
		task := m.tasks[0]
		m.tasks = m.tasks[1:]
		task()
	}
}

// testModule is a scriptable stub module.
type testModule struct {
	name        string
	onInvoke    func(method string, args []any) (any, error)
	invalidated bool
}

func (m *testModule) ModuleName() string { return m.name }

func (m *testModule) Invoke(method string, args []any) (any, error) {
	if m.onInvoke != nil {
		return m.onInvoke(method, args)
	}
	return nil, ErrMethodNotFound
}

func (m *testModule) Invalidate() { m.invalidated = true }

// recordingReceiver captures delivered batches.
type recordingReceiver struct {
	batches [][]Call
}

func (r *recordingReceiver) ReceiveCalls(calls []Call) {
	batch := make([]Call, len(calls))
	copy(batch, calls)
	r.batches = append(r.batches, batch)
}

func TestRegisterModuleAndInvoke(t *testing.T) {
	loop := &manualLoop{}
	b := New(loop.dispatch)

	b.RegisterModule(&testModule{
		name: "echo",
		onInvoke: func(method string, args []any) (any, error) {
			if method != "say" {
				return nil, ErrMethodNotFound
			}
			return args[0], nil
		},
	})

	got, err := b.InvokeModule("echo", "say", []any{"hello"})
	if err != nil {
		t.Fatalf("InvokeModule: %v", err)
	}
	if got != "hello" {
		t.Errorf("result = %v, want %q", got, "hello")
	}
}

func TestInvokeUnknownModule(t *testing.T) {
	b := New((&manualLoop{}).dispatch)
	_, err := b.InvokeModule("nope", "anything", nil)
	if !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("err = %v, want ErrModuleNotFound", err)
	}
}

func TestRegisterDuplicateModulePanics(t *testing.T) {
	b := New((&manualLoop{}).dispatch)
	b.RegisterModule(&testModule{name: "timing"})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate module registration")
		}
	}()
	b.RegisterModule(&testModule{name: "timing"})
}

func TestRegisterNilModulePanics(t *testing.T) {
	b := New((&manualLoop{}).dispatch)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on nil module")
		}
	}()
	b.RegisterModule(nil)
}

func TestModuleNamesSorted(t *testing.T) {
	b := New((&manualLoop{}).dispatch)
	for _, name := range []string{"views", "timing", "app"} {
		b.RegisterModule(&testModule{name: name})
	}
	got := b.ModuleNames()
	want := []string{"app", "timing", "views"}
	if len(got) != len(want) {
		t.Fatalf("ModuleNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ModuleNames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEnqueueCoalescesIntoOneBatch(t *testing.T) {
	loop := &manualLoop{}
	b := New(loop.dispatch)
	receiver := &recordingReceiver{}
	b.SetCallReceiver(receiver)

	for i := range 3 {
		b.EnqueueCall(Call{Module: "timers", Method: "callTimers", Args: []any{i}})
	}

	if got := len(loop.tasks); got != 1 {
		t.Fatalf("scheduled %d drain tasks, want 1 (coalesced)", got)
	}

	loop.run()

	if len(receiver.batches) != 1 {
		t.Fatalf("delivered %d batches, want 1", len(receiver.batches))
	}
	batch := receiver.batches[0]
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
	for i, call := range batch {
		if got, _ := ToInt(call.Args[0]); got != i {
			t.Errorf("batch[%d].Args[0] = %v, want %d (FIFO order)", i, call.Args[0], i)
		}
	}
}

func TestCallsBufferUntilReceiverAttaches(t *testing.T) {
	loop := &manualLoop{}
	b := New(loop.dispatch)

	b.EnqueueCall(Call{Module: "timers", Method: "callTimers"})
	loop.run()

	if got := b.PendingCalls(); got != 1 {
		t.Fatalf("PendingCalls = %d before receiver, want 1", got)
	}

	receiver := &recordingReceiver{}
	b.SetCallReceiver(receiver)
	loop.run()

	if len(receiver.batches) != 1 || len(receiver.batches[0]) != 1 {
		t.Fatalf("buffered call not delivered: %v", receiver.batches)
	}
	if got := b.PendingCalls(); got != 0 {
		t.Errorf("PendingCalls = %d after delivery, want 0", got)
	}
}

func TestSeparateDrainsPreserveOrder(t *testing.T) {
	loop := &manualLoop{}
	b := New(loop.dispatch)
	receiver := &recordingReceiver{}
	b.SetCallReceiver(receiver)

	b.EnqueueCall(Call{Module: "timers", Method: "callTimers", Args: []any{"first"}})
	loop.run()
	b.EnqueueCall(Call{Module: "timers", Method: "callIdleCallbacks", Args: []any{"second"}})
	loop.run()

	if len(receiver.batches) != 2 {
		t.Fatalf("delivered %d batches, want 2", len(receiver.batches))
	}
	if receiver.batches[0][0].Args[0] != "first" || receiver.batches[1][0].Args[0] != "second" {
		t.Error("batches delivered out of order")
	}
}

func TestInvalidate(t *testing.T) {
	loop := &manualLoop{}
	b := New(loop.dispatch)
	mod := &testModule{name: "timing"}
	b.RegisterModule(mod)
	b.EnqueueCall(Call{Module: "timers", Method: "callTimers"})

	b.Invalidate()

	if !mod.invalidated {
		t.Error("Invalidate should notify Invalidatable modules")
	}
	if got := b.PendingCalls(); got != 0 {
		t.Errorf("PendingCalls = %d after Invalidate, want 0", got)
	}
	if _, err := b.InvokeModule("timing", "createTimer", nil); !errors.Is(err, ErrInvalidated) {
		t.Errorf("InvokeModule after Invalidate = %v, want ErrInvalidated", err)
	}

	// Enqueues after invalidation are dropped.
	b.EnqueueCall(Call{Module: "timers", Method: "callTimers"})
	if got := b.PendingCalls(); got != 0 {
		t.Errorf("PendingCalls = %d after post-invalidate enqueue, want 0", got)
	}

	// Idempotent: a second Invalidate must not re-notify.
	mod.invalidated = false
	b.Invalidate()
	if mod.invalidated {
		t.Error("second Invalidate re-notified modules")
	}
}

func TestInvokeModuleErrorPropagates(t *testing.T) {
	b := New((&manualLoop{}).dispatch)
	wantErr := fmt.Errorf("bad duration")
	b.RegisterModule(&testModule{
		name: "timing",
		onInvoke: func(string, []any) (any, error) {
			return nil, wantErr
		},
	})

	_, err := b.InvokeModule("timing", "createTimer", nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
