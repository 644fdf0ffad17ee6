// Package script embeds the JavaScript runtime that executes an app
// bundle against the bridge. The VM is owned by the loop goroutine:
// every entry point here (bundle evaluation, inbound call delivery,
// host functions) must run on the loop, the same designated-context
// rule the bridge modules follow.
//
// The runtime deliberately has no event loop of its own. Timer and
// idle scheduling live natively behind the "timing" bridge module; an
// embedded prelude provides the script-side bookkeeping (setTimeout
// and friends) on top of it.
package script

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/errors"
	"github.com/go-strait/strait/pkg/runloop"
)

//go:embed prelude.js
var preludeJS string

// Runtime hosts a goja VM wired to the bridge. Scripts reach native
// modules through the installed host functions; native code reaches
// scripts through ReceiveCalls, which routes the bridge's outbound
// call batches into the prelude's dispatch table.
type Runtime struct {
	vm     *goja.Runtime
	req    *require.RequireModule
	bridge *bridge.Bridge
	clock  runloop.Clock

	dispatch    goja.Callable
	source      string
	invalidated bool
}

// NewRuntime builds a VM with require and console enabled, installs
// the host functions, and evaluates the prelude. Call it on the loop
// goroutine, or before the loop starts running.
func NewRuntime(b *bridge.Bridge, clock runloop.Clock) (*Runtime, error) {
	if b == nil || clock == nil {
		panic("strait: script.NewRuntime requires a bridge and a clock")
	}

	vm := goja.New()
	registry := new(require.Registry)
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(newConsolePrinter()))
	req := registry.Enable(vm)
	console.Enable(vm)

	r := &Runtime{
		vm:     vm,
		req:    req,
		bridge: b,
		clock:  clock,
	}
	if err := vm.Set("__strait_invoke", r.hostInvoke); err != nil {
		return nil, fmt.Errorf("script: install host invoke: %w", err)
	}
	if err := vm.Set("__strait_now", r.hostNow); err != nil {
		return nil, fmt.Errorf("script: install host clock: %w", err)
	}
	if _, err := vm.RunScript("strait:prelude", preludeJS); err != nil {
		return nil, fmt.Errorf("script: evaluate prelude: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("__strait_dispatch"))
	if !ok {
		return nil, fmt.Errorf("script: prelude did not install a dispatch function")
	}
	r.dispatch = fn
	return r, nil
}

// LoadBundle reads and evaluates a bundle file.
func (r *Runtime) LoadBundle(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("script: read bundle: %w", err)
	}
	return r.RunSource(filepath.Base(path), string(src))
}

// RunSource evaluates src, using name in stack traces and error
// reports for everything the evaluation leaves behind.
func (r *Runtime) RunSource(name, src string) error {
	if r.invalidated {
		return fmt.Errorf("script: runtime invalidated")
	}
	r.source = name
	if _, err := r.vm.RunScript(name, src); err != nil {
		return &errors.ScriptError{
			Source: name,
			Op:     "script.RunSource",
			Err:    err,
		}
	}
	return nil
}

// Require loads a CommonJS module through the embedded registry,
// relative to the process working directory.
func (r *Runtime) Require(path string) (goja.Value, error) {
	return r.req.Require(path)
}

// ReceiveCalls implements bridge.CallReceiver: it applies one drained
// batch to the VM in order. A failing call is reported and skipped;
// the rest of the batch still runs.
func (r *Runtime) ReceiveCalls(calls []bridge.Call) {
	if r.invalidated {
		return
	}
	for _, c := range calls {
		_, err := r.dispatch(goja.Undefined(), r.vm.ToValue(c.Module), r.vm.ToValue(c.Method), r.vm.ToValue(c.Args))
		if err != nil {
			errors.ReportScriptError(&errors.ScriptError{
				Source: r.source,
				Op:     "script.ReceiveCalls",
				Err:    err,
			})
		}
	}
}

// Invalidate stops the runtime accepting work. The VM itself is left
// to the garbage collector; nothing runs scripts after this.
func (r *Runtime) Invalidate() {
	r.invalidated = true
}

// hostInvoke is the script's entry to native modules:
//
//	__strait_invoke(module, method, ...args)
//
// Errors surface as thrown exceptions carrying a stable code property.
func (r *Runtime) hostInvoke(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 2 {
		panic(r.vm.NewTypeError("__strait_invoke requires a module and a method"))
	}
	module := call.Arguments[0].String()
	method := call.Arguments[1].String()
	args := make([]any, 0, len(call.Arguments)-2)
	for _, v := range call.Arguments[2:] {
		args = append(args, v.Export())
	}

	result, err := r.bridge.InvokeModule(module, method, args)
	if err != nil {
		panic(r.throwableError(err))
	}
	if result == nil {
		return goja.Undefined()
	}
	return r.vm.ToValue(result)
}

// throwableError builds the exception scripts catch from a native
// failure: an Error whose code stays stable across releases and whose
// details carry any structured payload the module attached.
func (r *Runtime) throwableError(err error) goja.Value {
	callErr := bridge.AsCallError(err)
	obj := r.vm.NewGoError(callErr)
	obj.Set("code", callErr.Code)
	if callErr.Details != nil {
		obj.Set("details", r.vm.ToValue(callErr.Details))
	}
	return obj
}

// hostNow reports the loop clock as epoch milliseconds, the time base
// the prelude stamps on every timer registration.
func (r *Runtime) hostNow() float64 {
	return runloop.EpochMillis(r.clock.Now())
}

// consolePrinter routes console output to stderr under a stable
// prefix, keeping bundle logging apart from host logging.
type consolePrinter struct {
	l *log.Logger
}

func newConsolePrinter() consolePrinter {
	return consolePrinter{l: log.New(os.Stderr, "[strait script] ", 0)}
}

func (p consolePrinter) Log(msg string)   { p.l.Print(msg) }
func (p consolePrinter) Warn(msg string)  { p.l.Print("warn: " + msg) }
func (p consolePrinter) Error(msg string) { p.l.Print("error: " + msg) }
