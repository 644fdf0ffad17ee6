// Package errors provides structured error handling for the Strait framework.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindBridge indicates a bridge module or call-queue error.
	KindBridge
	// KindParsing indicates an argument or event parsing failure.
	KindParsing
	// KindInit indicates an initialization error.
	KindInit
	// KindScript indicates a script runtime error.
	KindScript
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindTiming indicates a timer scheduling error.
	KindTiming
)

func (k ErrorKind) String() string {
	switch k {
	case KindBridge:
		return "bridge"
	case KindParsing:
		return "parsing"
	case KindInit:
		return "init"
	case KindScript:
		return "script"
	case KindPanic:
		return "panic"
	case KindTiming:
		return "timing"
	default:
		return "unknown"
	}
}

// StraitError represents a structured error in the Strait framework.
type StraitError struct {
	// Op is the operation that failed (e.g., "bridge.DeliverCalls").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Module is the bridge module name, if applicable.
	Module string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *StraitError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("%s [%s] module=%s: %v", e.Op, e.Kind, e.Module, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *StraitError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "runloop.drainTasks").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a failure to parse bridge call arguments.
type ParseError struct {
	// Module is the bridge module that received the call.
	Module string
	// DataType is the expected type name.
	DataType string
	// Got is the actual data received.
	Got any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from module %s: got %T", e.DataType, e.Module, e.Got)
}

// ScriptError represents a failure inside the embedded script runtime.
type ScriptError struct {
	// Source identifies the script or bundle that failed (e.g., "bundle.js").
	Source string
	// Op is the host operation that triggered execution (e.g., "script.CallTimers").
	Op string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *ScriptError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in script %s: %v", e.Source, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in script %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("unknown error in script %s", e.Source)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the Strait framework.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *StraitError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleScriptError is called when script execution fails.
	HandleScriptError(err *ScriptError)
}
