package bridge

import (
	"encoding/json"
	"errors"
)

// MessageCodec encodes and decodes values crossing a serialization
// boundary (devtools payloads, request bodies).
type MessageCodec interface {
	// Encode converts a Go value to bytes.
	Encode(value any) ([]byte, error)

	// Decode converts bytes to a Go value.
	Decode(data []byte) (any, error)
}

// JsonCodec implements MessageCodec using JSON encoding.
// JSON prioritizes interoperability with the script runtime, which
// traffics in the same value shapes (maps, slices, float64 numbers).
type JsonCodec struct{}

// Encode serializes the value to JSON bytes.
func (c JsonCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode deserializes JSON bytes to a Go value.
func (c JsonCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DefaultCodec is the codec used where no other is configured.
var DefaultCodec MessageCodec = JsonCodec{}

// Stable codes carried across the script boundary. Scripts switch on
// err.code, so these never change once published.
const (
	CodeModuleNotFound    = "E_MODULE_NOT_FOUND"
	CodeMethodNotFound    = "E_METHOD_NOT_FOUND"
	CodeInvalidArguments  = "E_INVALID_ARGS"
	CodeBridgeInvalidated = "E_BRIDGE_INVALIDATED"
	CodeUnspecified       = "E_UNSPECIFIED"
)

// CallError represents a structured error surfaced to the script
// runtime, where it becomes an exception with a stable code.
type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *CallError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewCallError creates a CallError with the given code and message.
func NewCallError(code, message string) *CallError {
	return &CallError{Code: code, Message: message}
}

// NewCallErrorWithDetails creates a CallError with additional details.
func NewCallErrorWithDetails(code, message string, details any) *CallError {
	return &CallError{Code: code, Message: message, Details: details}
}

// AsCallError shapes err for the script boundary. A CallError anywhere
// in the chain passes through with its own code; bridge sentinels map
// to their stable codes; anything else folds under CodeUnspecified
// with its message intact.
func AsCallError(err error) *CallError {
	if err == nil {
		return nil
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr
	}
	code := CodeUnspecified
	switch {
	case errors.Is(err, ErrModuleNotFound):
		code = CodeModuleNotFound
	case errors.Is(err, ErrMethodNotFound):
		code = CodeMethodNotFound
	case errors.Is(err, ErrInvalidArguments):
		code = CodeInvalidArguments
	case errors.Is(err, ErrInvalidated):
		code = CodeBridgeInvalidated
	}
	return &CallError{Code: code, Message: err.Error()}
}
