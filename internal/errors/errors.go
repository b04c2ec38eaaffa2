package errors

import (
	"errors"
	"fmt"
)

// AgentwireError is the base interface for all errors produced by this module.
type AgentwireError interface {
	error
	IsAgentwireError() bool
}

// Compile-time verification that all error types implement AgentwireError.
var (
	_ AgentwireError = (*SpawnError)(nil)
	_ AgentwireError = (*ProtocolError)(nil)
	_ AgentwireError = (*ProcessExitError)(nil)
	_ AgentwireError = (*MessageParseError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = errors.New("session not connected")

	// ErrAlreadyConnected indicates the session is already connected.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.New("session closed: sessions are single-use, create a new one with NewSession()")

	// ErrNotReady indicates the process never produced output within the readiness window.
	ErrNotReady = errors.New("process not ready")

	// ErrStdinClosed indicates the input stream was closed and no further writes are possible.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrRequestTimeout indicates a control request timed out waiting for its response.
	ErrRequestTimeout = errors.New("control request timeout")

	// ErrHandlerTimeout indicates a dispatched handler did not complete in time.
	// It is reported to the subprocess as an error response, never raised to the caller.
	ErrHandlerTimeout = errors.New("handler timeout")

	// ErrRouterClosed indicates the protocol router has stopped.
	ErrRouterClosed = errors.New("protocol router closed")

	// ErrOperationCancelled indicates an in-flight operation was cancelled via a cancel request.
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrUnknownMessageType indicates the message type is not recognized.
	// Callers should skip these messages rather than treating them as fatal.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// SpawnError indicates the agent binary could not be found or launched.
type SpawnError struct {
	Path          string
	SearchedPaths []string
	Err           error
}

func (e *SpawnError) Error() string {
	if len(e.SearchedPaths) > 0 {
		return fmt.Sprintf("agent binary not found in: %v", e.SearchedPaths)
	}

	return fmt.Sprintf("failed to spawn agent process %q: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *SpawnError) IsAgentwireError() bool { return true }

// ProtocolError indicates unparseable or structurally invalid wire data.
// Past this point the line framing is presumed unrecoverable, so a
// ProtocolError is terminal for the session: all pending requests fail
// and the conversation stream ends with this error.
type ProtocolError struct {
	RawLine string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *ProtocolError) IsAgentwireError() bool { return true }

// ProcessExitError indicates the agent process exited while the session
// still needed it: requests were pending or a turn was incomplete.
type ProcessExitError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent process exited (code %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("agent process exited (code %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessExitError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *ProcessExitError) IsAgentwireError() bool { return true }

// MessageParseError indicates a classified conversation message could not
// be converted to its typed form.
type MessageParseError struct {
	Message string
	Err     error
	Raw     []byte
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %v", e.Err)
}

func (e *MessageParseError) Unwrap() error {
	return e.Err
}

// IsAgentwireError implements AgentwireError.
func (e *MessageParseError) IsAgentwireError() bool { return true }
