package agentwire

import "github.com/agentwire/agentwire/internal/errors"

// Re-export error types from the internal package

// SpawnError indicates the agent binary could not be found or started.
type SpawnError = errors.SpawnError

// ProtocolError indicates the agent emitted a line that is not valid
// JSON. It is terminal for the session.
type ProtocolError = errors.ProtocolError

// ProcessExitError indicates the agent process exited, carrying the exit
// code and captured stderr.
type ProcessExitError = errors.ProcessExitError

// MessageParseError indicates a conversation message could not be decoded.
type MessageParseError = errors.MessageParseError

// Error is the marker interface implemented by every error this module
// originates.
type Error = errors.AgentwireError

// Re-export sentinel errors from the internal package.
var (
	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = errors.ErrNotConnected

	// ErrAlreadyConnected indicates the session is already connected.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrSessionClosed indicates the session was disconnected and cannot
	// be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrRequestTimeout indicates an outbound control request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrHandlerTimeout indicates an inbound callback exceeded its
	// deadline.
	ErrHandlerTimeout = errors.ErrHandlerTimeout
)
