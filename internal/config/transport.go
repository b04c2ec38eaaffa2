// Package config provides the options consumed across the module and the
// transport interface boundary.
package config

import "context"

// Transport is the communication boundary to the agent process.
//
// The default implementation spawns a subprocess and speaks
// newline-delimited JSON over its pipes. Custom transports can be injected
// via Options.Transport for testing or remote connections.
type Transport interface {
	// Start launches the transport and prepares it for communication.
	Start(ctx context.Context) error

	// ReadMessages returns channels yielding raw stdout lines and read
	// errors. Lines are delivered undecoded; classification and JSON
	// decoding are the caller's concern. Both channels are closed when
	// reading completes or fails.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage writes one JSON message to the agent's stdin. A trailing
	// newline is appended when missing. Safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// EndInput signals that no more input will be sent. For process-based
	// transports this closes stdin.
	EndInput() error

	// IsReady reports whether the transport is ready for communication.
	IsReady() bool

	// Close terminates the transport and releases resources. Safe to call
	// more than once.
	Close() error
}
