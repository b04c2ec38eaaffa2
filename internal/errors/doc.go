// Package errors defines the error types this module produces.
//
// Structured types cover the main failure surfaces: spawning the agent
// binary, wire protocol violations, process exits, and message decoding.
// All of them unwrap, so errors.Is, errors.As, and errors.AsType work
// through wrapping.
package errors
