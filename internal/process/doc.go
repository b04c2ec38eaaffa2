// Package process owns the agent subprocess.
//
// Handle implements the Transport interface by spawning the agent binary
// as a child process and speaking newline-delimited JSON over its pipes.
// It covers the full lifecycle: spawn, readiness, line-oriented reads with
// stderr draining, serialized stdin writes, and graceful termination with
// kill escalation. The exit status is recorded exactly once no matter which
// path observes it first.
package process
