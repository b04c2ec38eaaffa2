// Package router multiplexes the agent's newline-delimited JSON stream.
//
// A single read loop classifies each line by its type field:
//
//   - control_response resolves the matching pending outbound request;
//     each correlation id resolves at most once
//   - control_request dispatches to a registered handler on its own
//     goroutine, with a bounded handling deadline and exactly one response
//     written per request id
//   - control_cancel_request cancels the named in-flight handler
//   - everything else is a conversation message, decoded and delivered in
//     arrival order on a bounded queue with blocking backpressure
//
// An unparseable line is terminal: the router closes, every pending
// request fails with the protocol error, and the conversation queue ends
// with that error. The lifecycle is an explicit forward-only state machine
// (idle, connecting, active, draining, closed).
package router
