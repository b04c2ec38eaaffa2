// Package dispatch routes agent-originated control requests to user
// callbacks.
//
// The Table holds three registries: hook matchers per event, an optional
// permission callback, and named in-process tool servers. Hook matching
// is table-side: the agent gets one catch-all callback id per event and
// the table picks the entry (first match wins by default, MatchAll runs
// every match). Within an entry, a block decision short-circuits, continue
// flags AND together, and later outputs override earlier ones field by
// field. Tool handler faults are converted to structured error results
// and never escape to the router.
package dispatch
