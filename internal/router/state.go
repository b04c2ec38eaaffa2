package router

// State is the router lifecycle phase.
type State int32

const (
	// StateIdle is the initial state before Start.
	StateIdle State = iota
	// StateConnecting means the read loop runs but the initialize
	// handshake has not completed.
	StateConnecting
	// StateActive means the session is fully established.
	StateActive
	// StateDraining means input has ended and the router is waiting for
	// remaining output.
	StateDraining
	// StateClosed is terminal. All pending requests are force-resolved
	// and the conversation queue is closed.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
