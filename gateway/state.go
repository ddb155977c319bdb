package gateway

// State is the supervisor's view of the gateway lifecycle.
type State int

const (
	StateUnknown State = iota
	StateStarting
	StateOnline
	StateStopping
	StateOffline
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateOnline:
		return "Online"
	case StateStopping:
		return "Stopping"
	case StateOffline:
		return "Offline"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Busy reports whether a transition is in progress.
func (s State) Busy() bool {
	return s == StateStarting || s == StateStopping
}

// AllStates lists every state, in declaration order.
func AllStates() []State {
	return []State{StateUnknown, StateStarting, StateOnline, StateStopping, StateOffline, StateError}
}
