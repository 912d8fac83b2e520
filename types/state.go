package types

// SessionState represents the session lifecycle state.
//
// States follow a defined progression during normal operation:
//
//	StateInit → StateJoining → StateActive
//
// During a transport outage:
//
//	StateActive → StateDegraded → StateResyncing → StateActive
//
// StateClosed is terminal.
type SessionState int

const (
	// StateInit is the initial state before Join is called.
	StateInit SessionState = iota

	// StateJoining indicates the session is subscribing to the room and
	// requesting a presence snapshot.
	StateJoining

	// StateActive indicates normal operation.
	StateActive

	// StateDegraded indicates the transport is disconnected: commits are
	// rejected and lock renewal is paused.
	StateDegraded

	// StateResyncing indicates the transport reconnected and the session is
	// re-joining, replacing its presence directory and revalidating locks.
	StateResyncing

	// StateClosed indicates the session has been left and discarded.
	StateClosed
)

// String returns the string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateJoining:
		return "Joining"
	case StateActive:
		return "Active"
	case StateDegraded:
		return "Degraded"
	case StateResyncing:
		return "Resyncing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
