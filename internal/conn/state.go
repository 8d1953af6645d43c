// Package conn owns the websocket connection lifecycle: dialing,
// resubscription, the read loop with its silent-drop watchdog, and
// reconnection with exponential backoff.
package conn

// State is the supervisor's connection state. It is written only by the
// supervisor loop; everyone else observes it.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateActive
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
