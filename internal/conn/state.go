package conn

import "github.com/aelexs/realtime-chat-client/internal/domain"

// State is the lifecycle state of the realtime connection.
//
//	Disconnected → Connecting → Connected → Disconnected
//	Connecting | Connected → Errored → Disconnected   (transport fault)
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// StateChange is delivered to subscribers on every transition.
type StateChange struct {
	ConnectionID domain.ConnectionID
	From         State
	To           State
	// Err is set when the transition was caused by a transport fault.
	// It wraps domain.ErrTransportFault.
	Err error
}
