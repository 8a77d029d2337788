package collector

// State - server lifecycle state, mutated only by the Server itself.
type State int

const (
	// StateCreated - server was built but has no listening socket yet.
	StateCreated State = iota
	// StateBound - listening socket exists and is bound to the port.
	StateBound
	// StateListening - server accepts connections and consumes messages.
	StateListening
	// StateRestarting - transient state while a stopped server rebinds.
	StateRestarting
	// StateShuttingDown - transient state while handlers are joined.
	StateShuttingDown
	// StateStopped - server released the socket, restart is allowed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateListening:
		return "listening"
	case StateRestarting:
		return "restarting"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown state"
	}
}
