package startup

// State is a position in the startup state machine. Transitions are
// strictly linear; Failed is reachable from any non-terminal state.
type State int

const (
	StateIdle State = iota
	StateClientConnecting
	StateIdentityFetching
	StateCommandsRegistering
	StateRestartNoticeResolving
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClientConnecting:
		return "client_connecting"
	case StateIdentityFetching:
		return "identity_fetching"
	case StateCommandsRegistering:
		return "commands_registering"
	case StateRestartNoticeResolving:
		return "restart_notice_resolving"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}
