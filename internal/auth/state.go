package auth

// FlowState is the position of a login attempt in the protocol.
type FlowState int

const (
	AnonymousRequest FlowState = iota
	LoginInitiated
	CallbackReceived
	Authenticated
	Rejected
)

func (s FlowState) String() string {
	switch s {
	case AnonymousRequest:
		return "anonymous_request"
	case LoginInitiated:
		return "login_initiated"
	case CallbackReceived:
		return "callback_received"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s FlowState) Terminal() bool {
	return s == Authenticated || s == Rejected
}
