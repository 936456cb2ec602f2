package metaCall

// State is a step of a meta-call flow
type State int

const (
	StateIdle State = iota
	StateAddressResolved
	StateChequeReady
	StateMessageBuilt
	StateSigned
	StateSubmitted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAddressResolved:
		return "address_resolved"
	case StateChequeReady:
		return "cheque_ready"
	case StateMessageBuilt:
		return "message_built"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the flow has stopped
func (s State) IsTerminal() bool {
	return s == StateSubmitted || s == StateCancelled || s == StateFailed
}
