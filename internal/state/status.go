package state

// Phase is the push connection lifecycle as seen by the display layer.
type Phase int

const (
	Idle Phase = iota
	Connecting
	Connected
	Errored
)

func (p Phase) String() string {
	switch p {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "error"
	default:
		return "idle"
	}
}

// Status is the connection status of a push receiver. Detail is only set for
// the Errored phase.
type Status struct {
	Phase  Phase
	Detail string
}

// ErrorStatus builds an Errored status carrying the cause's message.
func ErrorStatus(err error) Status {
	s := Status{Phase: Errored}
	if err != nil {
		s.Detail = err.Error()
	}
	return s
}

// String renders the status the way it is exposed in attributes:
// "connected", or "error: <detail>".
func (s Status) String() string {
	if s.Phase == Errored && s.Detail != "" {
		return "error: " + s.Detail
	}
	return s.Phase.String()
}
