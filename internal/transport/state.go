package transport

import "fmt"

// State is a session's position in the handshake/liveness/teardown
// lifecycle.
type State int

const (
	StateIdle State = iota
	StatePendingInvite
	StateAuthenticating
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingInvite:
		return "pending-invite"
	case StateAuthenticating:
		return "authenticating"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when an event arrives that the current
// state does not expect.
type ErrInvalidTransition struct {
	From  State
	Event string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("transport: event %q invalid in state %s", e.Event, e.From)
}

// transition is the pure state table: given the current state and an
// inbound event name, it returns the next state or an error. Keeping this
// as a standalone function (rather than inline in the session's read
// loop) makes the handshake/glare/teardown logic exhaustively testable
// without a network.
func transition(from State, event string) (State, error) {
	switch from {
	case StateIdle:
		switch event {
		case "send-invitation", "recv-invitation":
			return StatePendingInvite, nil
		}
	case StatePendingInvite:
		switch event {
		case "recv-invitation-pending":
			return StatePendingInvite, nil
		case "recv-auth-challenge", "send-auth-challenge":
			return StateAuthenticating, nil
		case "recv-invitation-accepted", "send-invitation-accepted":
			return StateEstablished, nil
		case "recv-invitation", "glare-lost":
			return StateIdle, nil
		case "glare-won":
			return StatePendingInvite, nil
		case "recv-bye", "timeout":
			return StateIdle, nil
		}
	case StateAuthenticating:
		switch event {
		case "recv-invitation-accepted", "send-invitation-accepted":
			return StateEstablished, nil
		case "recv-nak", "auth-failed", "recv-bye", "timeout":
			return StateIdle, nil
		}
	case StateEstablished:
		switch event {
		case "send-bye", "recv-bye":
			return StateClosing, nil
		case "ping-timeout":
			return StateClosing, nil
		}
	case StateClosing:
		switch event {
		case "recv-bye-reply", "send-bye-reply", "timeout":
			return StateClosed, nil
		}
	}

	return from, &ErrInvalidTransition{From: from, Event: event}
}
