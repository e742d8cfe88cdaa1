package session

import (
	"fmt"

	"github.com/google/uuid"
)

// State is the connection state of a session.
type State int

const (
	Connecting State = iota
	Running
	// Disconnecting is entered from Running once the connection is known to
	// be lost or a stop was requested. Only exit events are dispatched.
	Disconnecting
	// Disconnected is terminal.
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Running:
		return "Running"
	case Disconnecting:
		return "Disconnecting"
	case Disconnected:
		return "Disconnected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome classifies how a session ended.
type Outcome int

const (
	// OutcomeNone means the session has not ended, or never connected.
	OutcomeNone Outcome = iota
	// OutcomeNormalExit means the target died before the connection closed.
	OutcomeNormalExit
	// OutcomeAbnormalDisconnect means the connection closed without the
	// target's death being observed.
	OutcomeAbnormalDisconnect
	// OutcomeTerminated means the loop stopped on an unclassified failure.
	// The connection status is unknown.
	OutcomeTerminated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "None"
	case OutcomeNormalExit:
		return "NormalExit"
	case OutcomeAbnormalDisconnect:
		return "AbnormalDisconnect"
	case OutcomeTerminated:
		return "Terminated"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Status is a snapshot of a session.
type Status struct {
	ID           uuid.UUID
	State        State
	TargetExited bool
	Outcome      Outcome
	// Err is the error that ended the session, if any.
	Err error
}

func (s Status) String() string {
	str := fmt.Sprintf("session %s: %s, target exited: %t", s.ID, s.State, s.TargetExited)
	if s.Outcome != OutcomeNone {
		str += ", outcome: " + s.Outcome.String()
	}
	if s.Err != nil {
		str += ", error: " + s.Err.Error()
	}
	return str
}
