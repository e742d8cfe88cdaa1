package connect

import (
	"errors"
	"fmt"
)

// Kind classifies a failed connection attempt.
type Kind int

const (
	// KindInvalidArguments: the descriptor was rejected.
	KindInvalidArguments Kind = iota + 1
	// KindLaunchIO: the target could not be started or reached.
	KindLaunchIO
	// KindTargetStart: the target started but its debug agent did not.
	KindTargetStart
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArguments:
		return "InvalidArguments"
	case KindLaunchIO:
		return "LaunchIOFailure"
	case KindTargetStart:
		return "TargetStartFailure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrInvalidArguments = errors.New("invalid connector arguments")
	ErrLaunchIO         = errors.New("unable to start or reach target")
	ErrTargetStart      = errors.New("target failed to initialize")
)

// Error is returned by Connect. No VirtualMachine exists when it is.
type Error struct {
	Kind Kind
	Mode Mode
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidArguments:
		return fmt.Sprintf("%s: invalid arguments: %v", e.Mode, e.Err)
	case KindLaunchIO:
		if e.Mode == Attach {
			return fmt.Sprintf("unable to attach to target vm: %v", e.Err)
		}
		return fmt.Sprintf("unable to launch target vm: %v", e.Err)
	case KindTargetStart:
		return fmt.Sprintf("target vm failed to initialize: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Mode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArguments:
		return e.Kind == KindInvalidArguments
	case ErrLaunchIO:
		return e.Kind == KindLaunchIO
	case ErrTargetStart:
		return e.Kind == KindTargetStart
	}
	return false
}

func invalid(mode Mode, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArguments, Mode: mode, Err: fmt.Errorf(format, args...)}
}
