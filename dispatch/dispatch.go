// Package dispatch routes events received from the debugging service to
// the matching method of a Handler.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexengrig/JDebugger/api"
)

var (
	// ErrUnexpectedEventKind means the service reported a kind this client
	// does not know, i.e. the service speaks a newer protocol.
	ErrUnexpectedEventKind = errors.New("unexpected event kind")
	// ErrMalformedEvent means an event lacks the payload its kind requires.
	ErrMalformedEvent = errors.New("malformed event")
)

type UnexpectedKindError struct {
	Kind api.EventKind
}

func (e *UnexpectedKindError) Error() string {
	return fmt.Sprintf("unexpected event type: %q", string(e.Kind))
}

func (e *UnexpectedKindError) Is(target error) bool {
	return target == ErrUnexpectedEventKind
}

// Handler has one method per event kind. Methods are called synchronously
// on the session goroutine; they may read the event but must not keep it.
// Returning an error wrapping service.ErrDisconnected starts the
// disconnect path, any other error ends the session.
type Handler interface {
	HandleException(ctx context.Context, ev *api.Event) error
	HandleBreakpoint(ctx context.Context, ev *api.Event) error
	HandleStep(ctx context.Context, ev *api.Event) error
	HandleAccessWatchpoint(ctx context.Context, ev *api.Event) error
	HandleModificationWatchpoint(ctx context.Context, ev *api.Event) error
	HandleMethodExit(ctx context.Context, ev *api.Event) error
	HandleMethodEntry(ctx context.Context, ev *api.Event) error
	HandleMonitorWaited(ctx context.Context, ev *api.Event) error
	HandleMonitorWait(ctx context.Context, ev *api.Event) error
	HandleMonitorContendedEntered(ctx context.Context, ev *api.Event) error
	HandleMonitorContendedEnter(ctx context.Context, ev *api.Event) error
	HandleClassUnload(ctx context.Context, ev *api.Event) error
	HandleClassPrepare(ctx context.Context, ev *api.Event) error
	HandleThreadDeath(ctx context.Context, ev *api.Event) error
	HandleThreadStart(ctx context.Context, ev *api.Event) error
	HandleVMDeath(ctx context.Context, ev *api.Event) error
	HandleVMDisconnect(ctx context.Context, ev *api.Event) error
	HandleVMStart(ctx context.Context, ev *api.Event) error
}

// Dispatch calls exactly one method of h, selected by ev.Kind.
func Dispatch(ctx context.Context, h Handler, ev *api.Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrMalformedEvent)
	}
	if err := checkPayload(ev); err != nil {
		return err
	}

	switch ev.Kind {
	case api.Exception:
		return h.HandleException(ctx, ev)
	case api.Breakpoint:
		return h.HandleBreakpoint(ctx, ev)
	case api.Step:
		return h.HandleStep(ctx, ev)
	case api.AccessWatchpoint:
		return h.HandleAccessWatchpoint(ctx, ev)
	case api.ModificationWatchpoint:
		return h.HandleModificationWatchpoint(ctx, ev)
	case api.MethodExit:
		return h.HandleMethodExit(ctx, ev)
	case api.MethodEntry:
		return h.HandleMethodEntry(ctx, ev)
	case api.MonitorWaited:
		return h.HandleMonitorWaited(ctx, ev)
	case api.MonitorWait:
		return h.HandleMonitorWait(ctx, ev)
	case api.MonitorContendedEntered:
		return h.HandleMonitorContendedEntered(ctx, ev)
	case api.MonitorContendedEnter:
		return h.HandleMonitorContendedEnter(ctx, ev)
	case api.ClassUnload:
		return h.HandleClassUnload(ctx, ev)
	case api.ClassPrepare:
		return h.HandleClassPrepare(ctx, ev)
	case api.ThreadDeath:
		return h.HandleThreadDeath(ctx, ev)
	case api.ThreadStart:
		return h.HandleThreadStart(ctx, ev)
	case api.VMDeath:
		return h.HandleVMDeath(ctx, ev)
	case api.VMDisconnect:
		return h.HandleVMDisconnect(ctx, ev)
	case api.VMStart:
		return h.HandleVMStart(ctx, ev)
	default:
		return &UnexpectedKindError{Kind: ev.Kind}
	}
}

func checkPayload(ev *api.Event) error {
	var missing bool
	switch ev.Kind {
	case api.Exception:
		missing = ev.Exception == nil
	case api.AccessWatchpoint, api.ModificationWatchpoint:
		missing = ev.Watchpoint == nil
	case api.MethodEntry, api.MethodExit:
		missing = ev.Method == nil
	case api.MonitorWait, api.MonitorWaited, api.MonitorContendedEnter, api.MonitorContendedEntered:
		missing = ev.Monitor == nil
	case api.ClassPrepare:
		missing = ev.ClassPrepare == nil
	case api.ClassUnload:
		missing = ev.ClassUnload == nil
	}
	if missing {
		return fmt.Errorf("%w: %s event without payload", ErrMalformedEvent, ev.Kind)
	}
	return nil
}
