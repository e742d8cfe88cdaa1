package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/observability"
)

// EventReceived is emitted by LoggingHandler for every event.
const EventReceived observability.EventType = "dispatch.event"

// LoggingHandler reports every event to an Observer and otherwise does
// nothing.
type LoggingHandler struct {
	Observer observability.Observer
}

var _ Handler = LoggingHandler{}

func (h LoggingHandler) report(ctx context.Context, ev *api.Event, message string) error {
	if h.Observer == nil {
		return nil
	}
	data := map[string]any{
		"kind":    string(ev.Kind),
		"message": message,
	}
	if ev.RequestID != 0 {
		data["request"] = ev.RequestID
	}
	if ev.Thread != nil {
		data["thread"] = ev.Thread.Name
	}
	h.Observer.OnEvent(ctx, observability.Event{
		Type:      EventReceived,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "dispatch",
		Data:      data,
	})
	return nil
}

func (h LoggingHandler) HandleException(ctx context.Context, ev *api.Event) error {
	where := "uncaught"
	if ev.Exception.Caught() {
		where = formatLocation(ev.Exception.CatchLocation)
	}
	return h.report(ctx, ev, fmt.Sprintf("Exception: %s; in location: %s.", ev.Exception.Exception.TypeName, where))
}

func (h LoggingHandler) HandleBreakpoint(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Breakpoint at %s.", formatLocation(ev.Location)))
}

func (h LoggingHandler) HandleStep(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Step to %s.", formatLocation(ev.Location)))
}

func (h LoggingHandler) HandleAccessWatchpoint(ctx context.Context, ev *api.Event) error {
	wp := ev.Watchpoint
	return h.report(ctx, ev, fmt.Sprintf("Field %s.%s read: %s.", wp.Field.DeclaringType, wp.Field.Name, wp.ValueCurrent.Text))
}

func (h LoggingHandler) HandleModificationWatchpoint(ctx context.Context, ev *api.Event) error {
	wp := ev.Watchpoint
	next := ""
	if wp.ValueToBe != nil {
		next = wp.ValueToBe.Text
	}
	return h.report(ctx, ev, fmt.Sprintf("Field %s.%s modified: %s -> %s.", wp.Field.DeclaringType, wp.Field.Name, wp.ValueCurrent.Text, next))
}

func (h LoggingHandler) HandleMethodExit(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Method exited: %s.", ev.Method.Method))
}

func (h LoggingHandler) HandleMethodEntry(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Method entered: %s.", ev.Method.Method))
}

func (h LoggingHandler) HandleMonitorWaited(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Waited on monitor %s (timed out: %t).", ev.Monitor.Monitor.TypeName, ev.Monitor.TimedOut))
}

func (h LoggingHandler) HandleMonitorWait(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Waiting on monitor %s.", ev.Monitor.Monitor.TypeName))
}

func (h LoggingHandler) HandleMonitorContendedEntered(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Entered contended monitor %s.", ev.Monitor.Monitor.TypeName))
}

func (h LoggingHandler) HandleMonitorContendedEnter(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Entering contended monitor %s.", ev.Monitor.Monitor.TypeName))
}

func (h LoggingHandler) HandleClassUnload(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Class unloaded: %s.", ev.ClassUnload.ClassName))
}

func (h LoggingHandler) HandleClassPrepare(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("Class prepared: %s.", ev.ClassPrepare.Type.Name))
}

func (h LoggingHandler) HandleThreadDeath(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("%q thread terminated.", threadName(ev)))
}

func (h LoggingHandler) HandleThreadStart(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("%q thread started.", threadName(ev)))
}

func (h LoggingHandler) HandleVMDeath(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, "VM finished.")
}

func (h LoggingHandler) HandleVMDisconnect(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, "VM disconnected.")
}

func (h LoggingHandler) HandleVMStart(ctx context.Context, ev *api.Event) error {
	return h.report(ctx, ev, fmt.Sprintf("VM started in %q thread.", threadName(ev)))
}

func formatLocation(loc *api.Location) string {
	if loc == nil {
		return "unknown"
	}
	if loc.Method != "" {
		return fmt.Sprintf("%s.%s:%d", loc.ClassName, loc.Method, loc.Line)
	}
	return fmt.Sprintf("%s:%d", loc.ClassName, loc.Line)
}

func threadName(ev *api.Event) string {
	if ev.Thread == nil {
		return ""
	}
	return ev.Thread.Name
}
