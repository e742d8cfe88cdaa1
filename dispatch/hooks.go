package dispatch

import (
	"context"
	"fmt"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/request"
)

// ClassPrepareFunc is called for every ClassPrepare event.
type ClassPrepareFunc func(ctx context.Context, ev *api.Event) error

// ClassPrepareHooks runs registered callbacks on ClassPrepare before handing
// the event to the wrapped Handler. It is how collaborators install
// breakpoints and watchpoints once the class they target is loaded.
type ClassPrepareHooks struct {
	Handler
	hooks []ClassPrepareFunc
}

func NewClassPrepareHooks(next Handler) *ClassPrepareHooks {
	return &ClassPrepareHooks{Handler: next}
}

// Add registers fn. Hooks run in registration order.
func (h *ClassPrepareHooks) Add(fn ClassPrepareFunc) {
	h.hooks = append(h.hooks, fn)
}

// Len returns the number of registered hooks.
func (h *ClassPrepareHooks) Len() int {
	return len(h.hooks)
}

func (h *ClassPrepareHooks) HandleClassPrepare(ctx context.Context, ev *api.Event) error {
	for _, fn := range h.hooks {
		if err := fn(ctx, ev); err != nil {
			return err
		}
	}
	return h.Handler.HandleClassPrepare(ctx, ev)
}

// BreakpointsOnPrepare returns a hook enabling a breakpoint on every line
// listed for the prepared class.
func BreakpointsOnPrepare(lines map[string][]int) ClassPrepareFunc {
	return func(ctx context.Context, ev *api.Event) error {
		class := ev.ClassPrepare.Type.Name
		if len(lines[class]) == 0 {
			return nil
		}
		m, ok := request.FromContext(ctx)
		if !ok {
			return fmt.Errorf("breakpoints for %s: no request manager in context", class)
		}
		for _, line := range lines[class] {
			if _, err := m.EnableBreakpoint(api.Location{ClassName: class, Line: line}); err != nil {
				return err
			}
		}
		return nil
	}
}

// WatchFieldsOnPrepare returns a hook enabling a modification watchpoint on
// every field of the prepared class when its name is in classes.
func WatchFieldsOnPrepare(classes ...string) ClassPrepareFunc {
	watched := make(map[string]bool, len(classes))
	for _, c := range classes {
		watched[c] = true
	}
	return func(ctx context.Context, ev *api.Event) error {
		t := ev.ClassPrepare.Type
		if !watched[t.Name] {
			return nil
		}
		m, ok := request.FromContext(ctx)
		if !ok {
			return fmt.Errorf("watchpoints for %s: no request manager in context", t.Name)
		}
		for _, f := range t.Fields {
			if _, err := m.EnableModificationWatchpoint(*f); err != nil {
				return err
			}
		}
		return nil
	}
}
