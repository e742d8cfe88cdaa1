// Package dispatchtest provides a Handler that records what it receives.
package dispatchtest

import (
	"context"
	"sync"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/dispatch"
)

// Recorder records every event in call order. Fail, when set, is called
// before recording and its error is returned to the dispatcher.
type Recorder struct {
	Fail func(ev *api.Event) error

	mu     sync.Mutex
	events []*api.Event
}

var _ dispatch.Handler = (*Recorder)(nil)

func (r *Recorder) record(ev *api.Event) error {
	if r.Fail != nil {
		if err := r.Fail(ev); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded events.
func (r *Recorder) Events() []*api.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*api.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events.
func (r *Recorder) Kinds() []api.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]api.EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind api.EventKind) int {
	n := 0
	for _, k := range r.Kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) HandleException(_ context.Context, ev *api.Event) error  { return r.record(ev) }
func (r *Recorder) HandleBreakpoint(_ context.Context, ev *api.Event) error { return r.record(ev) }
func (r *Recorder) HandleStep(_ context.Context, ev *api.Event) error       { return r.record(ev) }
func (r *Recorder) HandleAccessWatchpoint(_ context.Context, ev *api.Event) error {
	return r.record(ev)
}
func (r *Recorder) HandleModificationWatchpoint(_ context.Context, ev *api.Event) error {
	return r.record(ev)
}
func (r *Recorder) HandleMethodExit(_ context.Context, ev *api.Event) error    { return r.record(ev) }
func (r *Recorder) HandleMethodEntry(_ context.Context, ev *api.Event) error   { return r.record(ev) }
func (r *Recorder) HandleMonitorWaited(_ context.Context, ev *api.Event) error { return r.record(ev) }
func (r *Recorder) HandleMonitorWait(_ context.Context, ev *api.Event) error   { return r.record(ev) }
func (r *Recorder) HandleMonitorContendedEntered(_ context.Context, ev *api.Event) error {
	return r.record(ev)
}
func (r *Recorder) HandleMonitorContendedEnter(_ context.Context, ev *api.Event) error {
	return r.record(ev)
}
func (r *Recorder) HandleClassUnload(_ context.Context, ev *api.Event) error  { return r.record(ev) }
func (r *Recorder) HandleClassPrepare(_ context.Context, ev *api.Event) error { return r.record(ev) }
func (r *Recorder) HandleThreadDeath(_ context.Context, ev *api.Event) error  { return r.record(ev) }
func (r *Recorder) HandleThreadStart(_ context.Context, ev *api.Event) error  { return r.record(ev) }
func (r *Recorder) HandleVMDeath(_ context.Context, ev *api.Event) error      { return r.record(ev) }
func (r *Recorder) HandleVMDisconnect(_ context.Context, ev *api.Event) error { return r.record(ev) }
func (r *Recorder) HandleVMStart(_ context.Context, ev *api.Event) error      { return r.record(ev) }
