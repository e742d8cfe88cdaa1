// Package request registers the event subscriptions of a session: the fixed
// catalog created right after connecting, and the breakpoint, step and
// watchpoint requests collaborators create on demand.
package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/service"
)

// ErrDisconnectedHandle is returned when subscriptions are created against
// a target that is no longer connected. Callers must only configure a
// handle returned by a successful connect.
var ErrDisconnectedHandle = errors.New("subscription created against a disconnected target")

// ExclusionFilters keeps the runtime's own libraries out of the event
// stream.
var ExclusionFilters = []string{"java.*", "javax.*", "sun.*", "com.sun.*"}

// Catalog is the fixed, ordered set of subscriptions Configure creates.
var Catalog = []api.Subscription{
	{Kind: api.Exception, NotifyCaught: true, NotifyUncaught: true, Filters: ExclusionFilters},
	{Kind: api.MethodExit, Filters: ExclusionFilters},
	{Kind: api.MethodEntry, Filters: ExclusionFilters},
	{Kind: api.MonitorWaited, Filters: ExclusionFilters},
	{Kind: api.MonitorWait, Filters: ExclusionFilters},
	{Kind: api.MonitorContendedEntered, Filters: ExclusionFilters},
	{Kind: api.MonitorContendedEnter, Filters: ExclusionFilters},
	{Kind: api.ClassUnload, Filters: ExclusionFilters},
	{Kind: api.ClassPrepare, Filters: ExclusionFilters},
	{Kind: api.ThreadDeath},
	{Kind: api.ThreadStart},
}

// Configure creates and enables every Catalog subscription on vm, in
// order, with SuspendAll. Calling it twice creates every subscription twice.
func Configure(vm service.VirtualMachine) ([]*api.Subscription, error) {
	m := NewManager(vm)
	subs := make([]*api.Subscription, 0, len(Catalog))
	for _, entry := range Catalog {
		sub, err := m.enable(entry)
		if err != nil {
			return subs, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Manager creates subscriptions on one target. It must only be used from
// the goroutine running the session.
type Manager struct {
	vm service.VirtualMachine
}

func NewManager(vm service.VirtualMachine) *Manager {
	return &Manager{vm: vm}
}

// EnableBreakpoint subscribes to Breakpoint events at loc.
func (m *Manager) EnableBreakpoint(loc api.Location) (*api.Subscription, error) {
	return m.enable(api.Subscription{Kind: api.Breakpoint, Location: &loc})
}

// EnableStep subscribes to the next Step event of thread.
func (m *Manager) EnableStep(thread api.ThreadRef, size api.StepSize, depth api.StepDepth) (*api.Subscription, error) {
	return m.enable(api.Subscription{
		Kind:    api.Step,
		Thread:  &thread,
		Size:    size,
		Depth:   depth,
		Filters: ExclusionFilters,
	})
}

// EnableAccessWatchpoint subscribes to reads of field.
func (m *Manager) EnableAccessWatchpoint(field api.Field) (*api.Subscription, error) {
	return m.enable(api.Subscription{Kind: api.AccessWatchpoint, Field: &field})
}

// EnableModificationWatchpoint subscribes to writes of field.
func (m *Manager) EnableModificationWatchpoint(field api.Field) (*api.Subscription, error) {
	return m.enable(api.Subscription{Kind: api.ModificationWatchpoint, Field: &field})
}

// Subscriptions lists every subscription registered on the target.
func (m *Manager) Subscriptions() []*api.Subscription {
	return m.vm.EventRequestManager().Requests()
}

func (m *Manager) enable(sub api.Subscription) (*api.Subscription, error) {
	sub.SuspendPolicy = api.SuspendAll
	sub.Enabled = true
	sub.Filters = append([]string(nil), sub.Filters...)

	created, err := m.vm.EventRequestManager().CreateRequest(&sub)
	if errors.Is(err, service.ErrDisconnected) {
		return nil, fmt.Errorf("%w: %s", ErrDisconnectedHandle, sub.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", sub.Kind, err)
	}
	return created, nil
}

type managerKey struct{}

// NewContext returns a copy of ctx carrying m.
func NewContext(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

// FromContext returns the Manager of the session dispatching the current
// event, if any.
func FromContext(ctx context.Context) (*Manager, bool) {
	m, ok := ctx.Value(managerKey{}).(*Manager)
	return m, ok
}
