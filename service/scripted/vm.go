package scripted

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/service"
)

// VM is a simulated target replaying a scenario. A delivered event set
// whose suspend policy is not SuspendNone holds back the next one until
// Resume is called.
type VM struct {
	scenario *Scenario

	mu        sync.Mutex
	changed   chan struct{}
	requests  []*api.Subscription
	nextID    int
	traceMode service.TraceMode

	next        int
	delivered   int
	suspended   bool
	resumes     int
	interrupted map[int]bool

	dropped      bool
	dropReported bool
	disposed     bool
	done         bool
}

var (
	_ service.VirtualMachine      = (*VM)(nil)
	_ service.EventQueue          = (*VM)(nil)
	_ service.EventRequestManager = (*VM)(nil)
)

func newVM(s *Scenario) *VM {
	return &VM{
		scenario:    s,
		changed:     make(chan struct{}),
		nextID:      1,
		traceMode:   service.TraceAll,
		interrupted: make(map[int]bool),
	}
}

func (v *VM) EventQueue() service.EventQueue                   { return v }
func (v *VM) EventRequestManager() service.EventRequestManager { return v }

func (v *VM) SetDebugTraceMode(mode service.TraceMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gone() {
		return v.disconnectedErr()
	}
	v.traceMode = mode
	return nil
}

func (v *VM) Resume() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gone() {
		return v.disconnectedErr()
	}
	v.resumes++
	v.suspended = false
	v.signal()
	return nil
}

func (v *VM) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.disposed {
		v.disposed = true
		v.signal()
	}
	return nil
}

// Drop simulates the transport to the target going away.
func (v *VM) Drop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.dropped {
		v.dropped = true
		v.signal()
	}
}

func (v *VM) CreateRequest(sub *api.Subscription) (*api.Subscription, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gone() {
		return nil, v.disconnectedErr()
	}
	if !sub.Kind.Known() || sub.Kind == api.VMDisconnect || sub.Kind == api.VMStart {
		return nil, fmt.Errorf("%w: cannot subscribe to %s", service.ErrIllegalArguments, sub.Kind)
	}

	created := *sub
	created.ID = v.nextID
	created.Filters = append([]string(nil), sub.Filters...)
	v.nextID++
	v.requests = append(v.requests, &created)
	return &created, nil
}

func (v *VM) Requests() []*api.Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*api.Subscription(nil), v.requests...)
}

// Remove returns the next event set the scenario produces for the current
// subscriptions.
func (v *VM) Remove(ctx context.Context) (*api.EventSet, error) {
	for {
		v.mu.Lock()
		set, wait, err := v.nextSet()
		ch := v.changed
		v.mu.Unlock()
		if !wait {
			return set, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// nextSet must be called with mu held. It reports wait when the caller has
// to block until the state changes.
func (v *VM) nextSet() (*api.EventSet, bool, error) {
	switch {
	case v.done:
		return nil, false, service.ErrDisconnected
	case v.dropped && !v.dropReported:
		v.dropReported = true
		return nil, false, service.ErrDisconnected
	case v.disposed:
		return v.disconnect(), false, nil
	case v.suspended && !v.dropped:
		return nil, true, nil
	}

	for v.next < len(v.scenario.Batches) {
		i := v.next
		b := v.scenario.Batches[i]
		if b.Interrupt && !v.interrupted[i] {
			v.interrupted[i] = true
			return nil, false, service.ErrInterrupted
		}
		v.next++
		if b.Fail != "" {
			return nil, false, errors.New(b.Fail)
		}

		set := v.filter(b)
		if len(set.Events) == 0 {
			continue
		}
		v.delivered++
		v.suspended = set.SuspendPolicy != api.SuspendNone
		for _, ev := range set.Events {
			if ev.Kind == api.VMDisconnect {
				v.done = true
			}
		}
		if v.scenario.DropAfter > 0 && v.delivered == v.scenario.DropAfter {
			v.dropped = true
		}
		return set, false, nil
	}

	if v.dropped {
		return v.disconnect(), false, nil
	}
	return nil, true, nil
}

func (v *VM) disconnect() *api.EventSet {
	v.done = true
	v.delivered++
	return &api.EventSet{
		SuspendPolicy: api.SuspendNone,
		Events:        []*api.Event{{Kind: api.VMDisconnect}},
	}
}

func (v *VM) filter(b *Batch) *api.EventSet {
	set := &api.EventSet{SuspendPolicy: b.Suspend}
	for _, se := range b.Events {
		ev := se.Event()
		if ev.Kind.Unsolicited() || !ev.Kind.Known() {
			set.Events = append(set.Events, ev)
			continue
		}
		for _, sub := range v.requests {
			if !sub.Matches(ev) {
				continue
			}
			reported := *ev
			reported.RequestID = sub.ID
			set.Events = append(set.Events, &reported)
			set.SuspendPolicy = stronger(set.SuspendPolicy, sub.SuspendPolicy)
		}
	}
	return set
}

// disconnectedErr reports a drop to the caller. Once a drop has been
// reported by any operation, Remove goes on with the remaining sets.
func (v *VM) disconnectedErr() error {
	if v.dropped {
		v.dropReported = true
	}
	return service.ErrDisconnected
}

func (v *VM) gone() bool {
	return v.disposed || v.dropped || v.done
}

func (v *VM) signal() {
	close(v.changed)
	v.changed = make(chan struct{})
}

// ResumeCount returns how many times Resume succeeded.
func (v *VM) ResumeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resumes
}

// TraceMode returns the last mode set with SetDebugTraceMode.
func (v *VM) TraceMode() service.TraceMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.traceMode
}

var suspendRank = map[api.SuspendPolicy]int{
	api.SuspendNone:        0,
	api.SuspendEventThread: 1,
	api.SuspendAll:         2,
}

func stronger(a, b api.SuspendPolicy) api.SuspendPolicy {
	if suspendRank[b] > suspendRank[a] {
		return b
	}
	return a
}
