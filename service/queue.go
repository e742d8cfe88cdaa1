package service

import (
	"context"
	"sync"

	"github.com/alexengrig/JDebugger/api"
)

// Queue is an EventQueue fed by the goroutine reading a transport. Once
// the transport is closed, Remove hands out the sets still queued. If the
// service never reported VMDisconnect, Remove then reports ErrDisconnected
// (unless Disconnected already told a caller) followed by one final
// VMDisconnect set.
type Queue struct {
	mu          sync.Mutex
	sets        []*api.EventSet
	changed     chan struct{}
	closed      bool
	finished    bool
	reported    bool
	synthesized bool
}

var _ EventQueue = (*Queue)(nil)

func NewQueue() *Queue {
	return &Queue{changed: make(chan struct{})}
}

// Push appends set without its nil events. Sets left empty, and sets
// pushed after Close, are dropped. It reports whether set was queued.
func (q *Queue) Push(set *api.EventSet) bool {
	if set == nil {
		return false
	}
	events := make([]*api.Event, 0, len(set.Events))
	for _, ev := range set.Events {
		if ev != nil {
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.sets = append(q.sets, &api.EventSet{SuspendPolicy: set.SuspendPolicy, Events: events})
	for _, ev := range events {
		if ev.Kind == api.VMDisconnect {
			q.finished = true
		}
	}
	q.signal()
	return true
}

// Close marks the transport as gone.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.signal()
	}
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Disconnected records that a caller learnt about the disconnect and
// returns ErrDisconnected.
func (q *Queue) Disconnected() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reported = true
	return ErrDisconnected
}

func (q *Queue) Remove(ctx context.Context) (*api.EventSet, error) {
	for {
		q.mu.Lock()
		if len(q.sets) > 0 {
			set := q.sets[0]
			q.sets = q.sets[1:]
			q.mu.Unlock()
			return set, nil
		}
		if q.closed {
			set, err := q.afterClose()
			q.mu.Unlock()
			return set, err
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// afterClose must be called with mu held.
func (q *Queue) afterClose() (*api.EventSet, error) {
	switch {
	case q.finished || q.synthesized:
		return nil, ErrDisconnected
	case !q.reported:
		q.reported = true
		return nil, ErrDisconnected
	}
	q.synthesized = true
	return &api.EventSet{
		SuspendPolicy: api.SuspendNone,
		Events:        []*api.Event{{Kind: api.VMDisconnect}},
	}, nil
}

// signal must be called with mu held.
func (q *Queue) signal() {
	close(q.changed)
	q.changed = make(chan struct{})
}
