// Package session runs a debugging session: it connects to the target,
// registers the subscription catalog and then feeds every event the
// service reports to a dispatch.Handler until the connection ends.
//
// The target is resumed once per event set, after every event of the set
// has been dispatched (see ResumePerBatch). Events of one set therefore
// always observe the target under the same suspension.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/connect"
	"github.com/alexengrig/JDebugger/dispatch"
	"github.com/alexengrig/JDebugger/observability"
	"github.com/alexengrig/JDebugger/request"
	"github.com/alexengrig/JDebugger/service"
)

// ResumePerBatch names the resume policy of the loop: VirtualMachine.Resume
// is called exactly once per retrieved event set, after all of its events
// were dispatched, including sets processed while draining. Resuming after
// each event is not supported.
const ResumePerBatch = "per-batch"

const defaultDrainTimeout = 10 * time.Second

var (
	// ErrLoopFailure wraps an unclassified failure that ended the loop.
	ErrLoopFailure = errors.New("session loop failed")
	// ErrAlreadyStarted is returned by Run and Start on a used session.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotStarted is returned by Wait before Start.
	ErrNotStarted = errors.New("session not started")
)

// Observer event types.
const (
	EventState       observability.EventType = "session.state"
	EventInterrupted observability.EventType = "session.interrupted"
	EventDiscarded   observability.EventType = "session.discarded"
	EventFailure     observability.EventType = "session.failure"
)

// Session is one connection to one target. A Session runs once.
type Session struct {
	id           uuid.UUID
	connector    service.Connector
	mode         connect.Mode
	descriptor   connect.Descriptor
	handler      dispatch.Handler
	observer     observability.Observer
	drainTimeout time.Duration

	mu      sync.Mutex
	status  Status
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

type Option func(*Session)

// WithObserver sets where the session reports its progress. The default
// discards everything.
func WithObserver(obs observability.Observer) Option {
	return func(s *Session) {
		if obs != nil {
			s.observer = obs
		}
	}
}

// WithDrainTimeout bounds how long a stopped session waits for the service
// to report the disconnect. Zero waits forever.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.drainTimeout = d
	}
}

// WithID overrides the generated session ID.
func WithID(id uuid.UUID) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New returns a session that will connect through c to the target
// described by d and hand every event to h.
func New(c service.Connector, mode connect.Mode, d connect.Descriptor, h dispatch.Handler, opts ...Option) *Session {
	s := &Session{
		id:           uuid.New(),
		connector:    c,
		mode:         mode,
		descriptor:   d,
		handler:      h,
		observer:     observability.NoOpObserver{},
		drainTimeout: defaultDrainTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status = Status{ID: s.id, State: Connecting}
	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Status returns a snapshot of the session. It is safe to call from any
// goroutine.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start runs the session in a new goroutine.
func (s *Session) Start(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	go func() {
		err := s.run(ctx)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	}()
	return nil
}

// Wait blocks until a started session ends and returns the error Run
// would have returned.
func (s *Session) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once a started session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop asks the session to disconnect. The event set being dispatched, if
// any, is completed first; the target is then disposed and the loop drains
// until the service reports the disconnect. Stop does not wait.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run connects, configures the subscription catalog and runs the event
// loop until the session is disconnected. It blocks; see Start.
//
// A connection failure is returned as *connect.Error and leaves the state
// at Connecting. A loop failure is returned wrapped in ErrLoopFailure with
// the state left as it was and OutcomeTerminated. Losing the connection is
// not an error: Run returns nil with the state Disconnected.
func (s *Session) Run(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer close(s.done)
	err := s.run(ctx)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

func (s *Session) begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	return nil
}

func (s *Session) run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()

	vm, err := connect.Connect(runCtx, s.connector, s.mode, s.descriptor)
	if err != nil {
		s.setErr(err)
		s.report(ctx, EventFailure, observability.LevelError, map[string]any{"phase": "connect", "error": err.Error()})
		return err
	}

	if _, err := request.Configure(vm); err != nil {
		vm.Dispose()
		return s.fail(ctx, fmt.Errorf("configure subscriptions: %w", err))
	}

	s.setState(ctx, Running)
	l := &loop{
		s:      s,
		vm:     vm,
		queue:  vm.EventQueue(),
		runCtx: runCtx,
		// Handlers always see a batch through; stopping only takes effect
		// between batches.
		dispatchCtx: request.NewContext(context.WithoutCancel(ctx), request.NewManager(vm)),
	}
	return l.run(ctx)
}

type loop struct {
	s           *Session
	vm          service.VirtualMachine
	queue       service.EventQueue
	runCtx      context.Context
	dispatchCtx context.Context
}

func (l *loop) run(ctx context.Context) error {
	for {
		if l.runCtx.Err() != nil {
			return l.stop(ctx)
		}

		set, err := l.queue.Remove(l.runCtx)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrInterrupted):
			l.s.report(ctx, EventInterrupted, observability.LevelWarning, map[string]any{"error": err.Error()})
			continue
		case errors.Is(err, service.ErrDisconnected):
			return l.drain(ctx, nil)
		case l.runCtx.Err() != nil:
			return l.stop(ctx)
		default:
			l.vm.Dispose()
			return l.s.fail(ctx, fmt.Errorf("remove event set: %w", err))
		}

		for i, ev := range set.Events {
			err := l.dispatch(ev)
			if err == nil {
				if l.s.Status().State == Disconnected {
					break
				}
				continue
			}
			if errors.Is(err, service.ErrDisconnected) {
				return l.drain(ctx, set.Events[i+1:])
			}
			l.vm.Dispose()
			return l.s.fail(ctx, err)
		}

		err = l.vm.Resume()
		if l.s.Status().State == Disconnected {
			return nil
		}
		switch {
		case err == nil:
		case errors.Is(err, service.ErrDisconnected):
			return l.drain(ctx, nil)
		default:
			l.vm.Dispose()
			return l.s.fail(ctx, fmt.Errorf("resume: %w", err))
		}
	}
}

// stop disposes of the target and drains until the service confirms the
// disconnect or the drain timeout expires.
func (l *loop) stop(ctx context.Context) error {
	l.s.setState(ctx, Disconnecting)
	if err := l.vm.Dispose(); err != nil {
		l.s.report(ctx, EventFailure, observability.LevelWarning, map[string]any{"phase": "dispose", "error": err.Error()})
	}
	drainCtx := context.WithoutCancel(ctx)
	if l.s.drainTimeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(drainCtx, l.s.drainTimeout)
		defer cancel()
	}
	l.drainSets(ctx, drainCtx)
	return nil
}

// drain processes the rest of the current event set and every following
// one, dispatching only exit events, until the service reports the
// disconnect or can no longer be read.
func (l *loop) drain(ctx context.Context, rest []*api.Event) error {
	l.s.setState(ctx, Disconnecting)
	if rest != nil {
		l.drainEvents(ctx, rest)
		l.vm.Resume()
		if l.s.Status().State == Disconnected {
			return nil
		}
	}
	l.drainSets(ctx, context.WithoutCancel(ctx))
	return nil
}

func (l *loop) drainSets(ctx, removeCtx context.Context) {
	for {
		set, err := l.queue.Remove(removeCtx)
		if errors.Is(err, service.ErrInterrupted) {
			continue
		}
		if err != nil {
			l.s.report(ctx, EventFailure, observability.LevelWarning, map[string]any{"phase": "drain", "error": err.Error()})
			l.s.finish(ctx)
			return
		}
		l.drainEvents(ctx, set.Events)
		// The target may be gone already; a failing resume changes nothing.
		l.vm.Resume()
		if l.s.Status().State == Disconnected {
			return
		}
	}
}

func (l *loop) drainEvents(ctx context.Context, events []*api.Event) {
	for _, ev := range events {
		if l.s.Status().State == Disconnected {
			return
		}
		if ev == nil {
			l.s.report(ctx, EventDiscarded, observability.LevelVerbose, map[string]any{"kind": "nil"})
			continue
		}
		if !ev.Exit() {
			l.s.report(ctx, EventDiscarded, observability.LevelVerbose, map[string]any{"kind": string(ev.Kind)})
			continue
		}
		if err := l.dispatch(ev); err != nil {
			l.s.report(ctx, EventFailure, observability.LevelWarning, map[string]any{
				"phase": "drain",
				"kind":  string(ev.Kind),
				"error": err.Error(),
			})
		}
	}
}

// dispatch records the exit events in the status before handing ev to the
// handler. The handler of VMDisconnect cannot fail the session.
func (l *loop) dispatch(ev *api.Event) error {
	if ev != nil {
		switch ev.Kind {
		case api.VMDeath:
			l.s.targetExited(l.dispatchCtx)
		case api.VMDisconnect:
			l.s.finish(l.dispatchCtx)
			if err := dispatch.Dispatch(l.dispatchCtx, l.s.handler, ev); err != nil {
				l.s.report(l.dispatchCtx, EventFailure, observability.LevelWarning, map[string]any{
					"phase": "dispatch",
					"kind":  string(ev.Kind),
					"error": err.Error(),
				})
			}
			return nil
		}
	}
	return dispatch.Dispatch(l.dispatchCtx, l.s.handler, ev)
}

func (s *Session) setState(ctx context.Context, state State) {
	s.mu.Lock()
	prev := s.status.State
	s.status.State = state
	s.mu.Unlock()
	if prev == state {
		return
	}
	data := map[string]any{"from": prev.String(), "to": state.String()}
	if state == Running {
		data["resume"] = ResumePerBatch
	}
	s.report(ctx, EventState, observability.LevelInfo, data)
}

func (s *Session) targetExited(ctx context.Context) {
	s.mu.Lock()
	s.status.TargetExited = true
	s.mu.Unlock()
	s.report(ctx, EventState, observability.LevelInfo, map[string]any{"targetExited": true})
}

// finish moves the session to Disconnected and classifies the end.
func (s *Session) finish(ctx context.Context) {
	s.mu.Lock()
	if s.status.State == Disconnected {
		s.mu.Unlock()
		return
	}
	prev := s.status.State
	s.status.State = Disconnected
	s.status.Outcome = OutcomeAbnormalDisconnect
	if s.status.TargetExited {
		s.status.Outcome = OutcomeNormalExit
	}
	outcome := s.status.Outcome
	s.mu.Unlock()

	s.report(ctx, EventState, observability.LevelInfo, map[string]any{
		"from":    prev.String(),
		"to":      Disconnected.String(),
		"outcome": outcome.String(),
	})
}

func (s *Session) fail(ctx context.Context, err error) error {
	if !errors.Is(err, ErrLoopFailure) {
		err = fmt.Errorf("%w: %w", ErrLoopFailure, err)
	}
	s.mu.Lock()
	s.status.Outcome = OutcomeTerminated
	s.status.Err = err
	state := s.status.State
	s.mu.Unlock()
	s.report(ctx, EventFailure, observability.LevelError, map[string]any{
		"phase": "loop",
		"state": state.String(),
		"error": err.Error(),
	})
	return err
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Err = err
}

func (s *Session) report(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	data["session"] = s.id.String()
	s.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "session",
		Data:      data,
	})
}
