// Package dap is a debugging service backend speaking the Debug Adapter
// Protocol to a debug adapter listening on TCP.
//
// Adapters only know breakpoints, steps and exception filters. Every other
// subscription is kept locally and matched against the events the adapter
// reports; kinds the protocol has no event for are accepted but never fire.
// Events are mapped as follows:
//
//	process                        VMStart
//	stopped (exception)            Exception
//	stopped (breakpoint, ...)      Breakpoint
//	stopped (step)                 Step
//	thread started / exited        ThreadStart / ThreadDeath
//	module, loadedSource new       ClassPrepare
//	module, loadedSource removed   ClassUnload
//	exited                         VMDeath
//	terminated                     VMDisconnect
package dap

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	godap "github.com/google/go-dap"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/service"
)

// Connector opens a new adapter connection for every Launch or Attach.
type Connector struct {
	Addr        string
	AdapterID   string
	DialTimeout time.Duration
}

var _ service.Connector = (*Connector)(nil)

func NewConnector(addr string) *Connector {
	return &Connector{
		Addr:        addr,
		AdapterID:   "jdbg",
		DialTimeout: 3 * time.Second,
	}
}

func (c *Connector) Launch(ctx context.Context, args service.Arguments) (service.VirtualMachine, error) {
	vm, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	vm.terminate = true
	if err := vm.start(ctx, "launch", launchArguments(args)); err != nil {
		vm.Close()
		return nil, err
	}
	return vm, nil
}

func (c *Connector) Attach(ctx context.Context, transport service.Transport, args service.Arguments) (service.VirtualMachine, error) {
	vm, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	arguments := launchArguments(args)
	arguments["transport"] = string(transport)
	if err := vm.start(ctx, "attach", arguments); err != nil {
		vm.Close()
		return nil, err
	}
	return vm, nil
}

func (c *Connector) dial(ctx context.Context) (*VM, error) {
	d := net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial adapter %s: %w", c.Addr, err)
	}
	return newVM(conn, c.AdapterID), nil
}

// launchArguments passes the connector options through, with flags turned
// into booleans.
func launchArguments(args service.Arguments) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if v == "true" || v == "false" {
			out[k] = v == "true"
			continue
		}
		out[k] = v
	}
	return out
}

// request is written as is; go-dap's typed requests are only used for
// decoding.
type request struct {
	godap.Request
	Arguments any `json:"arguments,omitempty"`
}

// VM is a target driven through a debug adapter.
type VM struct {
	conn      net.Conn
	reader    *bufio.Reader
	adapterID string
	queue     *service.Queue
	terminate bool

	writeMu sync.Mutex

	mu       sync.Mutex
	seq      int
	closed   bool
	pending  map[int]chan godap.ResponseMessage
	requests []*api.Subscription
	nextID   int
	// breakpoints maps adapter breakpoint IDs to their locations.
	breakpoints map[int]*api.Location
	terminated  bool
	traceMode   service.TraceMode
	configured  bool
	// stoppedThread is the thread of the last removed stopped event; the
	// next Resume continues it.
	stoppedThread int
	mustResume    bool
}

var (
	_ service.VirtualMachine      = (*VM)(nil)
	_ service.EventQueue          = (*VM)(nil)
	_ service.EventRequestManager = (*VM)(nil)
)

func newVM(conn net.Conn, adapterID string) *VM {
	vm := &VM{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		adapterID:   adapterID,
		queue:       service.NewQueue(),
		pending:     make(map[int]chan godap.ResponseMessage),
		nextID:      1,
		breakpoints: make(map[int]*api.Location),
		traceMode:   service.TraceNone,
	}
	go vm.readMessages()
	return vm
}

func (v *VM) start(ctx context.Context, command string, arguments map[string]any) error {
	if _, err := v.call(ctx, "initialize", map[string]any{
		"clientID":      "jdbg",
		"adapterID":     v.adapterID,
		"linesStartAt1": true,
		"pathFormat":    "path",
	}); err != nil {
		return fmt.Errorf("initialize adapter: %w", err)
	}
	if _, err := v.call(ctx, command, arguments); err != nil {
		if command == "launch" {
			return fmt.Errorf("%w: %v", service.ErrVMStart, err)
		}
		return fmt.Errorf("attach: %w", err)
	}
	return nil
}

func (v *VM) EventQueue() service.EventQueue                   { return v }
func (v *VM) EventRequestManager() service.EventRequestManager { return v }

// SetDebugTraceMode is recorded only; adapters have no wire tracing.
func (v *VM) SetDebugTraceMode(mode service.TraceMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return v.queue.Disconnected()
	}
	v.traceMode = mode
	return nil
}

// Remove finishes the adapter configuration on first use, so every
// subscription created before the first retrieval is in place when the
// target starts running.
func (v *VM) Remove(ctx context.Context) (*api.EventSet, error) {
	v.mu.Lock()
	configured := v.configured
	v.configured = true
	v.mu.Unlock()
	if !configured {
		if _, err := v.call(ctx, "configurationDone", nil); err != nil {
			return nil, fmt.Errorf("configuration done: %w", err)
		}
	}

	set, err := v.queue.Remove(ctx)
	if err != nil {
		return nil, err
	}
	if set.SuspendPolicy != api.SuspendNone && len(set.Events) > 0 && set.Events[0].Thread != nil {
		v.mu.Lock()
		v.stoppedThread = int(set.Events[0].Thread.ID)
		v.mustResume = true
		v.mu.Unlock()
	}
	return set, nil
}

// Resume continues the thread of the last stopped event, or steps it when
// a step subscription targets it.
func (v *VM) Resume() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return v.queue.Disconnected()
	}
	if !v.mustResume {
		v.mu.Unlock()
		return nil
	}
	v.mustResume = false
	thread := v.stoppedThread
	command := "continue"
	for _, sub := range v.requests {
		if sub.Kind == api.Step && sub.Enabled && (sub.Thread == nil || int(sub.Thread.ID) == thread) {
			command = stepCommand(sub.Depth)
			break
		}
	}
	v.mu.Unlock()

	_, err := v.call(context.Background(), command, map[string]any{"threadId": thread})
	return err
}

func stepCommand(depth api.StepDepth) string {
	switch depth {
	case api.StepInto:
		return "stepIn"
	case api.StepOut:
		return "stepOut"
	}
	return "next"
}

// Dispose disconnects from the adapter, terminating a launched target.
func (v *VM) Dispose() error {
	_, err := v.call(context.Background(), "disconnect", map[string]any{"terminateDebuggee": v.terminate})
	v.mu.Lock()
	terminated := v.terminated
	v.terminated = true
	v.mu.Unlock()
	if !terminated {
		v.queue.Push(&api.EventSet{
			SuspendPolicy: api.SuspendNone,
			Events:        []*api.Event{{Kind: api.VMDisconnect}},
		})
	}
	v.Close()
	return err
}

// Close drops the adapter connection.
func (v *VM) Close() error {
	return v.conn.Close()
}

func (v *VM) CreateRequest(sub *api.Subscription) (*api.Subscription, error) {
	if !sub.Kind.Known() || sub.Kind == api.VMStart || sub.Kind == api.VMDisconnect {
		return nil, fmt.Errorf("%w: cannot subscribe to %s", service.ErrIllegalArguments, sub.Kind)
	}
	if sub.Kind == api.Breakpoint && sub.Location == nil {
		return nil, fmt.Errorf("%w: breakpoint without location", service.ErrIllegalArguments)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, v.queue.Disconnected()
	}
	created := *sub
	created.ID = v.nextID
	created.Filters = append([]string(nil), sub.Filters...)
	v.nextID++
	v.requests = append(v.requests, &created)
	requests := append([]*api.Subscription(nil), v.requests...)
	v.mu.Unlock()

	var err error
	switch sub.Kind {
	case api.Breakpoint:
		var resp godap.ResponseMessage
		args, locations := breakpointArguments(requests, created.Location)
		resp, err = v.call(context.Background(), "setBreakpoints", args)
		if r, ok := resp.(*godap.SetBreakpointsResponse); ok && err == nil {
			v.mu.Lock()
			for i, bp := range r.Body.Breakpoints {
				if bp.Id != 0 && i < len(locations) {
					v.breakpoints[bp.Id] = locations[i]
				}
			}
			v.mu.Unlock()
		}
	case api.Exception:
		_, err = v.call(context.Background(), "setExceptionBreakpoints", exceptionArguments(requests))
	}
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", sub.Kind, err)
	}
	return &created, nil
}

func (v *VM) Requests() []*api.Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*api.Subscription(nil), v.requests...)
}

func sourceOf(loc *api.Location) string {
	if loc.SourceFile != "" {
		return loc.SourceFile
	}
	return loc.ClassName
}

// breakpointArguments lists every enabled breakpoint in the source of loc,
// since setBreakpoints replaces the breakpoints of a source. The locations
// are returned in request order.
func breakpointArguments(requests []*api.Subscription, loc *api.Location) (map[string]any, []*api.Location) {
	source := sourceOf(loc)
	var lines []map[string]any
	var locations []*api.Location
	for _, sub := range requests {
		if sub.Kind == api.Breakpoint && sub.Enabled && sourceOf(sub.Location) == source {
			lines = append(lines, map[string]any{"line": sub.Location.Line})
			locations = append(locations, sub.Location)
		}
	}
	return map[string]any{
		"source":      map[string]any{"name": loc.ClassName, "path": source},
		"breakpoints": lines,
	}, locations
}

func exceptionArguments(requests []*api.Subscription) map[string]any {
	var caught, uncaught bool
	for _, sub := range requests {
		if sub.Kind == api.Exception && sub.Enabled {
			caught = caught || sub.NotifyCaught
			uncaught = uncaught || sub.NotifyUncaught
		}
	}
	filters := []string{}
	if uncaught {
		filters = append(filters, "uncaught")
	}
	if caught {
		filters = append(filters, "raised")
	}
	return map[string]any{"filters": filters}
}

func (v *VM) call(ctx context.Context, command string, arguments any) (godap.ResponseMessage, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, v.queue.Disconnected()
	}
	v.seq++
	seq := v.seq
	ch := make(chan godap.ResponseMessage, 1)
	v.pending[seq] = ch
	v.mu.Unlock()

	if err := v.send(seq, command, arguments); err != nil {
		v.mu.Lock()
		delete(v.pending, seq)
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", v.queue.Disconnected(), err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, v.queue.Disconnected()
		}
		if r := resp.GetResponse(); !r.Success {
			return resp, fmt.Errorf("%s: %s", command, r.Message)
		}
		return resp, nil
	case <-ctx.Done():
		v.mu.Lock()
		delete(v.pending, seq)
		v.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (v *VM) send(seq int, command string, arguments any) error {
	req := &request{Arguments: arguments}
	req.Seq = seq
	req.Type = "request"
	req.Command = command

	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	return godap.WriteProtocolMessage(v.conn, req)
}

// sendAsync writes a request nobody waits for. It is used from the reader
// goroutine, which cannot wait for its own responses.
func (v *VM) sendAsync(command string, arguments any) {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.mu.Unlock()
	v.send(seq, command, arguments)
}

func (v *VM) readMessages() {
	defer v.shutdown()
	for {
		data, err := godap.ReadBaseMessage(v.reader)
		if err != nil {
			return
		}
		msg, err := godap.DecodeProtocolMessage(data)
		if err != nil {
			// Unsupported or malformed messages are skipped.
			continue
		}

		switch m := msg.(type) {
		case godap.ResponseMessage:
			v.deliverResponse(m)
		case godap.EventMessage:
			if done := v.handleEvent(m); done {
				return
			}
		}
	}
}

func (v *VM) deliverResponse(resp godap.ResponseMessage) {
	seq := resp.GetResponse().RequestSeq
	v.mu.Lock()
	ch, ok := v.pending[seq]
	delete(v.pending, seq)
	v.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// handleEvent queues the sets ev produces. It reports true once the
// adapter terminated the session.
func (v *VM) handleEvent(msg godap.EventMessage) bool {
	ev, stopped := convert(msg)
	if ev == nil {
		return false
	}
	if ev.Kind == api.Breakpoint {
		ev.Location = v.hitLocation(msg.(*godap.StoppedEvent).Body.HitBreakpointIds)
	}

	set := &api.EventSet{SuspendPolicy: api.SuspendNone}
	if stopped {
		set.SuspendPolicy = api.SuspendAll
	}
	if ev.Kind.Unsolicited() {
		set.Events = []*api.Event{ev}
	} else {
		for _, sub := range v.Requests() {
			if !sub.Matches(ev) {
				continue
			}
			reported := *ev
			reported.RequestID = sub.ID
			set.Events = append(set.Events, &reported)
		}
	}

	if len(set.Events) == 0 {
		if stopped && ev.Thread != nil {
			// Nobody asked for this stop.
			v.sendAsync("continue", map[string]any{"threadId": ev.Thread.ID})
		}
		return false
	}
	if ev.Kind == api.VMDisconnect {
		v.mu.Lock()
		v.terminated = true
		v.mu.Unlock()
	}
	v.queue.Push(set)
	return ev.Kind == api.VMDisconnect
}

func (v *VM) hitLocation(ids []int) *api.Location {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		if loc, ok := v.breakpoints[id]; ok {
			return loc
		}
	}
	return nil
}

func (v *VM) shutdown() {
	v.conn.Close()
	v.queue.Close()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for seq, ch := range v.pending {
		close(ch)
		delete(v.pending, seq)
	}
}

// convert maps an adapter event onto an event kind. It returns nil for
// events without a counterpart, and reports whether the adapter stopped.
func convert(msg godap.EventMessage) (*api.Event, bool) {
	switch e := msg.(type) {
	case *godap.ProcessEvent:
		return &api.Event{Kind: api.VMStart}, false
	case *godap.ThreadEvent:
		thread := &api.ThreadRef{ID: int64(e.Body.ThreadId)}
		switch e.Body.Reason {
		case "started":
			return &api.Event{Kind: api.ThreadStart, Thread: thread}, false
		case "exited":
			return &api.Event{Kind: api.ThreadDeath, Thread: thread}, false
		}
	case *godap.StoppedEvent:
		thread := &api.ThreadRef{ID: int64(e.Body.ThreadId)}
		switch e.Body.Reason {
		case "exception":
			name := e.Body.Text
			if name == "" {
				name = e.Body.Description
			}
			return &api.Event{
				Kind:      api.Exception,
				Thread:    thread,
				Exception: &api.ExceptionData{Exception: api.ObjectRef{TypeName: name}},
			}, true
		case "breakpoint", "function breakpoint", "instruction breakpoint":
			return &api.Event{Kind: api.Breakpoint, Thread: thread}, true
		case "step":
			return &api.Event{Kind: api.Step, Thread: thread}, true
		case "entry":
			return &api.Event{Kind: api.VMStart, Thread: thread}, true
		}
		// Pauses and other stops have no kind and match no subscription.
		return &api.Event{Thread: thread}, true
	case *godap.ModuleEvent:
		return classEvent(e.Body.Reason, e.Body.Module.Name), false
	case *godap.LoadedSourceEvent:
		name := e.Body.Source.Name
		if name == "" {
			name = e.Body.Source.Path
		}
		return classEvent(e.Body.Reason, name), false
	case *godap.ExitedEvent:
		return &api.Event{Kind: api.VMDeath}, false
	case *godap.TerminatedEvent:
		return &api.Event{Kind: api.VMDisconnect}, false
	}
	return nil, false
}

func classEvent(reason, name string) *api.Event {
	switch reason {
	case "new":
		return &api.Event{Kind: api.ClassPrepare, ClassPrepare: &api.ClassPrepareData{Type: api.TypeRef{Name: name}}}
	case "removed":
		return &api.Event{Kind: api.ClassUnload, ClassUnload: &api.ClassUnloadData{ClassName: name}}
	}
	return nil
}
