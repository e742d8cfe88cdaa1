// Package server exposes a service.Connector as a websocket debugging
// service. Each websocket connection drives one target: commands are
// answered with replies and event sets are streamed as they are removed
// from the target's queue.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/service"
)

var errNotConnected = errors.New("no target connected")

// Debugger executes the commands of one client against one target.
type Debugger struct {
	connector       service.Connector
	commandHandlers map[api.CommandName]commandHandler

	mu sync.Mutex
	vm service.VirtualMachine
	// connected is called once a launch or attach succeeded.
	connected func(vm service.VirtualMachine)
}

type commandHandler func(ctx context.Context, command *api.Command, reply *api.Reply) error

func NewDebugger(connector service.Connector, connected func(service.VirtualMachine)) *Debugger {
	d := &Debugger{
		connector: connector,
		connected: connected,
	}
	d.commandHandlers = map[api.CommandName]commandHandler{
		api.Launch:        d.Launch,
		api.Attach:        d.Attach,
		api.SetTraceMode:  d.SetTraceMode,
		api.CreateRequest: d.CreateRequest,
		api.Resume:        d.Resume,
		api.Dispose:       d.Dispose,
	}
	return d
}

// Handle runs command and returns its reply.
func (d *Debugger) Handle(ctx context.Context, command *api.Command) *api.Reply {
	reply := &api.Reply{Seq: command.Seq}
	handler, hasHandler := d.commandHandlers[command.Name]
	if !hasHandler {
		glog.Errorf("no handler for command %s", command.Name)
		reply.Code = api.ErrorInternal
		reply.Error = fmt.Sprintf("unknown command %q", command.Name)
		return reply
	}

	glog.V(1).Infof("handling command: %s", command.Name)
	if err := handler(ctx, command, reply); err != nil {
		glog.V(1).Infof("command %s failed: %v", command.Name, err)
		reply.Code = service.ErrorCode(err)
		reply.Error = err.Error()
	}
	return reply
}

func (d *Debugger) Launch(ctx context.Context, command *api.Command, reply *api.Reply) error {
	if command.Launch == nil {
		return fmt.Errorf("%w: launch without arguments", service.ErrIllegalArguments)
	}
	glog.Infof("launching target with args: %v", command.Launch.Arguments)
	vm, err := d.connector.Launch(ctx, service.Arguments(command.Launch.Arguments))
	if err != nil {
		return err
	}
	return d.setVM(vm)
}

func (d *Debugger) Attach(ctx context.Context, command *api.Command, reply *api.Reply) error {
	if command.Attach == nil {
		return fmt.Errorf("%w: attach without arguments", service.ErrIllegalArguments)
	}
	glog.Infof("attaching over %s with args: %v", command.Attach.Transport, command.Attach.Arguments)
	vm, err := d.connector.Attach(ctx, service.Transport(command.Attach.Transport), service.Arguments(command.Attach.Arguments))
	if err != nil {
		return err
	}
	return d.setVM(vm)
}

func (d *Debugger) SetTraceMode(ctx context.Context, command *api.Command, reply *api.Reply) error {
	vm, err := d.target()
	if err != nil {
		return err
	}
	mode := service.TraceNone
	if command.SetTraceMode != nil {
		mode = service.TraceMode(command.SetTraceMode.Mode)
	}
	return vm.SetDebugTraceMode(mode)
}

func (d *Debugger) CreateRequest(ctx context.Context, command *api.Command, reply *api.Reply) error {
	vm, err := d.target()
	if err != nil {
		return err
	}
	if command.CreateRequest == nil || command.CreateRequest.Subscription == nil {
		return fmt.Errorf("%w: no subscription", service.ErrIllegalArguments)
	}
	sub, err := vm.EventRequestManager().CreateRequest(command.CreateRequest.Subscription)
	if err != nil {
		return err
	}
	reply.RequestID = sub.ID
	return nil
}

func (d *Debugger) Resume(ctx context.Context, command *api.Command, reply *api.Reply) error {
	vm, err := d.target()
	if err != nil {
		return err
	}
	return vm.Resume()
}

func (d *Debugger) Dispose(ctx context.Context, command *api.Command, reply *api.Reply) error {
	vm, err := d.target()
	if err != nil {
		return err
	}
	glog.Info("disposing target")
	return vm.Dispose()
}

// Close disposes of the target, if any. It is called when the client went
// away.
func (d *Debugger) Close() {
	d.mu.Lock()
	vm := d.vm
	d.mu.Unlock()
	if vm != nil {
		vm.Dispose()
	}
}

func (d *Debugger) setVM(vm service.VirtualMachine) error {
	d.mu.Lock()
	if d.vm != nil {
		d.mu.Unlock()
		vm.Dispose()
		return fmt.Errorf("%w: already connected", service.ErrIllegalArguments)
	}
	d.vm = vm
	d.mu.Unlock()

	if d.connected != nil {
		d.connected(vm)
	}
	return nil
}

func (d *Debugger) target() (service.VirtualMachine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vm == nil {
		return nil, fmt.Errorf("%w: %w", service.ErrIllegalArguments, errNotConnected)
	}
	return d.vm, nil
}
