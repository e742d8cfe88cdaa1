// Package connect establishes the connection to a target: it launches a new
// one or attaches to a running one through a service.Connector and
// classifies failures so callers can tell bad arguments from an
// environment problem.
package connect

import (
	"context"
	"errors"

	"github.com/alexengrig/JDebugger/service"
)

// Connect launches or attaches to the target described by d. On success
// the returned VirtualMachine has debug tracing disabled. Failures are
// returned as *Error and are never retried.
func Connect(ctx context.Context, c service.Connector, mode Mode, d Descriptor) (service.VirtualMachine, error) {
	if d == nil {
		return nil, invalid(mode, "no target descriptor")
	}
	if d.Mode() != mode {
		return nil, invalid(mode, "%s descriptor used for %s", d.Mode(), mode)
	}

	args, err := d.Arguments()
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &Error{Kind: KindInvalidArguments, Mode: mode, Err: err}
	}

	var vm service.VirtualMachine
	switch cfg := d.(type) {
	case LaunchConfig:
		vm, err = c.Launch(ctx, args)
	case *LaunchConfig:
		vm, err = c.Launch(ctx, args)
	case AttachConfig:
		vm, err = attach(ctx, c, cfg, args)
	case *AttachConfig:
		vm, err = attach(ctx, c, *cfg, args)
	default:
		if mode == Launch {
			vm, err = c.Launch(ctx, args)
		} else {
			vm, err = c.Attach(ctx, service.TransportSocket, args)
		}
	}
	if err != nil {
		return nil, classify(mode, err)
	}

	if err := vm.SetDebugTraceMode(service.TraceNone); err != nil {
		vm.Dispose()
		return nil, &Error{Kind: KindTargetStart, Mode: mode, Err: err}
	}
	return vm, nil
}

func attach(ctx context.Context, c service.Connector, cfg AttachConfig, args service.Arguments) (service.VirtualMachine, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	return c.Attach(ctx, cfg.transport(), args)
}

func classify(mode Mode, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, service.ErrIllegalArguments):
		return &Error{Kind: KindInvalidArguments, Mode: mode, Err: err}
	case errors.Is(err, service.ErrVMStart):
		return &Error{Kind: KindTargetStart, Mode: mode, Err: err}
	}
	return &Error{Kind: KindLaunchIO, Mode: mode, Err: err}
}
