// Package service defines the primitives a debugging service must expose to
// the session engine: connecting to a target, registering event
// subscriptions, retrieving event sets and resuming the target.
//
// Backends live in sub packages (service/scripted) and sibling packages
// (client for the websocket service, dap for Debug Adapter Protocol
// adapters).
package service

import (
	"context"
	"errors"

	"github.com/alexengrig/JDebugger/api"
)

var (
	// ErrDisconnected is returned by any VirtualMachine operation once the
	// connection to the target has been lost.
	ErrDisconnected = errors.New("vm disconnected")
	// ErrInterrupted is returned by EventQueue.Remove when the wait was
	// interrupted without the connection being affected.
	ErrInterrupted = errors.New("event wait interrupted")
	// ErrIllegalArguments is returned by Launch and Attach when the service
	// rejects the connector arguments.
	ErrIllegalArguments = errors.New("illegal connector arguments")
	// ErrVMStart is returned by Launch when the target process started but
	// its debug agent failed to initialize.
	ErrVMStart = errors.New("target vm failed to initialize")
)

// Arguments are the named textual connector options. Flags are "true" or
// "false", durations are milliseconds.
type Arguments map[string]string

// Transport selects how Attach reaches a running target.
type Transport string

const (
	TransportSocket       Transport = "socket"
	TransportSharedMemory Transport = "shmem"
	TransportProcess      Transport = "process"
)

type TraceMode int

const (
	TraceNone     TraceMode = 0x0
	TraceSends    TraceMode = 0x1
	TraceReceives TraceMode = 0x2
	TraceEvents   TraceMode = 0x4
	TraceAll      TraceMode = 0xFFFFFF
)

// Connector creates connections to targets. Launch treats args carrying a
// "command" option as a raw command line launch.
// Errors other than ErrIllegalArguments and ErrVMStart are I/O failures.
type Connector interface {
	Launch(ctx context.Context, args Arguments) (VirtualMachine, error)
	Attach(ctx context.Context, transport Transport, args Arguments) (VirtualMachine, error)
}

// VirtualMachine is a live connection to one target.
type VirtualMachine interface {
	EventQueue() EventQueue
	EventRequestManager() EventRequestManager
	SetDebugTraceMode(mode TraceMode) error
	// Resume resumes every thread suspended by the last event set.
	Resume() error
	// Dispose ends the connection; the service reports a VMDisconnect event
	// if it still can.
	Dispose() error
}

// EventQueue yields the event sets of a VirtualMachine in delivery order.
type EventQueue interface {
	// Remove blocks until the next event set is available. It returns
	// ErrDisconnected once the connection is gone and ctx.Err() when ctx is
	// done first.
	Remove(ctx context.Context) (*api.EventSet, error)
}

// EventRequestManager registers subscriptions with the service.
type EventRequestManager interface {
	// CreateRequest registers sub and returns the stored subscription with
	// its service assigned ID. Identical subscriptions are not merged.
	CreateRequest(sub *api.Subscription) (*api.Subscription, error)
	// Requests lists every subscription created so far, in creation order.
	Requests() []*api.Subscription
}
