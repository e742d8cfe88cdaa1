package server

import (
	"context"
	"testing"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/service/scripted"
)

func TestDebugger_Handle(t *testing.T) {
	var connected service.VirtualMachine
	d := NewDebugger(scripted.NewConnector(scripted.Demo()), func(vm service.VirtualMachine) {
		connected = vm
	})
	ctx := context.Background()

	tests := []struct {
		name      string
		command   *api.Command
		code      api.ErrorCode
		requestID int
	}{
		{
			name:    "resume before connect",
			command: &api.Command{Seq: 1, Name: api.Resume},
			code:    api.ErrorIllegalArguments,
		},
		{
			name:    "unknown command",
			command: &api.Command{Seq: 2, Name: "Detach"},
			code:    api.ErrorInternal,
		},
		{
			name:    "launch without arguments",
			command: &api.Command{Seq: 3, Name: api.Launch},
			code:    api.ErrorIllegalArguments,
		},
		{
			name: "launch",
			command: &api.Command{Seq: 4, Name: api.Launch, Launch: &api.LaunchCommand{
				Arguments: map[string]string{"main": "dev.alexengrig.example.Main"},
			}},
		},
		{
			name: "second launch",
			command: &api.Command{Seq: 5, Name: api.Launch, Launch: &api.LaunchCommand{
				Arguments: map[string]string{"main": "dev.alexengrig.example.Main"},
			}},
			code: api.ErrorIllegalArguments,
		},
		{
			name:    "trace mode",
			command: &api.Command{Seq: 6, Name: api.SetTraceMode, SetTraceMode: &api.SetTraceModeCommand{}},
		},
		{
			name: "create request",
			command: &api.Command{Seq: 7, Name: api.CreateRequest, CreateRequest: &api.CreateRequestCommand{
				Subscription: &api.Subscription{Kind: api.ThreadStart, Enabled: true},
			}},
			requestID: 1,
		},
		{
			name:    "dispose",
			command: &api.Command{Seq: 8, Name: api.Dispose},
		},
		{
			name:    "resume after dispose",
			command: &api.Command{Seq: 9, Name: api.Resume},
			code:    api.ErrorDisconnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := d.Handle(ctx, tt.command)
			if reply.Seq != tt.command.Seq {
				t.Errorf("reply seq = %d, want %d", reply.Seq, tt.command.Seq)
			}
			if reply.Code != tt.code {
				t.Errorf("reply code = %q (%s), want %q", reply.Code, reply.Error, tt.code)
			}
			if reply.RequestID != tt.requestID {
				t.Errorf("request ID = %d, want %d", reply.RequestID, tt.requestID)
			}
		})
	}

	if connected == nil {
		t.Fatal("connected callback not called")
	}
	if got := connected.(*scripted.VM).TraceMode(); got != service.TraceNone {
		t.Errorf("trace mode = %#x, want TraceNone", got)
	}
}
