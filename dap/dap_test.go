package dap_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	godap "github.com/google/go-dap"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/connect"
	"github.com/alexengrig/JDebugger/dap"
	"github.com/alexengrig/JDebugger/dispatch/dispatchtest"
	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/session"
)

// rawMessage is a protocol message written by the fake adapter.
type rawMessage map[string]any

func (m rawMessage) GetSeq() int { return 0 }

// adapter is a fake debug adapter serving one client.
type adapter struct {
	t  *testing.T
	ln net.Listener
	// onRequest returns the messages following the response to req.
	onRequest func(req *godap.Request) (success bool, after []rawMessage)

	mu       sync.Mutex
	commands []string
	args     []godap.Message
}

func newAdapter(t *testing.T, onRequest func(req *godap.Request) (bool, []rawMessage)) *adapter {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	a := &adapter{t: t, ln: ln, onRequest: onRequest}
	t.Cleanup(func() { ln.Close() })
	go a.serve()
	return a
}

func (a *adapter) connector() *dap.Connector {
	return dap.NewConnector(a.ln.Addr().String())
}

func (a *adapter) serve() {
	conn, err := a.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	seq := 0
	write := func(m rawMessage) error {
		seq++
		m["seq"] = seq
		return godap.WriteProtocolMessage(conn, m)
	}

	for {
		msg, err := godap.ReadProtocolMessage(r)
		if err != nil {
			return
		}
		rm, ok := msg.(godap.RequestMessage)
		if !ok {
			continue
		}
		req := rm.GetRequest()
		a.mu.Lock()
		a.commands = append(a.commands, req.Command)
		a.args = append(a.args, msg)
		a.mu.Unlock()

		success, after := a.onRequest(req)
		resp := rawMessage{"type": "response", "request_seq": req.Seq, "success": success, "command": req.Command}
		if !success {
			resp["message"] = req.Command + " failed"
		}
		if req.Command == "setBreakpoints" {
			resp["body"] = map[string]any{"breakpoints": []any{map[string]any{"id": 7, "verified": true, "line": 12}}}
		}
		if err := write(resp); err != nil {
			return
		}
		for _, m := range after {
			if err := write(m); err != nil {
				return
			}
		}
	}
}

func (a *adapter) received() ([]string, []godap.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.commands...), append([]godap.Message(nil), a.args...)
}

func event(name string, body map[string]any) rawMessage {
	m := rawMessage{"type": "event", "event": name}
	if body != nil {
		m["body"] = body
	}
	return m
}

// program is the adapter script of a target that throws an uncaught
// exception and exits.
func program(req *godap.Request) (bool, []rawMessage) {
	switch req.Command {
	case "initialize":
		return true, []rawMessage{event("initialized", nil)}
	case "configurationDone":
		return true, []rawMessage{
			event("process", map[string]any{"name": "dev.alexengrig.example.Main"}),
			event("thread", map[string]any{"reason": "started", "threadId": 1}),
			event("stopped", map[string]any{"reason": "pause", "threadId": 1}),
		}
	case "continue":
		return true, nil
	}
	return true, nil
}

func TestDAP_Session(t *testing.T) {
	continued := 0
	a := newAdapter(t, func(req *godap.Request) (bool, []rawMessage) {
		if req.Command != "continue" {
			return program(req)
		}
		continued++
		switch continued {
		case 1:
			// Continue of the unsolicited pause.
			return true, []rawMessage{event("stopped", map[string]any{
				"reason": "exception", "threadId": 1, "text": "java.lang.IllegalStateException",
			})}
		case 2:
			return true, []rawMessage{
				event("exited", map[string]any{"exitCode": 1}),
				event("terminated", nil),
			}
		}
		return true, nil
	})

	rec := &dispatchtest.Recorder{}
	cfg := connect.DefaultLaunchConfig()
	cfg.Main = "dev.alexengrig.example.Main"
	s := session.New(a.connector(), connect.Launch, cfg, rec)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []api.EventKind{api.VMStart, api.ThreadStart, api.Exception, api.VMDeath, api.VMDisconnect}
	got := rec.Kinds()
	if len(got) != len(want) {
		t.Fatalf("dispatched %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatched %v, want %v", got, want)
		}
	}
	if name := rec.Events()[2].Exception.Exception.TypeName; name != "java.lang.IllegalStateException" {
		t.Errorf("exception type = %q", name)
	}
	if st := s.Status(); st.State != session.Disconnected || st.Outcome != session.OutcomeNormalExit {
		t.Errorf("status = %v", st)
	}

	commands, _ := a.received()
	wantCommands := []string{"initialize", "launch", "setExceptionBreakpoints", "configurationDone", "continue", "continue"}
	if len(commands) < len(wantCommands) {
		t.Fatalf("adapter received %v, want %v", commands, wantCommands)
	}
	for i := range wantCommands {
		if commands[i] != wantCommands[i] {
			t.Fatalf("adapter received %v, want %v", commands, wantCommands)
		}
	}
}

func TestDAP_Breakpoint(t *testing.T) {
	a := newAdapter(t, func(req *godap.Request) (bool, []rawMessage) {
		if req.Command == "configurationDone" {
			return true, []rawMessage{event("stopped", map[string]any{
				"reason": "breakpoint", "threadId": 1, "hitBreakpointIds": []int{7},
			})}
		}
		return true, nil
	})

	vm, err := a.connector().Launch(context.Background(), service.Arguments{"main": "dev.alexengrig.example.Main", "suspend": "true"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer vm.(*dap.VM).Close()

	loc := &api.Location{ClassName: "dev.alexengrig.example.Main", SourceFile: "Main.java", Line: 12}
	sub, err := vm.EventRequestManager().CreateRequest(&api.Subscription{
		Kind: api.Breakpoint, Location: loc, Enabled: true, SuspendPolicy: api.SuspendAll,
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	set, err := vm.EventQueue().Remove(ctx)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	ev := set.Events[0]
	if ev.Kind != api.Breakpoint || ev.RequestID != sub.ID || ev.Location == nil || ev.Location.Line != 12 {
		t.Errorf("event = %+v, want breakpoint of request %d at line 12", ev, sub.ID)
	}
	if set.SuspendPolicy != api.SuspendAll {
		t.Errorf("suspend policy = %s", set.SuspendPolicy)
	}

	_, args := a.received()
	var launch *godap.LaunchRequest
	var breakpoints *godap.SetBreakpointsRequest
	for _, m := range args {
		switch r := m.(type) {
		case *godap.LaunchRequest:
			launch = r
		case *godap.SetBreakpointsRequest:
			breakpoints = r
		}
	}
	if launch == nil || string(launch.Arguments) != `{"main":"dev.alexengrig.example.Main","suspend":true}` {
		t.Errorf("launch request = %+v", launch)
	}
	if breakpoints == nil || breakpoints.Arguments.Source.Path != "Main.java" ||
		len(breakpoints.Arguments.Breakpoints) != 1 || breakpoints.Arguments.Breakpoints[0].Line != 12 {
		t.Errorf("setBreakpoints request = %+v", breakpoints)
	}
}

func TestDAP_ConnectFailures(t *testing.T) {
	a := newAdapter(t, func(req *godap.Request) (bool, []rawMessage) {
		return req.Command != "launch", nil
	})
	cfg := connect.DefaultLaunchConfig()
	cfg.Main = "dev.alexengrig.example.Main"
	_, err := connect.Connect(context.Background(), a.connector(), connect.Launch, cfg)
	var ce *connect.Error
	if !errors.As(err, &ce) || ce.Kind != connect.KindTargetStart {
		t.Errorf("Connect with failing launch = %v, want TargetStartFailure", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	_, err = connect.Connect(context.Background(), dap.NewConnector(addr), connect.Launch, cfg)
	if !errors.As(err, &ce) || ce.Kind != connect.KindLaunchIO {
		t.Errorf("Connect without adapter = %v, want LaunchIOFailure", err)
	}
}

func TestDAP_SubscriptionValidation(t *testing.T) {
	a := newAdapter(t, func(*godap.Request) (bool, []rawMessage) { return true, nil })
	vm, err := a.connector().Attach(context.Background(), service.TransportSocket, service.Arguments{"port": "8000"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer vm.(*dap.VM).Close()

	tests := []*api.Subscription{
		{Kind: api.VMStart},
		{Kind: "ThreadPark"},
		{Kind: api.Breakpoint},
	}
	for _, sub := range tests {
		if _, err := vm.EventRequestManager().CreateRequest(sub); !errors.Is(err, service.ErrIllegalArguments) {
			t.Errorf("CreateRequest(%s) = %v, want ErrIllegalArguments", sub.Kind, err)
		}
	}
	if _, err := vm.EventRequestManager().CreateRequest(&api.Subscription{Kind: api.MonitorWait, Enabled: true}); err != nil {
		t.Errorf("CreateRequest(MonitorWait) = %v", err)
	}
	if n := len(vm.EventRequestManager().Requests()); n != 1 {
		t.Errorf("%d requests, want 1", n)
	}
}
