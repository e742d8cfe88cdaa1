package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	websocket "github.com/gorilla/websocket"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/client"
	"github.com/alexengrig/JDebugger/connect"
	"github.com/alexengrig/JDebugger/dispatch/dispatchtest"
	"github.com/alexengrig/JDebugger/server"
	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/service/scripted"
	"github.com/alexengrig/JDebugger/session"
)

func serve(t *testing.T, s *scripted.Scenario) *client.Connector {
	t.Helper()
	srv := httptest.NewServer(server.NewWebsocketServer(scripted.NewConnector(s), "127.0.0.1", 0))
	t.Cleanup(srv.Close)
	return client.NewConnector("ws" + strings.TrimPrefix(srv.URL, "http"))
}

func parse(t *testing.T, data string) *scripted.Scenario {
	t.Helper()
	s, err := scripted.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func launchConfig() connect.LaunchConfig {
	cfg := connect.DefaultLaunchConfig()
	cfg.Main = "dev.alexengrig.example.Main"
	return cfg
}

func runSession(t *testing.T, c service.Connector, rec *dispatchtest.Recorder) *session.Session {
	t.Helper()
	s := session.New(c, connect.Launch, launchConfig(), rec)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return s
}

func TestWebsocket_DemoSession(t *testing.T) {
	rec := &dispatchtest.Recorder{}
	s := runSession(t, serve(t, scripted.Demo()), rec)

	if n := rec.Count(api.Exception); n != 1 {
		t.Errorf("observed %d exceptions, want 1", n)
	}
	kinds := rec.Kinds()
	if n := len(kinds); n < 2 || kinds[n-2] != api.VMDeath || kinds[n-1] != api.VMDisconnect {
		t.Errorf("dispatched %v, want VMDeath then VMDisconnect last", kinds)
	}
	if st := s.Status(); st.State != session.Disconnected || st.Outcome != session.OutcomeNormalExit {
		t.Errorf("status = %v", st)
	}
}

func TestWebsocket_Subscriptions(t *testing.T) {
	c := serve(t, scripted.Demo())
	vm, err := c.Launch(context.Background(), service.Arguments{"main": "dev.alexengrig.example.Main"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer vm.(*client.VM).Close()

	first, err := vm.EventRequestManager().CreateRequest(&api.Subscription{Kind: api.ThreadStart, Enabled: true})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	second, err := vm.EventRequestManager().CreateRequest(&api.Subscription{Kind: api.ThreadStart, Enabled: true})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if first.ID == 0 || first.ID == second.ID {
		t.Errorf("request IDs %d and %d, want distinct service assigned IDs", first.ID, second.ID)
	}
	if n := len(vm.EventRequestManager().Requests()); n != 2 {
		t.Errorf("%d requests, want 2", n)
	}

	_, err = vm.EventRequestManager().CreateRequest(&api.Subscription{Kind: api.VMStart})
	if !errors.Is(err, service.ErrIllegalArguments) {
		t.Errorf("CreateRequest(VMStart) = %v, want ErrIllegalArguments", err)
	}
}

func TestWebsocket_ConnectFailures(t *testing.T) {
	tests := []struct {
		name string
		desc connect.Descriptor
		kind connect.Kind
	}{
		{
			name: "wrong main class",
			desc: connect.LaunchConfig{Main: "dev.alexengrig.example.Other"},
			kind: connect.KindTargetStart,
		},
		{
			name: "missing executable",
			desc: connect.LaunchConfig{Main: "dev.alexengrig.example.Main", VMExec: "no-such-java-binary"},
			kind: connect.KindLaunchIO,
		},
		{
			name: "unknown attach port",
			desc: connect.AttachConfig{Port: 9999},
			kind: connect.KindLaunchIO,
		},
	}

	c := serve(t, scripted.Demo())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, err := connect.Connect(context.Background(), c, tt.desc.Mode(), tt.desc)
			var ce *connect.Error
			if !errors.As(err, &ce) || ce.Kind != tt.kind {
				t.Fatalf("Connect = %v, want %v", err, tt.kind)
			}
			if vm != nil {
				t.Error("Connect returned a VM")
			}
		})
	}
}

func TestWebsocket_IllegalArguments(t *testing.T) {
	c := serve(t, scripted.Demo())
	_, err := c.Launch(context.Background(), service.Arguments{})
	if !errors.Is(err, service.ErrIllegalArguments) {
		t.Errorf("Launch without main = %v, want ErrIllegalArguments", err)
	}
}

func TestWebsocket_DialFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := connect.Connect(context.Background(), client.NewConnector(addr), connect.Launch, launchConfig())
	var ce *connect.Error
	if !errors.As(err, &ce) || ce.Kind != connect.KindLaunchIO {
		t.Errorf("Connect = %v, want LaunchIOFailure", err)
	}
}

func TestWebsocket_TransportDrop(t *testing.T) {
	c := serve(t, parse(t, `
main: dev.alexengrig.example.Main
drop_after: 2
batches:
  - events: [{kind: VMStart}]
  - events: [{kind: ThreadStart, thread: main, thread_id: 1}]
  - events: [{kind: MethodEntry, class: dev.alexengrig.example.Main, method: main}]
`))
	rec := &dispatchtest.Recorder{}
	s := runSession(t, c, rec)

	want := []api.EventKind{api.VMStart, api.ThreadStart, api.VMDisconnect}
	got := rec.Kinds()
	if len(got) != len(want) {
		t.Fatalf("dispatched %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatched %v, want %v", got, want)
		}
	}
	st := s.Status()
	if st.State != session.Disconnected || st.TargetExited || st.Outcome != session.OutcomeAbnormalDisconnect {
		t.Errorf("status = %v, want Disconnected, abnormal", st)
	}
}

func TestWebsocket_Stop(t *testing.T) {
	c := serve(t, parse(t, `
main: dev.alexengrig.example.Main
batches:
  - events: [{kind: VMStart}]
  - events: [{kind: ThreadStart, thread: main, thread_id: 1}]
`))
	started := make(chan struct{})
	rec := &dispatchtest.Recorder{Fail: func(ev *api.Event) error {
		if ev.Kind == api.ThreadStart {
			close(started)
		}
		return nil
	}}
	s := session.New(c, connect.Launch, launchConfig(), rec)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not start")
	}
	s.Stop()
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	got := rec.Kinds()
	if got[len(got)-1] != api.VMDisconnect {
		t.Errorf("dispatched %v, want VMDisconnect last", got)
	}
	if st := s.Status(); st.State != session.Disconnected {
		t.Errorf("status = %v", st)
	}
}

func TestWebsocket_MalformedEventSets(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var cmd api.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		frames := []string{
			`{"name":"Reply","reply":{"seq":1}}`,
			`{"name":"Events","events":{"suspendPolicy":"all","events":[null]}}`,
			`{"name":"Events","events":{"suspendPolicy":"all","events":[]}}`,
			`{"name":"Events","events":null}`,
			`{"name":"Events","events":{"suspendPolicy":"none","events":[null,{"kind":"VMDeath"}]}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	c := client.NewConnector("ws" + strings.TrimPrefix(srv.URL, "http"))
	vm, err := c.Launch(context.Background(), service.Arguments{"main": "dev.alexengrig.example.Main"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer vm.(*client.VM).Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	set, err := vm.EventQueue().Remove(ctx)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(set.Events) != 1 || set.Events[0].Kind != api.VMDeath {
		t.Errorf("first set = %+v, want the VMDeath alone", set.Events)
	}
}
