package connect

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/service/scripted"
)

func demoConnector() *scripted.Connector {
	return scripted.NewConnector(scripted.Demo())
}

func TestConnect_Launch(t *testing.T) {
	cfg := DefaultLaunchConfig()
	cfg.Main = "dev.alexengrig.example.Main"

	vm, err := Connect(context.Background(), demoConnector(), Launch, cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := vm.(*scripted.VM).TraceMode(); got != service.TraceNone {
		t.Errorf("trace mode = %#x, want TraceNone", got)
	}
}

func TestConnect_Attach(t *testing.T) {
	cfg := DefaultAttachConfig()
	cfg.Port = 8000
	cfg.Timeout = time.Second

	if _, err := Connect(context.Background(), demoConnector(), Attach, cfg); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestConnect_Failures(t *testing.T) {
	missingHome := filepath.Join(t.TempDir(), "no-such-jdk")
	startFailure := scripted.Demo()
	startFailure.StartFailure = true

	launch := func(mutate func(*LaunchConfig)) LaunchConfig {
		cfg := DefaultLaunchConfig()
		cfg.Main = "dev.alexengrig.example.Main"
		mutate(&cfg)
		return cfg
	}

	tests := []struct {
		name      string
		connector service.Connector
		mode      Mode
		desc      Descriptor
		kind      Kind
		sentinel  error
	}{
		{
			name:      "nonexistent executable",
			connector: demoConnector(),
			mode:      Launch,
			desc:      launch(func(c *LaunchConfig) { c.Home = missingHome }),
			kind:      KindLaunchIO,
			sentinel:  ErrLaunchIO,
		},
		{
			name:      "raw command not on path",
			connector: demoConnector(),
			mode:      Launch,
			desc:      LaunchConfig{Command: "/definitely/not/here/java -version"},
			kind:      KindLaunchIO,
			sentinel:  ErrLaunchIO,
		},
		{
			name:      "missing main",
			connector: demoConnector(),
			mode:      Launch,
			desc:      DefaultLaunchConfig(),
			kind:      KindInvalidArguments,
			sentinel:  ErrInvalidArguments,
		},
		{
			name:      "descriptor for other mode",
			connector: demoConnector(),
			mode:      Attach,
			desc:      launch(func(*LaunchConfig) {}),
			kind:      KindInvalidArguments,
			sentinel:  ErrInvalidArguments,
		},
		{
			name:      "agent does not start",
			connector: scripted.NewConnector(startFailure),
			mode:      Launch,
			desc:      launch(func(*LaunchConfig) {}),
			kind:      KindTargetStart,
			sentinel:  ErrTargetStart,
		},
		{
			name:      "port out of range",
			connector: demoConnector(),
			mode:      Attach,
			desc:      AttachConfig{Transport: service.TransportSocket, Port: 70000},
			kind:      KindInvalidArguments,
			sentinel:  ErrInvalidArguments,
		},
		{
			name:      "nobody listening",
			connector: demoConnector(),
			mode:      Attach,
			desc:      AttachConfig{Transport: service.TransportSocket, Hostname: "localhost", Port: 8001},
			kind:      KindLaunchIO,
			sentinel:  ErrLaunchIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, err := Connect(context.Background(), tt.connector, tt.mode, tt.desc)
			if vm != nil {
				t.Errorf("got a VirtualMachine on failure")
			}
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if ce.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", ce.Kind, tt.kind)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
		})
	}
}

func TestLaunchConfig_Arguments(t *testing.T) {
	cfg := DefaultLaunchConfig()
	cfg.Main = "app.Main"
	cfg.Options = "-Xmx64m"
	cfg.Suspend = false

	args, err := cfg.Arguments()
	if err != nil {
		t.Fatalf("Arguments: %v", err)
	}
	want := service.Arguments{
		"main":    "app.Main",
		"options": "-Xmx64m",
		"suspend": "false",
		"quote":   `"`,
		"vmexec":  "java",
	}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for k, v := range want {
		if args[k] != v {
			t.Errorf("%s = %q, want %q", k, args[k], v)
		}
	}
}

func TestAttachConfig_Arguments(t *testing.T) {
	tests := []struct {
		name string
		cfg  AttachConfig
		want service.Arguments
	}{
		{"socket", AttachConfig{Hostname: "db", Port: 5005, Timeout: 1500 * time.Millisecond},
			service.Arguments{"hostname": "db", "port": "5005", "timeout": "1500"}},
		{"process", AttachConfig{Transport: service.TransportProcess, PID: 4242},
			service.Arguments{"pid": "4242"}},
		{"shared memory", AttachConfig{Transport: service.TransportSharedMemory, Name: "jdbconn"},
			service.Arguments{"name": "jdbconn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := tt.cfg.Arguments()
			if err != nil {
				t.Fatalf("Arguments: %v", err)
			}
			if len(args) != len(tt.want) {
				t.Fatalf("got %v, want %v", args, tt.want)
			}
			for k, v := range tt.want {
				if args[k] != v {
					t.Errorf("%s = %q, want %q", k, args[k], v)
				}
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"launch": Launch, "RUN": Launch, "attach": Attach, "connect": Attach} {
		if got, err := ParseMode(in); err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("fork"); err == nil {
		t.Error("ParseMode(fork) succeeded")
	}
}
