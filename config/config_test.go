package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexengrig/JDebugger/client"
	"github.com/alexengrig/JDebugger/config"
	"github.com/alexengrig/JDebugger/connect"
	"github.com/alexengrig/JDebugger/dap"
	"github.com/alexengrig/JDebugger/observability"
	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/service/scripted"
)

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jdbg.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.Backend != config.BackendScript {
		t.Errorf("backend = %q", cfg.Service.Backend)
	}
	if cfg.Launch.VMExec != "java" || !cfg.Launch.Suspend {
		t.Errorf("launch = %+v, want connector defaults", cfg.Launch)
	}
	if cfg.Attach.Transport != service.TransportSocket || cfg.Attach.Hostname != "localhost" {
		t.Errorf("attach = %+v, want connector defaults", cfg.Attach)
	}
	if cfg.DrainTimeout != 10*time.Second {
		t.Errorf("drain timeout = %s", cfg.DrainTimeout)
	}
	if _, ok := mustObserver(t, cfg).(observability.GlogObserver); !ok {
		t.Error("default observer is not glog")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
service:
  backend: dap
  address: 127.0.0.1:4711
launch:
  main: dev.alexengrig.example.Main
  options: -Xmx64m
attach:
  port: 5005
  timeout: 2s
log:
  observer: slog
drain_timeout: 3s
`)
	t.Setenv("JDBG_LAUNCH_MAIN", "dev.alexengrig.example.Other")
	t.Setenv("JDBG_ATTACH_HOSTNAME", "target.local")
	t.Setenv("JDBG_LOG_VERBOSITY", "2")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Backend != config.BackendDAP || cfg.Service.Address != "127.0.0.1:4711" {
		t.Errorf("service = %+v", cfg.Service)
	}
	if cfg.Launch.Main != "dev.alexengrig.example.Other" {
		t.Errorf("main = %q, want the environment override", cfg.Launch.Main)
	}
	if cfg.Launch.Options != "-Xmx64m" || cfg.Launch.VMExec != "java" {
		t.Errorf("launch = %+v, want file values over defaults", cfg.Launch)
	}
	if cfg.Attach.Port != 5005 || cfg.Attach.Timeout != 2*time.Second || cfg.Attach.Hostname != "target.local" {
		t.Errorf("attach = %+v", cfg.Attach)
	}
	if cfg.Log.Observer != "slog" || cfg.Log.Verbosity != 2 {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.DrainTimeout != 3*time.Second {
		t.Errorf("drain timeout = %s", cfg.DrainTimeout)
	}
	if _, ok := mustObserver(t, cfg).(*observability.SlogObserver); !ok {
		t.Error("observer is not slog")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown backend", data: "service: {backend: grpc}"},
		{name: "missing address", data: "service: {backend: ws}"},
		{name: "zero drain timeout", data: "drain_timeout: 0s"},
		{name: "malformed", data: "service: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := config.Load(writeFile(t, tt.data)); err == nil {
				t.Error("Load succeeded")
			}
		})
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestConfig_Descriptor(t *testing.T) {
	cfg := config.Default()
	cfg.Attach.Port = 8000

	d, err := cfg.Descriptor(connect.Attach)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if ac, ok := d.(connect.AttachConfig); !ok || ac.Port != 8000 {
		t.Errorf("Descriptor(Attach) = %#v", d)
	}
	if d, err := cfg.Descriptor(connect.Launch); err != nil || d.Mode() != connect.Launch {
		t.Errorf("Descriptor(Launch) = %v, %v", d, err)
	}
	if _, err := cfg.Descriptor(connect.Mode(0)); err == nil {
		t.Error("Descriptor of an unknown mode succeeded")
	}
}

func TestConfig_Connector(t *testing.T) {
	tests := []struct {
		service config.ServiceConfig
		check   func(service.Connector) bool
	}{
		{
			service: config.ServiceConfig{Backend: config.BackendWebsocket, Address: "ws://127.0.0.1:9223"},
			check:   func(c service.Connector) bool { _, ok := c.(*client.Connector); return ok },
		},
		{
			service: config.ServiceConfig{Backend: config.BackendDAP, Address: "127.0.0.1:4711"},
			check:   func(c service.Connector) bool { _, ok := c.(*dap.Connector); return ok },
		},
		{
			service: config.ServiceConfig{Backend: config.BackendScript},
			check:   func(c service.Connector) bool { _, ok := c.(*scripted.Connector); return ok },
		},
	}
	for _, tt := range tests {
		t.Run(tt.service.Backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Service = tt.service
			c, err := cfg.Connector()
			if err != nil {
				t.Fatalf("Connector: %v", err)
			}
			if !tt.check(c) {
				t.Errorf("Connector = %T", c)
			}
		})
	}

	cfg := config.Default()
	cfg.Service.Scenario = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.Connector(); err == nil {
		t.Error("Connector with a missing scenario succeeded")
	}
}

func mustObserver(t *testing.T, cfg *config.Config) observability.Observer {
	t.Helper()
	obs, err := cfg.Observer()
	if err != nil {
		t.Fatalf("Observer: %v", err)
	}
	return obs
}
