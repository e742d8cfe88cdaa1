// Package config loads the jdbg configuration: a YAML file on top of the
// built-in defaults, then JDBG_* environment variables on top of the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/alexengrig/JDebugger/client"
	"github.com/alexengrig/JDebugger/connect"
	"github.com/alexengrig/JDebugger/dap"
	"github.com/alexengrig/JDebugger/observability"
	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/service/scripted"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JDBG_"

// Backends.
const (
	BackendWebsocket = "ws"
	BackendDAP       = "dap"
	BackendScript    = "script"
)

type Config struct {
	Service ServiceConfig        `yaml:"service" envPrefix:"SERVICE_"`
	Launch  connect.LaunchConfig `yaml:"launch" envPrefix:"LAUNCH_"`
	Attach  connect.AttachConfig `yaml:"attach" envPrefix:"ATTACH_"`
	Log     LogConfig            `yaml:"log" envPrefix:"LOG_"`
	// DrainTimeout bounds the wait for the final events after a stop.
	DrainTimeout time.Duration `yaml:"drain_timeout" env:"DRAIN_TIMEOUT"`
}

// ServiceConfig selects the debugging service. Address is a websocket URL
// for ws, a host:port for dap and unused for script, which reads Scenario
// (the built-in demo when empty).
type ServiceConfig struct {
	Backend  string `yaml:"backend" env:"BACKEND"`
	Address  string `yaml:"address" env:"ADDRESS"`
	Scenario string `yaml:"scenario" env:"SCENARIO"`
}

type LogConfig struct {
	// Observer is glog, slog, noop or a comma separated list of them.
	Observer  string `yaml:"observer" env:"OBSERVER"`
	Verbosity int    `yaml:"verbosity" env:"VERBOSITY"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Backend: BackendScript,
		},
		Launch:       connect.DefaultLaunchConfig(),
		Attach:       connect.DefaultAttachConfig(),
		Log:          LogConfig{Observer: "glog"},
		DrainTimeout: 10 * time.Second,
	}
}

// Load reads the file at path, when path is not empty, and applies the
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Service.Backend {
	case BackendWebsocket, BackendDAP:
		if c.Service.Address == "" {
			return fmt.Errorf("service address is required for the %s backend", c.Service.Backend)
		}
	case BackendScript:
	default:
		return fmt.Errorf("unknown service backend %q", c.Service.Backend)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("drain timeout must be positive, got %s", c.DrainTimeout)
	}
	return nil
}

// Descriptor returns the target description for mode.
func (c *Config) Descriptor(mode connect.Mode) (connect.Descriptor, error) {
	switch mode {
	case connect.Launch:
		return c.Launch, nil
	case connect.Attach:
		return c.Attach, nil
	}
	return nil, fmt.Errorf("unknown connection mode %s", mode)
}

// Connector builds the connector of the configured backend.
func (c *Config) Connector() (service.Connector, error) {
	switch c.Service.Backend {
	case BackendWebsocket:
		return client.NewConnector(c.Service.Address), nil
	case BackendDAP:
		return dap.NewConnector(c.Service.Address), nil
	case BackendScript:
		if c.Service.Scenario == "" {
			return scripted.NewConnector(scripted.Demo()), nil
		}
		s, err := scripted.Load(c.Service.Scenario)
		if err != nil {
			return nil, err
		}
		return scripted.NewConnector(s), nil
	}
	return nil, fmt.Errorf("unknown service backend %q", c.Service.Backend)
}

// Observer returns the configured observer.
func (c *Config) Observer() (observability.Observer, error) {
	return observability.New(c.Log.Observer, nil)
}
