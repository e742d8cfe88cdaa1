package connect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexengrig/JDebugger/service"
)

// Mode selects whether Connect starts a new target or attaches to one.
type Mode int

const (
	Launch Mode = iota + 1
	Attach
)

func (m Mode) String() string {
	switch m {
	case Launch:
		return "launch"
	case Attach:
		return "attach"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "launch" and "attach".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "launch", "run":
		return Launch, nil
	case "attach", "connect":
		return Attach, nil
	}
	return 0, fmt.Errorf("unknown connection mode %q", s)
}

// Descriptor describes the target of a connection.
type Descriptor interface {
	Mode() Mode
	// Arguments renders the descriptor as the textual options a Connector
	// consumes.
	Arguments() (service.Arguments, error)
}

// LaunchConfig describes a target to start. Command, when set, selects a
// raw command line launch and Main is ignored.
type LaunchConfig struct {
	Main    string `yaml:"main" env:"MAIN"`
	Options string `yaml:"options" env:"OPTIONS"`
	Home    string `yaml:"home" env:"HOME"`
	Suspend bool   `yaml:"suspend" env:"SUSPEND"`
	Quote   string `yaml:"quote" env:"QUOTE"`
	VMExec  string `yaml:"vmexec" env:"VMEXEC"`

	Command string `yaml:"command" env:"COMMAND"`
	Address string `yaml:"address" env:"ADDRESS"`
}

// DefaultLaunchConfig returns the launching connector defaults.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{
		Suspend: true,
		Quote:   `"`,
		VMExec:  "java",
	}
}

func (c LaunchConfig) Mode() Mode { return Launch }

func (c LaunchConfig) Arguments() (service.Arguments, error) {
	if c.Command != "" {
		args := service.Arguments{"command": c.Command}
		if c.Address != "" {
			args["address"] = c.Address
		}
		if c.Quote != "" {
			args["quote"] = c.Quote
		}
		return args, nil
	}

	if strings.TrimSpace(c.Main) == "" {
		return nil, invalid(Launch, "main is required")
	}
	args := service.Arguments{
		"main":    c.Main,
		"suspend": strconv.FormatBool(c.Suspend),
	}
	for name, value := range map[string]string{
		"options": c.Options,
		"home":    c.Home,
		"quote":   c.Quote,
		"vmexec":  c.VMExec,
	} {
		if value != "" {
			args[name] = value
		}
	}
	return args, nil
}

// AttachConfig describes a running target to attach to. Which fields are
// used depends on Transport: Hostname and Port for sockets, Name for
// shared memory, PID for process attach.
type AttachConfig struct {
	Transport service.Transport `yaml:"transport" env:"TRANSPORT"`
	Hostname  string            `yaml:"hostname" env:"HOSTNAME"`
	Port      int               `yaml:"port" env:"PORT"`
	Name      string            `yaml:"name" env:"NAME"`
	PID       int               `yaml:"pid" env:"PID"`
	Timeout   time.Duration     `yaml:"timeout" env:"TIMEOUT"`
}

func DefaultAttachConfig() AttachConfig {
	return AttachConfig{
		Transport: service.TransportSocket,
		Hostname:  "localhost",
	}
}

func (c AttachConfig) Mode() Mode { return Attach }

func (c AttachConfig) Arguments() (service.Arguments, error) {
	args := service.Arguments{}
	switch c.Transport {
	case service.TransportSocket, "":
		if c.Port <= 0 || c.Port > 65535 {
			return nil, invalid(Attach, "port %d out of range", c.Port)
		}
		if c.Hostname != "" {
			args["hostname"] = c.Hostname
		}
		args["port"] = strconv.Itoa(c.Port)
	case service.TransportSharedMemory:
		if c.Name == "" {
			return nil, invalid(Attach, "shared memory name is required")
		}
		args["name"] = c.Name
	case service.TransportProcess:
		if c.PID <= 0 {
			return nil, invalid(Attach, "pid is required")
		}
		args["pid"] = strconv.Itoa(c.PID)
	default:
		return nil, invalid(Attach, "unknown transport %q", c.Transport)
	}
	if c.Timeout > 0 {
		args["timeout"] = strconv.FormatInt(c.Timeout.Milliseconds(), 10)
	}
	return args, nil
}

func (c AttachConfig) transport() service.Transport {
	if c.Transport == "" {
		return service.TransportSocket
	}
	return c.Transport
}
