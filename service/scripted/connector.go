package scripted

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alexengrig/JDebugger/service"
)

// Connector connects to targets that replay Scenario.
type Connector struct {
	Scenario *Scenario
}

var _ service.Connector = (*Connector)(nil)

func NewConnector(s *Scenario) *Connector {
	return &Connector{Scenario: s}
}

func (c *Connector) Launch(ctx context.Context, args service.Arguments) (service.VirtualMachine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if command, raw := args["command"]; raw {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: empty command", service.ErrIllegalArguments)
		}
		if _, err := exec.LookPath(fields[0]); err != nil {
			return nil, fmt.Errorf("launch %s: %w", fields[0], err)
		}
	} else {
		main := strings.TrimSpace(args["main"])
		if main == "" {
			return nil, fmt.Errorf("%w: main is required", service.ErrIllegalArguments)
		}
		if err := checkExecutable(args["home"], args["vmexec"]); err != nil {
			return nil, err
		}
		if c.Scenario.Main != "" && strings.Fields(main)[0] != c.Scenario.Main {
			return nil, fmt.Errorf("%w: could not find main class %s", service.ErrVMStart, main)
		}
	}

	if c.Scenario.StartFailure {
		return nil, fmt.Errorf("%w: debug agent did not start", service.ErrVMStart)
	}
	return newVM(c.Scenario), nil
}

func (c *Connector) Attach(ctx context.Context, transport service.Transport, args service.Arguments) (service.VirtualMachine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	targets := c.Scenario.Attach
	switch transport {
	case service.TransportSocket:
		port := args["port"]
		if port == "" {
			return nil, fmt.Errorf("%w: port is required", service.ErrIllegalArguments)
		}
		if !targets.hasPort(port) {
			return nil, fmt.Errorf("dial %s:%s: connection refused", args["hostname"], port)
		}
	case service.TransportProcess:
		pid := args["pid"]
		if pid == "" {
			return nil, fmt.Errorf("%w: pid is required", service.ErrIllegalArguments)
		}
		if !targets.hasPID(pid) {
			return nil, fmt.Errorf("attach to process %s: no debug agent", pid)
		}
	case service.TransportSharedMemory:
		name := args["name"]
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", service.ErrIllegalArguments)
		}
		if !targets.hasName(name) {
			return nil, fmt.Errorf("open shared memory %s: no such transport", name)
		}
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", service.ErrIllegalArguments, transport)
	}
	return newVM(c.Scenario), nil
}

const defaultVMExec = "java"

// checkExecutable resolves the vm executable the way a launching connector
// does: inside home/bin when home is set, on PATH otherwise. The default
// executable is simulated and always present.
func checkExecutable(home, vmexec string) error {
	switch {
	case home != "":
		if vmexec == "" {
			vmexec = defaultVMExec
		}
		path := filepath.Join(home, "bin", vmexec)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("launch %s: %w", path, err)
		}
	case vmexec != "" && vmexec != defaultVMExec:
		if _, err := exec.LookPath(vmexec); err != nil {
			return fmt.Errorf("launch %s: %w", vmexec, err)
		}
	}
	return nil
}
