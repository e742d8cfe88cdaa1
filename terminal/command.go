package terminal

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

type cmdfunc func(t *Term, args ...string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

type Commands struct {
	cmds []command
}

// Returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: "Prints the help message."},
		{aliases: []string{"run", "r"}, cmdFn: run, helpMsg: "run [main class] Launches the configured target, optionally with another main class."},
		{aliases: []string{"connect", "attach"}, cmdFn: attach, helpMsg: "connect [host:]port Attaches to a target listening on a socket."},
		{aliases: []string{"status", "st"}, cmdFn: status, helpMsg: "Prints the state of every session."},
		{aliases: []string{"stop"}, cmdFn: stop, helpMsg: "Stops the most recent session."},
		{aliases: []string{"exit", "quit"}, cmdFn: nullCommand, helpMsg: "Stops every session and exits."},
	}

	return c
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

func noCmdAvailable(t *Term, args ...string) error {
	return fmt.Errorf("command not available")
}

func nullCommand(t *Term, args ...string) error {
	return nil
}

func (c *Commands) help(t *Term, args ...string) error {
	fmt.Fprintln(t.out, "The following commands are available:")
	for _, cmd := range c.cmds {
		fmt.Fprintf(t.out, "\t%s - %s\n", strings.Join(cmd.aliases, "|"), cmd.helpMsg)
	}
	return nil
}

func run(t *Term, args ...string) error {
	cfg := t.cfg.Launch
	if len(args) > 0 {
		cfg.Main = args[0]
		cfg.Command = ""
	}
	_, err := t.start(cfg)
	return err
}

func attach(t *Term, args ...string) error {
	cfg := t.cfg.Attach
	if len(args) > 0 {
		host, port, err := net.SplitHostPort(args[0])
		if err != nil {
			host, port = "", args[0]
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q", port)
		}
		if host != "" {
			cfg.Hostname = host
		}
		cfg.Port = n
	}
	_, err := t.start(cfg)
	return err
}

func status(t *Term, args ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		fmt.Fprintln(t.out, "No sessions.")
		return nil
	}
	for _, s := range t.sessions {
		fmt.Fprintln(t.out, s.Status())
	}
	return nil
}

func stop(t *Term, args ...string) error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.Stop()
	if err := s.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(t.out, s.Status())
	return nil
}
