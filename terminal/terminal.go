package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/alexengrig/JDebugger/config"
	"github.com/alexengrig/JDebugger/connect"
	"github.com/alexengrig/JDebugger/dispatch"
	"github.com/alexengrig/JDebugger/observability"
	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/session"
)

const historyFile string = ".jdbg_history"

type Term struct {
	cfg       *config.Config
	connector service.Connector
	prompt    string
	line      *liner.State
	out       io.Writer
	cmds      *Commands

	mu       sync.Mutex
	sessions []*session.Session
}

func New(cfg *config.Config, connector service.Connector) *Term {
	t := newTerm(cfg, connector, os.Stdout)
	t.line = liner.NewLiner()
	return t
}

func newTerm(cfg *config.Config, connector service.Connector, out io.Writer) *Term {
	return &Term{
		cfg:       cfg,
		connector: connector,
		prompt:    "(jdbg) ",
		out:       out,
		cmds:      DebugCommands(),
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

// Run reads commands until exit or end of input and returns the exit
// status.
func (t *Term) Run() (int, error) {
	defer t.line.Close()

	if f, err := os.Open(historyFile); err == nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.out, "Type 'help' for list of commands.")

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				return t.exit(0), nil
			}
			t.exit(1)
			return 1, fmt.Errorf("prompt for input failed: %w", err)
		}
		if len(cmdstr) == 0 {
			continue
		}

		name, args := parseCommand(cmdstr)
		if name == "exit" || name == "quit" {
			return t.exit(0), nil
		}
		if err := t.cmds.Find(name)(t, args...); err != nil {
			fmt.Fprintf(t.out, "Command failed: %s\n", err)
		}
	}
}

// exit stops the sessions still running and saves the history.
func (t *Term) exit(status int) int {
	t.stopAll()

	if f, err := os.Create(historyFile); err == nil {
		if _, err := t.line.WriteHistory(f); err != nil {
			fmt.Fprintln(t.out, "readline history error: ", err)
		}
		f.Close()
	}
	return status
}

// start runs a new session in the background.
func (t *Term) start(d connect.Descriptor) (*session.Session, error) {
	obs := &printer{out: t.out}
	s := session.New(t.connector, d.Mode(), d, dispatch.LoggingHandler{Observer: obs},
		session.WithObserver(obs),
		session.WithDrainTimeout(t.cfg.DrainTimeout),
	)
	if err := s.Start(context.Background()); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.sessions = append(t.sessions, s)
	t.mu.Unlock()
	fmt.Fprintf(t.out, "Session %s started.\n", s.ID())
	return s, nil
}

// current returns the most recent session.
func (t *Term) current() (*session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil, fmt.Errorf("no session, use run or connect first")
	}
	return t.sessions[len(t.sessions)-1], nil
}

func (t *Term) stopAll() {
	t.mu.Lock()
	sessions := append([]*session.Session(nil), t.sessions...)
	t.mu.Unlock()
	for _, s := range sessions {
		select {
		case <-s.Done():
			continue
		default:
		}
		fmt.Fprintf(t.out, "Stopping session %s...\n", s.ID())
		s.Stop()
		s.Wait()
	}
}

func parseCommand(cmdstr string) (string, []string) {
	vals := strings.Fields(cmdstr)
	if len(vals) == 0 {
		return "", nil
	}
	return vals[0], vals[1:]
}

// printer prints dispatched events and session transitions.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) OnEvent(_ context.Context, ev observability.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg, ok := ev.Data["message"].(string); ok {
		fmt.Fprintln(p.out, msg)
		return
	}
	if ev.Level >= observability.LevelInfo {
		fmt.Fprintln(p.out, observability.FormatEvent(ev))
	}
}
