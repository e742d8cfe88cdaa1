package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/golang/glog"
	sys "golang.org/x/sys/unix"

	"github.com/alexengrig/JDebugger/config"
	"github.com/alexengrig/JDebugger/connect"
	"github.com/alexengrig/JDebugger/dispatch"
	"github.com/alexengrig/JDebugger/server"
	"github.com/alexengrig/JDebugger/service"
	"github.com/alexengrig/JDebugger/service/scripted"
	"github.com/alexengrig/JDebugger/session"
	"github.com/alexengrig/JDebugger/terminal"
)

const version string = "0.1.0"

var usage string = fmt.Sprintf(`jdbg version %s

flags:
  -version Print version
  -config  Path to a YAML configuration file

commands:
  run [-break Class:line] [-watch Class] [main class]
           Launch the target and print its events
  attach [-pid N] [[host:]port]
           Attach to a running target
  serve [-addr 127.0.0.1] [-port 9223] [scenario.yaml]
           Serve the configured debugging service over websocket
  term     Interactive terminal
`, version)

func main() {
	var printv bool
	var configPath string

	flag.BoolVar(&printv, "version", false, "Print version number and exit.")
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file.")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if printv {
		fmt.Printf("jdbg version: %s\n", version)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		fmt.Println(usage)
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	status := execute(cfg, flag.Args())
	glog.Flush()
	os.Exit(status)
}

func execute(cfg *config.Config, args []string) int {
	var err error
	status := 0
	switch args[0] {
	case "run":
		status, err = runCommand(cfg, args[1:])
	case "attach":
		status, err = attachCommand(cfg, args[1:])
	case "serve":
		err = serveCommand(cfg, args[1:])
	case "term":
		status, err = termCommand(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if status == 0 {
			status = 1
		}
	}
	return status
}

// breakpoints collects repeated -break Class:line flags.
type breakpoints map[string][]int

func (b breakpoints) String() string {
	var parts []string
	for class, lines := range b {
		for _, line := range lines {
			parts = append(parts, fmt.Sprintf("%s:%d", class, line))
		}
	}
	return strings.Join(parts, ",")
}

func (b breakpoints) Set(value string) error {
	i := strings.LastIndex(value, ":")
	if i <= 0 {
		return fmt.Errorf("breakpoint %q is not Class:line", value)
	}
	line, err := strconv.Atoi(value[i+1:])
	if err != nil || line <= 0 {
		return fmt.Errorf("breakpoint %q has an invalid line", value)
	}
	b[value[:i]] = append(b[value[:i]], line)
	return nil
}

type classes []string

func (c *classes) String() string { return strings.Join(*c, ",") }

func (c *classes) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func runCommand(cfg *config.Config, args []string) (int, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	bps := breakpoints{}
	var watch classes
	fs.Var(bps, "break", "Class:line breakpoint installed when the class is prepared. Repeatable.")
	fs.Var(&watch, "watch", "Class whose fields are watched for modification. Repeatable.")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	d := cfg.Launch
	if fs.NArg() > 0 {
		d.Main = fs.Arg(0)
		d.Command = ""
	}
	return debug(cfg, d, func(h *dispatch.ClassPrepareHooks) {
		if len(bps) > 0 {
			h.Add(dispatch.BreakpointsOnPrepare(bps))
		}
		if len(watch) > 0 {
			h.Add(dispatch.WatchFieldsOnPrepare(watch...))
		}
	})
}

func attachCommand(cfg *config.Config, args []string) (int, error) {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	pid := fs.Int("pid", 0, "Attach to the debug agent of this process.")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	d := cfg.Attach
	switch {
	case *pid > 0:
		if err := checkProcess(*pid); err != nil {
			return 1, err
		}
		d.Transport = service.TransportProcess
		d.PID = *pid
	case fs.NArg() > 0:
		host, port, err := net.SplitHostPort(fs.Arg(0))
		if err != nil {
			host, port = "", fs.Arg(0)
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return 2, fmt.Errorf("invalid port %q", port)
		}
		if host != "" {
			d.Hostname = host
		}
		d.Transport = service.TransportSocket
		d.Port = n
	}
	return debug(cfg, d, nil)
}

// checkProcess reports whether pid names a live process we may signal.
func checkProcess(pid int) error {
	err := sys.Kill(pid, 0)
	switch {
	case err == nil, errors.Is(err, sys.EPERM):
		return nil
	case errors.Is(err, sys.ESRCH):
		return fmt.Errorf("no such process: %d", pid)
	}
	return fmt.Errorf("could not check process %d: %w", pid, err)
}

// debug runs one session in the foreground. SIGINT and SIGTERM stop it.
func debug(cfg *config.Config, d connect.Descriptor, hooks func(*dispatch.ClassPrepareHooks)) (int, error) {
	connector, err := cfg.Connector()
	if err != nil {
		return 1, err
	}
	obs, err := cfg.Observer()
	if err != nil {
		return 1, err
	}

	handler := dispatch.NewClassPrepareHooks(dispatch.LoggingHandler{Observer: obs})
	if hooks != nil {
		hooks(handler)
	}
	s := session.New(connector, d.Mode(), d, handler,
		session.WithObserver(obs),
		session.WithDrainTimeout(cfg.DrainTimeout),
	)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sys.SIGINT, sys.SIGTERM)
	defer signal.Stop(ch)
	go func() {
		select {
		case sig := <-ch:
			glog.Infof("received %s, stopping session %s", sig, s.ID())
			s.Stop()
		case <-s.Done():
		}
	}()

	if err := s.Start(context.Background()); err != nil {
		return 1, err
	}
	err = s.Wait()
	st := s.Status()
	fmt.Println(st)
	if err != nil {
		return 1, err
	}
	if st.Outcome != session.OutcomeNormalExit {
		return 3, nil
	}
	return 0, nil
}

func serveCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1", "Listen address.")
	port := fs.Int("port", 9223, "Listen port.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var connector service.Connector
	if fs.NArg() > 0 {
		s, err := scripted.Load(fs.Arg(0))
		if err != nil {
			return err
		}
		connector = scripted.NewConnector(s)
	} else {
		if cfg.Service.Backend == config.BackendWebsocket {
			return fmt.Errorf("cannot serve the websocket backend over itself")
		}
		var err error
		if connector, err = cfg.Connector(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), sys.SIGINT, sys.SIGTERM)
	defer stop()
	return server.NewWebsocketServer(connector, *addr, *port).Run(ctx)
}

func termCommand(cfg *config.Config) (int, error) {
	connector, err := cfg.Connector()
	if err != nil {
		return 1, err
	}
	return terminal.New(cfg, connector).Run()
}
