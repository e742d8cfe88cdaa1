// Package scripted is an in-process debugging service that replays a
// scenario of event sets. It honours subscriptions the way a real service
// does: events nobody subscribed to are never reported, exclusion filters
// and the caught/uncaught flags of exception requests are applied, and one
// event is reported per matching request.
package scripted

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/alexengrig/JDebugger/api"
)

// Scenario describes what the simulated target does once connected.
type Scenario struct {
	Name string `yaml:"name"`
	// Main is the entry point class a launch must name. Empty accepts any.
	Main string `yaml:"main"`
	// StartFailure makes every launch fail after the process started.
	StartFailure bool `yaml:"start_failure"`
	// Attach lists the addresses an attach may reach.
	Attach AttachTargets `yaml:"attach"`
	// DropAfter drops the transport after that many event sets were
	// delivered. Zero never drops.
	DropAfter int      `yaml:"drop_after"`
	Batches   []*Batch `yaml:"batches"`
}

type AttachTargets struct {
	Ports []int    `yaml:"ports"`
	PIDs  []int    `yaml:"pids"`
	Names []string `yaml:"names"`
}

// Batch is one event set as the target would raise it, before subscription
// filtering.
type Batch struct {
	Suspend api.SuspendPolicy `yaml:"suspend"`
	// Interrupt makes the retrieval of this batch fail once with
	// service.ErrInterrupted.
	Interrupt bool `yaml:"interrupt"`
	// Fail makes the retrieval of this batch fail with an unclassified error.
	Fail   string         `yaml:"fail"`
	Events []*ScriptEvent `yaml:"events"`
}

// ScriptEvent is the scenario form of an api.Event.
type ScriptEvent struct {
	Kind       api.EventKind `yaml:"kind"`
	Thread     string        `yaml:"thread"`
	ThreadID   int64         `yaml:"thread_id"`
	Class      string        `yaml:"class"`
	Method     string        `yaml:"method"`
	Line       int           `yaml:"line"`
	Exception  string        `yaml:"exception"`
	CatchClass string        `yaml:"catch_class"`
	CatchLine  int           `yaml:"catch_line"`
	Field      string        `yaml:"field"`
	Value      string        `yaml:"value"`
	NewValue   string        `yaml:"new_value"`
	Fields     []string      `yaml:"fields"`
}

//go:embed demo.yaml
var demoScenario []byte

// Demo returns the scenario of the example program: it throws a caught
// and an uncaught exception and exits.
func Demo() *Scenario {
	s, err := Parse(demoScenario)
	if err != nil {
		panic(fmt.Sprintf("scripted: demo scenario: %v", err))
	}
	return s
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	for i, b := range s.Batches {
		if b.Suspend == "" {
			b.Suspend = api.SuspendAll
		}
		if len(b.Events) == 0 && b.Fail == "" && !b.Interrupt {
			return nil, fmt.Errorf("batch %d: no events", i)
		}
		for j, ev := range b.Events {
			if !ev.Kind.Known() {
				// Unknown kinds are kept: they model a newer service.
				continue
			}
			if ev.Kind == api.ClassPrepare && ev.Class == "" {
				return nil, fmt.Errorf("batch %d event %d: ClassPrepare without class", i, j)
			}
		}
	}
	return s, nil
}

// Event converts e into the event the service reports.
func (e *ScriptEvent) Event() *api.Event {
	ev := &api.Event{Kind: e.Kind}
	if e.Thread != "" || e.ThreadID != 0 {
		ev.Thread = &api.ThreadRef{ID: e.ThreadID, Name: e.Thread}
	}
	if e.Class != "" {
		ev.Location = &api.Location{ClassName: e.Class, Method: e.Method, Line: e.Line}
	}

	switch e.Kind {
	case api.Exception:
		ev.Exception = &api.ExceptionData{
			Exception: api.ObjectRef{TypeName: e.Exception},
		}
		if e.CatchClass != "" {
			ev.Exception.CatchLocation = &api.Location{ClassName: e.CatchClass, Line: e.CatchLine}
		}
	case api.AccessWatchpoint, api.ModificationWatchpoint:
		ev.Watchpoint = &api.WatchpointData{
			Field:        api.Field{DeclaringType: e.Class, Name: e.Field},
			ValueCurrent: api.Value{Text: e.Value},
		}
		if e.Kind == api.ModificationWatchpoint {
			ev.Watchpoint.ValueToBe = &api.Value{Text: e.NewValue}
		}
	case api.MethodEntry, api.MethodExit:
		ev.Method = &api.MethodData{Method: e.Method}
		if e.Kind == api.MethodExit && e.Value != "" {
			ev.Method.ReturnValue = &api.Value{Text: e.Value}
		}
	case api.MonitorWait, api.MonitorWaited, api.MonitorContendedEnter, api.MonitorContendedEntered:
		ev.Monitor = &api.MonitorData{Monitor: api.ObjectRef{TypeName: e.Value}}
	case api.ClassPrepare:
		t := api.TypeRef{Name: e.Class}
		for _, f := range e.Fields {
			t.Fields = append(t.Fields, &api.Field{DeclaringType: e.Class, Name: f})
		}
		ev.ClassPrepare = &api.ClassPrepareData{Type: t}
	case api.ClassUnload:
		ev.ClassUnload = &api.ClassUnloadData{ClassName: e.Class}
		ev.Location = nil
	}
	return ev
}

func (a AttachTargets) hasPort(port string) bool {
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	for _, p := range a.Ports {
		if p == n {
			return true
		}
	}
	return false
}

func (a AttachTargets) hasPID(pid string) bool {
	n, err := strconv.Atoi(pid)
	if err != nil {
		return false
	}
	for _, p := range a.PIDs {
		if p == n {
			return true
		}
	}
	return false
}

func (a AttachTargets) hasName(name string) bool {
	for _, n := range a.Names {
		if n == name {
			return true
		}
	}
	return false
}
