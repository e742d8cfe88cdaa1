// Package observability carries the structured events the session engine
// emits. Core packages take an Observer instead of writing to a process wide
// logger; binaries choose where the events end up (glog, slog or nowhere).
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Level is the severity of an event.
type Level int

const (
	LevelVerbose Level = 5
	LevelInfo    Level = 9
	LevelWarning Level = 13
	LevelError   Level = 17
)

func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps l onto slog's levels.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names an event, e.g. "session.state".
type EventType string

// Event is one observation. Source names the emitting component and Data
// holds flat attributes.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events. Implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// New returns the observer registered under name: "noop", "slog" (using
// logger, or slog.Default() when nil) or "glog". A comma separated list,
// such as "glog,slog", yields a MultiObserver over each of them.
func New(name string, logger *slog.Logger) (Observer, error) {
	if !strings.Contains(name, ",") {
		return newObserver(strings.TrimSpace(name), logger)
	}
	var observers []Observer
	for _, n := range strings.Split(name, ",") {
		obs, err := newObserver(strings.TrimSpace(n), logger)
		if err != nil {
			return nil, err
		}
		observers = append(observers, obs)
	}
	return NewMultiObserver(observers...), nil
}

func newObserver(name string, logger *slog.Logger) (Observer, error) {
	switch name {
	case "", "glog":
		return GlogObserver{}, nil
	case "slog":
		if logger == nil {
			logger = slog.Default()
		}
		return NewSlogObserver(logger), nil
	case "noop":
		return NoOpObserver{}, nil
	}
	return nil, fmt.Errorf("unknown observer: %s", name)
}
