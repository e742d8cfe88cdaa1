package observability

import (
	"context"
	"log/slog"
	"time"
)

// SlogObserver writes events to a slog.Logger. The record keeps the event
// timestamp, the event type is the message and Data keys follow "source"
// in sorted order.
type SlogObserver struct {
	logger *slog.Logger
}

func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	level := event.Level.SlogLevel()
	if !o.logger.Enabled(ctx, level) {
		return
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	r := slog.NewRecord(ts, level, string(event.Type), 0)
	r.AddAttrs(slog.String("source", event.Source))
	for _, k := range sortedKeys(event.Data) {
		r.AddAttrs(slog.Any(k, event.Data[k]))
	}
	o.logger.Handler().Handle(ctx, r)
}
