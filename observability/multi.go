package observability

import "context"

// MultiObserver hands every event to several observers, in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver drops nil and NoOpObserver entries.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range observers {
		switch obs.(type) {
		case nil, NoOpObserver:
			continue
		}
		m.observers = append(m.observers, obs)
	}
	return m
}

// Len returns the number of observers events are handed to.
func (m *MultiObserver) Len() int { return len(m.observers) }

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
