package eventgraph

import (
	"context"
	"sync"
)

// Bus wraps an EventStore with in-process fan-out notification.
// Every successful Append is offered to each matching subscription.
type Bus struct {
	EventStore
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription receives events from a Bus until Close is called.
type Subscription struct {
	C     <-chan *Event
	ch    chan *Event
	types map[string]bool
	bus   *Bus
	once  sync.Once
}

// NewBus creates a Bus wrapping the given store.
func NewBus(store EventStore) *Bus {
	return &Bus{
		EventStore: store,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Append delegates to the underlying store, then fans out to subscribers.
// Slow subscribers miss events rather than blocking the writer.
func (b *Bus) Append(ctx context.Context, eventType, source string, content map[string]any, causes []string) (*Event, error) {
	e, err := b.EventStore.Append(ctx, eventType, source, content, causes)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	for sub := range b.subs {
		if len(sub.types) > 0 && !sub.types[e.Type] {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
	b.mu.RUnlock()

	return e, nil
}

// Subscribe registers a buffered subscription. With no types every event is
// delivered; otherwise only events whose Type is listed.
func (b *Bus) Subscribe(types ...string) *Subscription {
	ch := make(chan *Event, 64)
	sub := &Subscription{C: ch, ch: ch, bus: b}
	if len(types) > 0 {
		sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Close detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribers reports how many subscriptions are open.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
