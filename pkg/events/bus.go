package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one lifecycle notification. Key groups events that must be
// observed in order (the action id); Data is a JSON-marshalable payload.
type Event struct {
	Type string    `json:"type"`
	Key  string    `json:"key"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// Subscription receives events on C until Unsubscribe is called. Delivery
// is best-effort: a subscriber that falls more than bufSize events behind
// loses newer events rather than blocking publishers.
type Subscription struct {
	C chan Event

	bus     *Bus
	types   map[string]struct{} // empty = all types
	dropped atomic.Int64
}

const bufSize = 256

// Bus is an in-process publish/subscribe hub keyed by event type. Events
// published from a single goroutine are delivered to each subscriber in
// publish order; the ledger publishes all events for one action while
// holding that action's lock, which gives per-action ordering.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in the given event types; with no types it
// receives everything.
func (b *Bus) Subscribe(types ...string) *Subscription {
	sub := &Subscription{
		C:     make(chan Event, bufSize),
		bus:   b,
		types: make(map[string]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (s *Subscription) wants(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// Dropped returns how many events this subscriber has lost to backpressure.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.C)
	}
	s.bus.mu.Unlock()
}

// Publish delivers evt to every matching subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.wants(evt.Type) {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			sub.dropped.Add(1)
		}
	}
}
