package eventbus

import (
	"sync"
	"time"
)

const (
	// DefaultHistorySize is the number of recent events retained for catch-up
	DefaultHistorySize = 1000

	// DefaultSubscriberBuffer is the per-subscriber queue depth
	DefaultSubscriberBuffer = 64
)

// Subscriber is one registered observer with its own bounded queue. A full
// queue drops events for this subscriber only; the hub and the other
// subscribers never wait on it.
type Subscriber struct {
	storyID string
	ch      chan Event

	mu      sync.Mutex
	dropped int
	closed  bool
}

// Events returns the subscriber's delivery channel
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded because the queue was full
func (s *Subscriber) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Hub broadcasts events to subscribers and keeps a bounded history of the
// most recent events across all stories. Publish and subscriber add/remove
// are safe under concurrent callers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]bool
	history     []Event
	historySize int
	bufferSize  int
}

// NewHub creates a hub with the given history and per-subscriber queue sizes
func NewHub(historySize, subscriberBuffer int) *Hub {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	if subscriberBuffer < 1 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		history:     make([]Event, 0, historySize),
		historySize: historySize,
		bufferSize:  subscriberBuffer,
	}
}

// Publish appends the event to history and enqueues it into every matching
// subscriber queue without blocking. It returns the number of subscribers
// the event was actually delivered to.
func (h *Hub) Publish(ev Event) int {
	ev = ev.normalize()

	h.mu.Lock()
	// History is oldest-evicted and stores everything unfiltered
	h.history = append(h.history, ev)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}

	delivered := 0
	for sub := range h.subscribers {
		if !ev.matches(sub.storyID) {
			continue
		}
		select {
		case sub.ch <- ev:
			delivered++
		default:
			// This subscriber's queue is full; drop for it alone
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
		}
	}
	h.mu.Unlock()

	return delivered
}

// Subscribe registers an observer. An empty storyID receives everything;
// otherwise only global events and events for that story are delivered.
func (h *Hub) Subscribe(storyID string) *Subscriber {
	sub := &Subscriber{
		storyID: storyID,
		ch:      make(chan Event, h.bufferSize),
	}

	h.mu.Lock()
	h.subscribers[sub] = true
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes an observer and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	registered := h.subscribers[sub]
	delete(h.subscribers, sub)
	h.mu.Unlock()

	if registered {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
}

// SubscriberCount returns the number of registered observers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// History returns retained events newer than since, optionally filtered by
// story, newest last. A since older than the oldest retained event simply
// returns the oldest-available subset. limit <= 0 means no limit.
func (h *Hub) History(since time.Time, storyID string, limit int) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, 0)
	for _, ev := range h.history {
		if !since.IsZero() && !ev.Timestamp.After(since) {
			continue
		}
		if storyID != "" && !ev.matches(storyID) {
			continue
		}
		out = append(out, ev)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
