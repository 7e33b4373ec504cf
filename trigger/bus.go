// Package trigger provides the process-wide key-based publish/subscribe
// bus that feeds external events into trigger-capable nodes. A Bus is an
// explicit service with a lifecycle; construct one per runtime instead of
// sharing global state.
package trigger

import (
	"sync"
	"time"
)

// An Event is one external occurrence published onto the bus.
type Event struct {
	Key     string      `json:"key"`
	Payload interface{} `json:"payload"`
	Time    time.Time   `json:"timestamp"`
}

// A Handler receives events. Handlers run on the publisher's goroutine
// and must not block.
type Handler func(Event)

type subscription struct {
	key     string
	handler Handler
}

// Bus routes published events to every handler whose key matches.
// A subscription with an empty key receives every event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]subscription),
	}
}

func (b *Bus) Open() error {
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]subscription)
	return nil
}

// Subscribe registers handler for events matching key; the empty key is a
// wildcard. The returned function removes the subscription and is safe to
// call more than once.
func (b *Bus) Subscribe(key string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{key: key, handler: handler}
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every matching handler. Events published after
// Close are dropped.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	b.mu.RLock()
	var handlers []Handler
	for _, s := range b.subs {
		if s.key == "" || s.key == e.Key {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
