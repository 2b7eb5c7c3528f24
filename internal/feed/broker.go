// Package feed fans newly created events out to connected realtime listeners.
package feed

import (
	"log"
	"sync"

	"mcm-alerts-backend/internal/model"
)

const listenerBuffer = 16

// Broker is an in-process change feed. Every event published is delivered to
// every currently subscribed listener; a listener that cannot keep up is
// disconnected, so its client sees the stream end and reconnects.
type Broker struct {
	mu     sync.Mutex
	subs   map[int64]chan model.Event
	nextID int64
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int64]chan model.Event)}
}

// Subscribe registers a listener. The returned cancel function removes the
// listener and closes its channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan model.Event, listenerBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to all current listeners without blocking. A
// listener whose buffer is full is removed and its channel closed rather than
// silently missing the event; the closed stream is a reconnect boundary the
// client recovers from.
func (b *Broker) Publish(event model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Printf("feed: listener %d is not keeping up, disconnecting it", id)
			delete(b.subs, id)
			close(ch)
		}
	}
}

// ListenerCount returns the number of connected listeners.
func (b *Broker) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close removes and closes all listeners. Publish becomes a no-op afterwards.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
