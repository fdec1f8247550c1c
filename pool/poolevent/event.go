// Package poolevent implements the bounded event fan-out used by the
// base pool and the manager. It is modeled on the Subscribe/Send/
// Unsubscribe shape of github.com/ethereum/go-ethereum's event.Feed,
// adapted to add two properties Feed itself doesn't provide: a bounded
// channel per subscriber, and drop-oldest behavior on overflow instead
// of a blocking Send. Feed's Send blocks until every subscriber has
// received the value (or unsubscribed), which is exactly the
// head-of-line blocking a metrics collector reading slowly must not
// impose on pool acquisitions; that is why Feed could not be reused
// verbatim here (see DESIGN.md).
package poolevent

import (
	"sync"
	"time"
)

// Type enumerates the event kinds a Bus can carry.
type Type string

const (
	PoolStarted         Type = "pool_started"
	PoolStopped         Type = "pool_stopped"
	ConnectionCreated   Type = "connection_created"
	ConnectionReleased  Type = "connection_released"
	ConnectionDestroyed Type = "connection_destroyed"
	HealthCheck         Type = "health_check"
	CircuitBreaker      Type = "circuit_breaker"
	Error               Type = "error"
)

// Event is one lifecycle or health notification: what kind, which
// pool, which endpoint (if any), an optional detail payload, and when
// it happened.
type Event struct {
	Type      Type
	Pool      string
	Endpoint  string
	Data      map[string]any
	Timestamp time.Time
}

const defaultBufferSize = 64

// Bus is a multi-producer, multi-subscriber event channel. Each
// subscriber gets its own buffered channel; a full subscriber channel
// has its oldest pending event dropped to make room rather than
// blocking the publisher, since publishers here are pool-internal
// goroutines (acquire/release/probe/reap) that must never stall on a
// slow metrics consumer.
type Bus struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	ch     chan Event
	bus    *Bus
	closed bool
}

// NewBus returns a ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

// Subscribe registers a new subscriber and returns a channel of
// events plus an unsubscribe function. The unsubscribe function is
// idempotent.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, defaultBufferSize), bus: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub.ch, func() { b.unsubscribe(sub) }
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish fans an event out to every current subscriber without
// blocking. If a subscriber's buffer is full, the oldest queued event
// is discarded to make room for the new one.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Close unsubscribes and closes every live subscriber channel. The
// Bus is unusable afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	b.subs = make(map[*subscription]struct{})
}
