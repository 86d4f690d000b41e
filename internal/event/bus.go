package event

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// wildcard is the subscription key for handlers that receive every event.
const wildcard = "*"

// Handler is a function that handles an event.
type Handler func(Event)

// PanicHandler is told about a handler that panicked while handling an event.
type PanicHandler func(eventType string, recovered any, stack []byte)

type subscription struct {
	id      string
	handler Handler
}

// Bus is a simple synchronous pub-sub event bus.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	nextID        atomic.Uint64
	onPanic       PanicHandler
}

// NewBus creates a new event bus. Handler panics are written to the
// standard logger until SetPanicHandler installs something else.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
		onPanic: func(eventType string, r any, stack []byte) {
			log.Printf("ERROR: event handler panicked for event %s: %v\n%s", eventType, r, stack)
		},
	}
}

// SetPanicHandler replaces the reporter used for recovered handler panics.
func (b *Bus) SetPanicHandler(h PanicHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPanic = h
}

// Subscribe registers a handler for a specific event type and returns an
// ID usable with Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subscriptions[eventType]) == 0 {
				delete(b.subscriptions, eventType)
			}
			return true
		}
	}
	return false
}

// Publish dispatches an event to the handlers of its type, then to wildcard
// handlers, each group in registration order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[e.EventType()]...)
	all := append([]subscription(nil), b.subscriptions[wildcard]...)
	onPanic := b.onPanic
	b.mu.RUnlock()

	for _, sub := range specific {
		safeCall(sub.handler, e, onPanic)
	}
	for _, sub := range all {
		safeCall(sub.handler, e, onPanic)
	}
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

func safeCall(handler Handler, e Event, onPanic PanicHandler) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(e.EventType(), r, debug.Stack())
		}
	}()
	handler(e)
}
