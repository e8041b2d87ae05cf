// Package event implements a small typed pub/sub bus. It stands in for the
// browser's cross-origin storage notifications: every durable-store write is
// published here so other components (the status deriver, the CLI) can react
// without polling.
package event

import (
	"sync"
	"time"
)

// SubscriberQueueSize bounds each subscriber channel. A subscriber that
// falls this far behind starts losing events; listeners must treat an event
// as "something changed, recompute" rather than a reliable stream.
const SubscriberQueueSize = 16

type Type string

type SubscriberID int

type Event struct {
	Timestamp time.Time
	Data      any
	Type      Type
}

func New(eventType Type, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type]map[SubscriberID]chan Event
	lastSubID   SubscriberID
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Type]map[SubscriberID]chan Event),
	}
}

// Subscribe registers for events of the given type and returns the
// subscriber id (needed for Unsubscribe) and the delivery channel.
func (b *Bus) Subscribe(eventType Type) (SubscriberID, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSubID++
	id := b.lastSubID
	ch := make(chan Event, SubscriberQueueSize)
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberID]chan Event)
	}
	b.subscribers[eventType][id] = ch
	return id, ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType Type, id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[eventType]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		close(ch)
		delete(subs, id)
	}
}

// Publish delivers the event to every current subscriber of its type.
// Delivery is non-blocking: a full subscriber queue drops the event.
func (b *Bus) Publish(eventType Type, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- evt:
		default:
		}
	}
}
