package engine

import (
	"log"
	"sync"
	"time"
)

type EventType int

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type subscriber struct {
	id    int
	fn    func(Event)
	types map[EventType]bool // nil means all types
}

// EventBus delivers events synchronously to subscribers in subscription order.
// A panicking handler is logged and does not stop delivery to the others.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every event and returns an id for Unsubscribe.
func (b *EventBus) Subscribe(fn func(Event)) int {
	return b.add(fn, nil)
}

// SubscribeTypes registers fn for the listed event types only.
func (b *EventBus) SubscribeTypes(fn func(Event), types ...EventType) int {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return b.add(fn, set)
}

func (b *EventBus) add(fn func(Event), types map[EventType]bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn, types: types})
	return b.nextID
}

func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.types != nil && !s.types[evt.Type] {
			continue
		}
		deliver(s.fn, evt)
	}
}

func deliver(fn func(Event), evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: event handler panic on %s: %v", evt.Type, r)
		}
	}()
	fn(evt)
}
