// Package events provides an in-memory event bus using Go channels.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	// Memory lifecycle
	EventMemoryStored    EventType = "memory.stored"
	EventMemoryUpdated   EventType = "memory.updated"
	EventMemoryForgotten EventType = "memory.forgotten"
	EventMemoryPruned    EventType = "memory.pruned"
	EventMemoryWiped     EventType = "memory.wiped"

	// Tool invocations
	EventToolInvoked EventType = "tool.invoked"
	EventToolFailed  EventType = "tool.failed"

	// Web reader
	EventWebRead EventType = "web.read"

	// Housekeeping
	EventMaintenanceRun EventType = "maintenance.run"

	// Plugin lifecycle
	EventPluginLoaded EventType = "plugin.loaded"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceTool        EventSource = "tool"
	SourcePlugin      EventSource = "plugin"
	SourceGateway     EventSource = "gateway"
	SourceMaintenance EventSource = "maintenance"
	SourceCLI         EventSource = "cli"
)

// Event represents an event in the system.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

type subscription struct {
	id         int
	eventTypes []EventType
	handler    Subscriber
}

// Bus is an in-memory event bus using Go channels.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
	eventChan   chan Event
	ringBuffer  *RingBuffer
	closed      bool
	done        chan struct{}
}

// NewBus creates a new event bus.
func NewBus(bufferSize int) *Bus {
	b := &Bus{
		subscribers: make(map[int]*subscription),
		eventChan:   make(chan Event, bufferSize),
		ringBuffer:  NewRingBuffer(bufferSize),
		done:        make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// dispatch delivers events one at a time, in publish order. It drains
// the buffer after Close and then signals done, so Close returns only
// when every accepted event has reached every subscriber.
func (b *Bus) dispatch() {
	defer close(b.done)
	for event := range b.eventChan {
		b.ringBuffer.Add(event)
		b.notifySubscribers(event)
	}
}

// notifySubscribers invokes matching handlers inline on the dispatch
// goroutine. Subscribers therefore see events in publish order, and a
// handler writing to shared state (the audit log file) needs no locking
// of its own. The subscriber snapshot is taken under the read lock but
// handlers run outside it, so a handler may publish or subscribe freely.
func (b *Bus) notifySubscribers(event Event) {
	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if b.matches(sub, event) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		sub.handler(event)
	}
}

func (b *Bus) matches(sub *subscription, event Event) bool {
	if len(sub.eventTypes) == 0 {
		return true
	}
	for _, t := range sub.eventTypes {
		if t == event.Type {
			return true
		}
	}
	return false
}

// Publish sends an event to the bus. It never blocks: when the buffer is
// full or the bus is closed the event is dropped. The read lock is held
// across the send so Close cannot tear down the channel mid-publish.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.eventChan <- event:
	default:
	}
}

// Subscribe registers a handler for specific event types.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(handler Subscriber, eventTypes ...EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	b.subscribers[id] = &subscription{
		id:         id,
		eventTypes: eventTypes,
		handler:    handler,
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// SubscribeChan returns a channel that receives events.
func (b *Bus) SubscribeChan(bufSize int, eventTypes ...EventType) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	unsubscribe := b.Subscribe(func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}, eventTypes...)

	return ch, func() {
		unsubscribe()
		close(ch)
	}
}

// History returns recent events from the ring buffer.
func (b *Bus) History(limit int) []Event {
	return b.ringBuffer.Get(limit)
}

// Close shuts down the event bus. It blocks until every event accepted
// before the close has been delivered, so callers may rely on the audit
// trail being complete when Close returns.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	<-b.done
}

// RingBuffer is a circular buffer for storing recent events.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	size   int
	pos    int
	count  int
}

// NewRingBuffer creates a new ring buffer.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

func (r *RingBuffer) Add(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.pos] = event
	r.pos = (r.pos + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *RingBuffer) Get(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]Event, n)
	start := (r.pos - n + r.size) % r.size
	for i := 0; i < n; i++ {
		result[i] = r.events[(start+i)%r.size]
	}
	return result
}
