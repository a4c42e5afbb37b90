// Package bus is the in-process event fan-out. Every subscriber gets its
// own ordered queue and goroutine, so a slow or panicking subscriber never
// stalls the publisher or its peers.
package bus

import (
	"log/slog"
	"sync"
)

// Event names published by the scanner.
const (
	EventScannerStart  = "scanner:start"
	EventScannerReady  = "scanner:ready"
	EventScannerStop   = "scanner:stop"
	EventMarketAdded   = "market:added"
	EventMarketRemoved = "market:removed"
	EventTick          = "tick"
	EventSignalEnter   = "signal:enter"
	EventCycleComplete = "cycle:complete"
	EventError         = "error"
)

const subscriberQueueSize = 256

// Event is one published message.
type Event struct {
	Name    string
	Payload interface{}
}

// Handler consumes events. Panics are recovered and logged; the handler
// keeps receiving subsequent events.
type Handler func(Event)

type subscriber struct {
	name    string
	names   map[string]bool // nil subscribes to everything
	queue   chan Event
	handler Handler
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose queue is full loses that event.
type Bus struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs []*subscriber
	wg   sync.WaitGroup

	closed bool
}

func New(log *slog.Logger) *Bus {
	return &Bus{log: log.With("component", "bus")}
}

// Subscribe registers a handler for the named events; an empty name list
// subscribes to all events. The handler runs on its own goroutine and
// receives events in publish order.
func (b *Bus) Subscribe(name string, handler Handler, events ...string) {
	sub := &subscriber{
		name:    name,
		queue:   make(chan Event, subscriberQueueSize),
		handler: handler,
	}
	if len(events) > 0 {
		sub.names = make(map[string]bool, len(events))
		for _, e := range events {
			sub.names[e] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subs = append(b.subs, sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(sub)
}

func (b *Bus) run(sub *subscriber) {
	defer b.wg.Done()
	for evt := range sub.queue {
		b.deliver(sub, evt)
	}
}

// deliver invokes the handler with panic isolation.
func (b *Bus) deliver(sub *subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked",
				"subscriber", sub.name,
				"event", evt.Name,
				"panic", r,
			)
		}
	}()
	sub.handler(evt)
}

// Publish sends the event to every matching subscriber without blocking.
func (b *Bus) Publish(name string, payload interface{}) {
	evt := Event{Name: name, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if sub.names != nil && !sub.names[name] {
			continue
		}
		select {
		case sub.queue <- evt:
		default:
			b.log.Warn("subscriber queue full, dropping event",
				"subscriber", sub.name,
				"event", name,
			)
		}
	}
}

// Close stops delivery after draining each subscriber's queue.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.queue)
	}
	b.wg.Wait()
}
