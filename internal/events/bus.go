// Package events provides the in-process publish/subscribe bus that wires
// the tick scheduler to its listeners.
package events

import (
	"context"
	"sync"

	"trade_engine/internal/core"
)

// Topic identifies one event kind on the bus.
type Topic string

const (
	TopicTick                Topic = "tick"
	TopicSignalTick          Topic = "signal_tick"
	TopicWatchdog            Topic = "watchdog"
	TopicOrdering            Topic = "tick_ordering"
	TopicOrder               Topic = "order"
	TopicTicker              Topic = "ticker"
	TopicOrderbook           Topic = "orderbook"
	TopicPositionStateChange Topic = "position_state_change"
)

// Event is what flows over the bus; Payload holds the topic-specific value.
type Event struct {
	Topic   Topic
	Payload interface{}
}

// Handler consumes one event. Handlers for distinct topics run
// independently; a panicking handler never takes its siblings down.
type Handler func(ctx context.Context, event Event)

// Bus is a typed dispatcher table mapping topic to its ordered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	logger   core.ILogger
}

// NewBus creates an empty bus.
func NewBus(logger core.ILogger) *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
		logger:   logger.WithField("component", "event_bus"),
	}
}

// Subscribe registers a handler for a topic. Registration order is
// preserved per topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish dispatches the event to every handler of its topic, each on its
// own goroutine, and returns without waiting for them.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Topic]
	b.mu.RUnlock()

	for _, handler := range handlers {
		h := handler
		go b.dispatch(ctx, h, event)
	}
}

// PublishSync dispatches like Publish but waits for all handlers to settle,
// for callers that must observe every listener's effect before continuing.
func (b *Bus) PublishSync(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Topic]
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		h := handler
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.dispatch(ctx, h, event)
		}()
	}
	wg.Wait()
}

func (b *Bus) dispatch(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked", "topic", string(event.Topic), "panic", r)
		}
	}()
	handler(ctx, event)
}
