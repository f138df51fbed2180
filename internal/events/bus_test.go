package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"trade_engine/pkg/logging"
)

func TestBus_PublishSyncDeliversToAllHandlers(t *testing.T) {
	bus := NewBus(logging.NewNop())

	var first, second int32
	bus.Subscribe(TopicTick, func(ctx context.Context, event Event) {
		atomic.AddInt32(&first, 1)
	})
	bus.Subscribe(TopicTick, func(ctx context.Context, event Event) {
		atomic.AddInt32(&second, 1)
	})

	bus.PublishSync(context.Background(), Event{Topic: TopicTick})

	if atomic.LoadInt32(&first) != 1 || atomic.LoadInt32(&second) != 1 {
		t.Fatalf("expected both handlers to run once, got %d and %d", first, second)
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus(logging.NewNop())

	var calls int32
	bus.Subscribe(TopicSignalTick, func(ctx context.Context, event Event) {
		atomic.AddInt32(&calls, 1)
	})

	bus.PublishSync(context.Background(), Event{Topic: TopicTick})

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("handler for a different topic must not run")
	}
}

func TestBus_PanickingHandlerDoesNotSinkSiblings(t *testing.T) {
	bus := NewBus(logging.NewNop())

	var survived int32
	bus.Subscribe(TopicTick, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(TopicTick, func(ctx context.Context, event Event) {
		atomic.AddInt32(&survived, 1)
	})

	bus.PublishSync(context.Background(), Event{Topic: TopicTick})

	if atomic.LoadInt32(&survived) != 1 {
		t.Fatal("sibling handler must still run when one panics")
	}
}

func TestBus_PublishIsAsynchronous(t *testing.T) {
	bus := NewBus(logging.NewNop())

	done := make(chan struct{})
	bus.Subscribe(TopicTick, func(ctx context.Context, event Event) {
		close(done)
	})

	bus.Publish(context.Background(), Event{Topic: TopicTick})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was never dispatched")
	}
}
