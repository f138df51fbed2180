// Package watchdog keeps an eye on the engine's resting orders between
// ordering cycles. It reconciles the tracked list against the exchanges and
// surfaces position state transitions to the rest of the engine.
package watchdog

import (
	"context"
	"sync"

	"trade_engine/internal/core"
	"trade_engine/internal/events"
)

// ExchangeResolver resolves a configured exchange id to its gateway.
type ExchangeResolver interface {
	Get(name string) core.IExchange
}

// Watchdog implements core.IWatchdogListener. On each watchdog tick it
// probes every tracked order and drops the ones the exchange no longer
// considers open, so a missed adjustment cycle cannot leave the local list
// drifting from reality.
type Watchdog struct {
	executor  core.IOrderExecutor
	exchanges ExchangeResolver
	notifier  core.INotifier
	logger    core.ILogger
}

func New(executor core.IOrderExecutor, exchanges ExchangeResolver, notifier core.INotifier, logger core.ILogger) *Watchdog {
	return &Watchdog{
		executor:  executor,
		exchanges: exchanges,
		notifier:  notifier,
		logger:    logger.WithField("component", "watchdog"),
	}
}

// OnTick reconciles the tracked orders against the exchanges.
func (w *Watchdog) OnTick(ctx context.Context) {
	tracked := w.executor.TrackedOrders()
	dropped := 0

	for _, order := range tracked {
		exchange := w.exchanges.Get(order.Exchange)
		if exchange == nil {
			w.logger.Error("Unknown exchange for tracked order", "exchange", order.Exchange, "order_id", order.ID)
			continue
		}

		current, err := exchange.FindOrderByID(ctx, order.ID)
		if err != nil {
			w.logger.Warn("Watchdog order probe failed", "exchange", order.Exchange, "order_id", order.ID, "error", err.Error())
			continue
		}
		if current == nil || current.Status != core.OrderStatusOpen {
			w.executor.Untrack(order.ID)
			dropped++
		}
	}

	if dropped > 0 {
		w.logger.Info("Watchdog dropped dead orders", "count", dropped, "tracked", len(tracked)-dropped)
	}
}

// OnPositionChanged notifies the operator about position transitions.
func (w *Watchdog) OnPositionChanged(ctx context.Context, event core.PositionStateChangeEvent) {
	w.logger.Info("Position state changed",
		"type", event.Type,
		"exchange", event.Exchange,
		"symbol", event.Symbol)
	w.notifier.Send(ctx, "Position "+event.Type+": "+event.Exchange+"."+event.Symbol)
}

// PositionWatcher implements core.IPositionWatcher by deriving position
// state from the presence of tracked orders per pair. A pair gaining its
// first order opens; a pair losing its last one closes.
type PositionWatcher struct {
	executor core.IOrderExecutor
	bus      *events.Bus
	pairs    []core.Pair
	logger   core.ILogger

	mu   sync.Mutex
	open map[string]bool
}

func NewPositionWatcher(executor core.IOrderExecutor, bus *events.Bus, pairs []core.Pair, logger core.ILogger) *PositionWatcher {
	return &PositionWatcher{
		executor: executor,
		bus:      bus,
		pairs:    pairs,
		logger:   logger.WithField("component", "position_watcher"),
		open:     make(map[string]bool),
	}
}

// OnPositionStateChangeTick publishes a state-change event for every pair
// whose open/closed state flipped since the last tick.
func (p *PositionWatcher) OnPositionStateChangeTick(ctx context.Context) {
	hasOrders := make(map[string]bool, len(p.pairs))
	for _, order := range p.executor.TrackedOrders() {
		hasOrders[core.Pair{Exchange: order.Exchange, Symbol: order.Request.Symbol}.String()] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pair := range p.pairs {
		key := pair.String()
		now := hasOrders[key]
		if now == p.open[key] {
			continue
		}
		p.open[key] = now

		changeType := core.PositionStateClosed
		if now {
			changeType = core.PositionStateOpened
		}

		p.logger.Debug("Pair state transition", "pair", key, "type", changeType)
		p.bus.Publish(ctx, events.Event{
			Topic: events.TopicPositionStateChange,
			Payload: core.PositionStateChangeEvent{
				Type:     changeType,
				Exchange: pair.Exchange,
				Symbol:   pair.Symbol,
			},
		})
	}
}
