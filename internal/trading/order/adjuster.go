package order

import (
	"context"
	"time"

	"trade_engine/internal/core"
	"trade_engine/pkg/concurrency"
	"trade_engine/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// guardTTL bounds how long an adjustment slot can stay held. A pass that
// died mid-flight loses its slot after this.
const guardTTL = 2 * time.Minute

// Adjuster walks the tracked price-following orders each ordering cycle and
// moves any whose resting price drifted from the current market price.
// Orders are visited concurrently; the guard keeps two cycles from touching
// the same order.
type Adjuster struct {
	executor  core.IOrderExecutor
	exchanges ExchangeResolver
	oracle    core.IPriceOracle
	guard     *AdjustmentGuard
	pool      *concurrency.WorkerPool
	logger    core.ILogger

	adjustedCounter metric.Int64Counter
}

// NewAdjuster creates an adjuster sharing the executor's tracked-order view.
func NewAdjuster(executor core.IOrderExecutor, exchanges ExchangeResolver, oracle core.IPriceOracle, guard *AdjustmentGuard, pool *concurrency.WorkerPool, logger core.ILogger) *Adjuster {
	meter := telemetry.GetMeter("order-adjuster")
	adjustedCounter, _ := meter.Int64Counter("trade_engine_orders_adjusted_total",
		metric.WithDescription("Total number of resting orders re-priced"))

	return &Adjuster{
		executor:        executor,
		exchanges:       exchanges,
		oracle:          oracle,
		guard:           guard,
		pool:            pool,
		logger:          logger.WithField("component", "order_adjuster"),
		adjustedCounter: adjustedCounter,
	}
}

// AdjustOpenOrders runs one adjustment pass. Each tracked order is handled
// independently; one failing order never blocks the rest.
func (a *Adjuster) AdjustOpenOrders(ctx context.Context) {
	if purged := a.guard.PurgeOlderThan(guardTTL); purged > 0 {
		a.logger.Warn("Purged stale adjustment slots", "count", purged)
	}

	group := a.pool.Group()
	for _, tracked := range a.executor.TrackedOrders() {
		if !tracked.Request.PriceFollowing {
			continue
		}
		t := tracked
		group.Submit(func() {
			a.adjust(ctx, t)
		})
	}
	group.Wait()
}

func (a *Adjuster) adjust(ctx context.Context, tracked core.TrackedOrder) {
	logger := a.logger.WithFields(map[string]interface{}{
		"exchange": tracked.Exchange,
		"symbol":   tracked.Request.Symbol,
		"order_id": tracked.ID,
	})

	exchange := a.exchanges.Get(tracked.Exchange)
	if exchange == nil {
		logger.Error("Unknown exchange for tracked order")
		a.guard.Release(tracked.ID)
		return
	}

	// Probe the exchange first so the local list converges on reality even
	// when the order is locked by an in-flight adjustment.
	current, err := exchange.FindOrderByID(ctx, tracked.ID)
	if err != nil {
		// A failed probe says nothing about the order's state; keep it
		// tracked and try again next cycle.
		logger.Warn("Order lookup failed, skipping this cycle", "error", err.Error())
		a.guard.Release(tracked.ID)
		return
	}
	if current == nil || current.Status != core.OrderStatusOpen {
		logger.Info("Order no longer open, dropping from tracking")
		a.executor.Untrack(tracked.ID)
		a.guard.Release(tracked.ID)
		return
	}

	if !a.guard.TryAcquire(tracked.ID) {
		logger.Debug("Adjustment already in flight, skipping")
		return
	}
	defer a.guard.Release(tracked.ID)

	price := a.oracle.CurrentPrice(ctx, tracked.Exchange, tracked.Request.Symbol, tracked.Request.Side)
	if price == nil {
		logger.Warn("No current price, leaving order as is")
		return
	}

	// Prices are signed; compare magnitudes only.
	if price.Abs().Equal(current.Price.Abs()) {
		logger.Debug("Price unchanged", "price", current.Price.String())
		return
	}

	updated, err := exchange.UpdateOrder(ctx, tracked.ID, core.PriceUpdate{
		OrderID: tracked.ID,
		Price:   *price,
	})
	if err != nil {
		logger.Error("Order update failed", "error", err.Error())
		return
	}

	switch {
	case updated.Status == core.OrderStatusOpen:
		a.adjustedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("exchange", tracked.Exchange),
		))
		logger.Info("Order re-priced",
			"old_price", current.Price.String(),
			"new_price", price.String())

	case updated.Status == core.OrderStatusCanceled && updated.RetryHint:
		// The exchange dropped the order instead of moving it. Re-place it
		// through the full retry path.
		logger.Warn("Update canceled order, re-placing")
		a.executor.Untrack(tracked.ID)
		a.executor.Execute(ctx, tracked.Exchange, tracked.Request.Retry())

	default:
		logger.Warn("Unexpected status after update", "status", string(updated.Status))
	}
}
