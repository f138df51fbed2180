// Package order implements order placement with rate limiting and
// hint-driven retries, plus the open-order adjustment loop.
package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trade_engine/internal/core"
	"trade_engine/pkg/telemetry"

	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ExchangeResolver resolves a configured exchange id to its gateway, nil
// when unknown.
type ExchangeResolver interface {
	Get(name string) core.IExchange
}

// EventRecorder is the slice of the event log repository the executor uses.
type EventRecorder interface {
	Insert(ctx context.Context, category, message string) error
}

// Executor implements core.IOrderExecutor. Every operation resolves to a
// value or nil; failures are logged and counted, never raised, so one bad
// order cannot take down the caller's cycle.
type Executor struct {
	exchanges ExchangeResolver
	oracle    core.IPriceOracle
	events    EventRecorder
	logger    core.ILogger

	// Rate limiting (25 orders/second with burst capacity)
	rateLimiter *rate.Limiter

	// Retry configuration for hint-driven re-attempts
	maxRetries int
	retryDelay time.Duration

	mu      sync.RWMutex
	tracked map[string]core.TrackedOrder
	gauged  map[string]struct{} // exchanges that ever had a tracked order

	// OTel
	tracer       trace.Tracer
	orderCounter metric.Int64Counter
	retryCounter metric.Int64Counter
	failCounter  metric.Int64Counter
}

// NewExecutor creates an executor. maxRetries bounds hint-driven
// re-attempts after the first placement; retryDelay is the pause between
// them.
func NewExecutor(exchanges ExchangeResolver, oracle core.IPriceOracle, events EventRecorder, logger core.ILogger, maxRetries int, retryDelay time.Duration) *Executor {
	tracer := telemetry.GetTracer("order-executor")
	meter := telemetry.GetMeter("order-executor")

	orderCounter, _ := meter.Int64Counter("trade_engine_orders_placed_total",
		metric.WithDescription("Total number of orders placed"))
	retryCounter, _ := meter.Int64Counter("trade_engine_order_retries_total",
		metric.WithDescription("Total number of hint-driven order re-attempts"))
	failCounter, _ := meter.Int64Counter("trade_engine_order_failures_total",
		metric.WithDescription("Total number of order placements given up on"))

	return &Executor{
		exchanges:    exchanges,
		oracle:       oracle,
		events:       events,
		logger:       logger.WithField("component", "order_executor"),
		rateLimiter:  rate.NewLimiter(rate.Limit(25), 30), // 25/sec with burst of 30
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
		tracked:      make(map[string]core.TrackedOrder),
		gauged:       make(map[string]struct{}),
		tracer:       tracer,
		orderCounter: orderCounter,
		retryCounter: retryCounter,
		failCounter:  failCounter,
	}
}

// SetRateLimit updates the rate limit
func (e *Executor) SetRateLimit(limit float64, burst int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rateLimiter = rate.NewLimiter(rate.Limit(limit), burst)
}

// Execute places the order, re-attempting only when the exchange reports a
// retry hint. Price-following requests price each attempt from the oracle.
// A nil result means the order was not placed; the reason is logged.
//
// Submission errors are terminal on purpose: an error leaves the true order
// state unknown, and re-submitting blind can double the position.
func (e *Executor) Execute(ctx context.Context, exchangeName string, req core.OrderRequest) *core.ExchangeOrder {
	ctx, span := e.tracer.Start(ctx, "Execute",
		trace.WithAttributes(
			attribute.String("exchange", exchangeName),
			attribute.String("symbol", req.Symbol),
			attribute.String("side", string(req.Side)),
		),
	)
	defer span.End()

	exchange := e.exchanges.Get(exchangeName)
	if exchange == nil {
		e.logger.Error("Unknown exchange, dropping order",
			"exchange", exchangeName,
			"symbol", req.Symbol,
			"side", string(req.Side))
		return nil
	}

	for {
		if req.RetryCount > e.maxRetries {
			e.logger.Error("Order retry budget exhausted",
				"exchange", exchangeName,
				"symbol", req.Symbol,
				"attempts", req.RetryCount)
			e.failCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("exchange", exchangeName),
				attribute.String("reason", "retry_budget"),
			))
			return nil
		}

		if req.PriceFollowing {
			price := e.oracle.CurrentPrice(ctx, exchangeName, req.Symbol, req.Side)
			if price == nil {
				e.logger.Error("No price for price-following order",
					"exchange", exchangeName,
					"symbol", req.Symbol,
					"side", string(req.Side))
				e.failCounter.Add(ctx, 1, metric.WithAttributes(
					attribute.String("exchange", exchangeName),
					attribute.String("reason", "no_price"),
				))
				return nil
			}
			req = req.WithPrice(*price)
		}

		if err := e.rateLimiter.Wait(ctx); err != nil {
			e.logger.Warn("Rate limit wait aborted",
				"exchange", exchangeName,
				"symbol", req.Symbol,
				"error", err.Error())
			return nil
		}

		order, err := exchange.Order(ctx, req)
		if err != nil {
			e.logger.Error("Order submission failed",
				"exchange", exchangeName,
				"symbol", req.Symbol,
				"side", string(req.Side),
				"attempt", req.RetryCount+1,
				"error", err.Error())
			e.failCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("exchange", exchangeName),
				attribute.String("reason", "submission_error"),
			))
			return nil
		}

		if order.RetryHint {
			e.logger.Warn("Exchange hinted retry",
				"exchange", exchangeName,
				"symbol", req.Symbol,
				"attempt", req.RetryCount+1,
				"price", req.Price.String())
			e.retryCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("exchange", exchangeName),
			))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(e.retryDelay):
			}

			req = req.Retry()
			continue
		}

		e.track(core.TrackedOrder{
			ID:       order.ID,
			Exchange: exchangeName,
			Order:    *order,
			Request:  req,
		})

		e.orderCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("exchange", exchangeName),
			attribute.String("symbol", req.Symbol),
			attribute.String("side", string(req.Side)),
		))

		e.logger.Info("Order placed",
			"exchange", exchangeName,
			"symbol", req.Symbol,
			"side", string(req.Side),
			"order_id", order.ID,
			"price", order.Price.String(),
			"quantity", order.Quantity.String())

		e.record(ctx, "order_placed", fmt.Sprintf("%s %s %s %s@%s id=%s",
			exchangeName, req.Symbol, req.Side, order.Quantity.String(), order.Price.String(), order.ID))

		return order
	}
}

// Cancel cancels one order best-effort. Nil means the cancel did not go
// through; the order may still be resting.
func (e *Executor) Cancel(ctx context.Context, exchangeName, orderID string) *core.CancelResult {
	exchange := e.exchanges.Get(exchangeName)
	if exchange == nil {
		e.logger.Error("Unknown exchange, cannot cancel", "exchange", exchangeName, "order_id", orderID)
		return nil
	}

	result, err := exchange.CancelOrder(ctx, orderID)
	if err != nil {
		e.logger.Warn("Order cancellation failed",
			"exchange", exchangeName,
			"order_id", orderID,
			"error", err.Error())
		return nil
	}

	e.Untrack(orderID)
	e.logger.Info("Order canceled", "exchange", exchangeName, "order_id", orderID)
	return result
}

// CancelAll cancels every resting order for the symbol best-effort.
func (e *Executor) CancelAll(ctx context.Context, exchangeName, symbol string) *core.CancelResult {
	exchange := e.exchanges.Get(exchangeName)
	if exchange == nil {
		e.logger.Error("Unknown exchange, cannot cancel all", "exchange", exchangeName, "symbol", symbol)
		return nil
	}

	result, err := exchange.CancelAll(ctx, symbol)
	if err != nil {
		e.logger.Warn("Cancel-all failed",
			"exchange", exchangeName,
			"symbol", symbol,
			"error", err.Error())
		return nil
	}

	e.mu.Lock()
	for id, tracked := range e.tracked {
		if tracked.Exchange == exchangeName && tracked.Request.Symbol == symbol {
			delete(e.tracked, id)
		}
	}
	e.mu.Unlock()
	e.publishGauges()

	e.logger.Info("Canceled all orders", "exchange", exchangeName, "symbol", symbol, "count", result.Canceled)
	e.record(ctx, "cancel_all", fmt.Sprintf("%s %s canceled=%d", exchangeName, symbol, result.Canceled))
	return result
}

// TrackedOrders returns a snapshot of orders believed open.
func (e *Executor) TrackedOrders() []core.TrackedOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := make([]core.TrackedOrder, 0, len(e.tracked))
	for _, tracked := range e.tracked {
		orders = append(orders, tracked)
	}
	return orders
}

// Untrack drops the local record of an order. Used when the exchange says
// the order is no longer open.
func (e *Executor) Untrack(orderID string) {
	e.mu.Lock()
	delete(e.tracked, orderID)
	e.mu.Unlock()
	e.publishGauges()
}

func (e *Executor) track(order core.TrackedOrder) {
	e.mu.Lock()
	e.tracked[order.ID] = order
	e.mu.Unlock()
	e.publishGauges()
}

func (e *Executor) publishGauges() {
	e.mu.Lock()
	counts := make(map[string]int, len(e.gauged))
	for exchange := range e.gauged {
		counts[exchange] = 0
	}
	for _, tracked := range e.tracked {
		counts[tracked.Exchange]++
		e.gauged[tracked.Exchange] = struct{}{}
	}
	e.mu.Unlock()

	metrics := telemetry.GetGlobalMetrics()
	for exchange, count := range counts {
		metrics.SetTrackedOrders(exchange, int64(count))
	}
}

func (e *Executor) record(ctx context.Context, category, message string) {
	if e.events == nil {
		return
	}
	if err := e.events.Insert(ctx, category, message); err != nil {
		e.logger.Warn("Failed to record event", "category", category, "error", err.Error())
	}
}
