package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IExchange is the gateway to one exchange. Concrete adapters live outside
// the engine; the engine only relies on this boundary.
type IExchange interface {
	GetName() string

	Order(ctx context.Context, req OrderRequest) (*ExchangeOrder, error)
	CancelOrder(ctx context.Context, orderID string) (*CancelResult, error)
	CancelAll(ctx context.Context, symbol string) (*CancelResult, error)
	FindOrderByID(ctx context.Context, orderID string) (*ExchangeOrder, error)
	UpdateOrder(ctx context.Context, orderID string, update PriceUpdate) (*ExchangeOrder, error)
}

// ITickerCache serves the freshest known ticker per exchange/symbol.
type ITickerCache interface {
	Set(ticker Ticker)
	GetIfFresh(exchange, symbol string, maxAge time.Duration) *Ticker
}

// IPriceOracle resolves the current signed price for a side of the book.
// A nil result means no tradable price right now; callers abort rather than
// retry indefinitely.
type IPriceOracle interface {
	CurrentPrice(ctx context.Context, exchange, symbol string, side Side) *decimal.Decimal
}

// IOrderExecutor places, cancels and tracks orders. All operations resolve
// to a value or nil; failures are logged, never raised.
type IOrderExecutor interface {
	Execute(ctx context.Context, exchange string, req OrderRequest) *ExchangeOrder
	Cancel(ctx context.Context, exchange, orderID string) *CancelResult
	CancelAll(ctx context.Context, exchange, symbol string) *CancelResult
	TrackedOrders() []TrackedOrder
	Untrack(orderID string)
}

// IOrderAdjuster re-prices tracked price-following orders.
type IOrderAdjuster interface {
	AdjustOpenOrders(ctx context.Context)
}

// IPairStateExecutor orchestrates per-pair order state. It runs before the
// adjuster inside one ordering cycle and flushes in-flight work on terminate.
type IPairStateExecutor interface {
	OnPairStateExecutionTick(ctx context.Context)
	OnTerminate(ctx context.Context)
}

// INotifier delivers operator-facing messages (process start, failures).
type INotifier interface {
	Send(ctx context.Context, message string)
}

// ITickListener consumes market ticks.
type ITickListener interface {
	OnTick(ctx context.Context)
}

// ISignalListener consumes signal-generation ticks.
type ISignalListener interface {
	OnSignalTick(ctx context.Context)
}

// IWatchdogListener consumes watchdog ticks and position state changes.
type IWatchdogListener interface {
	OnTick(ctx context.Context)
	OnPositionChanged(ctx context.Context, event PositionStateChangeEvent)
}

// IPositionWatcher polls exchange positions for state changes.
type IPositionWatcher interface {
	OnPositionStateChangeTick(ctx context.Context)
}

// ICreateOrderListener consumes order intents produced by strategy code.
type ICreateOrderListener interface {
	OnCreateOrder(ctx context.Context, event OrderEvent)
}

// ITickerListener consumes ticker observations for persistence.
type ITickerListener interface {
	OnTicker(ctx context.Context, event TickerEvent)
}

// ILogRepository persists engine log entries and purges aged ones.
type ILogRepository interface {
	CleanOldEntries(ctx context.Context) error
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
