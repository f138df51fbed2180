package order

import (
	"context"

	"trade_engine/internal/core"
)

// CreateOrderListener bridges order intents from the event bus into the
// executor.
type CreateOrderListener struct {
	executor core.IOrderExecutor
	logger   core.ILogger
}

func NewCreateOrderListener(executor core.IOrderExecutor, logger core.ILogger) *CreateOrderListener {
	return &CreateOrderListener{
		executor: executor,
		logger:   logger.WithField("component", "create_order_listener"),
	}
}

// OnCreateOrder places the requested order. A nil result was already logged
// by the executor; nothing more to do here.
func (l *CreateOrderListener) OnCreateOrder(ctx context.Context, event core.OrderEvent) {
	l.logger.Debug("Order intent received",
		"exchange", event.Exchange,
		"symbol", event.Request.Symbol,
		"side", string(event.Request.Side))
	l.executor.Execute(ctx, event.Exchange, event.Request)
}
