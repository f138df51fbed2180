package ticker

import (
	"context"

	"trade_engine/internal/core"
)

// Inserter is the slice of the ticker log repository the listener needs.
type Inserter interface {
	Insert(ctx context.Context, ticker core.Ticker) error
}

// DatabaseListener copies every ticker event into the ticker log table.
// Persistence failures are logged and swallowed; a full disk must not stop
// quote processing.
type DatabaseListener struct {
	repo   Inserter
	logger core.ILogger
}

// NewDatabaseListener wires the listener to the ticker log repository.
func NewDatabaseListener(repo Inserter, logger core.ILogger) *DatabaseListener {
	return &DatabaseListener{
		repo:   repo,
		logger: logger.WithField("component", "ticker_db_listener"),
	}
}

// OnTicker persists the observation.
func (l *DatabaseListener) OnTicker(ctx context.Context, event core.TickerEvent) {
	if err := l.repo.Insert(ctx, event.Ticker); err != nil {
		l.logger.Error("Failed to persist ticker", "exchange", event.Ticker.Exchange, "symbol", event.Ticker.Symbol, "error", err.Error())
	}
}
