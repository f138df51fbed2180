// Package pricing resolves tradable prices from the ticker cache.
package pricing

import (
	"context"
	"time"

	"trade_engine/internal/core"

	"github.com/shopspring/decimal"
)

// Oracle polls the ticker cache for a fresh quote and converts side into a
// signed price: long orders price at the bid, short orders at the negated
// ask. Direction is encoded in the sign, so magnitude comparisons elsewhere
// must use absolute values.
type Oracle struct {
	tickers  core.ITickerCache
	logger   core.ILogger
	retries  int
	interval time.Duration
	maxAge   time.Duration
}

// OracleOption tunes the polling budget.
type OracleOption func(*Oracle)

// WithRetries overrides the poll attempt budget.
func WithRetries(retries int) OracleOption {
	return func(o *Oracle) { o.retries = retries }
}

// WithInterval overrides the poll interval.
func WithInterval(interval time.Duration) OracleOption {
	return func(o *Oracle) { o.interval = interval }
}

// WithMaxAge overrides the staleness window requested from the cache.
func WithMaxAge(maxAge time.Duration) OracleOption {
	return func(o *Oracle) { o.maxAge = maxAge }
}

// NewOracle creates an oracle with the default polling budget
// (40 attempts, 200ms apart, 10s staleness window).
func NewOracle(tickers core.ITickerCache, logger core.ILogger, opts ...OracleOption) *Oracle {
	o := &Oracle{
		tickers:  tickers,
		logger:   logger.WithField("component", "price_oracle"),
		retries:  40,
		interval: 200 * time.Millisecond,
		maxAge:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CurrentPrice blocks until a fresh ticker shows up or the retry budget is
// spent. A nil result means no tradable price right now; callers abort the
// operation instead of retrying indefinitely.
func (o *Oracle) CurrentPrice(ctx context.Context, exchange, symbol string, side core.Side) *decimal.Decimal {
	var ticker *core.Ticker

	for attempt := 0; attempt < o.retries; attempt++ {
		ticker = o.tickers.GetIfFresh(exchange, symbol, o.maxAge)
		if ticker != nil {
			break
		}

		select {
		case <-ctx.Done():
			o.logger.Warn("Price lookup aborted", "exchange", exchange, "symbol", symbol, "error", ctx.Err().Error())
			return nil
		case <-time.After(o.interval):
		}
	}

	if ticker == nil {
		o.logger.Error("Ticker price not found", "exchange", exchange, "symbol", symbol, "side", string(side))
		return nil
	}

	price := ticker.Bid
	if side == core.SideShort {
		price = ticker.Ask.Neg()
	}

	return &price
}
