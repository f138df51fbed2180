package mock

import (
	"context"
	"sync"

	"trade_engine/internal/core"

	"github.com/shopspring/decimal"
)

// Oracle implements core.IPriceOracle with a fixed answer per pair/side.
// Missing entries resolve to nil, same as a dried-up ticker feed.
type Oracle struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	Calls  int
}

func NewOracle() *Oracle {
	return &Oracle{prices: make(map[string]decimal.Decimal)}
}

// SetPrice fixes the signed price returned for the pair and side.
func (o *Oracle) SetPrice(exchange, symbol string, side core.Side, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[oracleKey(exchange, symbol, side)] = price
}

// ClearPrice makes the pair and side resolve to nil again.
func (o *Oracle) ClearPrice(exchange, symbol string, side core.Side) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prices, oracleKey(exchange, symbol, side))
}

func (o *Oracle) CurrentPrice(ctx context.Context, exchange, symbol string, side core.Side) *decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls++

	price, ok := o.prices[oracleKey(exchange, symbol, side)]
	if !ok {
		return nil
	}
	return &price
}

func oracleKey(exchange, symbol string, side core.Side) string {
	return exchange + "." + symbol + "." + string(side)
}
