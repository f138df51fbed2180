// Package core defines the domain types and interfaces of the trade engine
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderStatus mirrors the state reported by an exchange
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
)

// OrderRequest describes an order to be placed on an exchange. Requests are
// immutable: retries and price adjustments derive a new request via Retry /
// WithPrice instead of mutating in place.
type OrderRequest struct {
	Side           Side
	Symbol         string
	Exchange       string
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	PriceFollowing bool
	RetryCount     int
	ClientOrderID  string
}

// Retry derives the request for the next placement attempt.
func (r OrderRequest) Retry() OrderRequest {
	next := r
	next.RetryCount = r.RetryCount + 1
	return next
}

// WithPrice derives a request carrying a fresh signed price.
func (r OrderRequest) WithPrice(price decimal.Decimal) OrderRequest {
	next := r
	next.Price = price
	return next
}

// ExchangeOrder is an order as reported back by an exchange. Price keeps the
// engine's sign convention: positive for long, negative for short. RetryHint
// signals a rejection the exchange considers recoverable (eg a post-only
// order that would have crossed the book).
type ExchangeOrder struct {
	ID        string
	Symbol    string
	Side      Side
	Status    OrderStatus
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	RetryHint bool
	UpdatedAt time.Time
}

// TrackedOrder is the engine's local record of an order believed to still be
// open at an exchange.
type TrackedOrder struct {
	ID       string
	Exchange string
	Order    ExchangeOrder
	Request  OrderRequest
}

// PriceUpdate asks an exchange to move a resting order to a new signed price.
type PriceUpdate struct {
	OrderID string
	Price   decimal.Decimal
}

// CancelResult reports the outcome of a best-effort cancel.
type CancelResult struct {
	OrderID  string
	Symbol   string
	Canceled int
}

// Ticker is a bid/ask observation owned by the ticker cache.
type Ticker struct {
	Exchange   string
	Symbol     string
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	ObservedAt time.Time
}

// Pair identifies one exchange.symbol the engine trades.
type Pair struct {
	Exchange string
	Symbol   string
}

func (p Pair) String() string {
	return p.Exchange + "." + p.Symbol
}
