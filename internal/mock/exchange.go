// Package mock provides a scriptable in-memory exchange for tests and dry
// runs.
package mock

import (
	"context"
	"sync"
	"time"

	"trade_engine/internal/core"

	"github.com/google/uuid"
)

// Exchange implements core.IExchange against an in-memory book. Behavior is
// scriptable per call site: queue retry hints for the next placements or
// override lookups and updates entirely.
type Exchange struct {
	name string

	mu     sync.Mutex
	orders map[string]*core.ExchangeOrder

	// retryHints is consumed front to back; each true makes the next Order
	// call come back canceled with a retry hint.
	retryHints []bool

	// Optional overrides.
	OrderFunc   func(ctx context.Context, req core.OrderRequest) (*core.ExchangeOrder, error)
	FindFunc    func(ctx context.Context, orderID string) (*core.ExchangeOrder, error)
	UpdateFunc  func(ctx context.Context, orderID string, update core.PriceUpdate) (*core.ExchangeOrder, error)
	CancelFunc  func(ctx context.Context, orderID string) (*core.CancelResult, error)
	OrderCalls  int
	FindCalls   int
	UpdateCalls int
	CancelCalls int
}

// NewExchange creates a mock exchange answering to the given name.
func NewExchange(name string) *Exchange {
	return &Exchange{
		name:   name,
		orders: make(map[string]*core.ExchangeOrder),
	}
}

func (e *Exchange) GetName() string {
	return e.name
}

// QueueRetryHints scripts the outcome of upcoming Order calls; true yields
// a retry-hinted rejection, false a normal fill onto the book.
func (e *Exchange) QueueRetryHints(hints ...bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retryHints = append(e.retryHints, hints...)
}

func (e *Exchange) Order(ctx context.Context, req core.OrderRequest) (*core.ExchangeOrder, error) {
	e.mu.Lock()
	e.OrderCalls++
	hinted := false
	if len(e.retryHints) > 0 {
		hinted = e.retryHints[0]
		e.retryHints = e.retryHints[1:]
	}
	e.mu.Unlock()

	if e.OrderFunc != nil {
		return e.OrderFunc(ctx, req)
	}

	order := &core.ExchangeOrder{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		UpdatedAt: time.Now(),
	}

	if hinted {
		order.Status = core.OrderStatusCanceled
		order.RetryHint = true
		return order, nil
	}

	order.Status = core.OrderStatusOpen
	e.mu.Lock()
	e.orders[order.ID] = order
	e.mu.Unlock()
	return order, nil
}

func (e *Exchange) FindOrderByID(ctx context.Context, orderID string) (*core.ExchangeOrder, error) {
	e.mu.Lock()
	e.FindCalls++
	e.mu.Unlock()

	if e.FindFunc != nil {
		return e.FindFunc(ctx, orderID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (e *Exchange) UpdateOrder(ctx context.Context, orderID string, update core.PriceUpdate) (*core.ExchangeOrder, error) {
	e.mu.Lock()
	e.UpdateCalls++
	e.mu.Unlock()

	if e.UpdateFunc != nil {
		return e.UpdateFunc(ctx, orderID, update)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return nil, nil
	}
	order.Price = update.Price
	order.UpdatedAt = time.Now()
	copied := *order
	return &copied, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, orderID string) (*core.CancelResult, error) {
	e.mu.Lock()
	e.CancelCalls++
	e.mu.Unlock()

	if e.CancelFunc != nil {
		return e.CancelFunc(ctx, orderID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if order, ok := e.orders[orderID]; ok {
		order.Status = core.OrderStatusCanceled
		delete(e.orders, orderID)
	}
	return &core.CancelResult{OrderID: orderID, Canceled: 1}, nil
}

func (e *Exchange) CancelAll(ctx context.Context, symbol string) (*core.CancelResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	canceled := 0
	for id, order := range e.orders {
		if order.Symbol == symbol {
			order.Status = core.OrderStatusCanceled
			delete(e.orders, id)
			canceled++
		}
	}
	return &core.CancelResult{Symbol: symbol, Canceled: canceled}, nil
}

// OpenOrders returns the resting orders, newest last.
func (e *Exchange) OpenOrders() []core.ExchangeOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]core.ExchangeOrder, 0, len(e.orders))
	for _, order := range e.orders {
		orders = append(orders, *order)
	}
	return orders
}

// SeedOrder places an order directly onto the book, bypassing scripting.
func (e *Exchange) SeedOrder(order core.ExchangeOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	copied := order
	e.orders[order.ID] = &copied
}
