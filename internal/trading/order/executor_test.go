package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trade_engine/internal/core"
	"trade_engine/internal/exchange"
	"trade_engine/internal/mock"
	"trade_engine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, exchanges ...core.IExchange) (*Executor, *mock.Oracle) {
	t.Helper()
	manager := exchange.NewManager(logging.NewNop())
	for _, ex := range exchanges {
		manager.Register(ex)
	}
	oracle := mock.NewOracle()
	executor := NewExecutor(manager, oracle, nil, logging.NewNop(), 4, time.Millisecond)
	return executor, oracle
}

func limitRequest(symbol string, price int64) core.OrderRequest {
	return core.OrderRequest{
		Side:     core.SideLong,
		Symbol:   symbol,
		Exchange: "mock",
		Price:    decimal.NewFromInt(price),
		Quantity: decimal.NewFromInt(1),
	}
}

func TestExecute_PlacesAndTracksOrder(t *testing.T) {
	ex := mock.NewExchange("mock")
	executor, oracle := newTestExecutor(t, ex)

	placed := executor.Execute(context.Background(), "mock", limitRequest("BTC/USDT", 100))
	require.NotNil(t, placed)
	assert.Equal(t, core.OrderStatusOpen, placed.Status)
	assert.Equal(t, 1, ex.OrderCalls)

	tracked := executor.TrackedOrders()
	require.Len(t, tracked, 1)
	assert.Equal(t, placed.ID, tracked[0].ID)
	assert.Equal(t, "mock", tracked[0].Exchange)

	// Fixed-price order never consults the oracle.
	assert.Equal(t, 0, oracle.Calls)
}

func TestExecute_UnknownExchange(t *testing.T) {
	executor, _ := newTestExecutor(t)

	placed := executor.Execute(context.Background(), "nope", limitRequest("BTC/USDT", 100))
	assert.Nil(t, placed)
	assert.Empty(t, executor.TrackedOrders())
}

func TestExecute_RetriesOnHintThenSucceeds(t *testing.T) {
	ex := mock.NewExchange("mock")
	ex.QueueRetryHints(true, true, false)
	executor, _ := newTestExecutor(t, ex)

	placed := executor.Execute(context.Background(), "mock", limitRequest("BTC/USDT", 100))
	require.NotNil(t, placed)
	assert.Equal(t, 3, ex.OrderCalls)
	assert.Len(t, executor.TrackedOrders(), 1)
}

func TestExecute_RetryBudgetExhausted(t *testing.T) {
	ex := mock.NewExchange("mock")
	// One initial attempt plus four re-attempts, all hinted.
	ex.QueueRetryHints(true, true, true, true, true, true)
	executor, _ := newTestExecutor(t, ex)

	placed := executor.Execute(context.Background(), "mock", limitRequest("BTC/USDT", 100))
	assert.Nil(t, placed)
	assert.Equal(t, 5, ex.OrderCalls)
	assert.Empty(t, executor.TrackedOrders())
}

func TestExecute_RetryDelayIsBounded(t *testing.T) {
	ex := mock.NewExchange("mock")

	var mu sync.Mutex
	var calls []time.Time
	ex.OrderFunc = func(ctx context.Context, req core.OrderRequest) (*core.ExchangeOrder, error) {
		mu.Lock()
		calls = append(calls, time.Now())
		n := len(calls)
		mu.Unlock()

		order := &core.ExchangeOrder{
			ID:        fmt.Sprintf("order-%d", n),
			Symbol:    req.Symbol,
			Side:      req.Side,
			Price:     req.Price,
			Quantity:  req.Quantity,
			UpdatedAt: time.Now(),
		}
		if n <= 2 {
			order.Status = core.OrderStatusCanceled
			order.RetryHint = true
		} else {
			order.Status = core.OrderStatusOpen
		}
		return order, nil
	}

	manager := exchange.NewManager(logging.NewNop())
	manager.Register(ex)
	retryDelay := 25 * time.Millisecond
	executor := NewExecutor(manager, mock.NewOracle(), nil, logging.NewNop(), 4, retryDelay)

	placed := executor.Execute(context.Background(), "mock", limitRequest("BTC/USDT", 100))
	require.NotNil(t, placed)
	require.Len(t, calls, 3)

	for i := 1; i < len(calls); i++ {
		gap := calls[i].Sub(calls[i-1])
		assert.GreaterOrEqual(t, gap, retryDelay, "attempt %d fired before the delay elapsed", i+1)
		assert.Less(t, gap, 10*retryDelay, "attempt %d slept far past the configured delay", i+1)
	}
}

func TestExecute_SubmissionErrorIsTerminal(t *testing.T) {
	ex := mock.NewExchange("mock")
	ex.OrderFunc = func(ctx context.Context, req core.OrderRequest) (*core.ExchangeOrder, error) {
		return nil, errors.New("connection reset")
	}
	executor, _ := newTestExecutor(t, ex)

	placed := executor.Execute(context.Background(), "mock", limitRequest("BTC/USDT", 100))
	assert.Nil(t, placed)
	// No blind re-submission after an error: the order may have landed.
	assert.Equal(t, 1, ex.OrderCalls)
	assert.Empty(t, executor.TrackedOrders())
}

func TestExecute_PriceFollowingFetchesPrice(t *testing.T) {
	ex := mock.NewExchange("mock")
	executor, oracle := newTestExecutor(t, ex)
	oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(100))

	req := limitRequest("BTC/USDT", 0)
	req.PriceFollowing = true

	placed := executor.Execute(context.Background(), "mock", req)
	require.NotNil(t, placed)
	assert.True(t, placed.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, oracle.Calls)
}

func TestExecute_PriceFollowingRefreshesEachAttempt(t *testing.T) {
	ex := mock.NewExchange("mock")
	ex.QueueRetryHints(true, false)
	executor, oracle := newTestExecutor(t, ex)
	oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(100))

	req := limitRequest("BTC/USDT", 0)
	req.PriceFollowing = true

	placed := executor.Execute(context.Background(), "mock", req)
	require.NotNil(t, placed)
	assert.Equal(t, 2, oracle.Calls)
}

func TestExecute_PriceFollowingAbortsWithoutPrice(t *testing.T) {
	ex := mock.NewExchange("mock")
	executor, _ := newTestExecutor(t, ex)

	req := limitRequest("BTC/USDT", 0)
	req.PriceFollowing = true

	placed := executor.Execute(context.Background(), "mock", req)
	assert.Nil(t, placed)
	assert.Equal(t, 0, ex.OrderCalls)
}

func TestCancelAll_DropsTrackedOrdersForSymbol(t *testing.T) {
	ex := mock.NewExchange("mock")
	executor, _ := newTestExecutor(t, ex)

	executor.Execute(context.Background(), "mock", limitRequest("BTC/USDT", 100))
	executor.Execute(context.Background(), "mock", limitRequest("ETH/USDT", 50))
	require.Len(t, executor.TrackedOrders(), 2)

	result := executor.CancelAll(context.Background(), "mock", "BTC/USDT")
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Canceled)

	tracked := executor.TrackedOrders()
	require.Len(t, tracked, 1)
	assert.Equal(t, "ETH/USDT", tracked[0].Request.Symbol)
}

func TestUntrack(t *testing.T) {
	ex := mock.NewExchange("mock")
	executor, _ := newTestExecutor(t, ex)

	placed := executor.Execute(context.Background(), "mock", limitRequest("BTC/USDT", 100))
	require.NotNil(t, placed)

	executor.Untrack(placed.ID)
	assert.Empty(t, executor.TrackedOrders())
}
