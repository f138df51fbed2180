package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"trade_engine/internal/core"
	"trade_engine/internal/exchange"
	"trade_engine/internal/mock"
	"trade_engine/pkg/concurrency"
	"trade_engine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adjusterFixture struct {
	exchange *mock.Exchange
	oracle   *mock.Oracle
	executor *Executor
	guard    *AdjustmentGuard
	adjuster *Adjuster
}

func newAdjusterFixture(t *testing.T) *adjusterFixture {
	t.Helper()
	logger := logging.NewNop()

	ex := mock.NewExchange("mock")
	manager := exchange.NewManager(logger)
	manager.Register(ex)

	oracle := mock.NewOracle()
	executor := NewExecutor(manager, oracle, nil, logger, 4, time.Millisecond)
	guard := NewAdjustmentGuard()
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "test", MaxWorkers: 4}, logger)
	t.Cleanup(pool.Stop)

	return &adjusterFixture{
		exchange: ex,
		oracle:   oracle,
		executor: executor,
		guard:    guard,
		adjuster: NewAdjuster(executor, manager, oracle, guard, pool, logger),
	}
}

// placeFollowing places a tracked price-following order at the given price.
func (f *adjusterFixture) placeFollowing(t *testing.T, price int64) *core.ExchangeOrder {
	t.Helper()
	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(price))
	placed := f.executor.Execute(context.Background(), "mock", core.OrderRequest{
		Side:           core.SideLong,
		Symbol:         "BTC/USDT",
		Exchange:       "mock",
		Quantity:       decimal.NewFromInt(1),
		PriceFollowing: true,
	})
	require.NotNil(t, placed)
	return placed
}

func TestAdjust_UnchangedPriceLeavesOrderAlone(t *testing.T) {
	f := newAdjusterFixture(t)
	f.placeFollowing(t, 100)

	f.adjuster.AdjustOpenOrders(context.Background())

	assert.Equal(t, 0, f.exchange.UpdateCalls)
	assert.Len(t, f.executor.TrackedOrders(), 1)
}

func TestAdjust_ComparesMagnitudesOnly(t *testing.T) {
	f := newAdjusterFixture(t)
	f.placeFollowing(t, 100)

	// Same magnitude, flipped sign: still "unchanged".
	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(-100))
	f.adjuster.AdjustOpenOrders(context.Background())

	assert.Equal(t, 0, f.exchange.UpdateCalls)
}

func TestAdjust_RepricesDriftedOrder(t *testing.T) {
	f := newAdjusterFixture(t)
	placed := f.placeFollowing(t, 100)

	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(105))
	f.adjuster.AdjustOpenOrders(context.Background())

	assert.Equal(t, 1, f.exchange.UpdateCalls)
	assert.Len(t, f.executor.TrackedOrders(), 1)

	current, err := f.exchange.FindOrderByID(context.Background(), placed.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.True(t, current.Price.Equal(decimal.NewFromInt(105)))
}

func TestAdjust_SubmitsSignedPrice(t *testing.T) {
	f := newAdjusterFixture(t)
	placed := f.placeFollowing(t, 100)

	var submitted decimal.Decimal
	f.exchange.UpdateFunc = func(ctx context.Context, orderID string, update core.PriceUpdate) (*core.ExchangeOrder, error) {
		submitted = update.Price
		updated := *placed
		updated.Price = update.Price
		updated.Status = core.OrderStatusOpen
		return &updated, nil
	}

	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(-105))
	f.adjuster.AdjustOpenOrders(context.Background())

	// The signed oracle price goes to the exchange as is.
	assert.True(t, submitted.Equal(decimal.NewFromInt(-105)))
}

func TestAdjust_KeepsOrderWhenLookupFails(t *testing.T) {
	f := newAdjusterFixture(t)
	placed := f.placeFollowing(t, 100)

	f.exchange.FindFunc = func(ctx context.Context, orderID string) (*core.ExchangeOrder, error) {
		return nil, errors.New("connection reset")
	}
	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(105))

	f.adjuster.AdjustOpenOrders(context.Background())

	// A failed probe must not be mistaken for a closed order.
	require.Len(t, f.executor.TrackedOrders(), 1)
	assert.Equal(t, 0, f.exchange.UpdateCalls)
	assert.False(t, f.guard.Held(placed.ID))

	// Once the exchange answers again the order is re-priced as usual.
	f.exchange.FindFunc = nil
	f.adjuster.AdjustOpenOrders(context.Background())
	assert.Equal(t, 1, f.exchange.UpdateCalls)
}

func TestAdjust_DropsOrderNoLongerOpen(t *testing.T) {
	f := newAdjusterFixture(t)
	placed := f.placeFollowing(t, 100)

	_, err := f.exchange.CancelOrder(context.Background(), placed.ID)
	require.NoError(t, err)

	f.adjuster.AdjustOpenOrders(context.Background())

	assert.Empty(t, f.executor.TrackedOrders())
	assert.False(t, f.guard.Held(placed.ID))
	assert.Equal(t, 0, f.exchange.UpdateCalls)
}

func TestAdjust_SkipsOrderWithAdjustmentInFlight(t *testing.T) {
	f := newAdjusterFixture(t)
	placed := f.placeFollowing(t, 100)

	require.True(t, f.guard.TryAcquire(placed.ID))
	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(105))

	f.adjuster.AdjustOpenOrders(context.Background())

	// Probe still ran but no adjustment happened.
	assert.Equal(t, 1, f.exchange.FindCalls)
	assert.Equal(t, 0, f.exchange.UpdateCalls)
	assert.Len(t, f.executor.TrackedOrders(), 1)
	assert.True(t, f.guard.Held(placed.ID))
}

func TestAdjust_PurgesStaleGuardSlots(t *testing.T) {
	f := newAdjusterFixture(t)
	placed := f.placeFollowing(t, 100)

	// A slot left behind by a dead pass, older than the TTL.
	f.guard.mu.Lock()
	f.guard.inFlight[placed.ID] = time.Now().Add(-3 * time.Minute)
	f.guard.mu.Unlock()

	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(105))
	f.adjuster.AdjustOpenOrders(context.Background())

	assert.Equal(t, 1, f.exchange.UpdateCalls)
	assert.False(t, f.guard.Held(placed.ID))
}

func TestAdjust_RecreatesOrderCanceledByUpdate(t *testing.T) {
	f := newAdjusterFixture(t)
	placed := f.placeFollowing(t, 100)

	f.exchange.UpdateFunc = func(ctx context.Context, orderID string, update core.PriceUpdate) (*core.ExchangeOrder, error) {
		updated := *placed
		updated.Status = core.OrderStatusCanceled
		updated.RetryHint = true
		return &updated, nil
	}

	f.oracle.SetPrice("mock", "BTC/USDT", core.SideLong, decimal.NewFromInt(105))
	ordersBefore := f.exchange.OrderCalls

	f.adjuster.AdjustOpenOrders(context.Background())

	// The order went back through the placement path.
	assert.Equal(t, ordersBefore+1, f.exchange.OrderCalls)

	tracked := f.executor.TrackedOrders()
	require.Len(t, tracked, 1)
	assert.NotEqual(t, placed.ID, tracked[0].ID)
}

func TestAdjust_IgnoresFixedPriceOrders(t *testing.T) {
	f := newAdjusterFixture(t)

	placed := f.executor.Execute(context.Background(), "mock", core.OrderRequest{
		Side:     core.SideLong,
		Symbol:   "BTC/USDT",
		Exchange: "mock",
		Price:    decimal.NewFromInt(100),
		Quantity: decimal.NewFromInt(1),
	})
	require.NotNil(t, placed)

	f.adjuster.AdjustOpenOrders(context.Background())

	assert.Equal(t, 0, f.exchange.FindCalls)
	assert.Equal(t, 0, f.exchange.UpdateCalls)
}
