package pricing

import (
	"context"
	"testing"
	"time"

	"trade_engine/internal/core"
	"trade_engine/internal/ticker"
	"trade_engine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshTicker(bid, ask int64) core.Ticker {
	return core.Ticker{
		Exchange:   "mock",
		Symbol:     "BTC/USDT",
		Bid:        decimal.NewFromInt(bid),
		Ask:        decimal.NewFromInt(ask),
		ObservedAt: time.Now(),
	}
}

func TestCurrentPrice_LongUsesBid(t *testing.T) {
	cache := ticker.NewCache()
	cache.Set(freshTicker(100, 101))
	oracle := NewOracle(cache, logging.NewNop())

	price := oracle.CurrentPrice(context.Background(), "mock", "BTC/USDT", core.SideLong)
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.NewFromInt(100)))
}

func TestCurrentPrice_ShortUsesNegatedAsk(t *testing.T) {
	cache := ticker.NewCache()
	cache.Set(freshTicker(100, 101))
	oracle := NewOracle(cache, logging.NewNop())

	price := oracle.CurrentPrice(context.Background(), "mock", "BTC/USDT", core.SideShort)
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.NewFromInt(-101)))
}

func TestCurrentPrice_AbsentAfterBudget(t *testing.T) {
	cache := ticker.NewCache()
	oracle := NewOracle(cache, logging.NewNop(),
		WithRetries(3),
		WithInterval(time.Millisecond),
	)

	price := oracle.CurrentPrice(context.Background(), "mock", "BTC/USDT", core.SideLong)
	assert.Nil(t, price)
}

func TestCurrentPrice_PicksUpLateTicker(t *testing.T) {
	cache := ticker.NewCache()
	oracle := NewOracle(cache, logging.NewNop(),
		WithRetries(50),
		WithInterval(time.Millisecond),
	)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cache.Set(freshTicker(100, 101))
	}()

	price := oracle.CurrentPrice(context.Background(), "mock", "BTC/USDT", core.SideLong)
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.NewFromInt(100)))
}

func TestCurrentPrice_ContextCancelAborts(t *testing.T) {
	cache := ticker.NewCache()
	oracle := NewOracle(cache, logging.NewNop(),
		WithRetries(1000),
		WithInterval(10*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	price := oracle.CurrentPrice(ctx, "mock", "BTC/USDT", core.SideLong)
	assert.Nil(t, price)
}
