// Package ticker holds the in-memory ticker cache fed by market-data events.
package ticker

import (
	"sync"
	"time"

	"trade_engine/internal/core"
)

// Cache keeps the latest ticker per exchange/symbol. Readers ask for a
// ticker no older than their own staleness window; anything older is
// treated as absent.
type Cache struct {
	mu      sync.RWMutex
	tickers map[string]core.Ticker
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		tickers: make(map[string]core.Ticker),
	}
}

// Set stores the observation, overwriting any previous one for the pair.
func (c *Cache) Set(ticker core.Ticker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickers[key(ticker.Exchange, ticker.Symbol)] = ticker
}

// GetIfFresh returns the ticker observed within maxAge, or nil.
func (c *Cache) GetIfFresh(exchange, symbol string, maxAge time.Duration) *core.Ticker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ticker, ok := c.tickers[key(exchange, symbol)]
	if !ok {
		return nil
	}
	if time.Since(ticker.ObservedAt) > maxAge {
		return nil
	}

	result := ticker
	return &result
}

func key(exchange, symbol string) string {
	return exchange + "." + symbol
}
