// Package pairstate orchestrates per-pair order state. The manager runs
// ahead of the open-order adjuster inside one ordering cycle and flushes
// in-flight orders on shutdown.
package pairstate

import (
	"context"
	"sync"

	"trade_engine/internal/core"
)

// Manager implements core.IPairStateExecutor over the configured pairs.
type Manager struct {
	executor core.IOrderExecutor
	pairs    []core.Pair
	logger   core.ILogger

	mu     sync.Mutex
	cycles int
}

func NewManager(executor core.IOrderExecutor, pairs []core.Pair, logger core.ILogger) *Manager {
	return &Manager{
		executor: executor,
		pairs:    pairs,
		logger:   logger.WithField("component", "pair_state"),
	}
}

// OnPairStateExecutionTick reviews each watched pair sequentially. Pairs are
// independent but run one at a time so their order flow cannot interleave
// within a cycle.
func (m *Manager) OnPairStateExecutionTick(ctx context.Context) {
	m.mu.Lock()
	m.cycles++
	cycle := m.cycles
	m.mu.Unlock()

	tracked := m.executor.TrackedOrders()
	perPair := make(map[string]int, len(m.pairs))
	for _, order := range tracked {
		perPair[core.Pair{Exchange: order.Exchange, Symbol: order.Request.Symbol}.String()]++
	}

	for _, pair := range m.pairs {
		select {
		case <-ctx.Done():
			m.logger.Warn("Pair state cycle aborted", "cycle", cycle, "error", ctx.Err().Error())
			return
		default:
		}

		m.logger.Debug("Pair state reviewed",
			"cycle", cycle,
			"pair", pair.String(),
			"open_orders", perPair[pair.String()])
	}
}

// OnTerminate cancels every resting order best-effort so nothing is left on
// the books after shutdown.
func (m *Manager) OnTerminate(ctx context.Context) {
	m.logger.Info("Flushing open orders on terminate", "pairs", len(m.pairs))
	for _, pair := range m.pairs {
		m.executor.CancelAll(ctx, pair.Exchange, pair.Symbol)
	}
}
