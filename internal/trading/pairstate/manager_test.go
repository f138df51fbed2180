package pairstate

import (
	"context"
	"sync"
	"testing"

	"trade_engine/internal/core"
	"trade_engine/pkg/logging"
)

type stubExecutor struct {
	mu         sync.Mutex
	tracked    []core.TrackedOrder
	cancelAlls []string
}

func (s *stubExecutor) Execute(ctx context.Context, exchange string, req core.OrderRequest) *core.ExchangeOrder {
	return nil
}

func (s *stubExecutor) Cancel(ctx context.Context, exchange, orderID string) *core.CancelResult {
	return nil
}

func (s *stubExecutor) CancelAll(ctx context.Context, exchange, symbol string) *core.CancelResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAlls = append(s.cancelAlls, exchange+"."+symbol)
	return &core.CancelResult{Symbol: symbol}
}

func (s *stubExecutor) TrackedOrders() []core.TrackedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TrackedOrder(nil), s.tracked...)
}

func (s *stubExecutor) Untrack(orderID string) {}

func TestOnTerminate_CancelsEveryPair(t *testing.T) {
	executor := &stubExecutor{}
	pairs := []core.Pair{
		{Exchange: "mock", Symbol: "BTC/USDT"},
		{Exchange: "mock", Symbol: "ETH/USDT"},
	}

	manager := NewManager(executor, pairs, logging.NewNop())
	manager.OnTerminate(context.Background())

	if len(executor.cancelAlls) != 2 {
		t.Fatalf("expected 2 cancel-all calls, got %d", len(executor.cancelAlls))
	}
	if executor.cancelAlls[0] != "mock.BTC/USDT" || executor.cancelAlls[1] != "mock.ETH/USDT" {
		t.Fatalf("unexpected cancel-all targets: %v", executor.cancelAlls)
	}
}

func TestOnPairStateExecutionTick_HonorsCancellation(t *testing.T) {
	executor := &stubExecutor{}
	manager := NewManager(executor, []core.Pair{{Exchange: "mock", Symbol: "BTC/USDT"}}, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Must return promptly on a dead context.
	manager.OnPairStateExecutionTick(ctx)
}
