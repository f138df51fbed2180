package order

import (
	"testing"
	"time"
)

func TestAdjustmentGuard_AcquireRelease(t *testing.T) {
	g := NewAdjustmentGuard()

	if !g.TryAcquire("a") {
		t.Fatal("expected first acquire to succeed")
	}
	if g.TryAcquire("a") {
		t.Fatal("expected second acquire to fail while held")
	}
	if !g.TryAcquire("b") {
		t.Fatal("expected acquire of different order to succeed")
	}

	g.Release("a")
	if !g.TryAcquire("a") {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestAdjustmentGuard_ReleaseUnheldIsNoop(t *testing.T) {
	g := NewAdjustmentGuard()
	g.Release("missing")

	if g.Held("missing") {
		t.Fatal("expected slot to stay unheld")
	}
}

func TestAdjustmentGuard_PurgeOlderThan(t *testing.T) {
	g := NewAdjustmentGuard()
	g.TryAcquire("fresh")

	g.mu.Lock()
	g.inFlight["stale"] = time.Now().Add(-5 * time.Minute)
	g.mu.Unlock()

	purged := g.PurgeOlderThan(2 * time.Minute)
	if purged != 1 {
		t.Fatalf("expected 1 purged slot, got %d", purged)
	}
	if g.Held("stale") {
		t.Fatal("expected stale slot to be gone")
	}
	if !g.Held("fresh") {
		t.Fatal("expected fresh slot to survive")
	}
}
