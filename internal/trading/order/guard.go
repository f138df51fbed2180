package order

import (
	"sync"
	"time"
)

// AdjustmentGuard prevents two adjustment passes from touching the same
// order concurrently. Entries expire so a pass that died mid-flight cannot
// lock an order out forever.
type AdjustmentGuard struct {
	mu       sync.Mutex
	inFlight map[string]time.Time
}

// NewAdjustmentGuard creates an empty guard.
func NewAdjustmentGuard() *AdjustmentGuard {
	return &AdjustmentGuard{
		inFlight: make(map[string]time.Time),
	}
}

// TryAcquire marks the order as in-flight. It returns false when another
// holder already owns the slot.
func (g *AdjustmentGuard) TryAcquire(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.inFlight[orderID]; held {
		return false
	}
	g.inFlight[orderID] = time.Now()
	return true
}

// Release frees the slot. Releasing an unheld slot is a no-op.
func (g *AdjustmentGuard) Release(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, orderID)
}

// Held reports whether the order currently owns a slot.
func (g *AdjustmentGuard) Held(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.inFlight[orderID]
	return held
}

// PurgeOlderThan drops slots acquired more than maxAge ago and returns how
// many were dropped.
func (g *AdjustmentGuard) PurgeOlderThan(maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	purged := 0
	for orderID, acquiredAt := range g.inFlight {
		if acquiredAt.Before(cutoff) {
			delete(g.inFlight, orderID)
			purged++
		}
	}
	return purged
}
