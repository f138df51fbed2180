// Package exchange provides the gateway registry the engine resolves
// exchanges through. Concrete adapters register themselves at wiring time;
// the engine never constructs them.
package exchange

import (
	"sync"

	"trade_engine/internal/core"
)

// Manager resolves exchange gateways by their configured id. An unknown id
// resolves to nil; callers treat that as a configuration error and abort
// the operation rather than retry.
type Manager struct {
	mu        sync.RWMutex
	exchanges map[string]core.IExchange
	logger    core.ILogger
}

// NewManager creates an empty registry.
func NewManager(logger core.ILogger) *Manager {
	return &Manager{
		exchanges: make(map[string]core.IExchange),
		logger:    logger.WithField("component", "exchange_manager"),
	}
}

// Register adds a gateway under its name, replacing any previous entry.
func (m *Manager) Register(exchange core.IExchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges[exchange.GetName()] = exchange
	m.logger.Info("Registered exchange", "name", exchange.GetName())
}

// Get returns the gateway for the id, or nil when none is registered.
func (m *Manager) Get(name string) core.IExchange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exchanges[name]
}

// Names returns the registered exchange ids.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.exchanges))
	for name := range m.exchanges {
		names = append(names, name)
	}
	return names
}
