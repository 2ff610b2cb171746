package runner

import (
	"context"
	"fmt"
	"sync"
)

// Manager keeps one Core per broker connector id.
type Manager struct {
	mu    sync.Mutex
	cores map[string]*Core

	newCore func(connectorID string) *Core
}

func NewManager(newCore func(connectorID string) *Core) *Manager {
	return &Manager{
		cores:   make(map[string]*Core),
		newCore: newCore,
	}
}

// CreateOrGet returns the core for a connector, building and starting it on
// first sight.
func (m *Manager) CreateOrGet(ctx context.Context, connectorID string) *Core {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.cores[connectorID]; ok {
		return c
	}
	c := m.newCore(connectorID)
	m.cores[connectorID] = c
	c.Start(ctx)
	return c
}

// Get returns an already-running core, if any.
func (m *Manager) Get(connectorID string) (*Core, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cores[connectorID]
	return c, ok
}

// StopAll shuts every core down; used on application stop.
func (m *Manager) StopAll() {
	m.mu.Lock()
	cores := make([]*Core, 0, len(m.cores))
	for _, c := range m.cores {
		cores = append(cores, c)
	}
	m.cores = make(map[string]*Core)
	m.mu.Unlock()

	for _, c := range cores {
		c.Stop()
	}
}

// Stop shuts one core down.
func (m *Manager) Stop(connectorID string) error {
	m.mu.Lock()
	c, ok := m.cores[connectorID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no core running for connector %s", connectorID)
	}
	delete(m.cores, connectorID)
	m.mu.Unlock()

	c.Stop()
	return nil
}
