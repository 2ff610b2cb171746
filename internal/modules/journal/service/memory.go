package service

import (
	"context"
	"sync"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
)

// Memory is an in-memory journal used by the backtester and tests. Each run
// starts from a clean slate, which keeps simulations deterministic and
// isolated from live trading history.
type Memory struct {
	mu      sync.Mutex
	entries []models.JournalEntry
	closed  []models.ClosedTrade
	active  bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecentOutcomes(_ context.Context, asset, strategy string, limit int) ([]models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Outcome
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if e.Asset == asset && e.Strategy == strategy {
			out = append(out, e.Outcome)
		}
	}
	return out, nil
}

func (m *Memory) AppendJournalEntry(_ context.Context, e models.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) AppendClosedTrade(_ context.Context, t models.ClosedTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, t)
	return nil
}

func (m *Memory) IsActive(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, nil
}

func (m *Memory) SetActive(_ context.Context, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
	return nil
}

func (m *Memory) Entries() []models.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.JournalEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) ClosedTrades() []models.ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ClosedTrade, len(m.closed))
	copy(out, m.closed)
	return out
}
