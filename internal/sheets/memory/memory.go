package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// Mirror is an in-process ports.Mirror used for local runs and tests.
type Mirror struct {
	mu   sync.Mutex
	rows []core.Transaction
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) index(id string) int {
	for i, r := range m.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *Mirror) AppendTransaction(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(t.ID); i >= 0 {
		m.rows[i] = t
		return nil
	}
	m.rows = append(m.rows, t)
	return nil
}

func (m *Mirror) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	return m.AppendTransaction(ctx, t)
}

func (m *Mirror) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
	}
	return nil
}

func (m *Mirror) DeleteUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	n := len(m.rows) - len(kept)
	m.rows = kept
	return n, nil
}

// Rows returns a copy of the mirrored rows in insertion order.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.rows...)
}
