package snapshot

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and local tooling.
type Memory struct {
	mu      sync.Mutex
	payload []byte
	saves   int
	// FailSave, when set, is returned by Save instead of storing.
	FailSave error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payload == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.payload...), nil
}

func (m *Memory) Save(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.payload = append([]byte(nil), payload...)
	m.saves++
	return nil
}

// Saves returns how many snapshots were written.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
