package store

import (
	"context"
	"sync"
)

// Memory is the in-process Store used by tests and demo mode. A single
// RWMutex serializes writers, matching the single-writer model of the
// collection contract.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// View runs fn against the current state under a read lock
func (m *Memory) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx := newTx(m.loadLocked, true)
	return fn(tx)
}

// Update runs fn under the write lock and commits the staged collections
// only if fn returns nil.
func (m *Memory) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newTx(m.loadLocked, false)
	if err := fn(tx); err != nil {
		return err
	}
	for key, data := range tx.staged {
		cp := make([]byte, len(data))
		copy(cp, data)
		m.data[key] = cp
	}
	return nil
}

// Close implements Store
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) loadLocked(key string) ([]byte, bool, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}
