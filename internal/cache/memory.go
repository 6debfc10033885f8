package cache

import (
	"context"
	"sync"
)

// Memory is an in-process backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory returns a Cache backed by process memory.
func NewMemory() *Store {
	return New(&Memory{entries: make(map[string][]byte)})
}

func (m *Memory) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, id string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}
