package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps vectors for the life of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	vecs map[string][]float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vecs: make(map[string][]float32)}
}

func (m *MemoryStore) Get(_ context.Context, keys []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]float32)
	for _, k := range keys {
		if v, ok := m.vecs[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, vecs map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range vecs {
		m.vecs[k] = v
	}
	return nil
}

// Len returns the number of stored vectors.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecs)
}

func (m *MemoryStore) Close() error { return nil }
