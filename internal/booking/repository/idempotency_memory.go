package repository

import (
	"context"
	"sync"
)

// MemoryIdempotencyRepo caches booking responses by idempotency key for
// single-instance deployments and tests.
type MemoryIdempotencyRepo struct {
	mu        sync.RWMutex
	responses map[string][]byte
}

func NewMemoryIdempotencyRepo() *MemoryIdempotencyRepo {
	return &MemoryIdempotencyRepo{responses: make(map[string][]byte)}
}

// GetResponse retrieves the cached response for a key.
func (m *MemoryIdempotencyRepo) GetResponse(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.responses[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// PutResponse stores the response unless one is already cached, so the first
// recorded response keeps being replayed.
func (m *MemoryIdempotencyRepo) PutResponse(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.responses[key]; exists {
		return nil
	}
	m.responses[key] = append([]byte(nil), payload...)
	return nil
}
