package objectstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryObjectStore implements the core.BlobStore interface in process memory.
// It is meant for single-process development setups and tests.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryObjectStore returns an empty store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string][]byte)}
}

// Download returns a copy of the object stored under key.
func (m *MemoryObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("failed to get object '%s': %w", key, ErrObjectNotFound)
	}

	return slices.Clone(data), nil
}

// Upload stores a copy of data under key.
func (m *MemoryObjectStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = slices.Clone(data)

	return nil
}

// Exists reports whether key is present.
func (m *MemoryObjectStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]

	return ok, nil
}

// Delete removes key.
func (m *MemoryObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)

	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryObjectStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}
