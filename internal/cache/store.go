package cache

import (
	"context"
	"maps"
	"sync"

	"github.com/desertthunder/trackmatch/internal/shared"
)

// Store is the persistence backend for snapshots.
//
// Get returns [shared.ErrNotFound] for a missing key. Put replaces the whole record.
type Store interface {
	Get(ctx context.Context, containerID string) ([]byte, error)
	Put(ctx context.Context, containerID string, data []byte) error
	Delete(ctx context.Context, containerID string) error
	List(ctx context.Context) (map[string][]byte, error)
}

// MemoryStore is an in-process [Store].
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, containerID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[containerID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Put(_ context.Context, containerID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[containerID] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, containerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, containerID)
	return nil
}

func (m *MemoryStore) List(_ context.Context) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.records), nil
}
