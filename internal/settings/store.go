// Package settings persists user preferences and reacts to changes of them.
package settings

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a setting has never been written.
var ErrNotFound = errors.New("setting not found")

// Store is a string keyed preference store.
type Store interface {
	PutString(ctx context.Context, key, value string) error
	GetString(ctx context.Context, key string) (string, error)
	// GetStrings returns the values of the keys that exist.
	GetStrings(ctx context.Context, keys ...string) (map[string]string, error)
	Close()
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) PutString(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetString(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) GetStrings(ctx context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() {}
