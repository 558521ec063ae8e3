package settings

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStorage is an in-process SyncStorage.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]json.RawMessage
	sets  int
}

// NewMemoryStorage returns storage seeded with items (may be nil).
func NewMemoryStorage(items map[string]json.RawMessage) *MemoryStorage {
	m := &MemoryStorage{items: make(map[string]json.RawMessage)}
	for k, v := range items {
		m.items[k] = v
	}
	return m
}

// NewMemoryStorageWithBlob seeds the settings key with blob as its string value.
func NewMemoryStorageWithBlob(blob string) *MemoryStorage {
	v, _ := json.Marshal(blob)
	return NewMemoryStorage(map[string]json.RawMessage{StorageKey: v})
}

func (m *MemoryStorage) Get(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStorage) Set(_ context.Context, items map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range items {
		m.items[k] = v
	}
	m.sets++
	return nil
}

// Blob returns the stored settings string, or "" when unset.
func (m *MemoryStorage) Blob() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s string
	json.Unmarshal(m.items[StorageKey], &s)
	return s
}

// Sets reports how many Set calls were made.
func (m *MemoryStorage) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
