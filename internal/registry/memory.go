package registry

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory token table.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byText map[string]int64
	byID   map[int64]string
}

// NewMemoryStore creates an empty token table. IDs start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byText: make(map[string]int64),
		byID:   make(map[int64]string),
	}
}

// InsertMissing assigns IDs to texts not seen before.
func (m *MemoryStore) InsertMissing(ctx context.Context, texts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		if _, ok := m.byText[t]; ok {
			continue
		}
		m.byText[t] = m.nextID
		m.byID[m.nextID] = t
		m.nextID++
	}
	return nil
}

// IDsFor returns the IDs of known texts.
func (m *MemoryStore) IDsFor(ctx context.Context, texts []string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]int64, len(texts))
	for _, t := range texts {
		if id, ok := m.byText[t]; ok {
			result[t] = id
		}
	}
	return result, nil
}

// TextsFor returns the texts of known IDs.
func (m *MemoryStore) TextsFor(ctx context.Context, ids []int64) (map[int64]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[int64]string, len(ids))
	for _, id := range ids {
		if t, ok := m.byID[id]; ok {
			result[id] = t
		}
	}
	return result, nil
}

// Len returns the number of stored tokens.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byText)
}
