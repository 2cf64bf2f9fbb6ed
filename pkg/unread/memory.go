package unread

import (
	"context"
	"sync"
)

// MemoryStore is a lock-protected in-process Store, used in tests and by the
// client-side reconciler for its local badge model.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]map[string]int64)}
}

func (m *MemoryStore) Increment(ctx context.Context, userID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters[userID] == nil {
		m.counters[userID] = make(map[string]int64)
	}
	m.counters[userID][conversationID]++
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context, userID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counters[userID], conversationID)
	return nil
}

func (m *MemoryStore) Counts(ctx context.Context, userID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters[userID]))
	for conv, n := range m.counters[userID] {
		if n > 0 {
			out[conv] = n
		}
	}
	return out, nil
}
