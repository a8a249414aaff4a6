package journal

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and journal-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
}

// NewMemoryStore returns an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append adds a new entry to the journal.
func (m *MemoryStore) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, e)
	return nil
}

// GetBySession retrieves all entries for one session, oldest first.
func (m *MemoryStore) GetBySession(_ context.Context, sessionID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetRecent retrieves the most recent entries, newest first.
func (m *MemoryStore) GetRecent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	n := len(m.entries)
	if limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
