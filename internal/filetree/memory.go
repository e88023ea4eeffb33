package filetree

import (
	"context"
	"sync"
)

// MemoryBackend implements Backend with in-memory storage. It backs tests
// and ephemeral sessions that do not need durability.
type MemoryBackend struct {
	mu   sync.RWMutex
	rows map[string]map[string]Record // user -> id -> record
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: make(map[string]map[string]Record)}
}

// LoadEntries implements Backend.LoadEntries.
func (m *MemoryBackend) LoadEntries(ctx context.Context, user string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.rows[user] {
		out = append(out, rec)
	}
	return out, nil
}

// UpsertEntry implements Backend.UpsertEntry.
func (m *MemoryBackend) UpsertEntry(ctx context.Context, user string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rows[user] == nil {
		m.rows[user] = make(map[string]Record)
	}
	m.rows[user][rec.ID] = rec
	return nil
}

// DeleteEntries implements Backend.DeleteEntries.
func (m *MemoryBackend) DeleteEntries(ctx context.Context, user string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.rows[user], id)
	}
	return nil
}

// SetModified implements Backend.SetModified.
func (m *MemoryBackend) SetModified(ctx context.Context, user, id string, modified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.rows[user][id]
	if !ok {
		return ErrNotFound
	}
	rec.IsModified = modified
	m.rows[user][id] = rec
	return nil
}
