package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process tooling.
// It honors the same CAS contract as the SQL store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*PendingChange
	order   []string
	head    string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*PendingChange),
		head:    "genesis",
	}
}

func (m *MemoryStore) Init(ctx context.Context) error { return nil }

func (m *MemoryStore) Insert(ctx context.Context, change *PendingChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	change.PrevHash = m.head
	hash, err := contentHash(change)
	if err != nil {
		return err
	}
	change.ContentHash = hash

	cp := *change
	m.entries[change.ID] = &cp
	m.order = append(m.order, change.ID)
	m.head = hash
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*PendingChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (m *MemoryStore) ListPending(ctx context.Context) ([]*PendingChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*PendingChange
	for _, id := range m.order {
		if entry := m.entries[id]; entry.Status == StatusPending {
			cp := *entry
			pending = append(pending, &cp)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return pending, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to Status, update StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	if entry.Status != from {
		return ErrStaleStatus
	}
	entry.Status = to
	entry.ApprovedBy = update.ApprovedBy
	entry.ReviewedAt = update.ReviewedAt
	entry.ExecutedAt = update.ExecutedAt
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}
