package counters

import (
	"context"
	"sync"
)

type domainState struct {
	activeRuns int
	timeouts   int
}

// MemoryStore is a single-process Store guarded by a mutex.
type MemoryStore struct {
	mu      sync.Mutex
	domains map[string]*domainState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{domains: make(map[string]*domainState)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) state(domainID string) *domainState {
	st, ok := m.domains[domainID]
	if !ok {
		st = &domainState{}
		m.domains[domainID] = st
	}
	return st
}

// TryAcquire implements Store.
func (m *MemoryStore) TryAcquire(_ context.Context, domainID string, limit int) (bool, error) {
	if limit <= 0 {
		return false, ErrInvalidLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(domainID)
	if st.activeRuns >= limit {
		return false, nil
	}
	st.activeRuns++
	return true, nil
}

// Release implements Store.
func (m *MemoryStore) Release(_ context.Context, domainID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.domains[domainID]; ok && st.activeRuns > 0 {
		st.activeRuns--
	}
	return nil
}

// ActiveRuns implements Store.
func (m *MemoryStore) ActiveRuns(_ context.Context, domainID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.domains[domainID]; ok {
		return st.activeRuns, nil
	}
	return 0, nil
}

// IncrementTimeouts implements Store.
func (m *MemoryStore) IncrementTimeouts(_ context.Context, domainID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(domainID)
	st.timeouts++
	return st.timeouts, nil
}

// Timeouts implements Store.
func (m *MemoryStore) Timeouts(_ context.Context, domainID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.domains[domainID]; ok {
		return st.timeouts, nil
	}
	return 0, nil
}

// ResetTimeouts implements Store.
func (m *MemoryStore) ResetTimeouts(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.domains {
		st.timeouts = 0
	}
	return nil
}

// Sweep implements Store.
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, st := range m.domains {
		if st.activeRuns == 0 && st.timeouts == 0 {
			delete(m.domains, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked domains.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.domains)
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
