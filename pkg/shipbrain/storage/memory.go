package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]storedValue // namespace -> key -> value
	closed bool
}

type storedValue struct {
	data      []byte
	revision  int
	updatedAt time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]storedValue),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(namespace, key string, data []byte) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	ns := m.data[namespace]
	if ns == nil {
		ns = make(map[string]storedValue)
		m.data[namespace] = ns
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	ns[key] = storedValue{
		data:      stored,
		revision:  ns[key].revision + 1,
		updatedAt: time.Now().UTC(),
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	v, ok := m.data[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}

	result := make([]byte, len(v.data))
	copy(result, v.data)
	return result, nil
}

// List implements Store.
func (m *MemoryStore) List(namespace string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ns := m.data[namespace]
	infos := make([]Info, 0, len(ns))
	for key, v := range ns {
		infos = append(infos, Info{
			Namespace: namespace,
			Key:       key,
			Revision:  v.revision,
			UpdatedAt: v.updatedAt,
			Size:      int64(len(v.data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key < infos[j].Key
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data[namespace], key)
	return nil
}

// DeleteNamespace implements Store.
func (m *MemoryStore) DeleteNamespace(namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, namespace)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of stored values across namespaces.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, ns := range m.data {
		count += len(ns)
	}
	return count
}
