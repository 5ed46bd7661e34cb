package kvstore

import (
	"sort"
	"sync"
)

// Memory is an in-memory Store. It can be told to fail writes, which is how
// tests exercise the quota-exceeded path of a real browser store.
type Memory struct {
	mu        sync.RWMutex
	items     map[string]string
	writeErr  error
	failAfter int // writes still allowed before writeErr applies
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// Get retrieves a value by key.
func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores a value, overwriting any previous one.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	m.items[key] = value
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkWrite(); err != nil {
		return err
	}
	delete(m.items, key)
	return nil
}

// Keys returns all keys in sorted order.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.items))
	for k := range m.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error { return nil }

// FailWrites makes every subsequent Set and Delete return err. A nil err
// restores normal behaviour.
func (m *Memory) FailWrites(err error) {
	m.FailWritesAfter(0, err)
}

// FailWritesAfter lets n writes succeed before err applies.
func (m *Memory) FailWritesAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
	m.failAfter = n
}

func (m *Memory) checkWrite() error {
	if m.writeErr == nil {
		return nil
	}
	if m.failAfter > 0 {
		m.failAfter--
		return nil
	}
	return m.writeErr
}
