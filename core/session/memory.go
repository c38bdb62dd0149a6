package session

import (
	"context"
	"sync"
)

// MemoryKV keeps namespaces in process memory.
type MemoryKV struct {
	mu    sync.RWMutex
	table map[string]map[string]string
}

var _ KV = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{table: make(map[string]map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, namespace string, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vals := make(map[string]string, len(keys))
	if ns, ok := m.table[namespace]; ok {
		for _, k := range keys {
			if v, ok := ns[k]; ok {
				vals[k] = v
			}
		}
	}
	return vals, nil
}

func (m *MemoryKV) Set(_ context.Context, namespace string, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.table[namespace]
	if !ok {
		ns = make(map[string]string, len(entries))
		m.table[namespace] = ns
	}
	for k, v := range entries {
		ns[k] = v
	}
	return nil
}

// Delete removes keys, or the whole namespace when no key is given.
func (m *MemoryKV) Delete(_ context.Context, namespace string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.table[namespace]
	if !ok {
		return nil
	}
	if len(keys) == 0 {
		delete(m.table, namespace)
		return nil
	}
	for _, k := range keys {
		delete(ns, k)
	}
	if len(ns) == 0 {
		delete(m.table, namespace)
	}
	return nil
}

// Len returns the number of non-empty namespaces.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}
