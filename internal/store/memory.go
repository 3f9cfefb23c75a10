package store

import (
	"context"
	"sync"
)

// Memory is an in-process Gateway guarded by a RWMutex. Values are copied
// on the way in and out so callers cannot mutate stored state.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]string
}

// NewMemory creates an empty Memory gateway.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]map[string]string)}
}

// Put stores a copy of fields.
func (m *Memory) Put(ctx context.Context, collection, key string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.data[collection]
	if !ok {
		coll = make(map[string]map[string]string)
		m.data[collection] = coll
	}
	coll[key] = clone(fields)
	return nil
}

// Get returns a copy of the stored fields.
func (m *Memory) Get(ctx context.Context, collection, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.data[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(fields), nil
}

// Len returns the number of keys in a collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}
