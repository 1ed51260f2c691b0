package vectorstore

import (
	"context"
	"sync"
)

type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewMemory() *Memory {
	return &Memory{collections: map[string]map[string]Document{}}
}

func (m *Memory) Add(ctx context.Context, collection string, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if c == nil {
		c = map[string]Document{}
		m.collections[collection] = c
	}
	for _, d := range docs {
		c[d.ID] = d
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]any) ([]Match, error) {
	m.mu.RLock()
	docs := make([]Document, 0, len(m.collections[collection]))
	for _, d := range m.collections[collection] {
		docs = append(docs, d)
	}
	m.mu.RUnlock()
	return rank(docs, embedding, k, filter), nil
}

func (m *Memory) Get(ctx context.Context, collection string, ids []string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, id := range ids {
		if d, ok := m.collections[collection][id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.collections[collection], id)
	}
	return nil
}

func (m *Memory) Count(ctx context.Context, collection string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.collections[collection])), nil
}
