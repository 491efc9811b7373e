package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps the document as JSON bytes in memory. Saves go through
// the same encoding as FileStore, so tests see the same round-trip.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	failErr error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := NewDocument()
	if m.data == nil {
		return doc, nil
	}
	if err := json.Unmarshal(m.data, doc); err != nil {
		return nil, fmt.Errorf("decode memory state: %w", err)
	}
	normalize(doc)
	return doc, nil
}

func (m *MemoryStore) SaveAtomic(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode memory state: %w", err)
	}
	m.data = data
	m.saves++
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// FailSaves makes every following SaveAtomic return err. A nil err restores saving.
func (m *MemoryStore) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
