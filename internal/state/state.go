package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/dohr-michael/nudge/internal/tasks"
)

// Store persists the whole document at once.
type Store interface {
	// Load reads the persisted document. A store that was never written
	// returns an empty document.
	Load(ctx context.Context) (*Document, error)
	// SaveAtomic replaces the persisted document. Readers of the backing
	// medium never observe a partial write.
	SaveAtomic(ctx context.Context, doc *Document) error
	Close() error
}

// State is the in-memory source of truth, loaded once at startup.
//
// Writers are serialised. Each Update mutates a clone, persists it and only
// then publishes it, so a failed save leaves memory and disk unchanged.
type State struct {
	store Store

	writeMu sync.Mutex
	mu      sync.RWMutex
	doc     *Document
}

// Open loads the document from store.
func Open(ctx context.Context, store Store) (*State, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if doc == nil {
		doc = NewDocument()
	}
	return &State{store: store, doc: doc}, nil
}

// View runs fn against the current document. fn must not mutate it.
func (s *State) View(fn func(doc *Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.doc)
}

// Snapshot returns a deep copy of the current document.
func (s *State) Snapshot() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Update runs fn on a copy of the document and commits it when fn succeeds
// and the store accepts the write. op names the operation in errors.
func (s *State) Update(ctx context.Context, op string, fn func(doc *Document) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Only writers replace s.doc, and writeMu is held.
	next := s.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.SaveAtomic(ctx, next); err != nil {
		return &tasks.PersistenceError{Op: op, Err: err}
	}

	s.mu.Lock()
	s.doc = next
	s.mu.Unlock()
	return nil
}

// Committed runs fn against the committed document while holding the
// writer lock, so no Update interleaves. fn must not mutate doc.
func (s *State) Committed(fn func(doc *Document)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fn(s.doc)
}

// Close closes the backing store.
func (s *State) Close() error {
	return s.store.Close()
}

// Store drivers accepted by NewStore.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// NewStore builds the store selected by driver.
func NewStore(driver, path string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(path), nil
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
