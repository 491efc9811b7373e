package state

import (
	"context"
	"fmt"

	"github.com/dohr-michael/nudge/internal/storage"
	"github.com/dohr-michael/nudge/internal/tasks"
)

// FileStore keeps the document in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := NewDocument()
	if _, err := storage.ReadJSON(fs.path, doc); err != nil {
		return nil, fmt.Errorf("load state file: %w", err)
	}
	normalize(doc)
	return doc, nil
}

func (fs *FileStore) SaveAtomic(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return storage.WriteJSONAtomic(fs.path, doc)
}

func (fs *FileStore) Close() error { return nil }

// normalize replaces maps decoded from JSON null with empty ones.
func normalize(doc *Document) {
	if doc.Reports == nil {
		doc.Reports = make(map[tasks.Key]*tasks.Task)
	}
	if doc.DoneLogs == nil {
		doc.DoneLogs = make(map[tasks.Key]DeedLog)
	}
}
