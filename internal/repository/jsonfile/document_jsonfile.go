package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"docstore/internal/model"
	"docstore/internal/repository"
)

// FileName is the snapshot file created inside the data directory.
const FileName = "documents.json"

// DocumentJSONFile keeps the registry as one JSON array on disk.
//
// Writers take mu, build a new immutable snapshot, persist it with write-to-temp +
// fsync + rename and only then publish it. Readers load the published snapshot
// without locking, so they never block each other or observe a half-applied write.
type DocumentJSONFile struct {
	path string
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	docs []model.Document
	ids  map[string]struct{}
}

var _ repository.DocumentRegistry = (*DocumentJSONFile)(nil)

// Open loads dir/documents.json, creating dir if needed. A missing or empty file is an
// empty registry; an unreadable or corrupt one is an error rather than silently reset.
func Open(dir string) (*DocumentJSONFile, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	r := &DocumentJSONFile{path: filepath.Join(dir, FileName)}

	docs, err := load(r.path)
	if err != nil {
		return nil, err
	}
	snap, err := newSnapshot(docs)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.path, err)
	}
	r.snap.Store(snap)
	return r, nil
}

// Path returns the snapshot file location.
func (r *DocumentJSONFile) Path() string {
	return r.path
}

func load(path string) ([]model.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read registry: %v", model.ErrIOFailure, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var docs []model.Document
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil, fmt.Errorf("%w: registry %s is corrupt: %v", model.ErrIOFailure, path, err)
	}
	return docs, nil
}

func newSnapshot(docs []model.Document) (*snapshot, error) {
	ids := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := ids[d.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %s", d.ID)
		}
		ids[d.ID] = struct{}{}
	}
	return &snapshot{docs: docs, ids: ids}, nil
}

// Append adds doc at the end of the log.
func (r *DocumentJSONFile) Append(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("%w: document id is required", model.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, dup := cur.ids[doc.ID]; dup {
		return nil, fmt.Errorf("%w: duplicate document id %s", model.ErrInvalidInput, doc.ID)
	}

	stored := *doc
	if n := len(cur.docs); n > 0 {
		stored.CreatedAt = repository.NotBefore(stored.CreatedAt, cur.docs[n-1].CreatedAt)
	}

	docs := make([]model.Document, len(cur.docs), len(cur.docs)+1)
	copy(docs, cur.docs)
	docs = append(docs, stored)

	ids := make(map[string]struct{}, len(docs))
	for id := range cur.ids {
		ids[id] = struct{}{}
	}
	ids[stored.ID] = struct{}{}

	if err := r.persist(docs); err != nil {
		return nil, err
	}
	r.snap.Store(&snapshot{docs: docs, ids: ids})
	return &stored, nil
}

// Query returns a copy of the matching records in insertion order.
func (r *DocumentJSONFile) Query(ctx context.Context, ownerID *string) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := r.snap.Load()
	out := make([]model.Document, 0, len(cur.docs))
	if ownerID == nil {
		return append(out, cur.docs...), nil
	}
	key := repository.OwnerKey(*ownerID)
	for _, d := range cur.docs {
		if repository.OwnerKey(d.OwnerID) == key {
			out = append(out, d)
		}
	}
	return out, nil
}

// FindOne scans from the oldest record and returns the first match.
func (r *DocumentJSONFile) FindOne(ctx context.Context, ownerID, originalName string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := repository.OwnerKey(ownerID)
	for _, d := range r.snap.Load().docs {
		if d.OriginalName == originalName && repository.OwnerKey(d.OwnerID) == key {
			found := d
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: document %q for owner %q", model.ErrNotFound, originalName, ownerID)
}

// Remove drops the record with id.
func (r *DocumentJSONFile) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.ids[id]; !ok {
		return fmt.Errorf("%w: document id %s", model.ErrNotFound, id)
	}

	docs := make([]model.Document, 0, len(cur.docs)-1)
	ids := make(map[string]struct{}, len(cur.docs)-1)
	for _, d := range cur.docs {
		if d.ID == id {
			continue
		}
		docs = append(docs, d)
		ids[d.ID] = struct{}{}
	}

	if err := r.persist(docs); err != nil {
		return err
	}
	r.snap.Store(&snapshot{docs: docs, ids: ids})
	return nil
}

// Ping checks that the data directory is still there.
func (r *DocumentJSONFile) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("%w: data directory: %v", model.ErrIOFailure, err)
	}
	return nil
}

// persist replaces the snapshot file atomically. Callers hold mu.
func (r *DocumentJSONFile) persist(docs []model.Document) error {
	b, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode registry: %v", model.ErrIOFailure, err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".documents-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp snapshot: %v", model.ErrIOFailure, err)
	}
	tmpPath := tmp.Name()
	fail := func(step string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", model.ErrIOFailure, step, err)
	}

	if _, err := tmp.Write(b); err != nil {
		return fail("write snapshot", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close snapshot: %v", model.ErrIOFailure, err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: publish snapshot: %v", model.ErrIOFailure, err)
	}
	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
