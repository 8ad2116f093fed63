package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"docstore/internal/model"
)

// FSStore keeps blobs as flat files in a single directory.
// It is safe for concurrent use: every Store writes a new file created with O_EXCL,
// and reads open independent file handles.
type FSStore struct {
	root     string
	maxBytes int64
}

var _ BlobStore = (*FSStore)(nil)

// NewFS creates the blob directory if needed. maxBytes <= 0 means model.MaxUploadBytes.
func NewFS(root string, maxBytes int64) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("blob directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FSStore{root: abs, maxBytes: effectiveLimit(maxBytes)}, nil
}

// Root returns the absolute blob directory.
func (s *FSStore) Root() string {
	return s.root
}

// Store streams r into a new file and fsyncs it before returning.
func (s *FSStore) Store(ctx context.Context, r io.Reader, ext string) (string, int64, error) {
	ext, err := checkExtension(ext)
	if err != nil {
		return "", 0, err
	}
	if r == nil {
		return "", 0, fmt.Errorf("%w: reader is nil", model.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	ref := NewRef(ext)
	path := filepath.Join(s.root, ref)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("%w: create blob: %v", model.ErrIOFailure, err)
	}
	discard := func() {
		_ = f.Close()
		_ = os.Remove(path)
	}

	n, err := io.Copy(f, io.LimitReader(contextReader{ctx: ctx, r: r}, s.maxBytes+1))
	if err != nil {
		discard()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", 0, ctxErr
		}
		return "", 0, fmt.Errorf("%w: write blob: %v", model.ErrIOFailure, err)
	}
	if n > s.maxBytes {
		discard()
		return "", 0, tooLarge(s.maxBytes)
	}
	if err := f.Sync(); err != nil {
		discard()
		return "", 0, fmt.Errorf("%w: sync blob: %v", model.ErrIOFailure, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("%w: close blob: %v", model.ErrIOFailure, err)
	}
	return ref, n, nil
}

// Open opens the blob read-only. Concurrent opens of the same ref are allowed.
func (s *FSStore) Open(ctx context.Context, ref string) (Blob, int64, error) {
	path, err := s.pathFor(ref)
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: blob %s", model.ErrNotFound, ref)
		}
		return nil, 0, fmt.Errorf("%w: open blob: %v", model.ErrIOFailure, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: stat blob: %v", model.ErrIOFailure, err)
	}
	return f, info.Size(), nil
}

// Delete removes the blob file. Missing files are reported, not failed.
func (s *FSStore) Delete(ctx context.Context, ref string) (bool, error) {
	path, err := s.pathFor(ref)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete blob: %v", model.ErrIOFailure, err)
	}
	return true, nil
}

func (s *FSStore) pathFor(ref string) (string, error) {
	if err := ValidateRef(ref); err != nil {
		return "", err
	}
	return filepath.Join(s.root, ref), nil
}
