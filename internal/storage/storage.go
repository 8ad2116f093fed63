package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"docstore/internal/model"
)

// Package storage persists raw document content under opaque, generated references.
// A BlobRef has the form "<uuid>.<extension>" and is the only way to address a blob;
// caller-supplied paths never reach a backend.

// Blob is an open, readable blob. It supports random access so that byte ranges
// can be served without reading the whole object.
type Blob interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// BlobStore persists and retrieves raw file content by BlobRef.
// Implementations must be safe for concurrent use; distinct refs never contend.
type BlobStore interface {
	// Store writes r under a freshly generated ref carrying ext and returns the ref and
	// the number of bytes written. Disallowed extensions or content above the size limit
	// fail with model.ErrInvalidInput and leave nothing behind.
	Store(ctx context.Context, r io.Reader, ext string) (string, int64, error)
	// Open returns the blob content and its size. A missing blob is model.ErrNotFound.
	Open(ctx context.Context, ref string) (Blob, int64, error)
	// Delete removes the blob. It reports true if an object was removed and false if it
	// was already absent; only real I/O errors are returned (wrapping model.ErrIOFailure).
	Delete(ctx context.Context, ref string) (bool, error)
}

// NewRef generates a collision-free ref for ext.
func NewRef(ext string) string {
	return uuid.NewString() + "." + model.NormalizeExtension(ext)
}

// ValidateRef checks that ref is a bare "<uuid>.<allowed extension>" name.
func ValidateRef(ref string) error {
	if ref == "" || strings.ContainsAny(ref, `/\`) || strings.Contains(ref, "..") {
		return fmt.Errorf("%w: malformed blob ref %q", model.ErrInvalidInput, ref)
	}
	id, ext, ok := strings.Cut(ref, ".")
	if !ok || ext != model.NormalizeExtension(ext) || !model.IsAllowedExtension(ext) {
		return fmt.Errorf("%w: malformed blob ref %q", model.ErrInvalidInput, ref)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed blob ref %q", model.ErrInvalidInput, ref)
	}
	return nil
}

func checkExtension(ext string) (string, error) {
	norm := model.NormalizeExtension(ext)
	if !model.IsAllowedExtension(norm) {
		return "", fmt.Errorf("%w: extension %q is not allowed", model.ErrInvalidInput, ext)
	}
	return norm, nil
}

func effectiveLimit(maxBytes int64) int64 {
	if maxBytes <= 0 || maxBytes > model.MaxUploadBytes {
		return model.MaxUploadBytes
	}
	return maxBytes
}

func tooLarge(limit int64) error {
	return fmt.Errorf("%w: content exceeds %d bytes", model.ErrInvalidInput, limit)
}

// contextReader stops a long copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
