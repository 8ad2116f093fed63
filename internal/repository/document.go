package repository

import (
	"context"
	"strings"
	"time"

	"docstore/internal/model"
)

// DocumentRegistry is the durable, ordered collection of document records.
//
// Mutations (Append, Remove) are serialized through a single writer; reads (Query,
// FindOne) run concurrently and see either the state before or after a write, never
// a partial one. No business logic lives here; validation belongs to the service.
type DocumentRegistry interface {
	// Append adds doc to the end of the log and is durable before returning.
	// A duplicate ID fails with model.ErrInvalidInput. CreatedAt is raised, if needed,
	// so it never goes backwards relative to the previous append.
	Append(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Query returns records in insertion order. A nil ownerID returns everything;
	// otherwise owners are compared case-insensitively.
	Query(ctx context.Context, ownerID *string) ([]model.Document, error)

	// FindOne returns the earliest record matching ownerID (case-insensitive)
	// and originalName (exact), or model.ErrNotFound.
	FindOne(ctx context.Context, ownerID, originalName string) (*model.Document, error)

	// Remove deletes the record with the given id or fails with model.ErrNotFound.
	Remove(ctx context.Context, id string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// OwnerKey is the normalized form owners are compared by.
func OwnerKey(ownerID string) string {
	return strings.ToLower(ownerID)
}

// NotBefore returns t, or last when t would move the log's clock backwards.
func NotBefore(t, last time.Time) time.Time {
	if t.Before(last) {
		return last
	}
	return t
}
