package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"docstore/internal/model"
	"docstore/internal/repository"
)

var documentColumns = []string{
	"id", "owner_id", "original_name", "blob_ref", "size_bytes", "extension", "content_type", "created_at",
}

// DocumentSQLite is an embedded SQLite implementation of repository.DocumentRegistry.
// created_at is stored as Unix nanoseconds so ordering comparisons stay exact.
type DocumentSQLite struct {
	db *sql.DB
	qb sq.StatementBuilderType
	mu sync.Mutex
}

// NewDocumentSQLite creates a registry over an already migrated database.
func NewDocumentSQLite(db *sql.DB) *DocumentSQLite {
	return &DocumentSQLite{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

var _ repository.DocumentRegistry = (*DocumentSQLite)(nil)

func (r *DocumentSQLite) Append(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("%w: document id is required", model.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", model.ErrIOFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM documents ORDER BY seq DESC LIMIT 1`,
	).Scan(&last); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: read log tail: %v", model.ErrIOFailure, err)
	}
	createdAt := doc.CreatedAt.UTC()
	if last.Valid {
		createdAt = repository.NotBefore(createdAt, fromNanos(last.Int64))
	}

	q, args, err := r.qb.Insert("documents").
		Columns("id", "owner_id", "owner_key", "original_name", "blob_ref", "size_bytes", "extension", "content_type", "created_at").
		Values(doc.ID, doc.OwnerID, repository.OwnerKey(doc.OwnerID), doc.OriginalName, doc.BlobRef, doc.SizeBytes, doc.Extension, doc.ContentType, createdAt.UnixNano()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate document: %v", model.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: insert document: %v", model.ErrIOFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", model.ErrIOFailure, err)
	}

	out := *doc
	out.CreatedAt = createdAt
	return &out, nil
}

func (r *DocumentSQLite) Query(ctx context.Context, ownerID *string) ([]model.Document, error) {
	sb := r.qb.Select(documentColumns...).From("documents").OrderBy("seq ASC")
	if ownerID != nil {
		sb = sb.Where(sq.Eq{"owner_key": repository.OwnerKey(*ownerID)})
	}
	q, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query documents: %v", model.ErrIOFailure, err)
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", model.ErrIOFailure, err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate documents: %v", model.ErrIOFailure, err)
	}
	return items, nil
}

func (r *DocumentSQLite) FindOne(ctx context.Context, ownerID, originalName string) (*model.Document, error) {
	q, args, err := r.qb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"owner_key": repository.OwnerKey(ownerID), "original_name": originalName}).
		OrderBy("seq ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	d, err := scanDocument(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %q for owner %q", model.ErrNotFound, originalName, ownerID)
		}
		return nil, fmt.Errorf("%w: find document: %v", model.ErrIOFailure, err)
	}
	return d, nil
}

func (r *DocumentSQLite) Remove(ctx context.Context, id string) error {
	q, args, err := r.qb.Delete("documents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", model.ErrIOFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", model.ErrIOFailure, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: document id %s", model.ErrNotFound, id)
	}
	return nil
}

func (r *DocumentSQLite) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d       model.Document
		created int64
	)
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.OriginalName,
		&d.BlobRef,
		&d.SizeBytes,
		&d.Extension,
		&d.ContentType,
		&created,
	); err != nil {
		return nil, err
	}
	d.CreatedAt = fromNanos(created)
	return &d, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// modernc reports constraint failures only through the message text.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
