package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"docstore/internal/model"
	"docstore/internal/repository"
)

const uniqueViolation = "23505"

var documentColumns = []string{
	"id", "owner_id", "original_name", "blob_ref", "size_bytes", "extension", "content_type", "created_at",
}

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRegistry.
// It uses database/sql with parameterized queries and contains no business logic.
// Insertion order is the BIGSERIAL seq column.
type DocumentPostgres struct {
	db *sql.DB
	qb sq.StatementBuilderType
	// mu serializes writers in this process so the created_at clamp and the insert
	// observe the same tail of the log.
	mu sync.Mutex
}

// NewDocumentPostgres creates a new DocumentPostgres registry.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var _ repository.DocumentRegistry = (*DocumentPostgres)(nil)

// Append inserts a new row at the end of the log and returns the stored record.
func (r *DocumentPostgres) Append(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("%w: document id is required", model.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM documents ORDER BY seq DESC LIMIT 1`,
	).Scan(&last); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: read log tail: %v", model.ErrIOFailure, err)
	}
	createdAt := doc.CreatedAt
	if last.Valid {
		createdAt = repository.NotBefore(createdAt, last.Time)
	}

	q, args, err := r.qb.Insert("documents").
		Columns("id", "owner_id", "owner_key", "original_name", "blob_ref", "size_bytes", "extension", "content_type", "created_at").
		Values(doc.ID, doc.OwnerID, repository.OwnerKey(doc.OwnerID), doc.OriginalName, doc.BlobRef, doc.SizeBytes, doc.Extension, doc.ContentType, createdAt).
		Suffix("RETURNING id, owner_id, original_name, blob_ref, size_bytes, extension, content_type, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	out, err := scanDocument(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: duplicate document: %s", model.ErrInvalidInput, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("%w: insert document: %v", model.ErrIOFailure, err)
	}
	return out, nil
}

// Query returns rows in seq order, optionally filtered by owner.
func (r *DocumentPostgres) Query(ctx context.Context, ownerID *string) ([]model.Document, error) {
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

// FindOne fetches the earliest row for (owner, name).
func (r *DocumentPostgres) FindOne(ctx context.Context, ownerID, originalName string) (*model.Document, error) {
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

// Remove deletes a row by ID and reports model.ErrNotFound when nothing matched.
func (r *DocumentPostgres) Remove(ctx context.Context, id string) error {
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

// Ping checks database connectivity.
func (r *DocumentPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.OriginalName,
		&d.BlobRef,
		&d.SizeBytes,
		&d.Extension,
		&d.ContentType,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}
