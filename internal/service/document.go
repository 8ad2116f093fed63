package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docstore/internal/model"
	"docstore/internal/repository"
	"docstore/internal/storage"
	"docstore/internal/stream"
)

var tracer = otel.Tracer("docstore/internal/service")

// Download is an opened document. The caller must close Blob.
type Download struct {
	Document    *model.Document
	Blob        storage.Blob
	ContentType string
	Size        int64
}

// DeleteResult reports what a delete actually removed.
type DeleteResult struct {
	Document        *model.Document
	PhysicalDeleted bool
}

// DocumentService defines the use cases for handling documents.
// It is the only component that mutates the blob store and the registry.
type DocumentService interface {
	// Upload stores the content first and then appends its record.
	// originalName must carry an allowed extension; the blob key is generated.
	Upload(ctx context.Context, r io.Reader, ownerID, originalName string) (*model.Document, error)

	// List returns records in insertion order, optionally filtered by owner.
	List(ctx context.Context, ownerID *string) ([]model.Document, error)

	// Download opens the earliest document matching owner and name.
	Download(ctx context.Context, ownerID, originalName string) (*Download, error)

	// Delete removes the record and tries to remove its blob. A failed blob delete
	// is reported as PhysicalDeleted=false, not as an error.
	Delete(ctx context.Context, ownerID, originalName string) (*DeleteResult, error)

	// Stream opens a document and positions it for the given Range header.
	// Closing the returned body closes the underlying blob.
	Stream(ctx context.Context, ownerID, originalName, rangeHeader string) (*stream.Response, *model.Document, error)
}

// Option configures a documentService.
type Option func(*documentService)

// WithLogger sets the logger used for partial-failure reports.
func WithLogger(l zerolog.Logger) Option {
	return func(s *documentService) { s.log = l }
}

// WithMetrics sets the counters for absorbed failures.
func WithMetrics(m *Metrics) Option {
	return func(s *documentService) { s.metrics = m }
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

// WithMaxUploadBytes lowers the declared-size limit checked before storing.
func WithMaxUploadBytes(n int64) Option {
	return func(s *documentService) {
		if n > 0 && n < model.MaxUploadBytes {
			s.maxBytes = n
		}
	}
}

type documentService struct {
	blobs    storage.BlobStore
	registry repository.DocumentRegistry
	log      zerolog.Logger
	metrics  *Metrics
	now      func() time.Time
	maxBytes int64
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(blobs storage.BlobStore, registry repository.DocumentRegistry, opts ...Option) DocumentService {
	s := &documentService{
		blobs:    blobs,
		registry: registry,
		log:      zerolog.Nop(),
		now:      time.Now,
		maxBytes: model.MaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "document_service").Logger()
	return s
}

// sizer is implemented by readers that know their length up front
// (bytes.Reader, strings.Reader, multipart section readers).
type sizer interface {
	Size() int64
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, ownerID, originalName string) (*model.Document, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Upload", trace.WithAttributes(
		attribute.String("document.owner_id", ownerID),
		attribute.String("document.original_name", originalName),
	))
	defer span.End()

	doc, err := s.upload(ctx, r, ownerID, originalName)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("document.id", doc.ID), attribute.Int64("document.size_bytes", doc.SizeBytes))
	return doc, nil
}

func (s *documentService) upload(ctx context.Context, r io.Reader, ownerID, originalName string) (*model.Document, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: content is required", model.ErrInvalidInput)
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", model.ErrInvalidInput)
	}
	if originalName == "" {
		return nil, fmt.Errorf("%w: file name is required", model.ErrInvalidInput)
	}
	ext := model.ExtensionOf(originalName)
	if !model.IsAllowedExtension(ext) {
		return nil, fmt.Errorf("%w: extension of %q is not allowed", model.ErrInvalidInput, originalName)
	}
	if sz, ok := r.(sizer); ok && sz.Size() > s.maxBytes {
		return nil, fmt.Errorf("%w: %q is %d bytes, limit is %d", model.ErrInvalidInput, originalName, sz.Size(), s.maxBytes)
	}

	ref, size, err := s.blobs.Store(ctx, r, ext)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	doc := &model.Document{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		OriginalName: originalName,
		BlobRef:      ref,
		SizeBytes:    size,
		Extension:    ext,
		ContentType:  model.ContentTypeFor(ext),
		CreatedAt:    s.now().UTC(),
	}
	stored, err := s.registry.Append(ctx, doc)
	if err != nil {
		// No two-phase commit: the blob stays behind without a record.
		s.metrics.orphaned()
		s.log.Error().
			Str("event", "orphaned_blob").
			Str("blob_ref", ref).
			Str("document_id", doc.ID).
			Str("owner_id", ownerID).
			Err(err).
			Msg("record append failed after blob was stored")
		return nil, fmt.Errorf("append record: %w", err)
	}
	return stored, nil
}

func (s *documentService) List(ctx context.Context, ownerID *string) ([]model.Document, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.List")
	defer span.End()
	if ownerID != nil {
		span.SetAttributes(attribute.String("document.owner_id", *ownerID))
	}

	items, err := s.registry.Query(ctx, ownerID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("document.count", len(items)))
	return items, nil
}

func (s *documentService) Download(ctx context.Context, ownerID, originalName string) (*Download, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Download", trace.WithAttributes(
		attribute.String("document.owner_id", ownerID),
		attribute.String("document.original_name", originalName),
	))
	defer span.End()

	dl, err := s.open(ctx, ownerID, originalName)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return dl, nil
}

func (s *documentService) open(ctx context.Context, ownerID, originalName string) (*Download, error) {
	doc, err := s.find(ctx, ownerID, originalName)
	if err != nil {
		return nil, err
	}
	blob, size, err := s.blobs.Open(ctx, doc.BlobRef)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.log.Warn().
				Str("event", "blob_missing").
				Str("blob_ref", doc.BlobRef).
				Str("document_id", doc.ID).
				Msg("record exists but blob is gone")
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return &Download{
		Document:    doc,
		Blob:        blob,
		ContentType: doc.ContentType,
		Size:        size,
	}, nil
}

func (s *documentService) Delete(ctx context.Context, ownerID, originalName string) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Delete", trace.WithAttributes(
		attribute.String("document.owner_id", ownerID),
		attribute.String("document.original_name", originalName),
	))
	defer span.End()

	doc, err := s.find(ctx, ownerID, originalName)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	physical, err := s.blobs.Delete(ctx, doc.BlobRef)
	if err != nil {
		physical = false
		s.metrics.deleteFailed()
		s.log.Error().
			Str("event", "blob_delete_failed").
			Str("blob_ref", doc.BlobRef).
			Str("document_id", doc.ID).
			Err(err).
			Msg("blob delete failed, removing record anyway")
	}

	if err := s.registry.Remove(ctx, doc.ID); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("remove record: %w", err)
	}
	span.SetAttributes(attribute.String("document.id", doc.ID), attribute.Bool("document.physical_deleted", physical))
	return &DeleteResult{Document: doc, PhysicalDeleted: physical}, nil
}

func (s *documentService) Stream(ctx context.Context, ownerID, originalName, rangeHeader string) (*stream.Response, *model.Document, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Stream", trace.WithAttributes(
		attribute.String("document.owner_id", ownerID),
		attribute.String("document.original_name", originalName),
		attribute.String("http.range", rangeHeader),
	))
	defer span.End()

	dl, err := s.open(ctx, ownerID, originalName)
	if err != nil {
		recordError(span, err)
		return nil, nil, err
	}
	resp, err := stream.Serve(dl.Blob, dl.Size, rangeHeader)
	if err != nil {
		_ = dl.Blob.Close()
		recordError(span, err)
		// The document is still returned so the caller can report its size.
		return nil, dl.Document, err
	}
	resp.Body = &blobBody{Reader: resp.Body, blob: dl.Blob}
	span.SetAttributes(attribute.Bool("http.partial", resp.Partial), attribute.Int64("http.response_length", resp.Length))
	return resp, dl.Document, nil
}

func (s *documentService) find(ctx context.Context, ownerID, originalName string) (*model.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", model.ErrInvalidInput)
	}
	if originalName == "" {
		return nil, fmt.Errorf("%w: file name is required", model.ErrInvalidInput)
	}
	return s.registry.FindOne(ctx, ownerID, originalName)
}

// blobBody reads a section of a blob and closes the blob with it.
type blobBody struct {
	io.Reader
	blob storage.Blob
}

func (b *blobBody) Close() error {
	return b.blob.Close()
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
