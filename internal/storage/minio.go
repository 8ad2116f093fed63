package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docstore/internal/config"
	"docstore/internal/model"
)

const minioKeyPrefix = "documents"

// minioStore implements BlobStore using an S3-compatible backend (MinIO, AWS S3, etc.).
// It is safe for concurrent use by multiple goroutines.
type minioStore struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
}

var _ BlobStore = (*minioStore)(nil)

// NewMinIO creates a new S3-compatible blob store backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig, maxBytes int64) (BlobStore, error) {
	if err := validateMinIOConfig(cfg); err != nil {
		return nil, err
	}

	transport, err := minio.DefaultTransport(cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("create minio transport: %w", err)
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: otelhttp.NewTransport(transport),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ms := &minioStore{client: cli, bucket: cfg.Bucket, maxBytes: effectiveLimit(maxBytes)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure bucket exists.
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return ms, nil
}

func validateMinIOConfig(cfg config.MinIOConfig) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("minio bucket is required")
	}
	return nil
}

// Store uploads using streaming I/O only (no local disk). The size is unknown up front,
// so an object that turns out to be too large is removed again before failing.
func (m *minioStore) Store(ctx context.Context, r io.Reader, ext string) (string, int64, error) {
	ext, err := checkExtension(ext)
	if err != nil {
		return "", 0, err
	}
	if r == nil {
		return "", 0, fmt.Errorf("%w: reader is nil", model.ErrInvalidInput)
	}

	ref := NewRef(ext)
	key := objectKey(ref)
	info, err := m.client.PutObject(ctx, m.bucket, key, io.LimitReader(r, m.maxBytes+1), -1, minio.PutObjectOptions{
		ContentType: model.ContentTypeFor(ext),
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: put object: %v", model.ErrIOFailure, err)
	}
	if info.Size > m.maxBytes {
		_ = m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
		return "", 0, tooLarge(m.maxBytes)
	}
	return ref, info.Size, nil
}

// Open returns the object as a seekable reader. minio.Object implements ReaderAt and Seeker.
func (m *minioStore) Open(ctx context.Context, ref string) (Blob, int64, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, 0, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, m.mapErr(err, ref)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, m.mapErr(err, ref)
	}
	return obj, st.Size, nil
}

// Delete removes the object. RemoveObject succeeds for missing keys, so existence is
// checked first to report whether anything was physically removed.
func (m *minioStore) Delete(ctx context.Context, ref string) (bool, error) {
	if err := ValidateRef(ref); err != nil {
		return false, err
	}
	key := objectKey(ref)
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat object: %v", model.ErrIOFailure, err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("%w: remove object: %v", model.ErrIOFailure, err)
	}
	return true, nil
}

func (m *minioStore) mapErr(err error, ref string) error {
	if isMissing(err) {
		return fmt.Errorf("%w: blob %s", model.ErrNotFound, ref)
	}
	return fmt.Errorf("%w: get object: %v", model.ErrIOFailure, err)
}

func isMissing(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func objectKey(ref string) string {
	return path.Join(minioKeyPrefix, ref)
}
