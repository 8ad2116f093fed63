package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Document represents one uploaded file and the blob that holds its content.
// This is a pure domain model with no database-specific dependencies or tags.
// Records are immutable once appended to the registry; identity is always ID, never name.
type Document struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	OriginalName string    `json:"originalName"`
	BlobRef      string    `json:"blobRef"`
	SizeBytes    int64     `json:"sizeBytes"`
	Extension    string    `json:"extension"`
	ContentType  string    `json:"contentType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MaxUploadBytes is the hard upper bound for a single document (20 MiB).
const MaxUploadBytes int64 = 20 << 20

const defaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
	"csv":  "text/csv",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// AllowedExtensions lists the accepted extensions, lower-case without the dot.
func AllowedExtensions() []string {
	return []string{"xls", "xlsx", "csv", "pdf", "png", "jpg", "jpeg"}
}

// NormalizeExtension lower-cases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExtension reports whether ext (with or without the dot) may be stored.
func IsAllowedExtension(ext string) bool {
	_, ok := contentTypes[NormalizeExtension(ext)]
	return ok
}

// ExtensionOf returns the normalized extension of a file name, or "" if it has none.
func ExtensionOf(name string) string {
	return NormalizeExtension(filepath.Ext(name))
}

// ContentTypeFor maps an extension to its MIME type.
func ContentTypeFor(ext string) string {
	if ct, ok := contentTypes[NormalizeExtension(ext)]; ok {
		return ct
	}
	return defaultContentType
}
