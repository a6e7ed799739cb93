package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/josh-vincent/roast-me-characters-sub001/config"
)

// Storage is the object store holding original and generated images.
type Storage interface {
	// Upload writes the object under key and returns its public URL.
	// size may be -1 when unknown.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	ListBuckets(ctx context.Context) ([]string, error)
}

// New builds the backend selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg config.Storage) (Storage, error) {
	switch cfg.Driver {
	case "gcs":
		uploader, err := NewGCSUploader(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return uploader, nil
	case "minio":
		store, err := NewMinioStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}

// ObjectKey builds <prefix>/<scope>/<uuid><ext>.
func ObjectKey(prefix, scope, ext string) string {
	segments := make([]string, 0, 3)
	for _, segment := range []string{prefix, scope} {
		trimmed := strings.Trim(segment, "/")
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	segments = append(segments, uuid.NewString()+ext)
	return path.Join(segments...)
}

// IsAllowedImageType reports whether contentType is an image we accept.
func IsAllowedImageType(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/png", "image/x-png", "image/jpeg", "image/pjpeg", "image/webp", "image/gif":
		return true
	default:
		return false
	}
}

// Extension picks a file extension for the object key.
func Extension(filename, contentType string) string {
	switch normalizeContentType(contentType) {
	case "image/png", "image/x-png":
		return ".png"
	case "image/jpeg", "image/pjpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext == "" {
		return ".bin"
	}
	return ext
}

// ContentTypeFromName guesses an image type from a file name or URL path.
func ContentTypeFromName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}

func normalizeContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentType
}

func publicObjectURL(base, bucket, objectName string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(base, "/"), bucket, strings.TrimPrefix(objectName, "/"))
}
