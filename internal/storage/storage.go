// Package storage uploads fabric images to S3-compatible object storage and
// hands back the public URL the storefront serves them from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"textile-store/internal/config"
)

// MaxImageSize is the largest image accepted for upload.
const MaxImageSize = 5 << 20

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds the 5 MiB limit")
	ErrEmpty           = errors.New("image is empty")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Storage is an object store reachable over the network.
// Implementations stream the reader and never touch local disk.
type Storage interface {
	// Upload stores r under key and returns the object's public URL.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// New builds the driver selected by cfg.Driver.
func New(cfg config.StorageConfig) (Storage, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "minio":
		return NewMinIO(cfg)
	case "s3":
		return NewS3(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ValidateImage checks an upload against the accepted types and size cap
// and returns the file extension to store it under.
func ValidateImage(contentType string, size int64) (string, error) {
	mediaType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	ext, ok := imageExtensions[strings.TrimSpace(mediaType)]
	if !ok {
		return "", ErrUnsupportedType
	}
	if size <= 0 {
		return "", ErrEmpty
	}
	if size > MaxImageSize {
		return "", ErrTooLarge
	}
	return ext, nil
}

// KeyFromURL recovers the object key from a URL produced by s.PublicURL.
func KeyFromURL(s Storage, url string) (string, bool) {
	prefix := s.PublicURL("")
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
