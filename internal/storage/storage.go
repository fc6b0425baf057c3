package storage

import (
	"context"
	"errors"
	"fmt"

	"medcal/internal/config"
)

// BlobStore publishes exported calendars under a bucket/path key and hands
// out the URL subscribers fetch them from.
type BlobStore interface {
	Upload(ctx context.Context, bucket, path string, body []byte, contentType string) error
	PublicURL(bucket, path string) (string, error)
}

// ErrInvalidKey is returned for empty or escaping bucket/path keys.
var ErrInvalidKey = errors.New("storage: invalid object key")

// New builds the store selected by cfg.Kind.
func New(cfg config.StoreConfig) (BlobStore, error) {
	switch cfg.Kind {
	case config.StoreKindDir, "":
		if cfg.Dir == "" {
			return nil, errors.New("storage: dir store needs a directory")
		}
		return &DirStore{Root: cfg.Dir, BaseURL: cfg.BaseURL}, nil
	case config.StoreKindHTTP:
		if cfg.Endpoint == "" {
			return nil, errors.New("storage: http store needs an endpoint")
		}
		return NewHTTPStore(cfg.Endpoint, cfg.APIKey, nil), nil
	default:
		return nil, fmt.Errorf("storage: unknown store kind %q", cfg.Kind)
	}
}
