package storage

import (
	"context"
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"medcal/internal/config"
	appLog "medcal/internal/log"
)

// DirStore keeps objects as files under Root/<bucket>/<path>. It is meant to
// sit behind any static file server that exposes Root at BaseURL.
type DirStore struct {
	Root    string
	BaseURL string
}

func (s *DirStore) Upload(ctx context.Context, bucket, objectPath string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return err
	}

	dst := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := config.WriteFileAtomic(dst, body, 0o644); err != nil {
		appLog.Error("dir store write failed", err, "path", dst)
		return err
	}
	appLog.Info("dir store wrote object", "path", dst, "bytes", len(body), "content_type", contentType)
	return nil
}

func (s *DirStore) PublicURL(bucket, objectPath string) (string, error) {
	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return "", err
	}
	if s.BaseURL == "" {
		return "", errors.New("storage: dir store has no base URL")
	}
	base, err := url.Parse(strings.TrimRight(s.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	return base.JoinPath(strings.Split(key, "/")...).String(), nil
}

// objectKey joins bucket and path into a clean slash-separated key and
// rejects keys that would leave the bucket.
func objectKey(bucket, objectPath string) (string, error) {
	if bucket == "" || objectPath == "" || strings.Contains(bucket, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean("/" + objectPath)
	if clean == "/" || strings.Contains(objectPath, "..") {
		return "", ErrInvalidKey
	}
	return bucket + clean, nil
}
