package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "medcal/internal/log"
)

// UploadError is a non-2xx answer from the object storage API.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("storage: upload failed with status %d", e.Status)
	}
	return fmt.Sprintf("storage: upload failed with status %d: %s", e.Status, e.Body)
}

// HTTPStore talks to a hosted object storage REST API
// (POST /storage/v1/object/{bucket}/{path}).
type HTTPStore struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPStore creates an HTTPStore. A nil client gets a 15s timeout client.
func NewHTTPStore(endpoint, apiKey string, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPStore{
		Endpoint: strings.TrimRight(endpoint, "/"),
		APIKey:   apiKey,
		Client:   client,
	}
}

func (s *HTTPStore) Upload(ctx context.Context, bucket, objectPath string, body []byte, contentType string) error {
	target, err := s.objectURL("object", bucket, objectPath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
		req.Header.Set("apikey", s.APIKey)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		appLog.Error("object upload failed", err, "bucket", bucket, "path", objectPath)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		uerr := &UploadError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		appLog.Error("object upload rejected", uerr, "bucket", bucket, "path", objectPath)
		return uerr
	}

	appLog.Info("object uploaded",
		"bucket", bucket,
		"path", objectPath,
		"bytes", len(body),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

func (s *HTTPStore) PublicURL(bucket, objectPath string) (string, error) {
	return s.objectURL("object/public", bucket, objectPath)
}

func (s *HTTPStore) objectURL(kind, bucket, objectPath string) (string, error) {
	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return "", err
	}
	base, err := url.Parse(s.Endpoint)
	if err != nil {
		return "", err
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("storage: endpoint %q is not an absolute URL", s.Endpoint)
	}
	elems := append([]string{"storage", "v1"}, strings.Split(kind, "/")...)
	elems = append(elems, strings.Split(key, "/")...)
	return base.JoinPath(elems...).String(), nil
}
