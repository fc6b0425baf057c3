package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"medcal/internal/config"
	"medcal/internal/ics"
	appLog "medcal/internal/log"
	"medcal/internal/model"
	"medcal/internal/storage"
)

// Result describes a published calendar.
type Result struct {
	// URL is the webcal:// subscription URL.
	URL        string
	FileName   string
	Hash       ics.Hash
	EventCount int

	// Cached is true when the list was unchanged and nothing was uploaded.
	Cached bool
}

// Exporter publishes calendars to a BlobStore and remembers the last one.
type Exporter struct {
	Store  storage.BlobStore
	Cache  CacheStore
	Bucket string
	Prefix string

	// Now supplies DTSTAMP and the file name. If nil, time.Now is used.
	Now func() time.Time

	mu sync.Mutex
}

// NewExporter wires an Exporter from the store section of the config.
func NewExporter(store storage.BlobStore, cache CacheStore, cfg config.StoreConfig) *Exporter {
	return &Exporter{
		Store:  store,
		Cache:  cache,
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
		Now:    time.Now,
	}
}

func (e *Exporter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ExportToCalendar publishes meds and returns the subscription URL. When
// the list hashes to the cached value the cached URL is returned without
// generating or uploading anything.
func (e *Exporter) ExportToCalendar(ctx context.Context, meds []model.Medication) (Result, error) {
	if len(meds) == 0 {
		return Result{}, model.ErrEmptyInput
	}
	if e.Store == nil {
		return Result{}, errors.New("export: no blob store configured")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	hash := ics.ContentHash(meds)
	zone := zoneKey(meds)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(); ok && cached.Hash == hash && cached.Zone == zone && cached.Location != "" {
			appLog.Info("export cache hit", "hash", hash.String(), "file", cached.FileName)
			return Result{URL: cached.Location, FileName: cached.FileName, Hash: hash, Cached: true}, nil
		}
	}

	art, err := ics.Build(meds, e.now())
	if err != nil {
		return Result{}, err
	}

	objectPath := path.Join(e.Prefix, art.FileName)
	if err := e.Store.Upload(ctx, e.Bucket, objectPath, art.Bytes, art.ContentType); err != nil {
		return Result{}, fmt.Errorf("upload calendar %s: %w", objectPath, err)
	}

	public, err := e.Store.PublicURL(e.Bucket, objectPath)
	if err != nil {
		return Result{}, fmt.Errorf("public URL for %s: %w", objectPath, err)
	}
	webcal, err := WebcalURL(public)
	if err != nil {
		return Result{}, err
	}

	if e.Cache != nil {
		entry := Entry{Hash: hash, Zone: zone, Location: webcal, FileName: art.FileName, UpdatedAt: e.now().UTC()}
		if err := e.Cache.Set(entry); err != nil {
			// The upload succeeded; the next run simply uploads again.
			appLog.Error("export cache write failed", err)
		}
	}

	appLog.Info("calendar exported",
		"file", art.FileName,
		"events", art.EventCount,
		"hash", hash.String(),
		"url", webcal,
	)

	return Result{URL: webcal, FileName: art.FileName, Hash: hash, EventCount: art.EventCount}, nil
}

// zoneKey lists the distinct start-time locations of meds in order.
func zoneKey(meds []model.Medication) string {
	seen := make(map[string]bool, len(meds))
	names := make([]string, 0, 1)
	for _, m := range meds {
		name := m.StartTime.Location().String()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

// ExportLocal builds the calendar for meds without publishing it.
func (e *Exporter) ExportLocal(meds []model.Medication) (ics.Artifact, error) {
	return ics.Build(meds, e.now())
}

// Invalidate forgets the last published export. Call it whenever the
// medication list changes.
func (e *Exporter) Invalidate() error {
	if e.Cache == nil {
		return nil
	}
	if err := e.Cache.Clear(); err != nil {
		return err
	}
	appLog.Debug("export cache cleared")
	return nil
}

// WriteArtifact stores art under dir and returns the written path.
func WriteArtifact(dir string, art ics.Artifact) (string, error) {
	if art.FileName == "" {
		return "", errors.New("export: artifact has no file name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, art.FileName)
	if err := config.WriteFileAtomic(dst, art.Bytes, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// WebcalURL rewrites an http(s) URL to the webcal:// scheme calendar apps
// subscribe to.
func WebcalURL(u string) (string, error) {
	if strings.TrimSpace(u) == "" {
		return "", errors.New("export: empty public URL")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("export: parse public URL: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "webcal":
		parsed.Scheme = "webcal"
		return parsed.String(), nil
	default:
		return "", fmt.Errorf("export: unsupported URL scheme %q", parsed.Scheme)
	}
}
