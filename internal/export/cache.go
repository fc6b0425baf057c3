package export

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"medcal/internal/config"
	"medcal/internal/ics"
	appLog "medcal/internal/log"
)

// Entry records the last published export. Zone names the location(s) the
// doses were stepped in; the hash alone does not see it.
type Entry struct {
	Hash      ics.Hash  `json:"hash"`
	Zone      string    `json:"zone"`
	Location  string    `json:"location"`
	FileName  string    `json:"file_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheStore holds at most one Entry.
type CacheStore interface {
	Get() (Entry, bool)
	Set(Entry) error
	Clear() error
}

// Cache is an in-memory CacheStore.
type Cache struct {
	mu    sync.RWMutex
	entry Entry
	ok    bool
}

func (c *Cache) Get() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry, c.ok
}

func (c *Cache) Set(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = e
	c.ok = true
	return nil
}

func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = Entry{}
	c.ok = false
	return nil
}

// FileCache persists the entry as JSON so separate runs share it.
type FileCache struct {
	Path string

	mu sync.Mutex
}

// NewFileCache returns a FileCache stored at path.
func NewFileCache(path string) *FileCache {
	return &FileCache{Path: path}
}

// Get returns the stored entry. A missing or unreadable file is a miss.
func (c *FileCache) Get() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("export cache read failed", err, "path", c.Path)
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		appLog.Error("export cache corrupt, ignoring", err, "path", c.Path)
		return Entry{}, false
	}
	return e, e.Location != ""
}

func (c *FileCache) Set(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(&e, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(c.Path, data, 0o600)
}

func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
