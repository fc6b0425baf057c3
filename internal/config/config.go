package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"medcal/internal/model"
)

// Store kinds.
const (
	StoreKindDir  = "dir"
	StoreKindHTTP = "http"
)

// StoreConfig selects and configures the blob store exports are published to.
type StoreConfig struct {
	// Kind is "dir" (local directory served by some web server) or "http"
	// (hosted object storage REST API).
	Kind string `yaml:"kind" json:"kind"`

	// Bucket and Prefix form the object key: <bucket>/<prefix>/<file>.
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`

	// Dir and BaseURL are used by the "dir" store.
	Dir     string `yaml:"dir,omitempty" json:"dir,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Endpoint and APIKey are used by the "http" store.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// LogConfig mirrors log.Options.
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	JSON       bool   `yaml:"json" json:"json"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the address "medcal serve" binds to, e.g. "127.0.0.1:8080".
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone start times are entered in. Empty means the
	// host's local time.
	Timezone string `yaml:"timezone" json:"timezone"`

	// MedicationsPath is the YAML file holding the medication list.
	MedicationsPath string `yaml:"medications_path" json:"medications_path"`

	// CachePath holds the last published export (hash + location).
	CachePath string `yaml:"cache_path" json:"cache_path"`

	// OutputDir is where local exports are written.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// RefreshCron is the cron schedule used by "medcal watch".
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// MaxMedications caps the medication list.
	MaxMedications int `yaml:"max_medications" json:"max_medications"`

	Log   LogConfig   `yaml:"log" json:"log"`
	Store StoreConfig `yaml:"store" json:"store"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		Timezone:        "",
		MedicationsPath: "./var/medications.yaml",
		CachePath:       "./var/export-cache.json",
		OutputDir:       "./calendars",
		RefreshCron:     "*/15 * * * *",
		MaxMedications:  model.DefaultMedicationLimit,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Store: StoreConfig{
			Kind:    StoreKindDir,
			Bucket:  "medicine-calendar",
			Prefix:  "calendars",
			Dir:     "./var/blobs",
			BaseURL: "http://127.0.0.1:8080",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.MedicationsPath == "" {
		c.MedicationsPath = d.MedicationsPath
	}
	if c.CachePath == "" {
		c.CachePath = d.CachePath
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.MaxMedications <= 0 || c.MaxMedications > model.DefaultMedicationLimit {
		c.MaxMedications = model.DefaultMedicationLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = 0
	}

	switch c.Store.Kind {
	case StoreKindDir, StoreKindHTTP:
	default:
		// Unknown or empty kind falls back to the local directory store.
		c.Store.Kind = StoreKindDir
	}
	if c.Store.Bucket == "" {
		c.Store.Bucket = d.Store.Bucket
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = d.Store.Prefix
	}
	if c.Store.Kind == StoreKindDir {
		if c.Store.Dir == "" {
			c.Store.Dir = d.Store.Dir
		}
		if c.Store.BaseURL == "" {
			c.Store.BaseURL = d.Store.BaseURL
		}
	}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, errors.New("timezone: "+err.Error()))
		}
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, errors.New("refresh: "+err.Error()))
	}
	if c.Store.Kind == StoreKindHTTP && c.Store.Endpoint == "" {
		errs = append(errs, errors.New("store.endpoint is required for the http store"))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to a temp file in path's directory, then
// renames it over path. The parent directory is created if needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".medcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
