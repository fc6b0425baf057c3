package medstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"medcal/internal/config"
	"medcal/internal/model"
)

// ErrNotFound is returned by Remove for an unknown medication name.
var ErrNotFound = errors.New("medication not found")

// List is the user's medication list as persisted on disk.
type List struct {
	Items []model.Medication `yaml:"medications"`
}

// Load reads the list stored at path. A missing file is an empty list.
func Load(path string) (*List, error) {
	if path == "" {
		return nil, errors.New("medication list path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &List{}, nil
		}
		return nil, err
	}

	var l List
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse medication list %s: %w", path, err)
	}
	return &l, nil
}

// Save writes the list to path atomically with 0600 perms.
func (l *List) Save(path string) error {
	if path == "" {
		return errors.New("medication list path is empty")
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(path, data, 0o600)
}

// Add validates m against the current entries and appends it.
func (l *List) Add(m model.Medication) error {
	m.Name = strings.TrimSpace(m.Name)
	if err := Validate(m, l.Items); err != nil {
		return err
	}
	l.Items = append(l.Items, m)
	return nil
}

// Remove deletes the entry named name (case-insensitive).
func (l *List) Remove(name string) error {
	name = strings.TrimSpace(name)
	for i, m := range l.Items {
		if strings.EqualFold(m.Name, name) {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Medications returns a copy of the entries in insertion order.
func (l *List) Medications() []model.Medication {
	out := make([]model.Medication, len(l.Items))
	copy(out, l.Items)
	return out
}

// InLocation returns the entries with start times moved to loc, so dose
// stepping follows loc's wall clock.
func (l *List) InLocation(loc *time.Location) []model.Medication {
	out := l.Medications()
	if loc == nil {
		return out
	}
	for i := range out {
		out[i].StartTime = out[i].StartTime.In(loc)
	}
	return out
}
