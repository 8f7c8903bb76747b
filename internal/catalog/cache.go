package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrCacheMiss is returned when no usable cache record exists for a label.
var ErrCacheMiss = errors.New("cache miss")

// DefaultCacheDir is <tempdir>/orbtrack.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), "orbtrack")
}

// Cache stores one JSON file of element sets per group label. The file's
// modification time is the record's age.
type Cache struct {
	dir      string
	lifetime time.Duration
	now      func() time.Time
}

// NewCache creates a Cache rooted at dir whose records are fresh for lifetime.
func NewCache(dir string, lifetime time.Duration) *Cache {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	return &Cache{
		dir:      dir,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Lifetime returns the freshness window.
func (c *Cache) Lifetime() time.Duration { return c.lifetime }

// SetClock replaces the wall clock used for freshness checks.
func (c *Cache) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Path returns the file that holds label's record.
func (c *Cache) Path(label string) string {
	name := strings.ToLower(strings.TrimSpace(label))
	name = strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(name)
	return filepath.Join(c.dir, name+".json")
}

// Read returns the stored record and its modification time regardless of age.
// Missing, unreadable and undecodable files are all reported as ErrCacheMiss.
func (c *Cache) Read(label string) ([]ElementSet, time.Time, error) {
	path := c.Path(label)

	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %s: %v", ErrCacheMiss, label, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: reading %s: %v", ErrCacheMiss, path, err)
	}

	var sets []ElementSet
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: decoding %s: %v", ErrCacheMiss, path, err)
	}
	return sets, info.ModTime(), nil
}

// Age returns how long ago label's record was written.
func (c *Cache) Age(label string) (time.Duration, error) {
	info, err := os.Stat(c.Path(label))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCacheMiss, label, err)
	}
	return c.now().Sub(info.ModTime()), nil
}

// Fresh returns label's record if it exists and is no older than the
// lifetime. Any failure is a miss.
func (c *Cache) Fresh(label string) ([]ElementSet, bool) {
	sets, mod, err := c.Read(label)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(mod) > c.lifetime {
		return nil, false
	}
	return sets, true
}

// Write replaces label's record. The file is written to a temporary name and
// renamed so readers never see a partial record.
func (c *Cache) Write(label string, sets []ElementSet) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.Marshal(sets)
	if err != nil {
		return fmt.Errorf("encoding cache record: %w", err)
	}

	path := c.Path(label)
	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

// Check creates the cache directory if needed and reports whether it is a
// writable directory.
func (c *Cache) Check() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	f, err := os.CreateTemp(c.dir, ".check.*.tmp")
	if err != nil {
		return fmt.Errorf("cache dir not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}
