package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hmcalister/connectd/internal/connect"
)

const (
	credentialsFileName = "credentials.json"
	volumeFileName      = "volume.json"
)

// An on-disk cache of the last successful credentials and the last volume.
//
// All methods are safe to call on a nil *Cache, which caches nothing.
type Cache struct {
	logger *slog.Logger
	dir    string
}

type volumeEntry struct {
	Volume uint16 `json:"volume"`
}

// Open the cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return &Cache{
		logger: slog.Default().With("cache dir", dir),
		dir:    dir,
	}, nil
}

// The cached credentials, if any. A missing or corrupt entry is a cache miss.
func (c *Cache) Credentials() (connect.Credentials, bool) {
	var credentials connect.Credentials
	if !c.load(credentialsFileName, &credentials) {
		return connect.Credentials{}, false
	}
	if credentials.Username == "" {
		c.logger.Warn("ignoring cached credentials without a username")
		return connect.Credentials{}, false
	}
	return credentials, true
}

func (c *Cache) SaveCredentials(credentials connect.Credentials) error {
	return c.save(credentialsFileName, credentials)
}

func (c *Cache) Volume() (uint16, bool) {
	var entry volumeEntry
	if !c.load(volumeFileName, &entry) {
		return 0, false
	}
	return entry.Volume, true
}

func (c *Cache) SaveVolume(volume uint16) error {
	return c.save(volumeFileName, volumeEntry{Volume: volume})
}

func (c *Cache) load(name string, v any) bool {
	if c == nil {
		return false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		c.logger.Warn("could not read cache entry", "entry", name, "err", err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn("ignoring corrupt cache entry", "entry", name, "err", err)
		return false
	}
	return true
}

// Entries are written to a temporary file and renamed into place,
// so a crash never leaves a half written entry.
func (c *Cache) save(name string, v any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	path := filepath.Join(c.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		c.logger.Error("could not write cache entry", "entry", name, "err", err)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		c.logger.Error("could not write cache entry", "entry", name, "err", err)
		return errors.Join(err, os.Remove(tmp))
	}
	c.logger.Debug("saved cache entry", "entry", name)
	return nil
}
