package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName = "song-funnel"
	stateFileName = "state.json"
)

// Cache persists the whole local state as a single JSON blob at a well-known
// path. It serves two roles: it is the legacy blob the one-time migration
// importer pushes to the remote store (and deletes on success), and afterward
// the crash-recovery copy the client rewrites after each committed mutation.
type Cache struct {
	path string
}

// DefaultCache returns a Cache at the default location:
// ~/.config/song-funnel/state.json
func DefaultCache() (*Cache, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting user config dir: %w", err)
	}

	path := filepath.Join(configDir, configDirName, stateFileName)
	return &Cache{path: path}, nil
}

// NewCache creates a Cache with a custom path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the file path where state is stored.
func (c *Cache) Path() string {
	return c.path
}

// Load reads the cached state from disk.
// Returns (nil, nil) if the state file does not exist.
func (c *Cache) Load() (*State, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}

	return &state, nil
}

// Save writes the state to disk, creating the parent directory if needed.
func (c *Cache) Save(state State) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	return nil
}

// Delete removes the cached state file.
// Returns nil if the file does not exist.
func (c *Cache) Delete() error {
	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
