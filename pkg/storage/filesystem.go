// Package storage keeps rendered export files on local disk so past
// downloads can be re-served or audited.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage is a flat on-disk archive rooted at a single directory.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates the archive directory if needed.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = "./exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Save writes a file into the archive. Path separators in the name are
// stripped so callers cannot write outside the archive directory.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	name = sanitize(name)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return name, nil
}

// CleanupOlderThan removes archived files whose modification time falls
// outside the retention window and reports how many were deleted.
func (s *LocalStorage) CleanupOlderThan(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read archive directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove archived file: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Path returns the on-disk location of an archived file.
func (s *LocalStorage) Path(name string) string {
	return filepath.Join(s.dir, sanitize(name))
}

func sanitize(name string) string {
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == string(filepath.Separator) {
		name = "export"
	}
	return name
}
