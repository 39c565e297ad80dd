// Package cachestore inspects the build cache directory shared by the two
// builds of a run and records which entries each build wrote.
package cachestore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one cached artifact.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Store is a handle on a cache directory. It holds no state beyond the path.
type Store struct {
	dir string
}

// Open returns a handle on an existing cache directory.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open cache store: %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Entries lists cached artifacts sorted by name, ignoring lock files and
// the engine's own bookkeeping.
func (s *Store) Entries() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if isMetadata(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Name: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cache store: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Names returns the sorted entry names.
func (s *Store) Names() ([]string, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

func isMetadata(name string) bool {
	base := filepath.Base(name)
	return base == "gc.properties" ||
		strings.HasSuffix(base, ".lock") ||
		strings.HasSuffix(base, ".part") ||
		strings.HasPrefix(base, ".")
}
