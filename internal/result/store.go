package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/remcomokveld/dagger/internal/errors"
)

// Store persists build results as JSON files for offline verification.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file used for name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save writes r under name and returns the file path.
func (s *Store) Save(name string, r *BuildResult) (string, error) {
	if r == nil {
		return "", fmt.Errorf("build result is nil")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal build result: %w", err)
	}

	path := s.Path(name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write build result: %w", err)
	}
	return path, nil
}

// Load reads the result stored under name.
func (s *Store) Load(name string) (*BuildResult, error) {
	return LoadFile(s.Path(name))
}

// List returns the stored result names, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadFile reads a build result written by Save.
func LoadFile(path string) (*BuildResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read build result %s", path), err)
	}

	var r BuildResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "json", err)
	}
	return &r, nil
}
