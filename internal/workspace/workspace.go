// Package workspace allocates the two project roots and the shared cache
// store used by one relocation run.
package workspace

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/log"
)

// Options control where the directories are created.
type Options struct {
	// BaseA and BaseB are parent directories for the two roots. Empty means
	// a fresh temporary parent per root, nested differently so the absolute
	// prefixes differ in more than their last element.
	BaseA string
	BaseB string
	// BaseCache is the parent directory of the cache store.
	BaseCache string
	// Keep leaves the directories in place on Close.
	Keep   bool
	Logger *log.Logger
}

// Environment is the set of directories owned by one run.
type Environment struct {
	RootA      string
	RootB      string
	CacheStore string

	// owned are the directories Close removes; each contains one of the
	// roots or the cache store.
	owned []string

	logger   *log.Logger
	mu       sync.Mutex
	keep     bool
	closed   bool
	closeErr error
}

// Layouts below the temporary parents when no base is configured. They differ
// in depth as well as name.
var (
	defaultNestA = []string{"checkout"}
	defaultNestB = []string{"w", "relocated"}
)

// Allocate creates rootA, rootB and the cache store as three separate
// temporary directories. The caller must defer Close.
func Allocate(opts Options) (*Environment, error) {
	logger := log.OrDefault(opts.Logger)

	var created []string
	cleanup := func() {
		for _, dir := range created {
			_ = os.RemoveAll(dir)
		}
	}

	// mk creates a temporary directory under base and returns the path
	// nested below it.
	mk := func(base, pattern string, nested ...string) (string, error) {
		if base != "" {
			if err := os.MkdirAll(base, 0755); err != nil {
				return "", err
			}
		}
		dir, err := os.MkdirTemp(base, pattern)
		if err != nil {
			return "", err
		}
		created = append(created, dir)
		target := filepath.Join(append([]string{dir}, nested...)...)
		if err := os.MkdirAll(target, 0755); err != nil {
			return "", err
		}
		return resolve(target)
	}

	var nestA, nestB []string
	if opts.BaseA == "" {
		nestA = defaultNestA
	}
	if opts.BaseB == "" {
		nestB = defaultNestB
	}

	rootA, err := mk(opts.BaseA, "relocheck-a-*", nestA...)
	if err != nil {
		cleanup()
		return nil, errors.NewEnvAllocateError(err)
	}
	rootB, err := mk(opts.BaseB, "relocheck-b-*", nestB...)
	if err != nil {
		cleanup()
		return nil, errors.NewEnvAllocateError(err)
	}
	cache, err := mk(opts.BaseCache, "relocheck-cache-*")
	if err != nil {
		cleanup()
		return nil, errors.NewEnvAllocateError(err)
	}

	if err := CheckDisjoint(rootA, rootB, cache); err != nil {
		cleanup()
		return nil, err
	}

	logger.Debug("workspace allocated", "root_a", rootA, "root_b", rootB, "cache", cache)
	return &Environment{
		RootA:      rootA,
		RootB:      rootB,
		CacheStore: cache,
		owned:      created,
		logger:     logger,
		keep:       opts.Keep,
	}, nil
}

// SetKeep changes whether Close removes the directories.
func (e *Environment) SetKeep(keep bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keep = keep
}

// Kept reports whether Close leaves the directories in place.
func (e *Environment) Kept() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keep
}

// Close removes all three directories unless Keep is set. It is idempotent
// and returns the same error on every call.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.closeErr
	}
	e.closed = true

	if e.keep {
		e.logger.Info("keeping workspace", "root_a", e.RootA, "root_b", e.RootB, "cache", e.CacheStore)
		return nil
	}

	var errs []error
	for _, dir := range e.owned {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", dir, err))
		}
	}
	e.closeErr = stderrors.Join(errs...)
	return e.closeErr
}

// CheckDisjoint verifies that paths are pairwise distinct and that none
// contains another.
func CheckDisjoint(paths ...string) error {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		r, err := resolve(p)
		if err != nil {
			r = filepath.Clean(p)
		}
		resolved[i] = r
	}

	for i := 0; i < len(resolved); i++ {
		for j := i + 1; j < len(resolved); j++ {
			if overlaps(resolved[i], resolved[j]) {
				return errors.NewEnvOverlapError(paths[i], paths[j])
			}
		}
	}
	return nil
}

func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, strings.TrimSuffix(b, sep)+sep) ||
		strings.HasPrefix(b, strings.TrimSuffix(a, sep)+sep)
}

func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
