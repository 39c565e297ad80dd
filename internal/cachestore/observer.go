package cachestore

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/remcomokveld/dagger/internal/log"
)

// Observer records the entries written to a store between Observe and Stop.
// New names are found by comparing a snapshot taken at start with the store
// on Stop. The fsnotify watcher adds entries that existed before Observe and
// were rewritten during the window, which the snapshot diff cannot see.
type Observer struct {
	store    *Store
	logger   *log.Logger
	baseline map[string]bool

	mu      sync.Mutex
	touched map[string]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	written []string
	stopErr error
}

// Observe starts observing s.
func Observe(s *Store, logger *log.Logger) (*Observer, error) {
	logger = log.OrDefault(logger)

	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	baseline := make(map[string]bool, len(names))
	for _, n := range names {
		baseline[n] = true
	}

	o := &Observer{
		store:    s,
		logger:   logger,
		baseline: baseline,
		touched:  make(map[string]bool),
		done:     make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher; Stop falls back to the snapshot diff.
		logger.Debug("cache watcher unavailable", "error", err)
		return o, nil
	}
	if err := watcher.Add(s.Dir()); err != nil {
		watcher.Close()
		logger.Debug("cache watcher unavailable", "error", err)
		return o, nil
	}
	o.watcher = watcher

	o.wg.Add(1)
	go o.watch()
	return o, nil
}

func (o *Observer) watch() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			rel, err := filepath.Rel(o.store.Dir(), event.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if isMetadata(rel) {
				continue
			}
			o.mu.Lock()
			o.touched[rel] = true
			o.mu.Unlock()
		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			o.logger.Debug("cache watcher error", "error", err)
		}
	}
}

// Stop ends the observation and returns the sorted names of entries written
// since Observe that still exist. Calling Stop again returns the same names
// or the same error.
func (o *Observer) Stop() ([]string, error) {
	o.once.Do(func() {
		close(o.done)
		if o.watcher != nil {
			o.watcher.Close()
		}
		o.wg.Wait()

		names, err := o.store.Names()
		if err != nil {
			o.stopErr = err
			return
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		written := make([]string, 0)
		for _, n := range names {
			if !o.baseline[n] || o.touched[n] {
				written = append(written, n)
			}
		}
		sort.Strings(written)
		o.written = written
	})
	if o.stopErr != nil {
		return nil, o.stopErr
	}
	return append([]string(nil), o.written...), nil
}
