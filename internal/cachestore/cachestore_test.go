package cachestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcomokveld/dagger/internal/log"
)

func put(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	_, err = Open(filepath.Join(dir, "absent"))
	assert.Error(t, err)

	put(t, dir, "file", "x")
	_, err = Open(filepath.Join(dir, "file"))
	assert.ErrorContains(t, err, "not a directory")
}

func TestEntriesSkipsMetadata(t *testing.T) {
	dir := t.TempDir()
	put(t, dir, "b1946ac92492d2347c6235b4d2611184", "abc")
	put(t, dir, "0a1b2c", "x")
	put(t, dir, "gc.properties", "")
	put(t, dir, "build-cache-1.lock", "")
	put(t, dir, "0a1b2c.part", "partial")

	s, err := Open(dir)
	require.NoError(t, err)

	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "0a1b2c", Size: 1},
		{Name: "b1946ac92492d2347c6235b4d2611184", Size: 3},
	}, entries)
}

func TestObserverRecordsNewEntries(t *testing.T) {
	dir := t.TempDir()
	put(t, dir, "existing", "old")

	s, err := Open(dir)
	require.NoError(t, err)

	o, err := Observe(s, log.Discard())
	require.NoError(t, err)

	put(t, dir, "k1", "one")
	put(t, dir, "k2", "two")
	put(t, dir, "build-cache-1.lock", "")

	written, err := o.Stop()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, written)

	again, err := o.Stop()
	require.NoError(t, err)
	assert.Equal(t, written, again)
}

func TestObserverNothingWritten(t *testing.T) {
	dir := t.TempDir()
	put(t, dir, "existing", "old")
	s, err := Open(dir)
	require.NoError(t, err)

	o, err := Observe(s, nil)
	require.NoError(t, err)

	written, err := o.Stop()
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestObserverRecordsRewrittenEntries(t *testing.T) {
	dir := t.TempDir()
	put(t, dir, "existing", "old")
	put(t, dir, "untouched", "old")
	s, err := Open(dir)
	require.NoError(t, err)

	o, err := Observe(s, log.Discard())
	require.NoError(t, err)
	if o.watcher == nil {
		t.Skip("filesystem notifications unavailable")
	}

	put(t, dir, "existing", "new")
	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.touched["existing"]
	}, 5*time.Second, 10*time.Millisecond)

	written, err := o.Stop()
	require.NoError(t, err)
	assert.Equal(t, []string{"existing"}, written)
}

func TestObserverStopErrorIsSticky(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.Mkdir(dir, 0755))
	s, err := Open(dir)
	require.NoError(t, err)

	o, err := Observe(s, log.Discard())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = o.Stop()
	require.Error(t, err)

	written, again := o.Stop()
	assert.Nil(t, written)
	assert.Equal(t, err, again)
}
