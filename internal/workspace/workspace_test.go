package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/log"
)

func TestAllocateCreatesDisjointDirectories(t *testing.T) {
	base := t.TempDir()
	env, err := Allocate(Options{
		BaseA:     filepath.Join(base, "left"),
		BaseB:     filepath.Join(base, "right", "deeper"),
		BaseCache: filepath.Join(base, "cache"),
		Logger:    log.Discard(),
	})
	require.NoError(t, err)
	defer env.Close()

	for _, dir := range []string{env.RootA, env.RootB, env.CacheStore} {
		assert.DirExists(t, dir)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
	assert.NotEqual(t, filepath.Dir(env.RootA), filepath.Dir(env.RootB))
	assert.NoError(t, CheckDisjoint(env.RootA, env.RootB, env.CacheStore))
}

func TestAllocateDefaultRootsHaveDifferentPrefixes(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	env, err := Allocate(Options{Logger: log.Discard()})
	require.NoError(t, err)

	assert.NotEqual(t, filepath.Dir(env.RootA), filepath.Dir(env.RootB))
	assert.NotEqual(t, filepath.Base(env.RootA), filepath.Base(env.RootB))
	assert.NoError(t, CheckDisjoint(env.RootA, env.RootB, env.CacheStore))

	parentA := filepath.Dir(env.RootA)
	parentB := filepath.Dir(filepath.Dir(env.RootB))
	require.NoError(t, env.Close())
	for _, dir := range []string{parentA, parentB, env.CacheStore} {
		assert.NoDirExists(t, dir)
	}
}

func TestCloseRemovesAndIsIdempotent(t *testing.T) {
	env, err := Allocate(Options{BaseA: t.TempDir(), BaseB: t.TempDir(), BaseCache: t.TempDir(), Logger: log.Discard()})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(env.RootA, "build.gradle"), []byte("x"), 0644))

	require.NoError(t, env.Close())
	require.NoError(t, env.Close())

	for _, dir := range []string{env.RootA, env.RootB, env.CacheStore} {
		assert.NoDirExists(t, dir)
	}
}

func TestCloseHonoursKeep(t *testing.T) {
	env, err := Allocate(Options{BaseA: t.TempDir(), BaseB: t.TempDir(), BaseCache: t.TempDir(), Keep: true, Logger: log.Discard()})
	require.NoError(t, err)
	assert.True(t, env.Kept())

	require.NoError(t, env.Close())
	assert.DirExists(t, env.RootA)
	assert.DirExists(t, env.CacheStore)

	other, err := Allocate(Options{BaseA: t.TempDir(), BaseB: t.TempDir(), BaseCache: t.TempDir(), Logger: log.Discard()})
	require.NoError(t, err)
	other.SetKeep(true)
	require.NoError(t, other.Close())
	assert.DirExists(t, other.RootB)
}

func TestAllocateFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Allocate(Options{BaseA: t.TempDir(), BaseB: blocker, Logger: log.Discard()})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeEnvAllocate))
}

func TestCheckDisjoint(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "a")
	ab := filepath.Join(base, "a", "b")
	abc := filepath.Join(base, "abc")
	require.NoError(t, os.MkdirAll(ab, 0755))
	require.NoError(t, os.MkdirAll(abc, 0755))

	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(a, link))

	tests := []struct {
		name    string
		paths   []string
		overlap bool
	}{
		{"siblings with shared prefix", []string{a, abc}, false},
		{"same path", []string{a, a}, true},
		{"nested", []string{a, ab}, true},
		{"nested reversed", []string{ab, a}, true},
		{"symlink to same dir", []string{a, link}, true},
		{"unclean path", []string{a, filepath.Join(ab, "..")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDisjoint(tt.paths...)
			if tt.overlap {
				assert.True(t, errors.HasCode(err, errors.ErrCodeEnvOverlap), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
