package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcomokveld/dagger/internal/errors"
)

// setupTestLedger opens a fresh ledger in a temp directory.
func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleRun(id, marker string, started time.Time) Run {
	return Run{
		ID:              id,
		Scenario:        "hilt-android-relocation",
		PipelineVersion: "agp-7.0/hilt-2.38",
		Marker:          marker,
		ExpectedCount:   21,
		StartedAt:       started,
		FinishedAt:      started.Add(90 * time.Second),
	}
}

func TestOpenMigratesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	var version int
	require.NoError(t, l.conn.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestRecordAndGet(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	run := sampleRun("run-1", "abc-123", started)
	run.ErrorCode = "VERIFY-002"
	run.FromCacheCount = 19
	run.Missing = []string{":transformDebugClassesWithAsm", ":compileDebugJavaWithJavac"}
	run.Unexpected = []string{":lintVitalDebug"}
	run.EvidenceRef = "localhost:5000/relocheck/evidence:run-1"
	require.NoError(t, l.Record(ctx, run))

	got, err := l.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", got.Marker)
	assert.False(t, got.Passed)
	assert.Equal(t, "VERIFY-002", got.ErrorCode)
	assert.Equal(t, 19, got.FromCacheCount)
	assert.Equal(t, []string{":compileDebugJavaWithJavac", ":transformDebugClassesWithAsm"}, got.Missing)
	assert.Equal(t, []string{":lintVitalDebug"}, got.Unexpected)
	assert.Equal(t, run.EvidenceRef, got.EvidenceRef)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
}

func TestGetMissing(t *testing.T) {
	l := setupTestLedger(t)
	_, err := l.Get(context.Background(), "nope")
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedger))
}

func TestRecordDuplicateID(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()
	run := sampleRun("dup", "m1", time.Now())

	require.NoError(t, l.Record(ctx, run))
	err := l.Record(ctx, run)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedger))
}

func TestMarkerSeen(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()

	seen, err := l.MarkerSeen(ctx, "abc-123")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Record(ctx, sampleRun("r", "abc-123", time.Now())))

	seen, err = l.MarkerSeen(ctx, "abc-123")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestListNewestFirst(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		run := sampleRun(id, id, base.Add(time.Duration(i)*time.Hour))
		run.Passed = i%2 == 0
		require.NoError(t, l.Record(ctx, run))
	}

	runs, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "first", runs[2].ID)
	assert.True(t, runs[0].Passed)
	assert.False(t, runs[1].Passed)

	limited, err := l.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "relocheck", "ledger.db"), DefaultPath())
}
