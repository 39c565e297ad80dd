package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/evidence"
	"github.com/remcomokveld/dagger/internal/exitcode"
	"github.com/remcomokveld/dagger/internal/gradle/gradletest"
	"github.com/remcomokveld/dagger/internal/report"
)

func TestRunPasses(t *testing.T) {
	isolate(t)
	usePipeline(t, gradletest.New())

	stdout, _, err := executeCommand(t, "run", "--marker", "abc-123")
	require.NoError(t, err)
	assert.Contains(t, stdout, "PASS")
	assert.Contains(t, stdout, "abc-123")
	assert.Contains(t, stdout, "21 of 21 expected")
}

func TestRunJSONAndSavedResults(t *testing.T) {
	base := isolate(t)
	usePipeline(t, gradletest.New())
	results := filepath.Join(base, "results")

	stdout, _, err := executeCommand(t, "run", "--format", "json", "--save-results", results)
	require.NoError(t, err)

	var s report.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.True(t, s.Passed)
	assert.Equal(t, "executed", s.TransformOutcome)
	assert.Len(t, s.FromCache, 21)
	assert.FileExists(t, filepath.Join(results, "first.json"))
	assert.FileExists(t, filepath.Join(results, "second.json"))
}

func TestRunLeakedPathFails(t *testing.T) {
	base := isolate(t)
	p := gradletest.New()
	p.LeakAbsolutePath = []string{":transformDebugClassesWithAsm"}
	usePipeline(t, p)

	stdout, _, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVerifyMismatch))
	assert.Equal(t, exitcode.VerificationFailure, exitcode.DetermineExitCode(err))
	assert.Contains(t, stdout, "FAIL")
	assert.Contains(t, stdout, "- :transformDebugClassesWithAsm")

	bundles, err := filepath.Glob(filepath.Join(base, "evidence", "*"+evidence.BundleSuffix))
	require.NoError(t, err)
	assert.Len(t, bundles, 1)
}

func TestRunFirstBuildFailure(t *testing.T) {
	isolate(t)
	p := gradletest.New()
	p.Fail = []string{":compileDebugJavaWithJavac"}
	usePipeline(t, p)

	_, _, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Equal(t, exitcode.BuildFailure, exitcode.DetermineExitCode(err))
}

func TestRunRefusesReusedMarker(t *testing.T) {
	isolate(t)
	usePipeline(t, gradletest.New())

	_, _, err := executeCommand(t, "run", "--marker", "abc-123")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "run", "--marker", "abc-123")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMarkerReused))

	_, _, err = executeCommand(t, "run", "--marker", "abc-123", "--allow-marker-reuse")
	assert.NoError(t, err, "every run gets a fresh cache store")
}

func TestRunWithoutLedger(t *testing.T) {
	base := isolate(t)
	t.Setenv("RELOCHECK_LEDGER_ENABLED", "false")
	usePipeline(t, gradletest.New())

	for i := 0; i < 2; i++ {
		_, _, err := executeCommand(t, "run", "--marker", "abc-123")
		require.NoError(t, err)
	}
	assert.NoFileExists(t, filepath.Join(base, "data", "relocheck", "ledger.db"))
}

func TestRunInvalidFlags(t *testing.T) {
	isolate(t)

	_, _, err := executeCommand(t, "run", "--marker", "has space")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	_, _, err = executeCommand(t, "run", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	_, _, err = executeCommand(t, "run", "--scenario", "builtin:nope")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeScenarioInvalid))
}

func TestRunUsesProjectConfig(t *testing.T) {
	base := isolate(t)
	usePipeline(t, gradletest.New())
	require.NoError(t, os.WriteFile(filepath.Join(base, ".relocheck.yaml"),
		[]byte("workspace:\n  keep: true\n"), 0644))

	stdout, _, err := executeCommand(t, "run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "workspace kept")

	kept, err := filepath.Glob(filepath.Join(base, "elsewhere", "relocheck-b-*"))
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	assert.True(t, strings.HasPrefix(kept[0], filepath.Join(base, "elsewhere")))
}
