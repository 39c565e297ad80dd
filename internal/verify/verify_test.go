package verify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/result"
)

const transform = ":transformDebugClassesWithAsm"

func expectedSet(t *testing.T, ids ...string) result.ExpectedOutcomeSet {
	t.Helper()
	set, err := result.NewExpectedOutcomeSet(ids...)
	require.NoError(t, err)
	return set
}

func build(status result.Status, tasks ...result.TaskResult) *result.BuildResult {
	return result.NewBuildResult(tasks, status, "")
}

func task(id string, o result.Outcome) result.TaskResult {
	return result.TaskResult{ID: id, Outcome: o}
}

func TestVerifyPass(t *testing.T) {
	first := build(result.StatusSucceeded,
		task(":compileDebugJavaWithJavac", result.OutcomeExecuted),
		task(transform, result.OutcomeExecuted),
	)
	second := build(result.StatusSucceeded,
		task(":preBuild", result.OutcomeUpToDate),
		task(transform, result.OutcomeFromCache),
		task(":compileDebugJavaWithJavac", result.OutcomeFromCache),
		task(":packageDebug", result.OutcomeExecuted),
	)

	v := Verify(first, second, expectedSet(t, transform, ":compileDebugJavaWithJavac"), transform)

	assert.True(t, v.Passed())
	assert.True(t, v.Cold())
	assert.NoError(t, v.Err())
	assert.Equal(t, []string{":compileDebugJavaWithJavac", transform}, v.FromCache)
	assert.Empty(t, v.Missing)
	assert.Empty(t, v.Unexpected)
}

func TestVerifyNotCold(t *testing.T) {
	tests := []struct {
		name    string
		first   *result.BuildResult
		outcome string
	}{
		{"from cache", build(result.StatusSucceeded, task(transform, result.OutcomeFromCache)), "was fromCache"},
		{"up to date", build(result.StatusSucceeded, task(transform, result.OutcomeUpToDate)), "was upToDate"},
		{"missing", build(result.StatusSucceeded, task(":other", result.OutcomeExecuted)), "was not run"},
		{"nil result", nil, "was not run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := build(result.StatusSucceeded, task(transform, result.OutcomeFromCache))
			v := Verify(tt.first, second, expectedSet(t, transform), transform)

			assert.False(t, v.Passed())
			err := v.Err()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeVerifyNotCold))
			assert.Contains(t, err.Error(), tt.outcome)
		})
	}
}

func TestVerifyMismatch(t *testing.T) {
	first := build(result.StatusSucceeded, task(transform, result.OutcomeExecuted))
	second := build(result.StatusSucceeded,
		task(":mergeDebugAssets", result.OutcomeFromCache),
		task(":lintVitalDebug", result.OutcomeFromCache),
		task(transform, result.OutcomeExecuted),
		task(":compileDebugJavaWithJavac", result.OutcomeExecuted),
	)
	expected := expectedSet(t, transform, ":mergeDebugAssets", ":compileDebugJavaWithJavac")

	v := Verify(first, second, expected, transform)

	assert.False(t, v.Passed())
	assert.Equal(t, []string{":compileDebugJavaWithJavac", transform}, v.Missing)
	assert.Equal(t, []string{":lintVitalDebug"}, v.Unexpected)

	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVerifyMismatch))
	assert.False(t, errors.HasCode(err, errors.ErrCodeVerifyNotCold))
	assert.Contains(t, err.Error(), "missing from cache: :compileDebugJavaWithJavac, :transformDebugClassesWithAsm")
	assert.Contains(t, err.Error(), "unexpectedly from cache: :lintVitalDebug")
}

func TestVerifyOrderInsensitive(t *testing.T) {
	first := build(result.StatusSucceeded, task(transform, result.OutcomeExecuted))
	second := build(result.StatusSucceeded,
		task(":b", result.OutcomeFromCache),
		task(":a", result.OutcomeFromCache),
	)
	v := Verify(first, second, expectedSet(t, ":a", ":b"), transform)
	assert.True(t, v.Passed())
}

func TestVerifySecondBuildFailed(t *testing.T) {
	first := build(result.StatusSucceeded, task(transform, result.OutcomeExecuted))
	second := build(result.StatusFailed, task(transform, result.OutcomeFromCache))

	v := Verify(first, second, expectedSet(t, transform), transform)

	assert.True(t, v.SecondFailed)
	assert.False(t, v.Passed())
	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBuildSecondFailed))
	assert.False(t, errors.HasCode(err, errors.ErrCodeVerifyMismatch))
}

func TestVerifyChainsAllFailures(t *testing.T) {
	first := build(result.StatusSucceeded, task(transform, result.OutcomeFromCache))
	second := build(result.StatusFailed)

	err := Verify(first, second, expectedSet(t, transform), transform).Err()
	require.Error(t, err)

	harnessErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeVerifyNotCold, harnessErr.Code)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBuildSecondFailed))
	assert.True(t, errors.HasCode(err, errors.ErrCodeVerifyMismatch))
}

func TestVerifyNilSecond(t *testing.T) {
	first := build(result.StatusSucceeded, task(transform, result.OutcomeExecuted))
	v := Verify(first, nil, expectedSet(t, transform), transform)

	assert.True(t, v.SecondFailed)
	assert.Equal(t, []string{transform}, v.Missing)
	assert.Empty(t, v.FromCache)
}

func TestDiff(t *testing.T) {
	missing, unexpected := Diff([]string{":c", ":a", ":x"}, []string{":b", ":a", ":c"})
	assert.Equal(t, []string{":b"}, missing)
	assert.Equal(t, []string{":x"}, unexpected)

	missing, unexpected = Diff(nil, nil)
	assert.Nil(t, missing)
	assert.Nil(t, unexpected)
}

func TestVerifyNoCacheHitsKeepsEmptyList(t *testing.T) {
	first := build(result.StatusSucceeded, task(transform, result.OutcomeExecuted))
	second := build(result.StatusSucceeded, task(transform, result.OutcomeExecuted))

	v := Verify(first, second, expectedSet(t, transform), transform)
	require.NotNil(t, v.FromCache)
	assert.Empty(t, v.FromCache)
	assert.Equal(t, []string{transform}, v.Missing)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"from_cache":[]`)
}
