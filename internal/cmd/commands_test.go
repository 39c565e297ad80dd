package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcomokveld/dagger/internal/detect"
	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/evidence"
	"github.com/remcomokveld/dagger/internal/exitcode"
	"github.com/remcomokveld/dagger/internal/gradle/gradletest"
	"github.com/remcomokveld/dagger/internal/ledger"
	"github.com/remcomokveld/dagger/internal/scenario"
	"github.com/remcomokveld/dagger/internal/scaffold"
	"github.com/remcomokveld/dagger/internal/tui"
)

func TestScaffold(t *testing.T) {
	base := isolate(t)
	dir := filepath.Join(base, "project")

	stdout, _, err := executeCommand(t, "scaffold", dir, "--marker", "abc-123")
	require.NoError(t, err)
	assert.Contains(t, stdout, "marker: abc-123")
	assert.Contains(t, stdout, "task:   assembleDebug")

	data, err := os.ReadFile(filepath.Join(dir, scaffold.SourceRoot, "minimal", "MyApp.java"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "abc-123")
	assert.NotContains(t, string(data), "{{marker}}")
	assert.FileExists(t, filepath.Join(dir, "build.gradle"))
}

func TestScaffoldRejectsNonEmptyDir(t *testing.T) {
	base := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(base, "existing.txt"), []byte("x"), 0644))

	_, _, err := executeCommand(t, "scaffold", base)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeScaffoldNotEmpty))
	assert.Equal(t, exitcode.SetupError, exitcode.DetermineExitCode(err))
}

func TestScaffoldRequiresDir(t *testing.T) {
	isolate(t)
	_, _, err := executeCommand(t, "scaffold")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestVerifySavedResults(t *testing.T) {
	base := isolate(t)
	p := gradletest.New()
	p.LeakAbsolutePath = []string{":mergeDebugAssets"}
	usePipeline(t, p)
	results := filepath.Join(base, "results")

	_, _, err := executeCommand(t, "run", "--save-results", results, "--format", "json")
	require.Error(t, err)

	stdout, _, err := executeCommand(t, "verify",
		filepath.Join(results, "first.json"), filepath.Join(results, "second.json"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVerifyMismatch))
	assert.Contains(t, stdout, "- :mergeDebugAssets")

	stdout, _, err = executeCommand(t, "verify", "--format", "json",
		filepath.Join(results, "first.json"), filepath.Join(results, "first.json"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVerifyMismatch))
	assert.Contains(t, stdout, `"error_code": "VERIFY-002"`)
}

func TestVerifyPasses(t *testing.T) {
	base := isolate(t)
	usePipeline(t, gradletest.New())
	results := filepath.Join(base, "results")

	_, _, err := executeCommand(t, "run", "--save-results", results)
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "verify",
		filepath.Join(results, "first.json"), filepath.Join(results, "second.json"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "PASS")
}

func TestVerifyMissingFile(t *testing.T) {
	base := isolate(t)
	_, _, err := executeCommand(t, "verify", filepath.Join(base, "a.json"), filepath.Join(base, "b.json"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}

func TestScenarioShow(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(t, "scenario", "show")
	require.NoError(t, err)
	parsed, err := scenario.Parse([]byte(stdout), "stdout")
	require.NoError(t, err)
	assert.Equal(t, scenario.Default(), parsed)

	stdout, _, err = executeCommand(t, "scenario", "show", "--format", "json")
	require.NoError(t, err)
	var s scenario.Scenario
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.Len(t, s.ExpectedFromCache, 21)
}

func TestScenarioList(t *testing.T) {
	isolate(t)
	stdout, _, err := executeCommand(t, "scenario", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "* builtin:"+scenario.DefaultName)
}

func TestScenarioInit(t *testing.T) {
	base := isolate(t)
	output := filepath.Join(base, "custom.yaml")

	scenarioWizard = func(s *scenario.Scenario, _ string) (*scenario.Scenario, string, error) {
		out := *s
		out.Name = "custom"
		return &out, output, nil
	}
	asked := 0
	confirmOverwrite = func(string) (bool, error) {
		asked++
		return false, nil
	}
	t.Cleanup(func() {
		scenarioWizard = tui.RunScenarioWizard
		confirmOverwrite = tui.ConfirmOverwrite
	})

	stdout, _, err := executeCommand(t, "scenario", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+output)

	loaded, err := scenario.Load(output)
	require.NoError(t, err)
	assert.Equal(t, "custom", loaded.Name)

	stdout, _, err = executeCommand(t, "scenario", "init")
	require.NoError(t, err)
	assert.Equal(t, 1, asked)
	assert.Contains(t, stdout, "Aborted")

	_, _, err = executeCommand(t, "scenario", "init", "--force")
	require.NoError(t, err)
	assert.Equal(t, 1, asked)
}

func TestHistory(t *testing.T) {
	isolate(t)
	usePipeline(t, gradletest.New())

	stdout, _, err := executeCommand(t, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded.")

	_, _, err = executeCommand(t, "run", "--marker", "first-run")
	require.NoError(t, err)
	_, _, err = executeCommand(t, "run", "--marker", "second-run")
	require.NoError(t, err)

	stdout, _, err = executeCommand(t, "history", "--format", "json")
	require.NoError(t, err)
	var runs []ledger.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "second-run", runs[0].Marker)

	stdout, _, err = executeCommand(t, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "second-run")
	assert.NotContains(t, stdout, "first-run")

	stdout, _, err = executeCommand(t, "history", runs[1].ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "first-run")

	_, _, err = executeCommand(t, "history", "no-such-run")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLedger))
}

func TestDoctor(t *testing.T) {
	base := isolate(t)
	sdk := filepath.Join(base, "sdk")
	require.NoError(t, os.MkdirAll(filepath.Join(sdk, "platforms", "android-30"), 0755))

	detector = &detect.Detector{
		LookPath: func(file string) (string, error) { return "/usr/bin/" + file, nil },
		Run: func(_ context.Context, name string, args ...string) (string, error) {
			if name == "git" {
				return "", os.ErrNotExist
			}
			if strings.HasSuffix(name, "gradle") {
				return "Gradle 7.0.2\n", nil
			}
			return `openjdk version "11.0.12"`, nil
		},
		Getenv: func(key string) string {
			if key == "ANDROID_HOME" {
				return sdk
			}
			return ""
		},
	}
	t.Cleanup(func() { detector = &detect.Detector{} })

	stdout, _, err := executeCommand(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Ready for a real run.")
	assert.Contains(t, stdout, "android-30")

	_, _, err = executeCommand(t, "doctor", "--scenario", writeScenario(t, base, 33))
	require.Error(t, err)
}

func TestDoctorNothingInstalled(t *testing.T) {
	isolate(t)
	detector = &detect.Detector{
		LookPath: func(file string) (string, error) { return "", os.ErrNotExist },
		Run: func(context.Context, string, ...string) (string, error) {
			return "", os.ErrNotExist
		},
		Getenv: func(string) string { return "" },
	}
	t.Cleanup(func() { detector = &detect.Detector{} })

	stdout, _, err := executeCommand(t, "doctor", "--format", "json")
	require.Error(t, err)

	var rep DoctorReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.False(t, rep.Healthy)
	assert.Len(t, rep.Issues, 3)
}

func writeScenario(t *testing.T, dir string, compileSDK int) string {
	t.Helper()
	s := scenario.Default()
	s.Android.CompileSDK = compileSDK
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, s.Save(path))
	return path
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "relocheck "))

	stdout, _, err = executeCommand(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "go_version")
}

func TestEvidenceShow(t *testing.T) {
	base := isolate(t)
	bundle := filepath.Join(base, "run"+evidence.BundleSuffix)
	_, err := evidence.Write(bundle, evidence.Contents{
		RunID:    "run-1",
		Scenario: "hilt-android-relocation",
		Marker:   "abc-123",
		Files: map[string][]byte{
			"logs/second.log": []byte("> Task :transformDebugClassesWithAsm\n"),
		},
	})
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "evidence", "show", bundle)
	require.NoError(t, err)
	assert.Contains(t, stdout, "run-1")
	assert.Contains(t, stdout, "logs/second.log")

	stdout, _, err = executeCommand(t, "evidence", "show", bundle, "--file", "logs/second.log")
	require.NoError(t, err)
	assert.Equal(t, "> Task :transformDebugClassesWithAsm\n", stdout)

	_, _, err = executeCommand(t, "evidence", "show", bundle, "--file", "nope")
	assert.ErrorContains(t, err, `bundle has no file "nope"`)
}

func TestScenarioFlagCompletion(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(t, "__complete", "run", "--scenario", "")
	require.NoError(t, err)
	assert.Contains(t, stdout, "builtin:"+scenario.DefaultName)

	stdout, _, err = executeCommand(t, "__complete", "scenario", "show", "--scenario", "my")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "builtin:")
	assert.Contains(t, stdout, "yaml")
}

func TestCompletionScript(t *testing.T) {
	stdout, _, err := executeCommand(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "relocheck")

	_, _, err = executeCommand(t, "completion", "tcsh")
	require.Error(t, err)
}
