package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcomokveld/dagger/internal/errors"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("XDG_DATA_HOME", filepath.Join(xdg, "data"))
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "gradle", cfg.Gradle.Command)
	assert.Empty(t, cfg.Gradle.Args)
	assert.True(t, cfg.Ledger.Enabled)
	assert.NotEmpty(t, cfg.Ledger.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Workspace.Keep)
}

func TestLoadWithoutFiles(t *testing.T) {
	xdg := isolate(t)

	cfg, err := Load(LoadOptions{WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "gradle", cfg.Gradle.Command)
	assert.Equal(t, filepath.Join(xdg, "data", "relocheck", "ledger.db"), cfg.Ledger.Path)
}

func TestLoadPrecedence(t *testing.T) {
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "relocheck", "config.yaml"), `
gradle:
  command: /opt/gradle/bin/gradle
log:
  level: debug
java_home: /usr/lib/jvm/user
`)

	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectFile), `
gradle:
  args: ["--offline", "--stacktrace"]
java_home: /usr/lib/jvm/project
workspace:
  keep: true
`)
	work := filepath.Join(project, "app", "src")
	require.NoError(t, os.MkdirAll(work, 0755))

	explicit := filepath.Join(t.TempDir(), "ci.yaml")
	writeFile(t, explicit, `
log:
  level: warn
`)

	t.Setenv("RELOCHECK_JAVA_HOME", "/usr/lib/jvm/env")

	cfg, err := Load(LoadOptions{File: explicit, WorkDir: work})
	require.NoError(t, err)

	assert.Equal(t, "/opt/gradle/bin/gradle", cfg.Gradle.Command, "user config")
	assert.Equal(t, []string{"--offline", "--stacktrace"}, cfg.Gradle.Args, "project config")
	assert.True(t, cfg.Workspace.Keep, "project config")
	assert.Equal(t, "warn", cfg.Log.Level, "explicit file beats user config")
	assert.Equal(t, "/usr/lib/jvm/env", cfg.JavaHome, "environment beats files")
}

func TestLoadExpandsPaths(t *testing.T) {
	isolate(t)
	t.Setenv("SDK_ROOT", "/sdk")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, file, `
android_sdk: ${SDK_ROOT}/android
gradle:
  user_home: ~/.gradle-relocheck
`)

	cfg, err := Load(LoadOptions{File: file, WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "/sdk/android", cfg.AndroidSDK)
	assert.Equal(t, filepath.Join(home, ".gradle-relocheck"), cfg.Gradle.UserHome)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "absent.yaml"), WorkDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigLoad))
}

func TestLoadMalformedProjectFile(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectFile), "gradle: [unterminated\n")

	_, err := Load(LoadOptions{WorkDir: project})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigLoad))
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), "scenario: builtin:hilt-android-relocation\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	assert.Equal(t, filepath.Join(root, ProjectFile), FindProjectConfig(nested))
	assert.Empty(t, FindProjectConfig(t.TempDir()))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "RELOCHECK_TEST_DOTENV=from-file\nRELOCHECK_TEST_PRESET=from-file\n")
	t.Setenv("RELOCHECK_TEST_PRESET", "from-env")
	t.Cleanup(func() { os.Unsetenv("RELOCHECK_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-file", os.Getenv("RELOCHECK_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("RELOCHECK_TEST_PRESET"), "existing variables win")

	assert.NoError(t, LoadDotEnv(t.TempDir()), "missing .env is fine")
}
