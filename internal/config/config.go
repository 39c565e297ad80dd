// Package config loads relocheck settings. Sources, lowest precedence first:
// built-in defaults, the user config ($XDG_CONFIG_HOME/relocheck/config.yaml),
// the nearest .relocheck.yaml in the working directory or a parent, an
// explicit --config file, and RELOCHECK_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/ledger"
)

// ProjectFile is the per-project config file name.
const ProjectFile = ".relocheck.yaml"

// EnvPrefix prefixes environment overrides, e.g. RELOCHECK_GRADLE_COMMAND.
const EnvPrefix = "RELOCHECK"

// Config holds all configuration for relocheck.
type Config struct {
	Gradle     GradleConfig    `mapstructure:"gradle" yaml:"gradle"`
	JavaHome   string          `mapstructure:"java_home" yaml:"java_home"`
	AndroidSDK string          `mapstructure:"android_sdk" yaml:"android_sdk"`
	Workspace  WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Scenario   string          `mapstructure:"scenario" yaml:"scenario"`
	Ledger     LedgerConfig    `mapstructure:"ledger" yaml:"ledger"`
	Evidence   EvidenceConfig  `mapstructure:"evidence" yaml:"evidence"`
	Log        LogConfig       `mapstructure:"log" yaml:"log"`
}

// GradleConfig holds build invocation settings.
type GradleConfig struct {
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	// UserHome is shared by both builds when set; otherwise Gradle's own default applies.
	UserHome string `mapstructure:"user_home" yaml:"user_home"`
}

// WorkspaceConfig holds where project roots and the cache are created.
type WorkspaceConfig struct {
	BaseA     string `mapstructure:"base_a" yaml:"base_a"`
	BaseB     string `mapstructure:"base_b" yaml:"base_b"`
	BaseCache string `mapstructure:"base_cache" yaml:"base_cache"`
	Keep      bool   `mapstructure:"keep" yaml:"keep"`
}

// LedgerConfig holds run history settings.
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// EvidenceConfig holds where failure evidence goes.
type EvidenceConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	Reference string `mapstructure:"reference" yaml:"reference"`
	Insecure  bool   `mapstructure:"insecure" yaml:"insecure"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoadOptions control where Load looks.
type LoadOptions struct {
	// File is an explicit config file; it must exist when set.
	File string
	// WorkDir is where the search for ProjectFile starts. Defaults to the
	// current directory.
	WorkDir string
}

// Load loads configuration with the standard precedence.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(UserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, loadError(filepath.Join(UserConfigDir(), "config.yaml"), err)
		}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	if project := FindProjectConfig(workDir); project != "" {
		if err := mergeFile(v, project); err != nil {
			return nil, err
		}
	}

	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return nil, loadError(opts.File, err)
		}
		if err := mergeFile(v, opts.File); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, loadError("configuration", err)
	}
	cfg.expand()
	return cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// LoadDotEnv loads dir/.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return loadError(path, err)
	}
	return nil
}

// UserConfigDir returns the XDG config directory for relocheck.
func UserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "relocheck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "relocheck")
	}
	return filepath.Join(home, ".config", "relocheck")
}

// FindProjectConfig searches for ProjectFile in dir and its parents.
func FindProjectConfig(dir string) string {
	for dir != "" {
		candidate := filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func mergeFile(v *viper.Viper, path string) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	fv.SetConfigType("yaml")
	if err := fv.ReadInConfig(); err != nil {
		return loadError(path, err)
	}
	if err := v.MergeConfigMap(fv.AllSettings()); err != nil {
		return loadError(path, err)
	}
	return nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("gradle.command", "gradle")
	v.SetDefault("gradle.args", []string{})
	v.SetDefault("gradle.user_home", "")

	v.SetDefault("java_home", "")
	v.SetDefault("android_sdk", "")

	v.SetDefault("workspace.base_a", "")
	v.SetDefault("workspace.base_b", "")
	v.SetDefault("workspace.base_cache", "")
	v.SetDefault("workspace.keep", false)

	v.SetDefault("scenario", "")

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", ledger.DefaultPath())

	v.SetDefault("evidence.dir", filepath.Join(os.TempDir(), "relocheck-evidence"))
	v.SetDefault("evidence.reference", "")
	v.SetDefault("evidence.insecure", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// expand resolves ${VAR} and a leading ~ in path settings.
func (c *Config) expand() {
	for _, p := range []*string{
		&c.Gradle.UserHome, &c.JavaHome, &c.AndroidSDK,
		&c.Workspace.BaseA, &c.Workspace.BaseB, &c.Workspace.BaseCache,
		&c.Scenario, &c.Ledger.Path, &c.Evidence.Dir,
	} {
		*p = expandPath(*p)
	}
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}

func loadError(path string, err error) *errors.HarnessError {
	return errors.Wrap(errors.ErrCodeConfigLoad, "failed to load configuration from "+path, err).
		WithSuggestion("Check the YAML syntax and key names in " + path)
}
