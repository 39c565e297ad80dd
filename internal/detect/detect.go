// Package detect inspects the machine for the toolchain a relocation run
// needs: Gradle, a JDK and the Android SDK.
package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Context represents the detected toolchain.
type Context struct {
	Gradle     ToolInfo
	Java       ToolInfo
	AndroidSDK SDKInfo
	Git        GitContext
	CI         CIInfo
}

// ToolInfo holds detection results for one executable.
type ToolInfo struct {
	Available bool
	Path      string
	Version   string
	// Source says where the tool was found, e.g. "PATH" or "JAVA_HOME".
	Source string
}

// SDKInfo holds Android SDK detection results.
type SDKInfo struct {
	Available  bool
	Root       string
	Source     string
	Platforms  []string
	BuildTools []string
}

// GitContext holds Git repository information
type GitContext struct {
	Initialized bool
	Root        string
	Branch      string
}

// CIInfo holds CI/CD environment information
type CIInfo struct {
	Detected bool
	Name     string // "github", "gitlab", "jenkins", "circleci", etc.
}

// Options name the configured tool locations. Empty fields fall back to the
// environment.
type Options struct {
	GradleCommand string
	JavaHome      string
	AndroidSDK    string
	// CompileSDK, when set, is checked against the installed platforms.
	CompileSDK int
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Detector runs the checks. The zero value uses the real system.
type Detector struct {
	LookPath func(file string) (string, error)
	Run      Runner
	Getenv   func(key string) string
}

// DetectAll runs all detection checks against the real system.
func DetectAll(ctx context.Context, opts Options) *Context {
	return (&Detector{}).Detect(ctx, opts)
}

// Detect runs all detection checks.
func (d *Detector) Detect(ctx context.Context, opts Options) *Context {
	d.defaults()
	return &Context{
		Gradle:     d.gradle(ctx, opts.GradleCommand),
		Java:       d.java(ctx, opts.JavaHome),
		AndroidSDK: d.androidSDK(opts.AndroidSDK),
		Git:        d.git(ctx),
		CI:         d.ci(),
	}
}

func (d *Detector) defaults() {
	if d.LookPath == nil {
		d.LookPath = exec.LookPath
	}
	if d.Run == nil {
		d.Run = runCommand
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

var (
	gradleVersionPattern = regexp.MustCompile(`(?m)^Gradle (\S+)`)
	javaVersionPattern   = regexp.MustCompile(`version "([^"]+)"`)
)

// gradle resolves the configured command and reads its version.
func (d *Detector) gradle(ctx context.Context, command string) ToolInfo {
	info := ToolInfo{Source: "PATH"}
	if command == "" {
		command = "gradle"
	} else if command != "gradle" {
		info.Source = "config"
	}

	path, err := d.LookPath(command)
	if err != nil {
		return info
	}
	info.Available = true
	info.Path = path

	if out, err := d.Run(ctx, path, "--version"); err == nil {
		if m := gradleVersionPattern.FindStringSubmatch(out); m != nil {
			info.Version = m[1]
		}
	}
	return info
}

func (d *Detector) java(ctx context.Context, javaHome string) ToolInfo {
	info := ToolInfo{}
	var path string

	switch {
	case javaHome != "":
		info.Source = "config"
	case d.Getenv("JAVA_HOME") != "":
		javaHome = d.Getenv("JAVA_HOME")
		info.Source = "JAVA_HOME"
	}

	if javaHome != "" {
		candidate := filepath.Join(javaHome, "bin", "java")
		if _, err := os.Stat(candidate); err != nil {
			return info
		}
		path = candidate
	} else {
		found, err := d.LookPath("java")
		if err != nil {
			return info
		}
		path = found
		info.Source = "PATH"
	}

	info.Available = true
	info.Path = path
	if out, err := d.Run(ctx, path, "-version"); err == nil {
		if m := javaVersionPattern.FindStringSubmatch(out); m != nil {
			info.Version = m[1]
		}
	}
	return info
}

func (d *Detector) androidSDK(root string) SDKInfo {
	info := SDKInfo{}
	switch {
	case root != "":
		info.Source = "config"
	case d.Getenv("ANDROID_HOME") != "":
		root = d.Getenv("ANDROID_HOME")
		info.Source = "ANDROID_HOME"
	case d.Getenv("ANDROID_SDK_ROOT") != "":
		root = d.Getenv("ANDROID_SDK_ROOT")
		info.Source = "ANDROID_SDK_ROOT"
	default:
		return info
	}

	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return info
	}
	info.Available = true
	info.Root = root
	info.Platforms = listDirs(filepath.Join(root, "platforms"))
	info.BuildTools = listDirs(filepath.Join(root, "build-tools"))
	return info
}

func (d *Detector) git(ctx context.Context) GitContext {
	git := GitContext{}
	out, err := d.Run(ctx, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return git
	}
	git.Initialized = true
	git.Root = strings.TrimSpace(out)

	if out, err := d.Run(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		git.Branch = strings.TrimSpace(out)
	}
	return git
}

// ciChecks is ordered so the result does not depend on map iteration.
var ciChecks = []struct {
	env  string
	name string
}{
	{"GITHUB_ACTIONS", "github"},
	{"GITLAB_CI", "gitlab"},
	{"JENKINS_HOME", "jenkins"},
	{"CIRCLECI", "circleci"},
	{"TRAVIS", "travis"},
	{"BUILDKITE", "buildkite"},
}

func (d *Detector) ci() CIInfo {
	for _, c := range ciChecks {
		if d.Getenv(c.env) != "" {
			return CIInfo{Detected: true, Name: c.name}
		}
	}
	return CIInfo{}
}

// Problems lists what would stop a real build, given the scenario's
// compile SDK. An empty list means the toolchain looks usable.
func (c *Context) Problems(opts Options) []string {
	var problems []string
	if !c.Gradle.Available {
		problems = append(problems, "Gradle not found; install it or set gradle.command")
	}
	if !c.Java.Available {
		problems = append(problems, "no JDK found; set JAVA_HOME or java_home")
	}
	if !c.AndroidSDK.Available {
		problems = append(problems, "Android SDK not found; set ANDROID_HOME or android_sdk")
	} else if opts.CompileSDK > 0 {
		want := fmt.Sprintf("android-%d", opts.CompileSDK)
		if !contains(c.AndroidSDK.Platforms, want) {
			problems = append(problems, fmt.Sprintf("Android platform %s is not installed (sdkmanager \"platforms;%s\")", want, want))
		}
	}
	return problems
}

// Summary returns a human-readable summary of the detected context
func (c *Context) Summary() string {
	var sb strings.Builder

	sb.WriteString("Detected toolchain:\n\n")
	writeTool(&sb, "Gradle", c.Gradle)
	writeTool(&sb, "Java", c.Java)

	if c.AndroidSDK.Available {
		fmt.Fprintf(&sb, "  ✓ Android SDK: %s (%s)\n", c.AndroidSDK.Root, c.AndroidSDK.Source)
		if len(c.AndroidSDK.Platforms) > 0 {
			fmt.Fprintf(&sb, "      platforms: %s\n", strings.Join(c.AndroidSDK.Platforms, ", "))
		}
		if len(c.AndroidSDK.BuildTools) > 0 {
			fmt.Fprintf(&sb, "      build-tools: %s\n", strings.Join(c.AndroidSDK.BuildTools, ", "))
		}
	} else {
		sb.WriteString("  ✗ Android SDK: not found\n")
	}

	if c.Git.Initialized {
		fmt.Fprintf(&sb, "\n  Git Repository: %s (branch: %s)\n", filepath.Base(c.Git.Root), c.Git.Branch)
	}
	if c.CI.Detected {
		fmt.Fprintf(&sb, "  CI Environment: %s\n", c.CI.Name)
	}

	return sb.String()
}

func writeTool(sb *strings.Builder, name string, t ToolInfo) {
	if !t.Available {
		fmt.Fprintf(sb, "  ✗ %s: not found\n", name)
		return
	}
	version := t.Version
	if version == "" {
		version = "unknown version"
	}
	fmt.Fprintf(sb, "  ✓ %s %s: %s (%s)\n", name, version, t.Path, t.Source)
}

func listDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
