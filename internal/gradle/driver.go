package gradle

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/log"
	"github.com/remcomokveld/dagger/internal/result"
	"github.com/remcomokveld/dagger/internal/scaffold"
)

// DefaultCommand is used when no Gradle command is configured.
const DefaultCommand = "gradle"

// Driver builds one project root against a cache store. Implementations
// hold no ordering knowledge; callers sequence builds.
type Driver interface {
	Build(ctx context.Context, project *scaffold.Project, root, cacheDir string) (*result.BuildResult, error)
}

// Options configure a GradleDriver.
type Options struct {
	// Command is the Gradle executable. Defaults to DefaultCommand.
	Command string
	// Task is the task to run, e.g. "assembleDebug".
	Task string
	// Args are passed after the fixed arguments and before the project flags.
	Args []string

	JavaHome   string
	AndroidSDK string
	UserHome   string

	Runner CommandRunner
	Logger *log.Logger
	// Output, if set, receives the console output while the build runs.
	Output io.Writer
}

// GradleDriver runs Gradle as an external process.
type GradleDriver struct {
	opts   Options
	runner CommandRunner
	logger *log.Logger
}

// NewDriver creates a GradleDriver.
func NewDriver(opts Options) *GradleDriver {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Task == "" {
		opts.Task = "assembleDebug"
	}
	runner := opts.Runner
	if runner == nil {
		runner = NewRunner()
	}
	return &GradleDriver{
		opts:   opts,
		runner: runner,
		logger: log.OrDefault(opts.Logger),
	}
}

// Arguments returns the command line for one build, given the init script path.
func (d *GradleDriver) Arguments(project *scaffold.Project, initScript string) []string {
	args := []string{
		d.opts.Task,
		"--console=plain",
		"--build-cache",
		"--init-script", initScript,
	}
	args = append(args, d.opts.Args...)
	if project != nil {
		args = append(args, project.Flags()...)
	}
	return args
}

// Environment returns the variables set on top of the inherited environment.
func (d *GradleDriver) Environment() map[string]string {
	env := make(map[string]string)
	if d.opts.JavaHome != "" {
		env["JAVA_HOME"] = d.opts.JavaHome
	}
	if d.opts.AndroidSDK != "" {
		env["ANDROID_HOME"] = d.opts.AndroidSDK
		env["ANDROID_SDK_ROOT"] = d.opts.AndroidSDK
	}
	if d.opts.UserHome != "" {
		env["GRADLE_USER_HOME"] = d.opts.UserHome
	}
	return env
}

// Build runs the configured task in root with the build cache at cacheDir.
// A build that ran and failed returns its partial result together with a
// BUILD-001 error. A build that could not start returns a nil result.
func (d *GradleDriver) Build(ctx context.Context, project *scaffold.Project, root, cacheDir string) (*result.BuildResult, error) {
	initScript, err := writeInitScript(cacheDir)
	if err != nil {
		return nil, errors.NewBuildStartError(d.opts.Command, err)
	}
	defer os.Remove(initScript)

	inv := Invocation{
		Dir:     root,
		Command: d.opts.Command,
		Args:    d.Arguments(project, initScript),
		Env:     d.Environment(),
		Stream:  d.opts.Output,
	}

	logger := d.logger.With("root", root)
	logger.InfoContext(ctx, "starting build", "command", inv.Command, "args", strings.Join(inv.Args, " "))

	run, err := d.runner.Run(ctx, inv)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("build in %s: %w", root, ctx.Err())
		}
		return nil, errors.NewBuildStartError(inv.Command, err)
	}

	console := ParseConsole(run.Output)
	for _, line := range console.Unknown {
		logger.Warn("unrecognized task outcome, treating as executed", "line", line)
	}

	status := result.StatusSucceeded
	if run.ExitCode != 0 || console.BuildFailed {
		status = result.StatusFailed
	}
	res := result.NewBuildResult(console.Tasks, status, run.Output)

	logger.InfoContext(ctx, "build finished",
		"status", string(status),
		"exit_code", run.ExitCode,
		"tasks", len(console.Tasks),
		"from_cache", len(res.FromCache()),
		"duration", run.Duration.String())

	if status == result.StatusFailed {
		return res, errors.NewBuildFailedError(root, run.ExitCode, console.FailedTasks())
	}
	return res, nil
}

// Verify GradleDriver implements Driver at compile time.
var _ Driver = (*GradleDriver)(nil)
