// Package gradle drives one build of a scaffolded project and turns the
// console output into a BuildResult.
package gradle

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Invocation is one process launch.
type Invocation struct {
	Dir     string
	Command string
	Args    []string
	// Env entries override the inherited environment.
	Env map[string]string
	// Stream, if set, receives the combined output as it is produced.
	Stream io.Writer
}

// Execution is the outcome of a process that ran to completion.
type Execution struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// CommandRunner launches the pipeline. Run returns an error only when the
// process could not be started or was cancelled; a non-zero exit is
// reported through Execution.ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) (*Execution, error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the invocation and captures combined stdout/stderr.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Execution, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = MergeEnv(os.Environ(), inv.Env)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if inv.Stream != nil {
		out = io.MultiWriter(&buf, inv.Stream)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) {
			return nil, err
		}
		exitCode = exitErr.ExitCode()
	}

	return &Execution{
		ExitCode: exitCode,
		Output:   buf.String(),
		Duration: time.Since(start),
	}, nil
}

// MergeEnv applies overrides to a KEY=VALUE environment. Overridden keys
// are appended in sorted order.
func MergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)
