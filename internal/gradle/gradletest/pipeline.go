// Package gradletest provides an in-process stand-in for Gradle. Pipeline
// implements gradle.CommandRunner: it reads the scaffolded project from the
// invocation directory, derives task cache keys from root-relative inputs
// with blake3, consults the cache directory named in the init script and
// prints a plain console log. It can be told to leak the absolute project
// directory into selected cache keys to reproduce relocation bugs.
package gradletest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/remcomokveld/dagger/internal/fingerprint"
	"github.com/remcomokveld/dagger/internal/gradle"
	"github.com/remcomokveld/dagger/internal/log"
)

// Pipeline simulates the build engine. The zero value is not usable; call New.
type Pipeline struct {
	// Tasks is the graph in execution order.
	Tasks []Task
	// LeakAbsolutePath lists tasks whose cache key includes the project directory.
	LeakAbsolutePath []string
	// Fail lists tasks that fail when reached.
	Fail []string

	mu          sync.Mutex
	invocations []gradle.Invocation
	events      []string
	running     int
}

// New returns a pipeline running the AssembleDebug graph.
func New() *Pipeline {
	return &Pipeline{Tasks: AssembleDebug}
}

// Driver returns a GradleDriver that launches this pipeline instead of Gradle.
func (p *Pipeline) Driver(logger *log.Logger) *gradle.GradleDriver {
	return gradle.NewDriver(gradle.Options{
		Command: "gradle",
		Task:    "assembleDebug",
		Runner:  p,
		Logger:  logger,
	})
}

// Invocations returns every invocation received, in order.
func (p *Pipeline) Invocations() []gradle.Invocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gradle.Invocation(nil), p.invocations...)
}

// Events returns "start <dir>" and "end <dir>" records in the order they happened.
func (p *Pipeline) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *Pipeline) begin(inv gradle.Invocation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invocations = append(p.invocations, inv)
	p.events = append(p.events, "start "+inv.Dir)
	p.running++
	if p.running > 1 {
		return fmt.Errorf("builds overlap: %d running", p.running)
	}
	return nil
}

func (p *Pipeline) end(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "end "+dir)
	p.running--
}

// Run implements gradle.CommandRunner.
func (p *Pipeline) Run(ctx context.Context, inv gradle.Invocation) (*gradle.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.begin(inv); err != nil {
		p.end(inv.Dir)
		return nil, err
	}
	defer p.end(inv.Dir)

	var out strings.Builder
	code := p.simulate(ctx, inv, &out)
	if inv.Stream != nil {
		_, _ = inv.Stream.Write([]byte(out.String()))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &gradle.Execution{ExitCode: code, Output: out.String()}, nil
}

func (p *Pipeline) simulate(ctx context.Context, inv gradle.Invocation, out *strings.Builder) int {
	fail := func(format string, args ...any) int {
		fmt.Fprintf(out, "\nFAILURE: Build failed with an exception.\n\n* What went wrong:\n"+format+"\n\nBUILD FAILED in 1s\n", args...)
		return 1
	}

	cacheEnabled := false
	cacheDir := ""
	for i, arg := range inv.Args {
		switch arg {
		case "--build-cache":
			cacheEnabled = true
		case "--no-build-cache":
			cacheEnabled = false
		case "--init-script":
			if i+1 < len(inv.Args) {
				script, err := os.ReadFile(inv.Args[i+1])
				if err != nil {
					return fail("Could not read init script: %v", err)
				}
				cacheDir, _ = gradle.CacheDirFromInitScript(string(script))
			}
		}
	}

	tree, err := fingerprint.Tree(inv.Dir, nil)
	if err != nil {
		return fail("Project directory is not readable: %v", err)
	}
	if len(tree.Entries) == 0 {
		return fail("Directory '%s' does not contain a Gradle build.", inv.Dir)
	}
	groups := groupDigests(tree)

	leak := toSet(p.LeakAbsolutePath)
	failing := toSet(p.Fail)
	outputs := make(map[string]string, len(p.Tasks))
	counts := map[string]int{}

	for _, task := range p.Tasks {
		if ctx.Err() != nil {
			return 1
		}

		parts := []string{task.ID}
		for _, g := range task.Inputs {
			parts = append(parts, g+"="+groups[g])
		}
		for _, dep := range task.DependsOn {
			parts = append(parts, dep+"="+outputs[dep])
		}
		inputKey := fingerprint.Strings(parts...)
		outputs[task.ID] = fingerprint.Strings("output", inputKey)

		if failing[task.ID] {
			fmt.Fprintf(out, "> Task %s FAILED\n", task.ID)
			return fail("Execution failed for task '%s'.", task.ID)
		}

		switch task.Kind {
		case NoActions:
			fmt.Fprintf(out, "> Task %s UP-TO-DATE\n", task.ID)
			counts["up-to-date"]++
		case NoSource:
			fmt.Fprintf(out, "> Task %s NO-SOURCE\n", task.ID)
		case NonCacheable:
			fmt.Fprintf(out, "> Task %s\n", task.ID)
			counts["executed"]++
		case Cacheable:
			cacheKey := inputKey
			if leak[task.ID] {
				cacheKey = fingerprint.Strings(inputKey, inv.Dir)
			}
			entry := ""
			if cacheEnabled && cacheDir != "" {
				entry = filepath.Join(cacheDir, cacheKey[:32])
			}
			if entry != "" && exists(entry) {
				fmt.Fprintf(out, "> Task %s FROM-CACHE\n", task.ID)
				counts["from cache"]++
				continue
			}
			fmt.Fprintf(out, "> Task %s\n", task.ID)
			counts["executed"]++
			if entry != "" {
				if err := os.WriteFile(entry, []byte(outputs[task.ID]), 0644); err != nil {
					return fail("Could not store entry in build cache: %v", err)
				}
			}
		}
	}

	actionable := counts["executed"] + counts["from cache"] + counts["up-to-date"]
	fmt.Fprintf(out, "\nBUILD SUCCESSFUL in 1s\n%d actionable tasks: %d executed, %d from cache, %d up-to-date\n",
		actionable, counts["executed"], counts["from cache"], counts["up-to-date"])
	return 0
}

func groupDigests(tree fingerprint.Fingerprint) map[string]string {
	members := map[string][]string{}
	for _, e := range tree.Entries {
		g := Build
		switch {
		case strings.HasPrefix(e.Path, "src/main/java/"):
			g = Sources
		case e.Path == "src/main/AndroidManifest.xml":
			g = Manifest
		}
		members[g] = append(members[g], e.Path+"="+e.Digest)
	}
	digests := make(map[string]string, len(members))
	for g, m := range members {
		digests[g] = fingerprint.Strings(m...)
	}
	return digests
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Verify Pipeline implements CommandRunner at compile time.
var _ gradle.CommandRunner = (*Pipeline)(nil)
