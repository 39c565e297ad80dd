// Package result holds the data model shared by the build driver, the
// verifier and the reports: per-task outcomes, build results and the
// expected set of cache hits.
package result

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Outcome is how the pipeline satisfied one task.
type Outcome string

const (
	OutcomeExecuted  Outcome = "executed"
	OutcomeFromCache Outcome = "fromCache"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeUpToDate  Outcome = "upToDate"
	OutcomeFailed    Outcome = "failed"
)

// ParseOutcome validates an outcome name.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeExecuted, OutcomeFromCache, OutcomeSkipped, OutcomeUpToDate, OutcomeFailed:
		return o, nil
	default:
		return "", fmt.Errorf("unknown task outcome %q", s)
	}
}

// Status is the overall status of one build.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TaskResult pairs a task identifier such as ":compileDebugJavaWithJavac"
// with its outcome.
type TaskResult struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
}

// BuildResult is the immutable record of one build: tasks in the order the
// pipeline reported them, the overall status and the captured console output.
type BuildResult struct {
	tasks  []TaskResult
	status Status
	output string
}

// NewBuildResult copies tasks so later changes by the caller are not observed.
func NewBuildResult(tasks []TaskResult, status Status, output string) *BuildResult {
	return &BuildResult{
		tasks:  append([]TaskResult(nil), tasks...),
		status: status,
		output: output,
	}
}

// Tasks returns a copy of the ordered task outcomes.
func (r *BuildResult) Tasks() []TaskResult {
	return append([]TaskResult(nil), r.tasks...)
}

// Task looks up the outcome of one task.
func (r *BuildResult) Task(id string) (TaskResult, bool) {
	for _, t := range r.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskResult{}, false
}

// Status returns the overall status.
func (r *BuildResult) Status() Status {
	return r.status
}

// Succeeded reports whether the build as a whole succeeded.
func (r *BuildResult) Succeeded() bool {
	return r.status == StatusSucceeded
}

// Output returns the captured console output.
func (r *BuildResult) Output() string {
	return r.output
}

// WithOutcome returns the sorted identifiers of tasks with outcome o.
func (r *BuildResult) WithOutcome(o Outcome) []string {
	var ids []string
	for _, t := range r.tasks {
		if t.Outcome == o {
			ids = append(ids, t.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// FromCache returns the sorted identifiers of tasks restored from the cache.
func (r *BuildResult) FromCache() []string {
	return r.WithOutcome(OutcomeFromCache)
}

// Counts tallies tasks per outcome.
func (r *BuildResult) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, t := range r.tasks {
		counts[t.Outcome]++
	}
	return counts
}

type buildResultJSON struct {
	Status Status       `json:"status"`
	Tasks  []TaskResult `json:"tasks"`
	Output string       `json:"output,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *BuildResult) MarshalJSON() ([]byte, error) {
	tasks := r.tasks
	if tasks == nil {
		tasks = []TaskResult{}
	}
	return json.Marshal(buildResultJSON{Status: r.status, Tasks: tasks, Output: r.output})
}

// UnmarshalJSON implements json.Unmarshaler and validates every outcome.
func (r *BuildResult) UnmarshalJSON(data []byte) error {
	var raw buildResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case StatusSucceeded, StatusFailed:
	default:
		return fmt.Errorf("unknown build status %q", raw.Status)
	}
	for _, t := range raw.Tasks {
		if _, err := ParseOutcome(string(t.Outcome)); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	*r = *NewBuildResult(raw.Tasks, raw.Status, raw.Output)
	return nil
}

// ExpectedOutcomeSet is the fixed set of task identifiers that must be
// restored from the cache on the relocated build.
type ExpectedOutcomeSet struct {
	ids []string
}

// NewExpectedOutcomeSet rejects empty, unprefixed and duplicate identifiers.
func NewExpectedOutcomeSet(ids ...string) (ExpectedOutcomeSet, error) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !strings.HasPrefix(id, ":") || len(id) < 2 {
			return ExpectedOutcomeSet{}, fmt.Errorf("task identifier %q must start with ':'", id)
		}
		if seen[id] {
			return ExpectedOutcomeSet{}, fmt.Errorf("duplicate task identifier %q", id)
		}
		seen[id] = true
	}
	return ExpectedOutcomeSet{ids: append([]string(nil), ids...)}, nil
}

// IDs returns the identifiers in declaration order.
func (s ExpectedOutcomeSet) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Sorted returns the identifiers in lexical order.
func (s ExpectedOutcomeSet) Sorted() []string {
	ids := s.IDs()
	sort.Strings(ids)
	return ids
}

// Len returns the number of identifiers.
func (s ExpectedOutcomeSet) Len() int {
	return len(s.ids)
}

// Contains reports whether id is in the set.
func (s ExpectedOutcomeSet) Contains(id string) bool {
	for _, e := range s.ids {
		if e == id {
			return true
		}
	}
	return false
}
