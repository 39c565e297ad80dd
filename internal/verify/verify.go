// Package verify decides whether a relocated build reused the cache exactly
// as expected. It performs no I/O.
package verify

import (
	"sort"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/result"
)

// Verdict is the outcome of comparing two builds with the expectation.
type Verdict struct {
	TransformTask string `json:"transform_task"`
	// TransformOutcome is the transform task's outcome on the first build,
	// empty if the task did not run.
	TransformOutcome result.Outcome `json:"transform_outcome,omitempty"`

	Expected   []string `json:"expected"`
	FromCache  []string `json:"from_cache"`
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`

	SecondFailed bool `json:"second_failed,omitempty"`
}

// Verify checks that the transform task executed on the first build and that
// the second build restored exactly the expected tasks from the cache.
func Verify(first, second *result.BuildResult, expected result.ExpectedOutcomeSet, transformTask string) Verdict {
	v := Verdict{
		TransformTask: transformTask,
		Expected:      expected.Sorted(),
		FromCache:     []string{},
	}

	if first != nil {
		if t, ok := first.Task(transformTask); ok {
			v.TransformOutcome = t.Outcome
		}
	}

	if second != nil {
		if hits := second.FromCache(); len(hits) > 0 {
			v.FromCache = hits
		}
		v.SecondFailed = !second.Succeeded()
	} else {
		v.SecondFailed = true
	}

	v.Missing, v.Unexpected = Diff(v.FromCache, v.Expected)
	return v
}

// Cold reports whether the transform task executed on the first build.
func (v Verdict) Cold() bool {
	return v.TransformOutcome == result.OutcomeExecuted
}

// Passed reports whether every check succeeded.
func (v Verdict) Passed() bool {
	return v.Cold() && !v.SecondFailed && len(v.Missing) == 0 && len(v.Unexpected) == 0
}

// Err returns nil for a passing verdict. Otherwise it returns a coded error
// for the first failed check with the remaining failures chained as causes.
func (v Verdict) Err() error {
	var failures []*errors.HarnessError

	if !v.Cold() {
		outcome := string(v.TransformOutcome)
		if outcome == "" {
			outcome = "not run"
		}
		failures = append(failures, errors.NewNotColdError(v.TransformTask, outcome))
	}
	if v.SecondFailed {
		failures = append(failures, errors.NewSecondBuildFailedError())
	}
	if len(v.Missing) > 0 || len(v.Unexpected) > 0 {
		failures = append(failures, errors.NewVerificationMismatchError(v.Missing, v.Unexpected))
	}

	if len(failures) == 0 {
		return nil
	}
	for i := len(failures) - 2; i >= 0; i-- {
		failures[i].Cause = failures[i+1]
	}
	return failures[0]
}

// Diff returns the sorted identifiers in expected but not actual (missing)
// and in actual but not expected (unexpected).
func Diff(actual, expected []string) (missing, unexpected []string) {
	inActual := make(map[string]bool, len(actual))
	for _, id := range actual {
		inActual[id] = true
	}
	inExpected := make(map[string]bool, len(expected))
	for _, id := range expected {
		inExpected[id] = true
		if !inActual[id] {
			missing = append(missing, id)
		}
	}
	for id := range inActual {
		if !inExpected[id] {
			unexpected = append(unexpected, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return missing, unexpected
}
