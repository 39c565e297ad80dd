package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Scaffold errors (SCAFFOLD-001 to SCAFFOLD-099)
	ErrCodeScaffoldWrite      ErrorCode = "SCAFFOLD-001"
	ErrCodeScaffoldNotEmpty   ErrorCode = "SCAFFOLD-002"
	ErrCodeScaffoldInvalid    ErrorCode = "SCAFFOLD-003"
	ErrCodeScaffoldDivergence ErrorCode = "SCAFFOLD-004"

	// Environment errors (ENV-001 to ENV-099)
	ErrCodeEnvAllocate ErrorCode = "ENV-001"
	ErrCodeEnvOverlap  ErrorCode = "ENV-002"

	// Build errors (BUILD-001 to BUILD-099)
	ErrCodeBuildFailed       ErrorCode = "BUILD-001"
	ErrCodeBuildFirstFailed  ErrorCode = ErrCodeBuildFailed
	ErrCodeBuildSecondFailed ErrorCode = "BUILD-002"
	ErrCodeBuildStart        ErrorCode = "BUILD-003"

	// Verification errors (VERIFY-001 to VERIFY-099)
	ErrCodeVerifyNotCold  ErrorCode = "VERIFY-001"
	ErrCodeVerifyMismatch ErrorCode = "VERIFY-002"

	// Scenario errors (SCENARIO-001 to SCENARIO-099)
	ErrCodeScenarioParse   ErrorCode = "SCENARIO-001"
	ErrCodeScenarioInvalid ErrorCode = "SCENARIO-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigLoad ErrorCode = "CONFIG-001"

	// Ledger errors (LEDGER-001 to LEDGER-099)
	ErrCodeLedger       ErrorCode = "LEDGER-001"
	ErrCodeMarkerReused ErrorCode = "LEDGER-002"

	// Evidence errors (EVIDENCE-001 to EVIDENCE-099)
	ErrCodeEvidenceExport ErrorCode = "EVIDENCE-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound   ErrorCode = "IO-001"
	ErrCodeFileReadFailed ErrorCode = "IO-002"
	ErrCodeFileUnmarshal  ErrorCode = "IO-005"
)

// HarnessError represents an enhanced error with code, suggestions, and documentation
type HarnessError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *HarnessError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// Category returns the code prefix, e.g. "BUILD" for "BUILD-001".
func (e *HarnessError) Category() string {
	code := string(e.Code)
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}

// New creates a new HarnessError
func New(code ErrorCode, message string) *HarnessError {
	return &HarnessError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new HarnessError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *HarnessError {
	return &HarnessError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *HarnessError) WithSuggestion(suggestion string) *HarnessError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *HarnessError) WithSuggestions(suggestions ...string) *HarnessError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *HarnessError) WithDocs(url string) *HarnessError {
	e.DocsURL = url
	return e
}

// As finds the first HarnessError in err's chain.
func As(err error) (*HarnessError, bool) {
	var harnessErr *HarnessError
	if stderrors.As(err, &harnessErr) {
		return harnessErr, true
	}
	return nil, false
}

// HasCode reports whether any HarnessError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var harnessErr *HarnessError
		if !stderrors.As(err, &harnessErr) {
			return false
		}
		if harnessErr.Code == code {
			return true
		}
		err = harnessErr.Cause
	}
	return false
}

// Common error constructors for frequently used errors

// NewScaffoldWriteError creates a filesystem failure while materializing a project
func NewScaffoldWriteError(path string, cause error) *HarnessError {
	return Wrap(ErrCodeScaffoldWrite, fmt.Sprintf("failed to write project file: %s", path), cause).
		WithSuggestion("Check that the temporary directory is writable").
		WithSuggestion("Check free disk space on the volume holding the workspace")
}

// NewScaffoldNotEmptyError creates an error for a project root that already holds files
func NewScaffoldNotEmptyError(root string) *HarnessError {
	return New(ErrCodeScaffoldNotEmpty, fmt.Sprintf("project root is not empty: %s", root)).
		WithSuggestion("Scaffold into a new or empty directory")
}

// NewScaffoldInvalidError creates an error for unusable scaffold input
func NewScaffoldInvalidError(details string) *HarnessError {
	return New(ErrCodeScaffoldInvalid, fmt.Sprintf("invalid project definition: %s", details)).
		WithSuggestion("Run 'relocheck scenario show' to inspect the effective scenario")
}

// NewScaffoldDivergenceError creates an error for two roots that are not logically identical
func NewScaffoldDivergenceError(digestA, digestB string) *HarnessError {
	return New(ErrCodeScaffoldDivergence, "project roots are not logically identical").
		WithSuggestion(fmt.Sprintf("Fingerprints differ: %s vs %s", digestA, digestB)).
		WithSuggestion("Make sure both projects receive the same scenario and marker")
}

// NewEnvAllocateError creates an error for a workspace directory that could not be created
func NewEnvAllocateError(cause error) *HarnessError {
	return Wrap(ErrCodeEnvAllocate, "failed to allocate workspace directories", cause).
		WithSuggestion("Check TMPDIR and the configured workspace base directories")
}

// NewEnvOverlapError creates an error for workspace paths that coincide or nest
func NewEnvOverlapError(a, b string) *HarnessError {
	return New(ErrCodeEnvOverlap, fmt.Sprintf("workspace paths overlap: %s and %s", a, b)).
		WithSuggestion("Configure workspace.base_a and workspace.base_b as unrelated directories")
}

// NewBuildFailedError creates the error returned by a driver for a build that ran and failed
func NewBuildFailedError(root string, exitCode int, failedTasks []string) *HarnessError {
	msg := fmt.Sprintf("build in %s failed with exit code %d", root, exitCode)
	if len(failedTasks) > 0 {
		msg += fmt.Sprintf(" (failed tasks: %s)", strings.Join(failedTasks, ", "))
	}
	return New(ErrCodeBuildFailed, msg)
}

// NewFirstBuildFailedError creates the fatal error for a failed first build
func NewFirstBuildFailedError(cause error) *HarnessError {
	return Wrap(ErrCodeBuildFirstFailed, "first build failed; cold execution could not be established", cause).
		WithSuggestion("Run 'relocheck scaffold' and build the project by hand to see the failure").
		WithSuggestion("Run 'relocheck doctor' to check the Gradle, JDK and Android SDK setup")
}

// NewSecondBuildFailedError creates the verification failure for a failed second build
func NewSecondBuildFailedError() *HarnessError {
	return New(ErrCodeBuildSecondFailed, "second build failed on the relocated project").
		WithSuggestion("A build that succeeds in one location and fails in another usually reads an absolute path")
}

// NewBuildStartError creates an error for a pipeline process that could not be started
func NewBuildStartError(command string, cause error) *HarnessError {
	return Wrap(ErrCodeBuildStart, fmt.Sprintf("failed to start build command: %s", command), cause).
		WithSuggestion("Install Gradle or set gradle.command in .relocheck.yaml").
		WithSuggestion("Run 'relocheck doctor' to see which tools were detected")
}

// NewNotColdError creates the negative-control failure for the first build
func NewNotColdError(task, outcome string) *HarnessError {
	return New(ErrCodeVerifyNotCold, fmt.Sprintf("task %s on the first build was %s, want executed", task, outcome)).
		WithSuggestion("The cache store was not cold for this marker; use a fresh marker").
		WithSuggestion("If the task is missing, the scenario's transform_task does not match the pipeline version")
}

// NewVerificationMismatchError creates an error listing the symmetric difference of task sets
func NewVerificationMismatchError(missing, unexpected []string) *HarnessError {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing from cache: %s", strings.Join(sorted(missing), ", ")))
	}
	if len(unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpectedly from cache: %s", strings.Join(sorted(unexpected), ", ")))
	}
	err := New(ErrCodeVerifyMismatch, "second build cache hits differ from expectation; "+strings.Join(parts, "; "))
	if len(missing) > 0 {
		err.WithSuggestion("Missing tasks were recomputed after relocation: look for absolute paths in their inputs")
	}
	if len(unexpected) > 0 {
		err.WithSuggestion("Unexpected hits mean the pipeline changed; update expected_from_cache for this pipeline_version")
	}
	return err
}

// NewScenarioInvalidError creates a scenario validation error
func NewScenarioInvalidError(details string) *HarnessError {
	return New(ErrCodeScenarioInvalid, fmt.Sprintf("invalid scenario: %s", details)).
		WithSuggestion("Compare with 'relocheck scenario show' output")
}

// NewMarkerReusedError creates an error for a marker already present in the ledger
func NewMarkerReusedError(marker string) *HarnessError {
	return New(ErrCodeMarkerReused, fmt.Sprintf("marker %q was already used by an earlier run", marker)).
		WithSuggestion("Omit --marker to generate a fresh one").
		WithSuggestion("A reused marker can make the first build a cache hit")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *HarnessError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *HarnessError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
