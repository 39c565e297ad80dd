package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/remcomokveld/dagger/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates the run passed
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// SetupError indicates the projects or workspace could not be prepared
	SetupError = 3

	// BuildFailure indicates the pipeline failed or could not be started
	BuildFailure = 4

	// VerificationFailure indicates the cache outcomes did not match the expectation
	VerificationFailure = 5

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Coded harness errors map by category; anything else falls back to message
// heuristics for cobra's usage errors.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	if harnessErr, ok := errors.As(err); ok {
		switch harnessErr.Category() {
		case "SCAFFOLD", "ENV":
			return SetupError
		case "BUILD":
			// A failed second build is reported as a verification failure.
			if harnessErr.Code == errors.ErrCodeBuildSecondFailed {
				return VerificationFailure
			}
			return BuildFailure
		case "VERIFY":
			return VerificationFailure
		case "CONFIG", "SCENARIO":
			return UsageError
		default:
			return GeneralError
		}
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown shorthand flag") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}
	if strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or scenario)"
	case SetupError:
		return "Project scaffolding or workspace allocation failed"
	case BuildFailure:
		return "Build failed"
	case VerificationFailure:
		return "Cache verification failed"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
