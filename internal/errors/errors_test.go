package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeScaffoldWrite, "test error message")

	if err.Code != ErrCodeScaffoldWrite {
		t.Errorf("expected code %s, got %s", ErrCodeScaffoldWrite, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *HarnessError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeScenarioInvalid, "invalid scenario"),
			wantCode: "SCENARIO-002",
			wantMsg:  "invalid scenario",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFileReadFailed, "read failed", fmt.Errorf("permission denied")),
			wantCode: "IO-002",
			wantMsg:  "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestion(t *testing.T) {
	err := New(ErrCodeScaffoldInvalid, "bad input").
		WithSuggestion("Check the scenario file")

	if len(err.Suggestions) != 1 {
		t.Errorf("expected 1 suggestion, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "Suggestions:") {
		t.Errorf("error string should contain suggestions section")
	}
	if !strings.Contains(errStr, "Check the scenario file") {
		t.Errorf("error string should contain suggestion text")
	}
}

func TestWithDocs(t *testing.T) {
	docsURL := "https://docs.gradle.org/current/userguide/build_cache.html"
	err := New(ErrCodeVerifyMismatch, "mismatch").WithDocs(docsURL)

	if err.DocsURL != docsURL {
		t.Errorf("expected DocsURL %s, got %s", docsURL, err.DocsURL)
	}
	if !strings.Contains(err.Error(), "Documentation: "+docsURL) {
		t.Errorf("error string should contain docs URL")
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeBuildFirstFailed, "BUILD"},
		{ErrCodeVerifyMismatch, "VERIFY"},
		{ErrCodeScaffoldDivergence, "SCAFFOLD"},
		{ErrorCode("ODD"), "ODD"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "x").Category(); got != tt.want {
				t.Errorf("Category() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	inner := NewSecondBuildFailedError()
	outer := Wrap(ErrCodeVerifyMismatch, "verification failed", inner)
	wrapped := fmt.Errorf("run: %w", outer)

	if !HasCode(wrapped, ErrCodeVerifyMismatch) {
		t.Errorf("expected outer code to be found")
	}
	if !HasCode(wrapped, ErrCodeBuildSecondFailed) {
		t.Errorf("expected inner code to be found through Cause")
	}
	if HasCode(wrapped, ErrCodeScaffoldWrite) {
		t.Errorf("unexpected code match")
	}
	if HasCode(errors.New("plain"), ErrCodeScaffoldWrite) {
		t.Errorf("plain errors carry no code")
	}
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("context: %w", NewMarkerReusedError("abc-123"))

	harnessErr, ok := As(err)
	if !ok {
		t.Fatal("expected HarnessError in chain")
	}
	if harnessErr.Code != ErrCodeMarkerReused {
		t.Errorf("expected code %s, got %s", ErrCodeMarkerReused, harnessErr.Code)
	}

	if _, ok := As(errors.New("plain")); ok {
		t.Errorf("plain error should not match")
	}
}

func TestNewVerificationMismatchError(t *testing.T) {
	err := NewVerificationMismatchError(
		[]string{":transformDebugClassesWithAsm", ":compileDebugJavaWithJavac"},
		[]string{":lintVitalDebug"},
	)

	if err.Code != ErrCodeVerifyMismatch {
		t.Errorf("expected code %s, got %s", ErrCodeVerifyMismatch, err.Code)
	}

	wantMissing := "missing from cache: :compileDebugJavaWithJavac, :transformDebugClassesWithAsm"
	if !strings.Contains(err.Message, wantMissing) {
		t.Errorf("message should list sorted missing tasks, got: %s", err.Message)
	}
	if !strings.Contains(err.Message, "unexpectedly from cache: :lintVitalDebug") {
		t.Errorf("message should list unexpected tasks, got: %s", err.Message)
	}
	if len(err.Suggestions) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(err.Suggestions))
	}
}

func TestNewVerificationMismatchError_OnlyUnexpected(t *testing.T) {
	err := NewVerificationMismatchError(nil, []string{":extra"})

	if strings.Contains(err.Message, "missing") {
		t.Errorf("message should not mention missing tasks, got: %s", err.Message)
	}
	if len(err.Suggestions) != 1 {
		t.Errorf("expected 1 suggestion, got %d", len(err.Suggestions))
	}
}

func TestNewNotColdError(t *testing.T) {
	err := NewNotColdError(":transformDebugClassesWithAsm", "fromCache")

	if err.Code != ErrCodeVerifyNotCold {
		t.Errorf("expected code %s, got %s", ErrCodeVerifyNotCold, err.Code)
	}
	if !strings.Contains(err.Message, "was fromCache, want executed") {
		t.Errorf("unexpected message: %s", err.Message)
	}
}

func TestNewFirstBuildFailedError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewFirstBuildFailedError(cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be unwrapped")
	}
	if len(err.Suggestions) < 2 {
		t.Errorf("expected at least 2 suggestions, got %d", len(err.Suggestions))
	}
}
