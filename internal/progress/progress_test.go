package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/remcomokveld/dagger/internal/harness"
)

func TestNewIndicator(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{
		Writer:      buf,
		ShowSpinner: true,
		IsCI:        false,
	})

	if ind == nil {
		t.Fatal("Expected indicator to be created")
	}

	if ind.writer != buf {
		t.Error("Writer not set correctly")
	}

	if !ind.showSpinner {
		t.Error("Spinner should be enabled")
	}
}

func TestNewIndicatorCIMode(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{
		Writer:      buf,
		ShowSpinner: true,
		IsCI:        true,
	})

	if ind.showSpinner {
		t.Error("Spinner should be disabled in CI mode")
	}

	if !ind.isCI {
		t.Error("IsCI should be true")
	}
}

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newTestIndicator(buf *bytes.Buffer) *Indicator {
	ind := NewIndicator(Config{Writer: buf, IsCI: true})
	ind.now = fakeClock(time.Second)
	ind.startTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return ind
}

func TestHandlePhases(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := newTestIndicator(buf)

	ind.Handle(harness.Event{Phase: harness.PhaseAllocate})
	ind.Handle(harness.Event{Phase: harness.PhaseBuildFirst, Root: "/tmp/relocheck-a-1"})
	ind.Handle(harness.Event{Phase: harness.PhaseDone})

	output := buf.String()
	for _, want := range []string{
		"▶ Allocate workspace\n",
		"✓ Allocate workspace [done]",
		"▶ Build A (cold cache) /tmp/relocheck-a-1",
		"✓ Build A (cold cache) [done]",
		"Run finished in",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\nGot: %s", want, output)
		}
	}
}

func TestHandleFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := newTestIndicator(buf)

	ind.Handle(harness.Event{Phase: harness.PhaseBuildSecond, Root: "/tmp/b"})
	ind.Handle(harness.Event{Phase: harness.PhaseDone, Err: errors.New("boom")})

	output := buf.String()
	if !strings.Contains(output, "✗ Build B (relocated) [failed]") {
		t.Errorf("Expected failed phase, got: %s", output)
	}
	if !strings.Contains(output, "Run failed after") {
		t.Errorf("Expected failure total, got: %s", output)
	}
}

func TestHandleUnknownPhase(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := newTestIndicator(buf)

	ind.Handle(harness.Event{Phase: harness.Phase("custom")})
	if !strings.Contains(buf.String(), "▶ custom") {
		t.Errorf("Expected raw phase name, got: %s", buf.String())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{Writer: buf, ShowSpinner: true})
	ind.Start()
	ind.Handle(harness.Event{Phase: harness.PhaseVerify})
	ind.Stop()
	ind.Stop()
}

func TestStreamWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	sw := NewStreamWriter(buf, "[A]")

	// Write a complete line
	n, err := sw.Write([]byte("> Task :preBuild UP-TO-DATE\n"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 28 {
		t.Errorf("Expected to write 28 bytes, wrote %d", n)
	}

	output := buf.String()
	if !strings.Contains(output, "[A] > Task :preBuild UP-TO-DATE") {
		t.Errorf("Expected prefixed output, got: %s", output)
	}

	// Write partial line
	buf.Reset()
	sw.Write([]byte("Partial"))

	// Nothing should be written yet
	if buf.Len() > 0 {
		t.Error("Partial line should not be written")
	}

	// Complete the line
	sw.Write([]byte(" line\n"))

	output = buf.String()
	if !strings.Contains(output, "[A] Partial line") {
		t.Errorf("Expected complete prefixed line, got: %s", output)
	}
}

func TestStreamWriterFlush(t *testing.T) {
	buf := &bytes.Buffer{}
	sw := NewStreamWriter(buf, "[B]")

	// Write incomplete line
	sw.Write([]byte("Incomplete"))

	// Flush should write it
	err := sw.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "[B] Incomplete") {
		t.Errorf("Expected flushed output, got: %s", output)
	}

	// Second flush should be a no-op
	buf.Reset()
	err = sw.Flush()
	if err != nil {
		t.Fatalf("Second flush failed: %v", err)
	}

	if buf.Len() > 0 {
		t.Error("Second flush should write nothing")
	}
}

func TestStreamWriterMultipleLines(t *testing.T) {
	buf := &bytes.Buffer{}
	sw := NewStreamWriter(buf, "gradle |")

	input := "Line 1\nLine 2\nLine 3\n"
	sw.Write([]byte(input))

	output := buf.String()

	expectedLines := []string{
		"gradle | Line 1",
		"gradle | Line 2",
		"gradle | Line 3",
	}

	for _, expected := range expectedLines {
		if !strings.Contains(output, expected) {
			t.Errorf("Output missing line: %s\nGot: %s", expected, output)
		}
	}
}

func TestStreamWriterStripsCarriageReturns(t *testing.T) {
	buf := &bytes.Buffer{}
	sw := NewStreamWriter(buf, "gradle |")

	if _, err := sw.Write([]byte("BUILD SUCCESSFUL in 3s\r\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got, want := buf.String(), "gradle | BUILD SUCCESSFUL in 3s\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{5 * time.Second, "5s"},
		{65 * time.Second, "1m5s"},
		{3665 * time.Second, "1h1m5s"},
		{3600 * time.Second, "1h0m0s"},
		{90 * time.Second, "1m30s"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tt.duration, result, tt.expected)
		}
	}
}

