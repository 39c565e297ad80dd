// Package progress prints run phases as plain lines for terminals without the
// interactive view and for CI logs.
package progress

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/remcomokveld/dagger/internal/harness"
)

// Indicator provides progress tracking and display for a relocation run
type Indicator struct {
	writer      io.Writer
	startTime   time.Time
	phaseStart  time.Time
	current     harness.Phase
	currentRoot string
	mu          sync.Mutex
	showSpinner bool
	spinnerIdx  int
	stopChan    chan struct{}
	stopOnce    sync.Once // Ensures Stop() is only called once
	isCI        bool
	now         func() time.Time
}

// Config holds configuration for progress indicator
type Config struct {
	Writer      io.Writer
	ShowSpinner bool
	IsCI        bool // Set to true in CI/CD environments to disable fancy output
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewIndicator creates a new progress indicator
func NewIndicator(cfg Config) *Indicator {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	// Auto-detect CI environment
	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}

	now := time.Now()
	return &Indicator{
		writer:      cfg.Writer,
		startTime:   now,
		phaseStart:  now,
		showSpinner: cfg.ShowSpinner && !cfg.IsCI,
		stopChan:    make(chan struct{}),
		isCI:        cfg.IsCI,
		now:         time.Now,
	}
}

// Start begins the spinner animation, if enabled
func (p *Indicator) Start() {
	if p.showSpinner {
		go p.spinnerLoop()
	}
}

// Stop stops the progress indicator
func (p *Indicator) Stop() {
	p.stopOnce.Do(func() {
		if p.showSpinner {
			close(p.stopChan)
			p.mu.Lock()
			p.clearLine()
			p.mu.Unlock()
		}
	})
}

// Handle records a harness event. It has the signature of harness.ProgressFunc.
func (p *Indicator) Handle(e harness.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.showSpinner {
		p.clearLine()
	}

	if p.current != "" {
		symbol, status := "✓", "done"
		if e.Phase == harness.PhaseDone && e.Err != nil {
			symbol, status = "✗", "failed"
		}
		p.printPhase(symbol, p.current, status, p.now().Sub(p.phaseStart))
	}

	if e.Phase == harness.PhaseDone {
		p.current = ""
		p.printTotal(e.Err)
		return
	}

	p.current = e.Phase
	p.currentRoot = e.Root
	p.phaseStart = p.now()
	if p.isCI || !p.showSpinner {
		msg := fmt.Sprintf("▶ %s", e.Phase.Label())
		if e.Root != "" {
			msg += " " + e.Root
		}
		fmt.Fprintln(p.writer, msg)
	}
}

// spinnerLoop runs the spinner animation
func (p *Indicator) spinnerLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.current != "" {
				p.renderSpinner()
			}
			p.spinnerIdx = (p.spinnerIdx + 1) % len(spinnerFrames)
			p.mu.Unlock()
		}
	}
}

func (p *Indicator) renderSpinner() {
	line := fmt.Sprintf("%s %s | %s", spinnerFrames[p.spinnerIdx], p.current.Label(),
		formatDuration(p.now().Sub(p.phaseStart)))
	if p.currentRoot != "" {
		line += " | " + p.currentRoot
	}
	fmt.Fprintf(p.writer, "\r%s", line)
}

func (p *Indicator) clearLine() {
	fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", 80))
}

// printPhase prints a finished phase in CI-friendly format
func (p *Indicator) printPhase(symbol string, phase harness.Phase, status string, d time.Duration) {
	fmt.Fprintf(p.writer, "%s %s [%s] %s\n", symbol, phase.Label(), status, formatDuration(d))
}

func (p *Indicator) printTotal(err error) {
	elapsed := formatDuration(p.now().Sub(p.startTime))
	if err != nil {
		fmt.Fprintf(p.writer, "Run failed after %s\n", elapsed)
		return
	}
	fmt.Fprintf(p.writer, "Run finished in %s\n", elapsed)
}

// StreamWriter prefixes each line of Gradle console output. Partial lines are
// held until their newline arrives or Flush is called.
type StreamWriter struct {
	mu      sync.Mutex
	w       io.Writer
	prefix  string
	pending []byte
}

// NewStreamWriter returns a StreamWriter writing "prefix line" to w.
func NewStreamWriter(w io.Writer, prefix string) *StreamWriter {
	return &StreamWriter{w: w, prefix: prefix}
}

func (sw *StreamWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pending = append(sw.pending, p...)
	for {
		line, rest, ok := bytes.Cut(sw.pending, []byte{'\n'})
		if !ok {
			break
		}
		if err := sw.emit(line); err != nil {
			return len(p), err
		}
		sw.pending = rest
	}
	return len(p), nil
}

// Flush writes a trailing partial line, if any.
func (sw *StreamWriter) Flush() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if len(sw.pending) == 0 {
		return nil
	}
	err := sw.emit(sw.pending)
	sw.pending = sw.pending[:0]
	return err
}

func (sw *StreamWriter) emit(line []byte) error {
	_, err := fmt.Fprintf(sw.w, "%s %s\n", sw.prefix, bytes.TrimRight(line, "\r"))
	return err
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
