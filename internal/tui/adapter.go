package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/remcomokveld/dagger/internal/harness"
	"github.com/remcomokveld/dagger/internal/report"
)

// Adapter bridges a harness run and the Bubble Tea program.
type Adapter struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewAdapter creates an adapter rendering to out. cancel is called when the
// user asks to stop the run.
func NewAdapter(scenarioName, marker string, cancel func(), out io.Writer) *Adapter {
	model := NewModel(scenarioName, marker, cancel)
	return &Adapter{
		program: tea.NewProgram(model, tea.WithOutput(out)),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (a *Adapter) Start() {
	go func() {
		defer close(a.done)
		_, a.err = a.program.Run()
	}()
}

// Progress returns a harness.ProgressFunc feeding the program.
func (a *Adapter) Progress() harness.ProgressFunc {
	return func(e harness.Event) {
		a.program.Send(PhaseMsg{Event: e})
	}
}

// Finish shows the outcome, waits for the program to exit and returns its error.
func (a *Adapter) Finish(s report.Summary, runErr error) error {
	a.program.Send(DoneMsg{Summary: s, Err: runErr})
	<-a.done
	return a.err
}
