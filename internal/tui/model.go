// Package tui renders a live view of a relocation run and hosts the
// interactive scenario wizard.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/remcomokveld/dagger/internal/harness"
	"github.com/remcomokveld/dagger/internal/report"
)

type phaseState int

const (
	statePending phaseState = iota
	stateRunning
	stateDone
	stateFailed
)

// defaultPhases are shown from the start; PhaseEvidence is added when it occurs.
var defaultPhases = []harness.Phase{
	harness.PhaseAllocate,
	harness.PhaseScaffold,
	harness.PhaseFingerprint,
	harness.PhaseBuildFirst,
	harness.PhaseBuildSecond,
	harness.PhaseVerify,
}

// Model represents the TUI application state
type Model struct {
	scenario string
	marker   string

	phases  []harness.Phase
	states  map[harness.Phase]phaseState
	roots   map[harness.Phase]string
	current harness.Phase
	started time.Time

	spinner    spinner.Model
	summary    *report.Summary
	err        error
	cancel     func()
	cancelling bool
	quitting   bool
	width      int

	styles Styles
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style
	Key     lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")). // Purple
			MarginBottom(1),
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
	}
}

// NewModel creates a progress model. cancel is called once when the user
// asks to quit; the model keeps running until DoneMsg arrives.
func NewModel(scenarioName, marker string, cancel func()) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	states := make(map[harness.Phase]phaseState, len(defaultPhases))
	for _, p := range defaultPhases {
		states[p] = statePending
	}

	return Model{
		scenario: scenarioName,
		marker:   marker,
		phases:   append([]harness.Phase(nil), defaultPhases...),
		states:   states,
		roots:    map[harness.Phase]string{},
		started:  time.Now(),
		spinner:  s,
		cancel:   cancel,
		styles:   DefaultStyles(),
	}
}

// PhaseMsg carries a harness progress event.
type PhaseMsg struct {
	Event harness.Event
}

// DoneMsg ends the program with the run's outcome.
type DoneMsg struct {
	Summary report.Summary
	Err     error
}

// Init initializes the TUI model (required by Bubble Tea)
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PhaseMsg:
		m.applyEvent(msg.Event)
		return m, nil

	case DoneMsg:
		m.summary = &msg.Summary
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) applyEvent(e harness.Event) {
	if m.current != "" && m.states[m.current] == stateRunning {
		m.states[m.current] = stateDone
	}

	if e.Phase == harness.PhaseDone {
		if e.Err != nil && m.current != "" {
			m.states[m.current] = stateFailed
		}
		m.current = ""
		return
	}

	if _, known := m.states[e.Phase]; !known {
		m.phases = append(m.phases, e.Phase)
	}
	m.states[e.Phase] = stateRunning
	m.current = e.Phase
	if e.Root != "" {
		m.roots[e.Phase] = e.Root
	}
}
