package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/remcomokveld/dagger/internal/harness"
)

// View renders the TUI (required by Bubble Tea)
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("relocheck: " + m.scenario))
	b.WriteString("\n")
	if m.marker != "" {
		b.WriteString(m.styles.Muted.Render("marker " + m.marker))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, p := range m.phases {
		b.WriteString(m.renderPhase(p))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.quitting {
		b.WriteString(m.renderComplete())
	} else {
		b.WriteString(m.renderFooter())
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderPhase(p harness.Phase) string {
	label := p.Label()

	var icon string
	switch m.states[p] {
	case stateRunning:
		icon = m.spinner.View()
	case stateDone:
		icon = m.styles.Success.Render("✓")
	case stateFailed:
		icon = m.styles.Error.Render("✗")
	default:
		icon = m.styles.Muted.Render("·")
	}

	line := fmt.Sprintf("  %s %s", icon, label)
	if root := m.roots[p]; root != "" {
		line += " " + m.styles.Muted.Render(root)
	}
	return line
}

func (m Model) renderFooter() string {
	elapsed := formatDuration(time.Since(m.started))
	if m.cancelling {
		return m.styles.Warning.Render("Cancelling, waiting for the build to stop...") + " " + m.styles.Muted.Render(elapsed)
	}
	return m.styles.Muted.Render(elapsed+" elapsed • ") + m.styles.Key.Render("q") + m.styles.Muted.Render(" cancel")
}

func (m Model) renderComplete() string {
	if m.summary == nil {
		return ""
	}
	s := m.summary

	var b strings.Builder
	if s.Passed {
		b.WriteString(m.styles.Success.Render("✓ PASS"))
		fmt.Fprintf(&b, "  %d tasks restored from cache after relocation", len(s.FromCache))
	} else {
		b.WriteString(m.styles.Error.Render("✗ FAIL"))
		if s.ErrorCode != "" {
			fmt.Fprintf(&b, "  %s", s.ErrorCode)
		}
		for _, id := range s.Missing {
			fmt.Fprintf(&b, "\n  missing from cache: %s", id)
		}
		for _, id := range s.Unexpected {
			fmt.Fprintf(&b, "\n  unexpectedly from cache: %s", id)
		}
	}
	fmt.Fprintf(&b, "\n%s", m.styles.Muted.Render("finished in "+formatDuration(s.Duration)))
	return m.styles.Border.Render(b.String())
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
