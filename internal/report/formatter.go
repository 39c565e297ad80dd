package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/remcomokveld/dagger/internal/ledger"
)

// Formatter writes a value in one output format.
type Formatter interface {
	Format(data any) error
}

// FormatterOptions contains configuration for formatters
type FormatterOptions struct {
	// Writer is where output is written (defaults to os.Stdout)
	Writer io.Writer
	// NoColor disables styling for the text formatter
	NoColor bool
	// Compact disables indentation for JSON/YAML
	Compact bool
}

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "yaml"}

// NewFormatter creates a formatter based on the format string
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	if opts == nil {
		opts = &FormatterOptions{}
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	switch format {
	case "json":
		return &JSONFormatter{opts: opts}, nil
	case "yaml":
		return &YAMLFormatter{opts: opts}, nil
	case "text", "":
		return &TextFormatter{opts: opts, styles: newStyles(opts.NoColor)}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: %s)", format, strings.Join(Formats, ", "))
	}
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	opts *FormatterOptions
}

// Format writes data as JSON
func (f *JSONFormatter) Format(data any) error {
	encoder := json.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	opts *FormatterOptions
}

// Format writes data as YAML
func (f *YAMLFormatter) Format(data any) error {
	encoder := yaml.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		encoder.SetIndent(2)
	}
	defer encoder.Close()
	return encoder.Encode(data)
}

type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{Title: plain, Label: plain, Success: plain, Error: plain, Muted: plain}
	}
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// TextFormatter formats output as human-readable text
type TextFormatter struct {
	opts   *FormatterOptions
	styles styles
}

// Format writes data as text. It understands Summary, ledger runs, strings
// and fmt.Stringer values.
func (f *TextFormatter) Format(data any) error {
	switch v := data.(type) {
	case Summary:
		return f.summary(&v)
	case *Summary:
		return f.summary(v)
	case []ledger.Run:
		return f.history(v)
	case string:
		_, err := fmt.Fprintln(f.opts.Writer, v)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.opts.Writer, v.String())
		return err
	default:
		return fmt.Errorf("text formatter cannot render %T", data)
	}
}

func (f *TextFormatter) summary(s *Summary) error {
	var b strings.Builder
	st := f.styles

	verdict := st.Success.Render("PASS")
	if !s.Passed {
		verdict = st.Error.Render("FAIL")
	}
	fmt.Fprintf(&b, "%s %s\n\n", verdict, st.Title.Render(s.Scenario))

	field := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", st.Label.Render(fmt.Sprintf("%-18s", label+":")), value)
	}
	if s.RunID != "" {
		field("run", s.RunID)
	}
	field("pipeline", s.PipelineVersion)
	field("marker", s.Marker)
	field("project A", s.RootA)
	field("project B", s.RootB)
	field("cache", s.CacheDir)
	if s.Fingerprint != "" {
		field("fingerprint", s.Fingerprint)
	}
	field("first build", fmt.Sprintf("%s was %s", s.TransformTask, s.TransformOutcome))
	field("from cache", fmt.Sprintf("%d of %d expected", len(s.FromCache), len(s.Expected)))
	field("cache entries", fmt.Sprintf("%d written by first build, %d by second", s.CacheEntriesFirst, s.CacheEntriesSecond))
	field("duration", s.Duration.Round(time.Millisecond).String())

	if len(s.Missing) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", st.Error.Render("Missing from cache:"))
		for _, id := range s.Missing {
			fmt.Fprintf(&b, "    - %s\n", id)
		}
	}
	if len(s.Unexpected) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", st.Error.Render("Unexpectedly from cache:"))
		for _, id := range s.Unexpected {
			fmt.Fprintf(&b, "    + %s\n", id)
		}
	}
	if s.ErrorCode != "" {
		fmt.Fprintf(&b, "\n  %s %s\n", st.Error.Render(s.ErrorCode), s.Error)
	}
	if s.Evidence != "" {
		fmt.Fprintf(&b, "\n  %s %s\n", st.Label.Render("evidence:"), s.Evidence)
	}
	if s.Kept {
		fmt.Fprintf(&b, "\n  %s\n", st.Muted.Render("workspace kept for inspection"))
	}

	_, err := io.WriteString(f.opts.Writer, b.String())
	return err
}

func (f *TextFormatter) history(runs []ledger.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(f.opts.Writer, f.styles.Muted.Render("No runs recorded."))
		return err
	}

	tw := tabwriter.NewWriter(f.opts.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRESULT\tSCENARIO\tPIPELINE\tFROM CACHE\tMARKER\tCODE")
	for _, r := range runs {
		res := "pass"
		if !r.Passed {
			res = "fail"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), res, r.Scenario, r.PipelineVersion,
			r.FromCacheCount, r.ExpectedCount, r.Marker, dash(r.ErrorCode))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var _ Formatter = (*JSONFormatter)(nil)
var _ Formatter = (*YAMLFormatter)(nil)
var _ Formatter = (*TextFormatter)(nil)
