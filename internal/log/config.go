package log

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format int

const (
	// FormatText writes key=value lines.
	FormatText Format = iota
	// FormatJSON writes one JSON object per record.
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "console":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q (want text or json)", s)
	}
}

// Config holds configuration for the logger.
type Config struct {
	Level  Level
	Format Format
	// Output receives the records. Nil means stderr; stdout is reserved for
	// reports.
	Output io.Writer

	AddSource bool

	// ServiceName and ServiceVersion are attached to every record when set.
	ServiceName    string
	ServiceVersion string
}

func (c Config) writer() io.Writer {
	if c.Output == nil {
		return os.Stderr
	}
	return c.Output
}

// DefaultConfig logs at INFO in text format to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: FormatText}
}

// DevelopmentConfig logs at DEBUG with source locations.
func DevelopmentConfig() Config {
	return Config{
		Level:       LevelDebug,
		Format:      FormatText,
		AddSource:   true,
		ServiceName: "relocheck",
	}
}

// DiscardConfig drops all output. The TUI uses it while it owns the terminal.
func DiscardConfig() Config {
	return Config{Level: LevelError, Output: io.Discard}
}

// FromStrings builds a Config from the textual level and format found in
// configuration files and flags.
func FromStrings(level, format string, w io.Writer) (Config, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return Config{}, err
	}
	fmtv, err := ParseFormat(format)
	if err != nil {
		return Config{}, err
	}
	return Config{Level: lvl, Format: fmtv, Output: w}, nil
}
