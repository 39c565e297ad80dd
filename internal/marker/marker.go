// Package marker produces the run-scoped token embedded into generated
// sources so that every run starts with a cold cache.
package marker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Placeholder is replaced by the marker in every scaffolded source file.
const Placeholder = "{{marker}}"

// Marker is a run-scoped token. The zero value is invalid.
type Marker struct {
	value string
	fixed bool
}

// New returns a fresh random marker.
func New() Marker {
	return Marker{value: uuid.NewString()}
}

// Fixed returns a caller-chosen marker, as used by tests and --marker.
func Fixed(value string) (Marker, error) {
	if err := Validate(value); err != nil {
		return Marker{}, err
	}
	return Marker{value: value, fixed: true}, nil
}

// MustFixed is like Fixed but panics on an invalid value.
func MustFixed(value string) Marker {
	m, err := Fixed(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate reports whether value can be embedded in a Java string literal.
func Validate(value string) error {
	if value == "" {
		return fmt.Errorf("marker must not be empty")
	}
	for _, r := range value {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("marker %q contains whitespace or control characters", value)
		}
		if r == '"' || r == '\'' || r == '\\' {
			return fmt.Errorf("marker %q contains a quote or backslash", value)
		}
	}
	return nil
}

// String returns the marker value.
func (m Marker) String() string {
	return m.value
}

// IsZero reports whether m was never initialized.
func (m Marker) IsZero() bool {
	return m.value == ""
}

// IsFixed reports whether the marker was supplied by the caller rather than generated.
func (m Marker) IsFixed() bool {
	return m.fixed
}

// Apply replaces every placeholder occurrence in content.
func (m Marker) Apply(content string) string {
	return strings.ReplaceAll(content, Placeholder, m.value)
}
