package gradle

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// InitScript returns a Gradle init script that points the local build cache
// at dir with push enabled.
func InitScript(dir string) string {
	var b strings.Builder
	b.WriteString("// Generated by relocheck. Shares one local build cache between relocated projects.\n")
	b.WriteString("settingsEvaluated { settings ->\n")
	b.WriteString("    settings.buildCache {\n")
	b.WriteString("        local {\n")
	fmt.Fprintf(&b, "            directory = new File('%s')\n", groovyEscape(dir))
	b.WriteString("            enabled = true\n")
	b.WriteString("            push = true\n")
	b.WriteString("        }\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}

var cacheDirPattern = regexp.MustCompile(`directory = new File\('((?:[^'\\]|\\.)*)'\)`)

// CacheDirFromInitScript extracts the cache directory from a script written
// by InitScript.
func CacheDirFromInitScript(script string) (string, bool) {
	m := cacheDirPattern.FindStringSubmatch(script)
	if m == nil {
		return "", false
	}
	return groovyUnescape(m[1]), true
}

// writeInitScript writes the script to a temporary file outside any project
// root. The caller removes it.
func writeInitScript(cacheDir string) (string, error) {
	f, err := os.CreateTemp("", "relocheck-init-*.gradle")
	if err != nil {
		return "", fmt.Errorf("create init script: %w", err)
	}
	if _, err := f.WriteString(InitScript(cacheDir)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write init script: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close init script: %w", err)
	}
	return f.Name(), nil
}

func groovyEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func groovyUnescape(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
