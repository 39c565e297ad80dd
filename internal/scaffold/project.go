// Package scaffold materializes the minimal Android project that the
// relocation check builds twice.
package scaffold

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/remcomokveld/dagger/internal/errors"
)

// SourceRoot is the project-relative directory holding Java sources.
const SourceRoot = "src/main/java"

// Android holds the android { } block values.
type Android struct {
	Namespace  string
	CompileSDK int
	MinSDK     int
	TargetSDK  int
}

// Settings describes the build scaffolding shared by every project of a scenario.
type Settings struct {
	// Name is the root project name written to settings.gradle.
	Name         string
	Plugins      []string
	Classpath    []string
	Repositories []string
	Android      Android
}

// Source is one source file relative to SourceRoot.
type Source struct {
	Path    string
	Content string
}

// Project accumulates the declarations for one project tree.
// It is not safe for concurrent mutation; Materialize only reads it.
type Project struct {
	settings     Settings
	dependencies []string
	flags        []string
	sources      []Source
	appClass     string
}

// NewProject creates an empty project using settings.
func NewProject(settings Settings) *Project {
	settings.Plugins = append([]string(nil), settings.Plugins...)
	settings.Classpath = append([]string(nil), settings.Classpath...)
	settings.Repositories = append([]string(nil), settings.Repositories...)
	return &Project{settings: settings}
}

// AddDependencies appends dependency declarations verbatim, in order.
func (p *Project) AddDependencies(decl ...string) {
	p.dependencies = append(p.dependencies, decl...)
}

// RunAdditionalTasks appends flags passed to every build of this project.
func (p *Project) RunAdditionalTasks(flag ...string) {
	p.flags = append(p.flags, flag...)
}

// AddSrc registers a source file at a path relative to SourceRoot.
func (p *Project) AddSrc(srcPath, content string) error {
	clean, err := cleanRelative(srcPath)
	if err != nil {
		return err
	}
	p.sources = append(p.sources, Source{Path: clean, Content: content})
	return nil
}

// SetAppClassName sets the application entry, either ".MyApp" relative to
// the namespace or fully qualified.
func (p *Project) SetAppClassName(name string) {
	p.appClass = name
}

// Settings returns the project settings.
func (p *Project) Settings() Settings {
	s := p.settings
	s.Plugins = append([]string(nil), s.Plugins...)
	s.Classpath = append([]string(nil), s.Classpath...)
	s.Repositories = append([]string(nil), s.Repositories...)
	return s
}

// Dependencies returns a copy of the dependency declarations.
func (p *Project) Dependencies() []string {
	return append([]string(nil), p.dependencies...)
}

// Flags returns a copy of the additional build flags.
func (p *Project) Flags() []string {
	return append([]string(nil), p.flags...)
}

// Sources returns a copy of the registered sources.
func (p *Project) Sources() []Source {
	return append([]Source(nil), p.sources...)
}

// AppClassName returns the application entry as declared.
func (p *Project) AppClassName() string {
	return p.appClass
}

// QualifiedAppClass resolves a leading-dot entry against the namespace.
func (p *Project) QualifiedAppClass() string {
	if strings.HasPrefix(p.appClass, ".") {
		return p.settings.Android.Namespace + p.appClass
	}
	return p.appClass
}

// Validate checks that the project can be materialized.
func (p *Project) Validate() error {
	if p.settings.Android.Namespace == "" {
		return errors.NewScaffoldInvalidError("android namespace is required")
	}
	if len(p.sources) == 0 {
		return errors.NewScaffoldInvalidError("at least one source file is required")
	}
	if p.appClass == "" || p.appClass == "." {
		return errors.NewScaffoldInvalidError("application class name is required")
	}
	if strings.ContainsAny(p.appClass, " \t\n\"'<>&") {
		return errors.NewScaffoldInvalidError(fmt.Sprintf("application class name %q is not a Java class name", p.appClass))
	}

	qualified := p.QualifiedAppClass()
	simple := qualified[strings.LastIndex(qualified, ".")+1:]
	declared := regexp.MustCompile(`\bclass\s+` + regexp.QuoteMeta(simple) + `\b`)
	for _, src := range p.sources {
		if declared.MatchString(src.Content) {
			return nil
		}
	}
	return errors.NewScaffoldInvalidError(fmt.Sprintf("application class %s is not declared in any source", qualified))
}

func cleanRelative(p string) (string, error) {
	if p == "" {
		return "", errors.NewScaffoldInvalidError("source path is empty")
	}
	if filepath.IsAbs(p) || path.IsAbs(p) {
		return "", errors.NewScaffoldInvalidError(fmt.Sprintf("source path %q must be relative", p))
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.NewScaffoldInvalidError(fmt.Sprintf("source path %q escapes the source root", p))
	}
	return clean, nil
}
