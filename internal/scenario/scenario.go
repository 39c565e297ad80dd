// Package scenario loads the versioned fixtures that describe the project to
// scaffold and the tasks expected to come from the cache after relocation.
package scenario

import (
	"embed"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/marker"
	"github.com/remcomokveld/dagger/internal/result"
	"github.com/remcomokveld/dagger/internal/scaffold"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

const (
	// DefaultName is the fixture used when no scenario is configured.
	DefaultName = "hilt-android-relocation"
	// BuiltinPrefix selects an embedded fixture in place of a file path.
	BuiltinPrefix = "builtin:"
)

var variantPattern = regexp.MustCompile(`^[a-z][A-Za-z0-9]*$`)

// Android holds the android { } block values.
type Android struct {
	Namespace  string `yaml:"namespace" json:"namespace"`
	CompileSDK int    `yaml:"compile_sdk" json:"compile_sdk"`
	MinSDK     int    `yaml:"min_sdk" json:"min_sdk"`
	TargetSDK  int    `yaml:"target_sdk" json:"target_sdk"`
}

// Source is one source file; "{{marker}}" in Content is replaced per run.
type Source struct {
	Path    string `yaml:"path" json:"path"`
	Content string `yaml:"content" json:"content"`
}

// Scenario is one relocation check: the project to build and the tasks that
// must be restored from the cache for a given pipeline version.
type Scenario struct {
	Name              string   `yaml:"name" json:"name"`
	PipelineVersion   string   `yaml:"pipeline_version" json:"pipeline_version"`
	Variant           string   `yaml:"variant" json:"variant"`
	TransformTask     string   `yaml:"transform_task" json:"transform_task"`
	Plugins           []string `yaml:"plugins" json:"plugins"`
	Classpath         []string `yaml:"classpath" json:"classpath"`
	Repositories      []string `yaml:"repositories" json:"repositories"`
	Android           Android  `yaml:"android" json:"android"`
	Dependencies      []string `yaml:"dependencies" json:"dependencies"`
	Flags             []string `yaml:"flags" json:"flags"`
	AppClass          string   `yaml:"app_class" json:"app_class"`
	Sources           []Source `yaml:"sources" json:"sources"`
	ExpectedFromCache []string `yaml:"expected_from_cache" json:"expected_from_cache"`
}

// Default returns the built-in Hilt Android scenario.
func Default() *Scenario {
	s, err := Builtin(DefaultName)
	if err != nil {
		panic(fmt.Sprintf("built-in scenario %s: %v", DefaultName, err))
	}
	return s
}

// Builtin returns the embedded fixture called name.
func Builtin(name string) (*Scenario, error) {
	data, err := fixtures.ReadFile(path.Join("fixtures", name+".yaml"))
	if err != nil {
		return nil, errors.NewScenarioInvalidError(fmt.Sprintf("no built-in scenario named %q (available: %s)",
			name, strings.Join(BuiltinNames(), ", ")))
	}
	return Parse(data, BuiltinPrefix+name)
}

// BuiltinNames lists the embedded fixtures.
func BuiltinNames() []string {
	entries, _ := fixtures.ReadDir("fixtures")
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load reads a scenario file. A value of the form "builtin:<name>" selects an
// embedded fixture; the empty string selects the default.
func Load(file string) (*Scenario, error) {
	if file == "" {
		return Default(), nil
	}
	if name, ok := strings.CutPrefix(file, BuiltinPrefix); ok {
		return Builtin(name)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(file)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read scenario %s", file), err)
	}
	return Parse(data, file)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte, origin string) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeScenarioParse, fmt.Sprintf("failed to parse scenario %s", origin), err).
			WithSuggestion("Check the YAML syntax of the scenario file")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario for the mistakes that would make a run meaningless.
func (s *Scenario) Validate() error {
	var problems []string
	if s.Name == "" {
		problems = append(problems, "name is required")
	}
	if s.PipelineVersion == "" {
		problems = append(problems, "pipeline_version is required")
	}
	if !variantPattern.MatchString(s.Variant) {
		problems = append(problems, fmt.Sprintf("variant %q must be a lower camel case identifier", s.Variant))
	}
	if !strings.HasPrefix(s.TransformTask, ":") || len(s.TransformTask) < 2 {
		problems = append(problems, fmt.Sprintf("transform_task %q must start with ':'", s.TransformTask))
	}
	if s.Android.Namespace == "" {
		problems = append(problems, "android.namespace is required")
	}
	if s.AppClass == "" {
		problems = append(problems, "app_class is required")
	}
	if len(s.Sources) == 0 {
		problems = append(problems, "at least one source is required")
	}

	hasMarker := false
	for _, src := range s.Sources {
		if strings.Contains(src.Content, marker.Placeholder) {
			hasMarker = true
		}
	}
	if len(s.Sources) > 0 && !hasMarker {
		problems = append(problems, fmt.Sprintf("no source contains %s; the first build could be a cache hit", marker.Placeholder))
	}

	if len(s.ExpectedFromCache) == 0 {
		problems = append(problems, "expected_from_cache must list at least one task")
	} else if _, err := result.NewExpectedOutcomeSet(s.ExpectedFromCache...); err != nil {
		problems = append(problems, "expected_from_cache: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.NewScenarioInvalidError(strings.Join(problems, "; "))
	}

	if _, err := s.Project(); err != nil {
		return errors.NewScenarioInvalidError(err.Error())
	}
	return nil
}

// Expected returns the expected cache hits as an ExpectedOutcomeSet.
func (s *Scenario) Expected() result.ExpectedOutcomeSet {
	set, err := result.NewExpectedOutcomeSet(s.ExpectedFromCache...)
	if err != nil {
		// Validate rejects this before a Scenario is handed out.
		panic(err)
	}
	return set
}

// AssembleTask returns the Gradle task building the variant, e.g. "assembleDebug".
func (s *Scenario) AssembleTask() string {
	if s.Variant == "" {
		return "assemble"
	}
	return "assemble" + strings.ToUpper(s.Variant[:1]) + s.Variant[1:]
}

// Project builds the scaffold definition for this scenario.
func (s *Scenario) Project() (*scaffold.Project, error) {
	p := scaffold.NewProject(scaffold.Settings{
		Name:         s.Name,
		Plugins:      s.Plugins,
		Classpath:    s.Classpath,
		Repositories: s.Repositories,
		Android: scaffold.Android{
			Namespace:  s.Android.Namespace,
			CompileSDK: s.Android.CompileSDK,
			MinSDK:     s.Android.MinSDK,
			TargetSDK:  s.Android.TargetSDK,
		},
	})
	p.AddDependencies(s.Dependencies...)
	p.RunAdditionalTasks(s.Flags...)
	for _, src := range s.Sources {
		if err := p.AddSrc(src.Path, src.Content); err != nil {
			return nil, err
		}
	}
	p.SetAppClassName(s.AppClass)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Marshal encodes the scenario as YAML.
func (s *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Save writes the scenario as YAML to file.
func (s *Scenario) Save(file string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario %s: %w", file, err)
	}
	return nil
}
