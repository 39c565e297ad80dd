package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/remcomokveld/dagger/internal/scenario"
)

// WizardValues are the answers collected by the scenario wizard. SDK levels
// are strings because huh binds text fields to strings.
type WizardValues struct {
	Name            string
	PipelineVersion string
	Variant         string
	TransformTask   string
	Namespace       string
	CompileSDK      string
	MinSDK          string
	TargetSDK       string
	AppClass        string
	Output          string
}

// NewWizardValues pre-fills the answers from base.
func NewWizardValues(base *scenario.Scenario, output string) *WizardValues {
	return &WizardValues{
		Name:            base.Name,
		PipelineVersion: base.PipelineVersion,
		Variant:         base.Variant,
		TransformTask:   base.TransformTask,
		Namespace:       base.Android.Namespace,
		CompileSDK:      strconv.Itoa(base.Android.CompileSDK),
		MinSDK:          strconv.Itoa(base.Android.MinSDK),
		TargetSDK:       strconv.Itoa(base.Android.TargetSDK),
		AppClass:        base.AppClass,
		Output:          output,
	}
}

// Form builds the wizard form bound to v.
func (v *WizardValues) Form() *huh.Form {
	sdkLevels := huh.NewOptions("28", "29", "30", "31", "32", "33", "34")

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Scenario name").
				Value(&v.Name).
				Validate(required("name")),
			huh.NewInput().
				Title("Pipeline version").
				Description("The toolchain the expected task list was recorded with, e.g. agp-7.0/hilt-2.38").
				Value(&v.PipelineVersion).
				Validate(required("pipeline version")),
			huh.NewInput().
				Title("Build variant").
				Value(&v.Variant).
				Validate(required("variant")),
			huh.NewInput().
				Title("Transform task").
				Description("Must execute on the first build and come from the cache on the second").
				Value(&v.TransformTask).
				Validate(taskID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Android namespace").
				Value(&v.Namespace).
				Validate(required("namespace")),
			huh.NewSelect[string]().
				Title("Compile SDK").
				Options(sdkLevels...).
				Value(&v.CompileSDK),
			huh.NewInput().
				Title("Min SDK").
				Value(&v.MinSDK).
				Validate(sdkLevel),
			huh.NewSelect[string]().
				Title("Target SDK").
				Options(sdkLevels...).
				Value(&v.TargetSDK),
			huh.NewInput().
				Title("Application class").
				Value(&v.AppClass).
				Validate(required("application class")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Write scenario to").
				Value(&v.Output).
				Validate(required("output path")),
		),
	)
}

// Apply returns a copy of base with the answers applied and validated.
func (v *WizardValues) Apply(base *scenario.Scenario) (*scenario.Scenario, error) {
	compile, err := parseLevel("compile SDK", v.CompileSDK)
	if err != nil {
		return nil, err
	}
	minSDK, err := parseLevel("min SDK", v.MinSDK)
	if err != nil {
		return nil, err
	}
	target, err := parseLevel("target SDK", v.TargetSDK)
	if err != nil {
		return nil, err
	}

	s := *base
	s.Plugins = append([]string(nil), base.Plugins...)
	s.Classpath = append([]string(nil), base.Classpath...)
	s.Repositories = append([]string(nil), base.Repositories...)
	s.Dependencies = append([]string(nil), base.Dependencies...)
	s.Flags = append([]string(nil), base.Flags...)
	s.Sources = append([]scenario.Source(nil), base.Sources...)
	s.ExpectedFromCache = append([]string(nil), base.ExpectedFromCache...)

	s.Name = strings.TrimSpace(v.Name)
	s.PipelineVersion = strings.TrimSpace(v.PipelineVersion)
	s.Variant = strings.TrimSpace(v.Variant)
	s.TransformTask = strings.TrimSpace(v.TransformTask)
	s.Android = scenario.Android{
		Namespace:  strings.TrimSpace(v.Namespace),
		CompileSDK: compile,
		MinSDK:     minSDK,
		TargetSDK:  target,
	}
	s.AppClass = strings.TrimSpace(v.AppClass)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// RunScenarioWizard asks for the scenario settings starting from base and
// returns the new scenario and the chosen output path.
func RunScenarioWizard(base *scenario.Scenario, output string) (*scenario.Scenario, string, error) {
	v := NewWizardValues(base, output)
	if err := v.Form().Run(); err != nil {
		return nil, "", fmt.Errorf("scenario wizard: %w", err)
	}
	s, err := v.Apply(base)
	if err != nil {
		return nil, "", err
	}
	return s, strings.TrimSpace(v.Output), nil
}

// ConfirmOverwrite asks whether an existing file may be replaced.
func ConfirmOverwrite(path string) (bool, error) {
	confirmed := false
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("%s exists. Overwrite?", path)).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func taskID(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, ":") || len(s) < 2 {
		return fmt.Errorf("task must look like :taskName")
	}
	return nil
}

func sdkLevel(s string) error {
	_, err := parseLevel("SDK level", s)
	return err
}

func parseLevel(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", field, s)
	}
	return n, nil
}
