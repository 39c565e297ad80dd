package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/config"
	"github.com/remcomokveld/dagger/internal/detect"
	"github.com/remcomokveld/dagger/internal/scenario"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the toolchain needed for a real run",
	Long: `Check that the machine can run the scenario for real.

Checks include:
  • Gradle executable and version
  • JDK (java_home, JAVA_HOME or PATH)
  • Android SDK and the platform the scenario compiles against
  • Ledger and evidence directories

Examples:
  relocheck doctor
  relocheck doctor --format json
`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var (
	doctorFormat   string
	doctorScenario string
)

// detector is replaced in tests.
var detector = &detect.Detector{}

func init() {
	doctorCmd.Flags().StringVarP(&doctorFormat, "format", "f", "text", "output format: text, json, yaml")
	addScenarioFlag(doctorCmd, &doctorScenario, false)

	rootCmd.AddCommand(doctorCmd)
}

// DoctorReport represents the complete health check report
type DoctorReport struct {
	Checks    []*DoctorCheck  `json:"checks" yaml:"checks"`
	Toolchain *detect.Context `json:"toolchain" yaml:"toolchain"`
	Issues    []string        `json:"issues" yaml:"issues"`
	Warnings  []string        `json:"warnings" yaml:"warnings"`
	Healthy   bool            `json:"healthy" yaml:"healthy"`
}

// DoctorCheck represents a single health check result
type DoctorCheck struct {
	Name    string `json:"name" yaml:"name"`
	Status  string `json:"status" yaml:"status"` // "ok", "warning", "error"
	Message string `json:"message" yaml:"message"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	formatter, err := cmdCtx.Formatter(doctorFormat)
	if err != nil {
		return fmt.Errorf("invalid flag value for --format: %w", err)
	}

	scn, err := loadScenario(cmdCtx.Config, doctorScenario)
	if err != nil {
		return err
	}

	report := buildDoctorReport(cmd, cmdCtx.Config, scn)
	if err := formatter.Format(report); err != nil {
		return err
	}
	if !report.Healthy {
		return fmt.Errorf("doctor found %d issue(s)", len(report.Issues))
	}
	return nil
}

func buildDoctorReport(cmd *cobra.Command, cfg *config.Config, scn *scenario.Scenario) *DoctorReport {
	opts := detect.Options{
		GradleCommand: cfg.Gradle.Command,
		JavaHome:      cfg.JavaHome,
		AndroidSDK:    cfg.AndroidSDK,
		CompileSDK:    scn.Android.CompileSDK,
	}
	tc := detector.Detect(cmd.Context(), opts)

	report := &DoctorReport{
		Toolchain: tc,
		Issues:    tc.Problems(opts),
		Warnings:  []string{},
	}

	report.Checks = append(report.Checks,
		toolCheck("Gradle", tc.Gradle),
		toolCheck("Java", tc.Java),
		sdkCheck(tc.AndroidSDK, scn.Android.CompileSDK),
	)

	if cfg.Ledger.Enabled {
		check := dirCheck("Ledger", filepath.Dir(cfg.Ledger.Path))
		if check.Status != "ok" {
			report.Warnings = append(report.Warnings, check.Message)
		}
		report.Checks = append(report.Checks, check)
	}
	evidenceCheck := dirCheck("Evidence", cfg.Evidence.Dir)
	if evidenceCheck.Status != "ok" {
		report.Warnings = append(report.Warnings, evidenceCheck.Message)
	}
	report.Checks = append(report.Checks, evidenceCheck)

	report.Healthy = len(report.Issues) == 0
	return report
}

func toolCheck(name string, t detect.ToolInfo) *DoctorCheck {
	if !t.Available {
		return &DoctorCheck{Name: name, Status: "error", Message: name + " not found"}
	}
	version := t.Version
	if version == "" {
		version = "unknown version"
	}
	return &DoctorCheck{Name: name, Status: "ok", Message: fmt.Sprintf("%s at %s (%s)", version, t.Path, t.Source)}
}

func sdkCheck(sdk detect.SDKInfo, compileSDK int) *DoctorCheck {
	if !sdk.Available {
		return &DoctorCheck{Name: "Android SDK", Status: "error", Message: "Android SDK not found"}
	}
	want := fmt.Sprintf("android-%d", compileSDK)
	for _, p := range sdk.Platforms {
		if p == want {
			return &DoctorCheck{Name: "Android SDK", Status: "ok", Message: fmt.Sprintf("%s with %s", sdk.Root, want)}
		}
	}
	return &DoctorCheck{Name: "Android SDK", Status: "error", Message: fmt.Sprintf("%s lacks platform %s", sdk.Root, want)}
}

// dirCheck reports whether dir exists or can be created. It creates nothing.
func dirCheck(name, dir string) *DoctorCheck {
	for d := dir; ; d = filepath.Dir(d) {
		info, err := os.Stat(d)
		if err == nil {
			if !info.IsDir() {
				return &DoctorCheck{Name: name, Status: "warning", Message: fmt.Sprintf("%s: %s is not a directory", name, d)}
			}
			return &DoctorCheck{Name: name, Status: "ok", Message: dir}
		}
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}
	return &DoctorCheck{Name: name, Status: "warning", Message: fmt.Sprintf("%s: no existing parent for %s", name, dir)}
}

// String renders the report for the text formatter.
func (r *DoctorReport) String() string {
	var b strings.Builder
	b.WriteString("relocheck doctor\n\n")
	for _, c := range r.Checks {
		icon := "✓"
		switch c.Status {
		case "warning":
			icon = "!"
		case "error":
			icon = "✗"
		}
		fmt.Fprintf(&b, "  %s %-12s %s\n", icon, c.Name, c.Message)
	}
	if r.Toolchain.Git.Initialized || r.Toolchain.CI.Detected {
		b.WriteString("\n")
	}
	if r.Toolchain.Git.Initialized {
		fmt.Fprintf(&b, "  git: %s (branch %s)\n", r.Toolchain.Git.Root, r.Toolchain.Git.Branch)
	}
	if r.Toolchain.CI.Detected {
		fmt.Fprintf(&b, "  ci: %s\n", r.Toolchain.CI.Name)
	}

	if len(r.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "  • %s\n", issue)
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  • %s\n", w)
		}
	}
	if r.Healthy {
		b.WriteString("\nReady for a real run.")
	}
	return strings.TrimRight(b.String(), "\n")
}
