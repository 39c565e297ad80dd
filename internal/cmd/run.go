package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/remcomokveld/dagger/internal/config"
	"github.com/remcomokveld/dagger/internal/evidence"
	"github.com/remcomokveld/dagger/internal/gradle"
	"github.com/remcomokveld/dagger/internal/harness"
	"github.com/remcomokveld/dagger/internal/ledger"
	"github.com/remcomokveld/dagger/internal/log"
	"github.com/remcomokveld/dagger/internal/marker"
	"github.com/remcomokveld/dagger/internal/progress"
	"github.com/remcomokveld/dagger/internal/report"
	"github.com/remcomokveld/dagger/internal/scenario"
	"github.com/remcomokveld/dagger/internal/tui"
	"github.com/remcomokveld/dagger/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the relocation check",
	Long: `Run the full relocation check for a scenario.

Two identical projects are scaffolded in unrelated temporary directories and
built one after the other against one shared build cache. The run passes when
the first build executed the transform task and the second build restored
exactly the expected tasks from the cache.

Exit codes:
  0  passed
  3  the projects or workspace could not be prepared
  4  the first build failed or Gradle could not be started
  5  cache verification failed (including a failed second build)

Examples:
  # Run the built-in scenario
  relocheck run

  # Run with a fixed marker and keep the directories for inspection
  relocheck run --marker abc-123 --keep

  # Push evidence of a failed run to a registry
  relocheck run --evidence-ref ghcr.io/acme/relocheck-evidence
`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runScenario         string
	runMarker           string
	runKeep             bool
	runEvidenceRef      string
	runTUI              bool
	runFormat           string
	runSaveResults      string
	runAllowMarkerReuse bool
	runQuiet            bool
)

// commandRunner replaces the process runner of the Gradle driver in tests.
var commandRunner gradle.CommandRunner

func init() {
	addScenarioFlag(runCmd, &runScenario, false)
	runCmd.Flags().StringVar(&runMarker, "marker", "", "marker written into the generated sources (default: a fresh UUID)")
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "keep the project and cache directories after the run")
	runCmd.Flags().StringVar(&runEvidenceRef, "evidence-ref", "", "OCI repository to push evidence of failed runs to")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "show an interactive progress view")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "text", "output format: text, json, yaml")
	runCmd.Flags().StringVar(&runSaveResults, "save-results", "", "directory to write first.json and second.json to")
	runCmd.Flags().BoolVar(&runAllowMarkerReuse, "allow-marker-reuse", false, "allow a marker the ledger has already seen")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print progress lines")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Config

	scn, err := loadScenario(cfg, runScenario)
	if err != nil {
		return err
	}

	var m marker.Marker
	if runMarker != "" {
		if m, err = marker.Fixed(runMarker); err != nil {
			return fmt.Errorf("invalid flag value for --marker: %w", err)
		}
	}

	formatter, err := cmdCtx.Formatter(runFormat)
	if err != nil {
		return fmt.Errorf("invalid flag value for --format: %w", err)
	}

	opts := harness.Options{
		Scenario: scn,
		Marker:   m,
		Workspace: workspace.Options{
			BaseA:     cfg.Workspace.BaseA,
			BaseB:     cfg.Workspace.BaseB,
			BaseCache: cfg.Workspace.BaseCache,
			Keep:      cfg.Workspace.Keep || runKeep,
		},
		ResultsDir:       runSaveResults,
		AllowMarkerReuse: runAllowMarkerReuse,
		Logger:           cmdCtx.Logger,
	}

	if cfg.Ledger.Enabled {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer l.Close()
		opts.Ledger = l
	}

	ref := cfg.Evidence.Reference
	if runEvidenceRef != "" {
		ref = runEvidenceRef
	}
	opts.Evidence = &evidence.Exporter{
		Dir:       cfg.Evidence.Dir,
		Reference: ref,
		OCI:       evidence.OCIOptions{Insecure: cfg.Evidence.Insecure},
		Logger:    cmdCtx.Logger,
	}

	if runTUI {
		return runWithTUI(cmd.Context(), cmdCtx, opts, formatter)
	}

	logger := cmdCtx.Logger
	stream := progress.NewStreamWriter(cmdCtx.ErrOut, "gradle |")
	defer stream.Flush()
	opts.Driver = newDriver(cfg, scn, logger, stream)
	if !runQuiet {
		indicator := progress.NewIndicator(progress.Config{
			Writer:      cmdCtx.ErrOut,
			ShowSpinner: isTerminal(cmdCtx.ErrOut),
		})
		indicator.Start()
		defer indicator.Stop()
		opts.Progress = indicator.Handle
	}

	rep, runErr := harness.Run(cmd.Context(), opts)
	if err := formatter.Format(rep.Summary()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return runErr
}

// runWithTUI runs with the progress view on stderr. Logging is silenced while
// the view owns the terminal.
func runWithTUI(ctx context.Context, cmdCtx *CommandContext, opts harness.Options, formatter report.Formatter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	quiet := log.Discard()
	opts.Logger = quiet
	opts.Driver = newDriver(cmdCtx.Config, opts.Scenario, quiet, nil)
	if e, ok := opts.Evidence.(*evidence.Exporter); ok {
		e.Logger = quiet
	}

	markerText := ""
	if !opts.Marker.IsZero() {
		markerText = opts.Marker.String()
	}
	adapter := tui.NewAdapter(opts.Scenario.Name, markerText, cancel, cmdCtx.ErrOut)
	adapter.Start()
	opts.Progress = adapter.Progress()

	rep, runErr := harness.Run(ctx, opts)
	if err := adapter.Finish(rep.Summary(), runErr); err != nil {
		cmdCtx.Logger.Warn("progress view failed", "error", err)
	}

	if runFormat != "text" {
		if err := formatter.Format(rep.Summary()); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return runErr
}

// newDriver builds the Gradle driver. Console output is streamed to out at
// debug level.
func newDriver(cfg *config.Config, scn *scenario.Scenario, logger *log.Logger, out io.Writer) gradle.Driver {
	opts := gradle.Options{
		Command:    cfg.Gradle.Command,
		Task:       scn.AssembleTask(),
		Args:       cfg.Gradle.Args,
		JavaHome:   cfg.JavaHome,
		AndroidSDK: cfg.AndroidSDK,
		UserHome:   cfg.Gradle.UserHome,
		Runner:     commandRunner,
		Logger:     logger,
	}
	if logger.Enabled(context.Background(), log.LevelDebug) {
		opts.Output = out
	}
	return gradle.NewDriver(opts)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// loadScenario resolves the scenario from the flag, then the configuration,
// then the built-in default.
func loadScenario(cfg *config.Config, flagValue string) (*scenario.Scenario, error) {
	file := cfg.Scenario
	if flagValue != "" {
		file = flagValue
	}
	return scenario.Load(file)
}
