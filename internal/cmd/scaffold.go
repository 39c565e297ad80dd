package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/marker"
)

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold <dir>",
	Short: "Materialize one project of a scenario",
	Long: `Materialize the scenario's project into an empty or new directory without
building it. Useful for reproducing a failed run by hand:

  relocheck scaffold /tmp/a --marker abc-123
  cd /tmp/a && gradle assembleDebug --build-cache
`,
	Args: cobra.ExactArgs(1),
	RunE: runScaffold,
}

var (
	scaffoldScenario string
	scaffoldMarker   string
)

func init() {
	addScenarioFlag(scaffoldCmd, &scaffoldScenario, false)
	scaffoldCmd.Flags().StringVar(&scaffoldMarker, "marker", "", "marker written into the generated sources (default: a fresh UUID)")

	rootCmd.AddCommand(scaffoldCmd)
}

func runScaffold(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	scn, err := loadScenario(cmdCtx.Config, scaffoldScenario)
	if err != nil {
		return err
	}
	project, err := scn.Project()
	if err != nil {
		return err
	}

	m := marker.New()
	if scaffoldMarker != "" {
		if m, err = marker.Fixed(scaffoldMarker); err != nil {
			return fmt.Errorf("invalid flag value for --marker: %w", err)
		}
	}

	dir := args[0]
	if err := project.Materialize(dir, m); err != nil {
		return err
	}
	cmdCtx.Logger.Debug("project materialized", "root", dir, "marker", m.String())

	fmt.Fprintf(cmdCtx.Out, "Scaffolded %s into %s\n", scn.Name, dir)
	fmt.Fprintf(cmdCtx.Out, "  marker: %s\n", m)
	fmt.Fprintf(cmdCtx.Out, "  task:   %s\n", scn.AssembleTask())
	for _, f := range project.Files() {
		fmt.Fprintf(cmdCtx.Out, "  %s\n", f)
	}
	return nil
}
