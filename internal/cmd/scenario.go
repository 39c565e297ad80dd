package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/scenario"
	"github.com/remcomokveld/dagger/internal/tui"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect and create scenario files",
	Long: `A scenario describes the project to scaffold, the transform task that must
execute on the first build and the tasks expected from the cache on the second.
The expected list is only valid for the pipeline_version it was recorded with.`,
}

var scenarioShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective scenario",
	Args:  cobra.NoArgs,
	RunE:  runScenarioShow,
}

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in scenarios",
	Args:  cobra.NoArgs,
	RunE:  runScenarioList,
}

var scenarioInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a scenario file interactively",
	Long: `Walk through the scenario settings, starting from an existing scenario, and
write the result as YAML. Sources and the expected task list are copied from
the starting scenario; edit the file to change them.`,
	Args: cobra.NoArgs,
	RunE: runScenarioInit,
}

var (
	scenarioFile   string
	scenarioFormat string
	scenarioOutput string
	scenarioForce  bool
)

// scenarioWizard is replaced in tests.
var scenarioWizard = tui.RunScenarioWizard

// confirmOverwrite is replaced in tests.
var confirmOverwrite = tui.ConfirmOverwrite

func init() {
	addScenarioFlag(scenarioCmd, &scenarioFile, true)
	scenarioShowCmd.Flags().StringVarP(&scenarioFormat, "format", "f", "yaml", "output format: yaml, json")
	scenarioInitCmd.Flags().StringVarP(&scenarioOutput, "output", "o", "relocheck.scenario.yaml", "file to write")
	scenarioInitCmd.Flags().BoolVar(&scenarioForce, "force", false, "overwrite an existing file without asking")

	scenarioCmd.AddCommand(scenarioShowCmd, scenarioListCmd, scenarioInitCmd)
	rootCmd.AddCommand(scenarioCmd)
}

func runScenarioShow(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	scn, err := loadScenario(cmdCtx.Config, scenarioFile)
	if err != nil {
		return err
	}

	var data []byte
	switch scenarioFormat {
	case "yaml", "":
		data, err = scn.Marshal()
	case "json":
		data, err = json.MarshalIndent(scn, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("invalid flag value for --format: %s (supported: yaml, json)", scenarioFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	_, err = cmdCtx.Out.Write(data)
	return err
}

func runScenarioList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, name := range scenario.BuiltinNames() {
		marker := " "
		if name == scenario.DefaultName {
			marker = "*"
		}
		fmt.Fprintf(out, "%s builtin:%s\n", marker, name)
	}
	return nil
}

func runScenarioInit(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	base, err := loadScenario(cmdCtx.Config, scenarioFile)
	if err != nil {
		return err
	}

	scn, output, err := scenarioWizard(base, scenarioOutput)
	if err != nil {
		return err
	}

	if _, err := os.Stat(output); err == nil && !scenarioForce {
		ok, err := confirmOverwrite(output)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmdCtx.Out, "Aborted; nothing written.")
			return nil
		}
	}

	if err := scn.Save(output); err != nil {
		return err
	}
	cmdCtx.Logger.Info("scenario written", "path", output, "scenario", scn.Name)
	fmt.Fprintf(cmdCtx.Out, "Wrote %s\n  run it with: relocheck run --scenario %s\n", output, output)
	return nil
}
