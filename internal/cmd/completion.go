package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/scenario"
)

var completionCmd = &cobra.Command{
	Use:   "completion bash|zsh|fish|powershell",
	Short: "Generate shell completion script",
	Long: `Print a completion script for the given shell.

  source <(relocheck completion bash)
  relocheck completion zsh > "${fpath[1]}/_relocheck"
  relocheck completion fish > ~/.config/fish/completions/relocheck.fish
  relocheck completion powershell | Out-String | Invoke-Expression

Completion also offers the built-in scenarios for --scenario.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:                  runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return rootCmd.GenBashCompletionV2(out, true)
	case "zsh":
		return rootCmd.GenZshCompletion(out)
	case "fish":
		return rootCmd.GenFishCompletion(out, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(out)
	}
	return fmt.Errorf("unsupported shell %q", args[0])
}

// completeScenario offers builtin:<name> values and falls back to YAML files.
func completeScenario(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	builtin := strings.HasPrefix(toComplete, scenario.BuiltinPrefix) ||
		strings.HasPrefix(scenario.BuiltinPrefix, toComplete)
	if !builtin {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	}
	var names []string
	for _, n := range scenario.BuiltinNames() {
		names = append(names, scenario.BuiltinPrefix+n)
	}
	return names, cobra.ShellCompDirectiveDefault
}

// addScenarioFlag registers --scenario on c with completion of built-in names.
func addScenarioFlag(c *cobra.Command, target *string, persistent bool) {
	fs := c.Flags()
	if persistent {
		fs = c.PersistentFlags()
	}
	fs.StringVar(target, "scenario", "", "scenario file or builtin:<name> (overrides scenario)")
	_ = c.RegisterFlagCompletionFunc("scenario", completeScenario)
}
