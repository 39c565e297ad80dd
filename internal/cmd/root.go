package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relocheck",
	Short: "Build-cache relocation verification harness",
	Long: `relocheck verifies that a Gradle build pipeline produces relocatable build
cache entries. It scaffolds two identical projects in different directories,
builds them one after the other against a single shared cache and checks that
the second build restored exactly the expected tasks from the cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which commands use for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: .relocheck.yaml found upward, then the user config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json (overrides log.format)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
}
