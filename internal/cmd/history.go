package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs",
	Long: `List the runs recorded in the ledger, newest first. With a run ID, show
that run only, including the tasks that were missing or unexpected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historyLimit  int
	historyFormat string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "output format: text, json, yaml")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	formatter, err := cmdCtx.Formatter(historyFormat)
	if err != nil {
		return fmt.Errorf("invalid flag value for --format: %w", err)
	}

	l, err := ledger.Open(cmdCtx.Config.Ledger.Path)
	if err != nil {
		return err
	}
	defer l.Close()

	if len(args) == 1 {
		run, err := l.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := formatter.Format([]ledger.Run{*run}); err != nil {
			return err
		}
		if historyFormat == "text" {
			for _, id := range run.Missing {
				fmt.Fprintf(cmdCtx.Out, "  missing from cache: %s\n", id)
			}
			for _, id := range run.Unexpected {
				fmt.Fprintf(cmdCtx.Out, "  unexpectedly from cache: %s\n", id)
			}
			if run.EvidenceRef != "" {
				fmt.Fprintf(cmdCtx.Out, "  evidence: %s\n", run.EvidenceRef)
			}
		}
		return nil
	}

	runs, err := l.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	return formatter.Format(runs)
}
