package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/report"
	"github.com/remcomokveld/dagger/internal/result"
	"github.com/remcomokveld/dagger/internal/scenario"
	"github.com/remcomokveld/dagger/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <first.json> <second.json>",
	Short: "Verify saved build results offline",
	Long: `Apply the relocation verdict to build results saved by
'relocheck run --save-results <dir>'. The exit code is the same as for run.

Examples:
  relocheck run --save-results out
  relocheck verify out/first.json out/second.json
`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

var (
	verifyScenario string
	verifyFormat   string
)

func init() {
	addScenarioFlag(verifyCmd, &verifyScenario, false)
	verifyCmd.Flags().StringVarP(&verifyFormat, "format", "f", "text", "output format: text, json, yaml")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	formatter, err := cmdCtx.Formatter(verifyFormat)
	if err != nil {
		return fmt.Errorf("invalid flag value for --format: %w", err)
	}

	scn, err := loadScenario(cmdCtx.Config, verifyScenario)
	if err != nil {
		return err
	}
	first, err := result.LoadFile(args[0])
	if err != nil {
		return err
	}
	second, err := result.LoadFile(args[1])
	if err != nil {
		return err
	}

	verdict := verify.Verify(first, second, scn.Expected(), scn.TransformTask)
	verr := verdict.Err()
	if err := formatter.Format(verdictSummary(scn, first, second, verdict, verr)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return verr
}

func verdictSummary(scn *scenario.Scenario, first, second *result.BuildResult, v verify.Verdict, err error) report.Summary {
	s := report.Summary{
		Scenario:         scn.Name,
		PipelineVersion:  scn.PipelineVersion,
		Passed:           err == nil,
		TransformTask:    v.TransformTask,
		TransformOutcome: string(v.TransformOutcome),
		Expected:         v.Expected,
		FromCache:        v.FromCache,
		Missing:          v.Missing,
		Unexpected:       v.Unexpected,
		FirstCounts:      outcomeCounts(first),
		SecondCounts:     outcomeCounts(second),
	}
	if s.TransformOutcome == "" {
		s.TransformOutcome = "not run"
	}
	if herr, ok := errors.As(err); ok {
		s.ErrorCode = string(herr.Code)
		s.Error = herr.Message
	}
	return s
}

func outcomeCounts(r *result.BuildResult) map[string]int {
	out := map[string]int{}
	for outcome, n := range r.Counts() {
		out[string(outcome)] = n
	}
	return out
}
