package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/evidence"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect evidence bundles of failed runs",
	Long: `Failed runs leave an evidence bundle: the report, the scenario, both build
logs, the saved build results and the cache entries each build wrote. Bundles
are written to evidence.dir and, with --evidence-ref, pushed to an OCI
registry.`,
}

var evidenceShowCmd = &cobra.Command{
	Use:   "show <bundle>",
	Short: "Print a bundle's manifest or one of its files",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidenceShow,
}

var evidencePullCmd = &cobra.Command{
	Use:   "pull <reference>",
	Short: "Download a bundle from a registry",
	Long: `Download an evidence bundle pushed by 'relocheck run --evidence-ref'.

Examples:
  relocheck evidence pull ghcr.io/acme/relocheck-evidence:<run-id>
  relocheck evidence pull localhost:5000/evidence@sha256:... -o bundle.tgz
`,
	Args: cobra.ExactArgs(1),
	RunE: runEvidencePull,
}

var (
	evidenceFile     string
	evidenceOutput   string
	evidenceInsecure bool
)

func init() {
	evidenceShowCmd.Flags().StringVar(&evidenceFile, "file", "", "print this member instead of the manifest, e.g. logs/second.log")
	evidencePullCmd.Flags().StringVarP(&evidenceOutput, "output", "o", "", "where to write the bundle (default: evidence.dir)")
	evidencePullCmd.Flags().BoolVar(&evidenceInsecure, "insecure", false, "allow plain HTTP registries (overrides evidence.insecure)")

	evidenceCmd.AddCommand(evidenceShowCmd, evidencePullCmd)
	rootCmd.AddCommand(evidenceCmd)
}

func runEvidenceShow(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	m, files, err := evidence.Read(args[0])
	if err != nil {
		return err
	}

	if evidenceFile != "" {
		data, ok := files[evidenceFile]
		if !ok {
			names := make([]string, 0, len(files))
			for name := range files {
				names = append(names, name)
			}
			sort.Strings(names)
			return fmt.Errorf("bundle has no file %q (files: %v)", evidenceFile, names)
		}
		_, err := cmdCtx.Out.Write(data)
		return err
	}

	fmt.Fprintf(cmdCtx.Out, "run:      %s\n", m.RunID)
	fmt.Fprintf(cmdCtx.Out, "scenario: %s\n", m.Scenario)
	fmt.Fprintf(cmdCtx.Out, "marker:   %s\n", m.Marker)
	fmt.Fprintf(cmdCtx.Out, "created:  %s\n\n", m.Created.Local().Format("2006-01-02 15:04:05"))
	for _, f := range m.Files {
		fmt.Fprintf(cmdCtx.Out, "  %-28s %8d  %s\n", f.Path, f.Size, f.Digest)
	}
	return nil
}

func runEvidencePull(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	output := evidenceOutput
	if output == "" {
		output = filepath.Join(cmdCtx.Config.Evidence.Dir, "pulled"+evidence.BundleSuffix)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(output), err)
	}

	opts := evidence.OCIOptions{
		Reference: args[0],
		Insecure:  cmdCtx.Config.Evidence.Insecure || evidenceInsecure,
	}
	digest, err := evidence.Pull(cmd.Context(), output, opts)
	if err != nil {
		return err
	}

	m, _, err := evidence.Read(output)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Info("evidence bundle pulled", "reference", args[0], "digest", digest.String(), "path", output)
	fmt.Fprintf(cmdCtx.Out, "Pulled %s (run %s, %d files) to %s\n", digest, m.RunID, len(m.Files), output)
	return nil
}
