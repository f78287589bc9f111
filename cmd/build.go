package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pageforge/internal/services"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Compile every page and report failures",
	Long: `Scan the site, compile every page once and print a report. The command
exits with a non-zero status when any page fails to compile, which makes it
suitable as a CI check.

Examples:
  pageforge build
  pageforge build --workers 4
  pageforge build --root ./site --quiet`,
	RunE: runBuild,
}

var buildQuiet bool

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().Int("workers", 0, "Concurrent compilations (0 means one per CPU)")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "Print failures only")

	bindFlags(buildCmd.Flags(), map[string]string{
		"workers": "precompile.workers",
	})
}

func runBuild(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer rt.Close()

	result, err := services.NewBuildService(rt).Build(cmd.Context())
	if err != nil {
		return err
	}

	printBuildResult(cmd.OutOrStdout(), result, buildQuiet)
	if !result.Success() {
		return fmt.Errorf("%d of %d pages failed to compile", result.Report.Failed+result.Report.Skipped, result.Report.Total)
	}
	return nil
}

func printBuildResult(w io.Writer, result *services.BuildResult, quiet bool) {
	report := result.Report
	for _, failure := range report.Failures {
		fmt.Fprintf(w, "FAIL %s\n     %v\n", failure.Page, failure.Err)
	}
	if quiet {
		return
	}
	fmt.Fprintf(w, "Compiled %d pages in %s: %d valid, %d failed",
		report.Total, result.Duration.Round(time.Millisecond), report.Valid, report.Failed)
	if report.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", report.Skipped)
	}
	fmt.Fprintln(w)
}
