package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pageforge/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the pageforge version, git commit, build time, Go version and
platform.

Examples:
  pageforge version
  pageforge version --short
  pageforge version -f json`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", formatText, "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show version number only")

	AddFlagValidation(versionCmd, "format", ValidateChoice(formatText, formatJSON, formatYAML))
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	info := version.GetBuildInfo()
	out := cmd.OutOrStdout()

	switch {
	case versionShort:
		_, err := fmt.Fprintln(out, info.Version)
		return err
	case versionFormat == formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case versionFormat == formatYAML:
		return yaml.NewEncoder(out).Encode(info)
	default:
		_, err := fmt.Fprintln(out, info.String())
		return err
	}
}
