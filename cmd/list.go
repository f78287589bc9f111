package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pageforge/internal/pages"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List pages and their compile state",
	Long: `List every page found under the site root with its view name and
compile state. Pages are not compiled unless --compile is given.

Examples:
  pageforge list
  pageforge list --compile       # compile first, show failures
  pageforge list -f json
  pageforge list -f yaml`,
	RunE: runList,
}

var (
	listFormat  string
	listCompile bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", formatTable, "Output format (table, json, yaml)")
	listCmd.Flags().BoolVarP(&listCompile, "compile", "c", false, "Compile every page before listing")

	AddFlagValidation(listCmd, "format", ValidateChoice(formatTable, formatJSON, formatYAML))
}

func runList(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer rt.Close()

	if _, err := rt.Engine.Scan(cmd.Context()); err != nil {
		return err
	}
	if listCompile {
		rt.Engine.Precompile(cmd.Context(), true).Wait()
	}

	return writePages(cmd.OutOrStdout(), rt.Engine.Pages(), listFormat)
}

func writePages(w io.Writer, infos []pages.PageInfo, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(infos)
	default:
		return writePagesTable(w, infos)
	}
}

func writePagesTable(w io.Writer, infos []pages.PageInfo) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No pages found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tVIEW\tSTATUS\tERROR")
	for _, info := range infos {
		view := info.LogicalName
		if view == "" {
			view = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Path, view, info.Status, firstLine(info.Error))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d pages\n", len(infos))
	return err
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
