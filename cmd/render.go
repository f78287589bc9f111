package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pageforge/internal/resolver"
)

var renderCmd = &cobra.Command{
	Use:     "render [path]",
	Aliases: []string{"r"},
	Short:   "Render one page to stdout",
	Long: `Resolve a request path (or a view name with --view) and print the rendered
page, wrapped in its layouts unless --bare is given.

Examples:
  pageforge render /                         # the root index page
  pageforge render /docs/intro --bare
  pageforge render --view Invoice --model '{"Number": 7}'
  pageforge render /report --model @report.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderView  string
	renderBare  bool
	renderModel string
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderView, "view", "", "Render the named view instead of resolving a path")
	renderCmd.Flags().BoolVar(&renderBare, "bare", false, "Render without layouts")
	renderCmd.Flags().StringVarP(&renderModel, "model", "m", "", "Page model as JSON, or @file.json")
}

func runRender(cmd *cobra.Command, args []string) error {
	model, err := ParseModel(renderModel)
	if err != nil {
		return err
	}

	rt, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer rt.Close()

	if _, err := rt.Engine.Scan(cmd.Context()); err != nil {
		return err
	}

	d := resolver.Descriptor{RequestPath: "/", LogicalName: renderView}
	if len(args) == 1 {
		d.RequestPath = args[0]
		d.ContextPath = args[0]
	}
	if renderBare {
		d.Format = rt.Engine.Options().BareFormat
	}

	out, err := rt.Engine.Render(cmd.Context(), d, model)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}
