package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pageforge/internal/services"
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Scaffold a new site",
	Long: `Write a .pageforge.yml with the default settings and a starter site: a
default layout, an index page and a Markdown page.

Examples:
  pageforge init
  pageforge init my-site
  pageforge init --minimal   # configuration and views directory only`,
	Args: cobra.MaximumNArgs(1),
	// Scaffolding needs no configuration.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runInit,
}

var (
	initMinimal bool
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "Only write the configuration file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	created, err := services.NewInitService(nil).InitProject(services.InitOptions{
		ProjectDir: dir,
		Minimal:    initMinimal,
		Force:      initForce,
	})
	for _, name := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)
	}
	return err
}
