// Package cmd provides the pageforge command-line interface.
//
// Configuration is read from, in increasing order of precedence:
//
//  1. .pageforge.yml in the working directory, or the file named by
//     --config or PAGEFORGE_CONFIG_FILE
//  2. PAGEFORGE_<SECTION>_<KEY> environment variables, e.g.
//     PAGEFORGE_SERVER_PORT=9000
//  3. command-line flags
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/pageforge/internal/config"
	"github.com/conneroisu/pageforge/internal/services"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pageforge",
	Short: "Compile-once page engine and development server",
	Long: `pageforge resolves requests to page templates, compiles each page at most
once until its source changes, and wraps the result in its layout chain.

Pages are Go html/template files (.tmpl), Markdown with YAML front matter
(.md) and registered templ components (.templ). Views live in "views"
directories; _Layout is the default layout.

Quick Start:
  pageforge init               Scaffold a site in the current directory
  pageforge serve              Serve pages with live reload
  pageforge build              Compile every page and report failures
  pageforge list               List pages and their compile state
  pageforge render /docs/intro Render one page to stdout`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pageforge.yml, can also use PAGEFORGE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("root", ".", "site source root")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"root":       "source.root",
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// bindFlags binds flags to viper configuration keys.
func bindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if err := viper.BindPFlag(configKey, flags.Lookup(flagName)); err != nil {
			panic(err)
		}
	}
}

// initConfig points the global viper instance at the config file and the
// environment. --config wins over PAGEFORGE_CONFIG_FILE.
func initConfig(cmd *cobra.Command, _ []string) error {
	file := cfgFile
	if file == "" {
		file = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
	}
	config.Configure(viper.GetViper(), file)
	return config.ReadFile(viper.GetViper())
}

// loadRuntime loads the configuration and wires the engine.
func loadRuntime() (*services.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return services.NewRuntime(cfg, nil, nil), nil
}
