package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pageforge/internal/config"
	"github.com/conneroisu/pageforge/internal/services"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve pages with live reload",
	Long: `Serve the site over HTTP. Pages are compiled on first request (or ahead
of time, see --precompile) and recompiled only after their source changes.

Reserved routes:
  /_pageforge/health   health check
  /_pageforge/pages    page listing (JSON)
  /_pageforge/metrics  Prometheus metrics
  /_pageforge/ws       live reload feed

Add ?format=bare to any page URL to render it without layouts.

Examples:
  pageforge serve                       # localhost:8080
  pageforge serve -p 3000 --host 0.0.0.0
  pageforge serve --precompile blocking # compile everything before listening`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("watch", true, "Watch sources and recompile changed pages")
	serveCmd.Flags().Bool("live-reload", true, "Reload browsers when pages change")
	serveCmd.Flags().String("precompile", config.PrecompileBackground, "Precompile mode (blocking, background, off)")
	serveCmd.Flags().String("rewarm", "", "Cron schedule for recompiling invalidated pages (e.g. \"@every 5m\")")

	AddFlagValidation(serveCmd, "precompile", ValidateChoice(config.PrecompileBlocking, config.PrecompileBackground, config.PrecompileOff))

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":        "server.port",
		"host":        "server.host",
		"watch":       "watch.enabled",
		"live-reload": "server.live_reload",
		"precompile":  "precompile.mode",
		"rewarm":      "precompile.rewarm_schedule",
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := services.NewServeService(rt)
	info := svc.GetServerInfo()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n", rt.Config.Source.Root, info.URL)
	if info.MetricsURL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Metrics at %s\n", info.MetricsURL)
	}

	return svc.Serve(ctx)
}
