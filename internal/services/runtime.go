// Package services holds the orchestration behind the CLI commands: it turns
// a loaded configuration into a wired page engine and drives builds, the
// development server and project scaffolding.
package services

import (
	"sort"

	"github.com/conneroisu/pageforge/internal/compiler"
	"github.com/conneroisu/pageforge/internal/compiler/templc"
	"github.com/conneroisu/pageforge/internal/config"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/monitoring"
	"github.com/conneroisu/pageforge/internal/pages"
	"github.com/conneroisu/pageforge/internal/source"
)

// Runtime bundles the collaborators every command needs.
type Runtime struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *monitoring.Collector
	Engine  *pages.Engine
}

// NewRuntime wires an engine over the source root of cfg. components holds
// the templ factories of the embedding program and may be nil, in which
// case .templ pages have no compiler.
func NewRuntime(cfg *config.Config, logger logging.Logger, components *templc.Components) *Runtime {
	if logger == nil {
		logger = logging.NewLogger(cfg.LoggerConfig())
	}

	var metrics *monitoring.Collector
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewCollector(cfg.Metrics.Namespace, nil)
	}

	engine := pages.New(
		source.NewOSProvider(cfg.Source.Root),
		compiler.NewDefault(components),
		EngineOptions(cfg),
		logger,
		metrics,
	)

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Engine:  engine,
	}
}

// EngineOptions maps the configuration onto engine options. An empty
// default_layout disables the default layout.
func EngineOptions(cfg *config.Config) pages.Options {
	return pages.Options{
		ViewsDir:        cfg.Source.ViewsDir,
		Extensions:      cfg.Source.Extensions,
		IndexName:       cfg.Source.IndexName,
		Exclude:         cfg.Source.Exclude,
		DefaultLayout:   cfg.Render.DefaultLayout,
		NoDefaultLayout: cfg.Render.DefaultLayout == "",
		BareFormat:      cfg.Render.BareFormat,
		Workers:         cfg.Precompile.Workers,
	}
}

// Close releases the engine's background work.
func (r *Runtime) Close() {
	r.Engine.Close()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
