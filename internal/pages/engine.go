// Package pages wires the page engine together: registry, resolver,
// compilation cache, layout composer, precompilation scheduler, scanner and
// change handling. Every collaborator is injected; there is no package-level
// state, so several engines can serve different trees in one process.
package pages

import (
	"context"
	"strings"

	"github.com/conneroisu/pageforge/internal/build"
	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/monitoring"
	"github.com/conneroisu/pageforge/internal/registry"
	"github.com/conneroisu/pageforge/internal/renderer"
	"github.com/conneroisu/pageforge/internal/resolver"
	"github.com/conneroisu/pageforge/internal/scanner"
	"github.com/conneroisu/pageforge/internal/source"
	"github.com/conneroisu/pageforge/internal/types"
)

// Options configures an Engine. Zero values take the documented defaults.
type Options struct {
	// ViewsDir is the reserved views directory name (default "views")
	ViewsDir string
	// Extensions are the page template extensions in preference order
	Extensions []string
	// IndexName is the page tried for directory requests (default "index")
	IndexName string
	// Exclude holds base-name globs skipped by scans and change handling
	Exclude []string
	// DefaultLayout wraps pages that declare no layout. Set NoDefaultLayout
	// to disable it.
	DefaultLayout   string
	NoDefaultLayout bool
	// BareFormat is the request format that suppresses layouts (default "bare")
	BareFormat string
	// Workers bounds concurrent precompilation (default runtime.NumCPU())
	Workers int
}

func (o Options) withDefaults() Options {
	defaults := resolver.DefaultOptions()
	if o.ViewsDir == "" {
		o.ViewsDir = defaults.ViewsDir
	}
	if len(o.Extensions) == 0 {
		o.Extensions = defaults.Extensions
	}
	if o.IndexName == "" {
		o.IndexName = defaults.IndexName
	}
	if o.DefaultLayout == "" && !o.NoDefaultLayout {
		o.DefaultLayout = renderer.DefaultLayout
	}
	if o.NoDefaultLayout {
		o.DefaultLayout = ""
	}
	if o.BareFormat == "" {
		o.BareFormat = resolver.FormatBare
	}
	return o
}

// Engine is the page engine facade.
type Engine struct {
	opts Options

	source    *source.Provider
	registry  *registry.Registry
	resolver  *resolver.Resolver
	cache     *build.Cache
	composer  *renderer.Composer
	scheduler *build.Scheduler
	scanner   *scanner.PageScanner
	metrics   *monitoring.Collector
	logger    logging.Logger
}

// New creates an engine reading sources from src and compiling them with
// compiler. logger and metrics may be nil.
func New(src *source.Provider, compiler types.Compiler, opts Options, logger logging.Logger, metrics *monitoring.Collector) *Engine {
	opts = opts.withDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	reg := registry.NewRegistry(opts.ViewsDir, logger)
	res := resolver.New(reg, resolver.Options{
		ViewsDir:   opts.ViewsDir,
		Extensions: opts.Extensions,
		IndexName:  opts.IndexName,
	})
	cache := build.NewCache(src, compiler, logger, metrics)

	return &Engine{
		opts:      opts,
		source:    src,
		registry:  reg,
		resolver:  res,
		cache:     cache,
		composer:  renderer.NewComposer(cache, reg, res, renderer.Options{DefaultLayout: opts.DefaultLayout}, logger, metrics),
		scheduler: build.NewScheduler(cache, opts.Workers, logger, metrics),
		scanner:   scanner.NewPageScanner(reg, src, scanner.Options{Extensions: opts.Extensions, Exclude: opts.Exclude}, logger),
		metrics:   metrics,
		logger:    logger.WithComponent("engine"),
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Registry returns the page registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Metrics returns the metrics collector, possibly nil.
func (e *Engine) Metrics() *monitoring.Collector { return e.metrics }

// Scan registers every page source in the tree.
func (e *Engine) Scan(ctx context.Context) (scanner.ScanResult, error) {
	return e.scanner.ScanDirectory(ctx, "/")
}

// Register adds a page by path without scanning, returning its entry.
func (e *Engine) Register(pagePath string) *registry.PageEntry {
	return e.registry.Register(pagePath)
}

// Resolve maps a request to its page entry. A request whose direct
// candidates exist in the source tree but were never scanned registers
// them on the way. A miss is an ERR_RESOLUTION_MISS error.
func (e *Engine) Resolve(d resolver.Descriptor) (*registry.PageEntry, error) {
	if p, ok := e.resolver.Resolve(d); ok {
		if entry, ok := e.registry.LookupByPath(p); ok {
			return entry, nil
		}
	}

	for _, candidate := range e.resolver.DirectCandidates(d.RequestPath) {
		entry, _, err := e.scanner.ScanFile(candidate)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}

	return nil, errors.ErrResolutionMiss(d.RequestPath)
}

// EnsureCompiled returns the compiled artifact of entry.
func (e *Engine) EnsureCompiled(ctx context.Context, entry *registry.PageEntry) (types.Artifact, error) {
	return e.cache.EnsureCompiled(ctx, entry)
}

// RenderWithLayout renders entry with model, wrapping it in its layout
// chain unless suppressLayout is set.
func (e *Engine) RenderWithLayout(ctx context.Context, entry *registry.PageEntry, model any, suppressLayout bool) (string, error) {
	return e.composer.RenderWithLayout(ctx, entry, model, suppressLayout)
}

// Render resolves d and renders the page. The payload type name is derived
// from model when d leaves it empty, and the bare format suppresses layouts.
func (e *Engine) Render(ctx context.Context, d resolver.Descriptor, model any) (string, error) {
	if d.PayloadTypeName == "" && model != nil {
		d.PayloadTypeName = resolver.PayloadTypeName(model)
	}

	entry, err := e.Resolve(d)
	if err != nil {
		return "", err
	}
	return e.RenderWithLayout(ctx, entry, model, e.IsBare(d))
}

// IsBare reports whether d asks for output without layouts.
func (e *Engine) IsBare(d resolver.Descriptor) bool {
	return d.Format != "" && strings.EqualFold(d.Format, e.opts.BareFormat)
}

// ScheduleAll precompiles entries. See build.Scheduler.ScheduleAll.
func (e *Engine) ScheduleAll(ctx context.Context, entries []*registry.PageEntry, blocking bool) *build.Batch {
	return e.scheduler.ScheduleAll(ctx, entries, blocking)
}

// Precompile precompiles every registered page.
func (e *Engine) Precompile(ctx context.Context, blocking bool) *build.Batch {
	return e.ScheduleAll(ctx, e.registry.Entries(), blocking)
}

// StartRewarm periodically recompiles invalidated pages. An empty schedule
// does nothing.
func (e *Engine) StartRewarm(ctx context.Context, schedule string) error {
	return e.scheduler.StartRewarm(ctx, schedule, e.registry.Entries)
}

// Close stops background precompilation and rewarm.
func (e *Engine) Close() {
	e.scheduler.Stop()
}
