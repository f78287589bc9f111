// Package build provides the compile-once cache and the precompilation
// scheduler.
//
// The cache turns "I need the executable artifact for this page" into at most
// one in-flight compiler invocation per page. Valid artifacts are returned
// without locking; everyone else serializes on the page's own lock, so N
// concurrent requests for an unbuilt page produce exactly one compile and N
// readers of its result. Failures are cached too: a broken page is compiled
// again only after its source changes and the page is invalidated.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/monitoring"
	"github.com/conneroisu/pageforge/internal/registry"
	"github.com/conneroisu/pageforge/internal/types"
)

// Cache compiles registry entries on demand.
type Cache struct {
	provider types.SourceProvider
	compiler types.Compiler
	metrics  *monitoring.Collector
	logger   logging.Logger
}

// NewCache creates a compilation cache. metrics may be nil.
func NewCache(provider types.SourceProvider, compiler types.Compiler, logger logging.Logger, metrics *monitoring.Collector) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cache{
		provider: provider,
		compiler: compiler,
		metrics:  metrics,
		logger:   logger.WithComponent("build"),
	}
}

// EnsureCompiled returns the artifact for entry, compiling it first when the
// entry is Unbuilt. A Failed entry returns its cached error without invoking
// the compiler. Compilation is not cancellable: ctx is passed to the
// compiler for values only, and a caller that stops waiting leaves the
// result in the cache for the next caller.
func (c *Cache) EnsureCompiled(ctx context.Context, entry *registry.PageEntry) (types.Artifact, error) {
	if artifact, ok := entry.Artifact(); ok {
		c.metrics.ObserveLookup(monitoring.LookupFast)
		return artifact, nil
	}

	artifact, compiled, err := entry.Build(func() (types.Artifact, string, error) {
		return c.compile(ctx, entry)
	})

	if compiled {
		c.metrics.ObserveLookup(monitoring.LookupCompiled)
	} else {
		c.metrics.ObserveLookup(monitoring.LookupCached)
	}
	return artifact, err
}

// compile runs with the entry lock held. It logs each attempt exactly once.
func (c *Cache) compile(ctx context.Context, entry *registry.PageEntry) (types.Artifact, string, error) {
	start := time.Now()

	artifact, hash, err := c.readAndCompile(ctx, entry)

	duration := time.Since(start)
	c.metrics.ObserveCompile(duration, err)

	if err != nil {
		c.logger.Warn(ctx, err, "page compile failed",
			"page", entry.Path(),
			"duration_ms", duration.Milliseconds())
		return nil, hash, err
	}

	c.logger.Debug(ctx, "page compiled",
		"page", entry.Path(),
		"duration_ms", duration.Milliseconds())
	return artifact, hash, nil
}

func (c *Cache) readAndCompile(ctx context.Context, entry *registry.PageEntry) (types.Artifact, string, error) {
	src, err := c.provider.ReadSource(entry.SourceRef())
	if err != nil {
		return nil, "", classify(entry.Path(), err)
	}

	artifact, err := c.invoke(ctx, src)
	if err != nil {
		return nil, src.Hash, classify(entry.Path(), err)
	}
	return artifact, src.Hash, nil
}

// invoke calls the compiler, turning a panic into an error so it is logged,
// counted and cached like any other failure.
func (c *Cache) invoke(ctx context.Context, src *types.SourceHandle) (artifact types.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = errors.NewUnexpectedCompileError(src.Path, fmt.Errorf("compiler panic: %v", r)).
				WithContext("panic", r)
		}
	}()
	return c.compiler.Compile(ctx, src)
}

// classify keeps structured page errors and wraps anything else as an
// unexpected compile failure, so both are cached the same way.
func classify(page string, err error) error {
	var perr *errors.PageError
	if errors.As(err, &perr) {
		if perr.Page != "" {
			return perr
		}
		tagged := *perr
		return tagged.WithPage(page)
	}
	return errors.NewUnexpectedCompileError(page, err)
}
