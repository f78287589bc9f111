// Package renderer composes rendered pages with their layouts.
//
// A page is executed first; its output then becomes the child body of the
// layout it names, which is executed in turn and may name a layout of its
// own. The chain is walked iteratively with a visited set, so a layout that
// (directly or through others) wraps itself fails with ERR_LAYOUT_CYCLE
// instead of recursing forever. No entry lock is held while the next entry
// in the chain is compiled or executed.
package renderer

import (
	"context"
	"fmt"
	"path"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/monitoring"
	"github.com/conneroisu/pageforge/internal/registry"
	"github.com/conneroisu/pageforge/internal/types"
)

// DefaultLayout is the view that wraps a page which declares no layout.
const DefaultLayout = "_Layout"

// ArtifactSource yields the compiled artifact of an entry.
type ArtifactSource interface {
	EnsureCompiled(ctx context.Context, entry *registry.PageEntry) (types.Artifact, error)
}

// LayoutResolver locates a layout view by name relative to a page directory.
type LayoutResolver interface {
	ResolveView(name, contextPath string) (string, bool)
}

// EntryLookup finds registry entries by canonical path.
type EntryLookup interface {
	LookupByPath(pagePath string) (*registry.PageEntry, bool)
}

// Options configures the composer.
type Options struct {
	// DefaultLayout names the layout applied to pages that declare none.
	// Empty disables the default layout.
	DefaultLayout string
}

// Composer renders pages through their layout chain.
type Composer struct {
	artifacts     ArtifactSource
	entries       EntryLookup
	layouts       LayoutResolver
	defaultLayout string
	metrics       *monitoring.Collector
	logger        logging.Logger
}

// NewComposer creates a layout composer.
func NewComposer(artifacts ArtifactSource, entries EntryLookup, layouts LayoutResolver, opts Options, logger logging.Logger, metrics *monitoring.Collector) *Composer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Composer{
		artifacts:     artifacts,
		entries:       entries,
		layouts:       layouts,
		defaultLayout: opts.DefaultLayout,
		metrics:       metrics,
		logger:        logger.WithComponent("renderer"),
	}
}

// RenderWithLayout renders entry with model. Unless suppressLayout is set,
// the result is wrapped in the declared layout chain. A layout that cannot
// be found ends the chain without error. A page or layout that fails to
// compile returns its cached compile error.
func (c *Composer) RenderWithLayout(ctx context.Context, entry *registry.PageEntry, model any, suppressLayout bool) (text string, err error) {
	defer func() { c.metrics.ObserveRender(err) }()

	visited := make(map[string]struct{}, 4)
	chain := make([]string, 0, 4)

	current := entry
	child := ""
	for depth := 0; ; depth++ {
		visited[current.Path()] = struct{}{}
		chain = append(chain, current.Path())

		out, err := c.execute(ctx, current, model, child)
		if err != nil {
			return "", err
		}
		if suppressLayout {
			return out.Text, nil
		}

		name, explicit := c.layoutName(out, depth)
		if name == "" {
			return out.Text, nil
		}

		next, ok := c.findLayout(name, current.Path())
		if !ok {
			c.logger.Debug(ctx, "layout not found, rendering without it",
				"page", current.Path(),
				"layout", name)
			return out.Text, nil
		}

		if _, seen := visited[next.Path()]; seen {
			if !explicit {
				// the default layout rendered directly
				return out.Text, nil
			}
			return "", errors.ErrLayoutCycle(append(chain, next.Path()))
		}

		current = next
		child = out.Text
	}
}

// execute compiles, binds and runs one page of the chain.
func (c *Composer) execute(ctx context.Context, entry *registry.PageEntry, model any, child string) (types.Output, error) {
	artifact, err := c.artifacts.EnsureCompiled(ctx, entry)
	if err != nil {
		return types.Output{}, err
	}

	instance, err := artifact.Bind(model)
	if err != nil {
		return types.Output{}, renderError(entry.Path(), fmt.Errorf("bind model: %w", err))
	}

	out, err := instance.Execute(ctx, child)
	if err != nil {
		return types.Output{}, renderError(entry.Path(), err)
	}
	return out, nil
}

// layoutName returns the layout the output asks for and whether it was
// declared explicitly. Only the first page of a chain inherits the default.
func (c *Composer) layoutName(out types.Output, depth int) (string, bool) {
	if out.LayoutDeclared {
		return out.Layout, true
	}
	if depth == 0 {
		return c.defaultLayout, false
	}
	return "", false
}

func (c *Composer) findLayout(name, pagePath string) (*registry.PageEntry, bool) {
	layoutPath, ok := c.layouts.ResolveView(name, path.Dir(pagePath))
	if !ok {
		return nil, false
	}
	return c.entries.LookupByPath(layoutPath)
}

func renderError(page string, err error) error {
	var perr *errors.PageError
	if errors.As(err, &perr) {
		return perr
	}
	return errors.NewRenderError(page, err)
}
