package pages

import (
	"context"

	"github.com/conneroisu/pageforge/internal/registry"
	"github.com/conneroisu/pageforge/internal/types"
	"github.com/conneroisu/pageforge/internal/watcher"
)

// ChangeOutcome is what a source change did to the registry.
type ChangeOutcome int

const (
	// ChangeIgnored means the path is not a page.
	ChangeIgnored ChangeOutcome = iota
	// ChangeUnchanged means nothing cached had to be dropped: the content
	// hash matches the compiled source, or the page was not compiled yet.
	ChangeUnchanged
	// ChangeInvalidated means the page was reset to Unbuilt.
	ChangeInvalidated
	// ChangeDiscovered means a new page was registered.
	ChangeDiscovered
)

// String returns the string representation of the ChangeOutcome
func (o ChangeOutcome) String() string {
	switch o {
	case ChangeIgnored:
		return "ignored"
	case ChangeUnchanged:
		return "unchanged"
	case ChangeInvalidated:
		return "invalidated"
	case ChangeDiscovered:
		return "discovered"
	default:
		return "unknown"
	}
}

// OnSourceChanged tells the engine the source at pagePath changed. Known
// pages are invalidated unless their content hash is unchanged; a deleted
// source also invalidates, so the next request sees the missing source.
// Unknown paths that are pages are registered.
func (e *Engine) OnSourceChanged(ctx context.Context, pagePath string) ChangeOutcome {
	canonical := types.Canonical(pagePath)

	entry, ok := e.registry.LookupByPath(canonical)
	if !ok {
		if !e.scanner.Accepts(canonical) {
			return ChangeIgnored
		}
		if _, added, err := e.scanner.ScanFile(canonical); err != nil || !added {
			return ChangeIgnored
		}
		e.logger.Info(ctx, "page discovered", "page", canonical)
		return ChangeDiscovered
	}

	if e.unchanged(entry) {
		e.logger.Debug(ctx, "source unchanged, keeping compiled page", "page", canonical)
		return ChangeUnchanged
	}

	if !e.registry.Invalidate(entry) {
		return ChangeUnchanged
	}
	e.metrics.ObserveInvalidation()
	e.logger.Info(ctx, "page invalidated", "page", canonical)
	return ChangeInvalidated
}

// unchanged reports whether entry reached a terminal state from the
// source currently on disk.
func (e *Engine) unchanged(entry *registry.PageEntry) bool {
	switch entry.Status() {
	case registry.StatusValid, registry.StatusFailed:
	default:
		return false
	}
	built := entry.SourceHash()
	if built == "" {
		return false
	}
	current, err := e.source.HashSource(entry.SourceRef())
	if err != nil {
		return false
	}
	return current == built
}

// HandleChanges adapts OnSourceChanged to a watcher.ChangeHandler.
func (e *Engine) HandleChanges(ctx context.Context) watcher.ChangeHandler {
	return func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			e.OnSourceChanged(ctx, event.Path)
		}
		return nil
	}
}
