// Package scanner discovers page sources and registers them.
//
// The scanner walks the source tree for files with a template extension,
// skipping excluded names, and registers each canonical path with the page
// registry. Registration is idempotent, so rescanning only adds pages that
// appeared since the last scan. Nothing is compiled here; warming the cache
// is the precompilation scheduler's job.
package scanner

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/registry"
	"github.com/conneroisu/pageforge/internal/types"
)

// SourceTree is the part of the source provider the scanner walks.
type SourceTree interface {
	Walk(root string, exts []string, exclude []string) ([]string, error)
	Exists(pagePath string) bool
}

// Options configures which files count as pages.
type Options struct {
	// Extensions are the page template extensions, e.g. ".tmpl"
	Extensions []string
	// Exclude holds base-name globs for files and directories to skip
	Exclude []string
}

// ScanResult summarizes one directory scan.
type ScanResult struct {
	// Found is the number of page sources seen
	Found int
	// Added is the number of pages registered for the first time
	Added int
	// Duration is the wall time of the scan
	Duration time.Duration
}

// PageScanner registers page sources found in a source tree.
type PageScanner struct {
	registry *registry.Registry
	tree     SourceTree
	exts     map[string]bool
	extList  []string
	exclude  []string
	logger   logging.Logger
}

// NewPageScanner creates a scanner registering into reg.
func NewPageScanner(reg *registry.Registry, tree SourceTree, opts Options, logger logging.Logger) *PageScanner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &PageScanner{
		registry: reg,
		tree:     tree,
		exts:     make(map[string]bool, len(opts.Extensions)),
		exclude:  opts.Exclude,
		logger:   logger.WithComponent("scanner"),
	}
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(ext)
		if !s.exts[ext] {
			s.exts[ext] = true
			s.extList = append(s.extList, ext)
		}
	}
	return s
}

// GetRegistry returns the page registry.
func (s *PageScanner) GetRegistry() *registry.Registry {
	return s.registry
}

// ScanDirectory registers every page source under root. A cancelled ctx
// stops the scan between files; pages registered so far stay registered.
func (s *PageScanner) ScanDirectory(ctx context.Context, root string) (ScanResult, error) {
	start := time.Now()
	var result ScanResult

	paths, err := s.tree.Walk(root, s.extList, s.exclude)
	if err != nil {
		return result, errors.NewInternalError(fmt.Sprintf("scanning %s", types.Canonical(root)), err)
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Found++
		if !s.registry.Contains(p) {
			result.Added++
		}
		s.registry.Register(p)
	}

	result.Duration = time.Since(start)
	s.logger.Info(ctx, "scan complete",
		"root", types.Canonical(root),
		"found", result.Found,
		"added", result.Added,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// ScanFile registers a single page source. added is false when the page
// was already registered. Files that are not pages, or no longer exist,
// return a nil entry.
func (s *PageScanner) ScanFile(pagePath string) (entry *registry.PageEntry, added bool, err error) {
	canonical := types.Canonical(pagePath)
	if !s.Accepts(canonical) {
		return nil, false, nil
	}

	if existing, ok := s.registry.LookupByPath(canonical); ok {
		return existing, false, nil
	}
	if !s.tree.Exists(canonical) {
		return nil, false, nil
	}
	return s.registry.Register(canonical), true, nil
}

// Accepts reports whether pagePath has a page extension and no excluded
// path segment.
func (s *PageScanner) Accepts(pagePath string) bool {
	canonical := types.Canonical(pagePath)
	if !s.exts[strings.ToLower(path.Ext(canonical))] {
		return false
	}
	for _, segment := range strings.Split(strings.TrimPrefix(canonical, "/"), "/") {
		for _, pattern := range s.exclude {
			if ok, _ := path.Match(pattern, segment); ok {
				return false
			}
		}
	}
	return true
}
