// Package resolver maps a request descriptor to a canonical page path.
//
// Resolution is a pure function of the descriptor and a read-only view of the
// registry. Strategies are tried in strict priority order and the first hit
// wins:
//
//  1. explicit logical view name, looked up in the view index;
//  2. a view named after the payload type (or the operation), found by walking
//     the context path's ancestry from deepest to shallowest and probing
//     <ancestor>/<viewsDir>/<name><ext> at each level;
//  3. the request path itself, the request path with its extension replaced
//     by each template extension, and the request path's index page.
package resolver

import (
	"path"
	"reflect"
	"strings"

	"github.com/conneroisu/pageforge/internal/types"
)

// FormatBare is the request format value that disables layout composition.
const FormatBare = "bare"

// Index is the read-only registry view the resolver needs.
type Index interface {
	Contains(pagePath string) bool
	LogicalPath(name string) (string, bool)
}

// Descriptor describes one page request.
type Descriptor struct {
	// RequestPath is the path as requested (e.g. "/docs/intro" or "/about.tmpl")
	RequestPath string
	// LogicalName overrides resolution with an explicit view name
	LogicalName string
	// PayloadTypeName is the type name of the response model, if any
	PayloadTypeName string
	// OperationName is the name of the operation that produced the model
	OperationName string
	// ContextPath anchors the ancestor walk; empty means the site root
	ContextPath string
	// Format is the requested output format; FormatBare suppresses layouts
	Format string
}

// Bare reports whether the descriptor asks for output without layouts.
func (d Descriptor) Bare() bool {
	return strings.EqualFold(d.Format, FormatBare)
}

// Options configures the resolver conventions.
type Options struct {
	// ViewsDir is the reserved views directory checked during the ancestor walk
	ViewsDir string
	// Extensions are the template extensions, in preference order
	Extensions []string
	// IndexName is the default page name tried for directory requests
	IndexName string
}

// DefaultOptions returns the conventional resolver options.
func DefaultOptions() Options {
	return Options{
		ViewsDir:   "views",
		Extensions: []string{".tmpl", ".md", ".templ"},
		IndexName:  "index",
	}
}

// Resolver resolves descriptors against an Index.
type Resolver struct {
	index Index
	opts  Options
}

// New creates a resolver over index. Zero-valued option fields take the defaults.
func New(index Index, opts Options) *Resolver {
	defaults := DefaultOptions()
	if opts.ViewsDir == "" {
		opts.ViewsDir = defaults.ViewsDir
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaults.Extensions
	}
	if opts.IndexName == "" {
		opts.IndexName = defaults.IndexName
	}
	return &Resolver{index: index, opts: opts}
}

// Options returns the effective options.
func (r *Resolver) Options() Options { return r.opts }

// Resolve returns the canonical path of the page that serves d.
func (r *Resolver) Resolve(d Descriptor) (string, bool) {
	if d.LogicalName != "" {
		if p, ok := r.index.LogicalPath(d.LogicalName); ok {
			return p, true
		}
	}

	if d.PayloadTypeName != "" {
		if candidate, ok := candidateName(d); ok {
			if p, ok := r.walkAncestors(d.ContextPath, candidate); ok {
				return p, true
			}
		}
	}

	return r.resolveDirect(d.RequestPath)
}

// ResolveView finds a view by name the way layouts are located: the
// closest <dir>/<viewsDir>/<name><ext> above contextPath wins, then the view
// index. The walk comes first so that a name registered in several views
// directories does not depend on registration order.
func (r *Resolver) ResolveView(name, contextPath string) (string, bool) {
	if name == "" {
		return "", false
	}
	if ValidViewName(name) {
		if p, ok := r.walkAncestors(contextPath, name); ok {
			return p, true
		}
	}
	return r.index.LogicalPath(name)
}

// walkAncestors checks <dir>/<viewsDir>/<name><ext> from contextPath up to
// the root.
func (r *Resolver) walkAncestors(contextPath, name string) (string, bool) {
	for _, dir := range Ancestors(contextPath) {
		for _, ext := range r.opts.Extensions {
			candidate := path.Join(dir, r.opts.ViewsDir, name+ext)
			if r.index.Contains(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Resolver) resolveDirect(requestPath string) (string, bool) {
	for _, candidate := range r.DirectCandidates(requestPath) {
		if r.index.Contains(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// DirectCandidates lists, in lookup order, the canonical paths that direct
// resolution tries for requestPath: the path itself, the path with its
// extension replaced by each template extension, then its index pages.
func (r *Resolver) DirectCandidates(requestPath string) []string {
	if requestPath == "" {
		requestPath = "/"
	}
	canonical := types.Canonical(requestPath)
	candidates := make([]string, 0, 2*len(r.opts.Extensions)+1)

	if canonical != "/" {
		candidates = append(candidates, canonical)
		stem := strings.TrimSuffix(canonical, path.Ext(canonical))
		for _, ext := range r.opts.Extensions {
			if candidate := stem + ext; candidate != canonical {
				candidates = append(candidates, candidate)
			}
		}
	}

	for _, ext := range r.opts.Extensions {
		candidates = append(candidates, path.Join(canonical, r.opts.IndexName+ext))
	}
	return candidates
}

// Ancestors lists contextPath and each of its parents, deepest first, ending
// with "/". An empty contextPath yields only the root.
func Ancestors(contextPath string) []string {
	if contextPath == "" {
		return []string{"/"}
	}
	current := types.Canonical(contextPath)
	dirs := []string{current}
	for current != "/" {
		current = path.Dir(current)
		dirs = append(dirs, current)
	}
	return dirs
}

// candidateName picks the convention-based view name for a payload: the
// explicit logical name, else the payload type name, else the operation
// name. Names carrying generic or anonymous type markers are rejected.
func candidateName(d Descriptor) (string, bool) {
	for _, name := range []string{d.LogicalName, NormalizeTypeName(d.PayloadTypeName), d.OperationName} {
		if name == "" {
			continue
		}
		return name, ValidViewName(name)
	}
	return "", false
}

// illegalNameChars are the shape markers of generic, anonymous, pointer and
// composite type names, none of which can appear in a view file name.
const illegalNameChars = "[]{}()<>,*` \t/\\:;\"'|?"

// ValidViewName reports whether name can be used as a view file name.
func ValidViewName(name string) bool {
	return name != "" && !strings.ContainsAny(name, illegalNameChars)
}

// NormalizeTypeName strips pointer markers and the package qualifier from a
// type name: "*dto.UserResponse" becomes "UserResponse". Generic arguments
// are left untouched so that ValidViewName rejects them.
func NormalizeTypeName(name string) string {
	name = strings.TrimLeft(strings.TrimSpace(name), "*")
	base := name
	if i := strings.IndexByte(base, '['); i >= 0 {
		base = base[:i]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// PayloadTypeName derives the type name of a response model. Pointers are
// dereferenced; unnamed types (anonymous structs, maps, slices) yield "".
func PayloadTypeName(model any) string {
	if model == nil {
		return ""
	}
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
