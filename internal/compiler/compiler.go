// Package compiler dispatches page compilation to a language-specific
// compiler chosen by the source file extension.
package compiler

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/types"
)

// Mux is a types.Compiler that routes each source to the compiler
// registered for its extension.
type Mux struct {
	mu    sync.RWMutex
	byExt map[string]types.Compiler
}

// NewMux creates an empty compiler mux.
func NewMux() *Mux {
	return &Mux{byExt: make(map[string]types.Compiler)}
}

// Register routes sources with extension ext (e.g. ".tmpl") to c. A later
// registration for the same extension replaces the earlier one.
func (m *Mux) Register(ext string, c types.Compiler) {
	ext = normalizeExt(ext)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byExt[ext] = c
}

// Extensions lists the registered extensions in sorted order.
func (m *Mux) Extensions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exts := make([]string, 0, len(m.byExt))
	for ext := range m.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Compile implements types.Compiler.
func (m *Mux) Compile(ctx context.Context, src *types.SourceHandle) (types.Artifact, error) {
	ext := normalizeExt(path.Ext(src.Path))

	m.mu.RLock()
	c, ok := m.byExt[ext]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.NewCompileError(fmt.Sprintf("no compiler registered for %q files", ext), nil).
			WithPage(src.Path).
			WithLocation(src.Path, 0, 0)
	}
	return c.Compile(ctx, src)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
