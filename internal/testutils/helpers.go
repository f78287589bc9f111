// Package testutils holds fixtures shared by the engine's package tests: an
// in-memory project tree, a tiny line-oriented page language with a
// counting compiler, and helpers for on-disk projects.
package testutils

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/source"
	"github.com/conneroisu/pageforge/internal/types"
)

// BodyMarker is replaced by the child body when a stub page wraps another.
const BodyMarker = "@body"

// ModelMarker is replaced by fmt.Sprint(model).
const ModelMarker = "@model"

// NewMemProject creates an in-memory source tree from canonical path to
// content and returns it with a provider reading it.
func NewMemProject(t testing.TB, files map[string]string) (afero.Fs, *source.Provider) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for pagePath, content := range files {
		WriteSource(t, fs, pagePath, content)
	}
	return fs, source.NewProvider(fs)
}

// WriteSource writes content at the canonical path, creating parents.
func WriteSource(t testing.TB, fs afero.Fs, pagePath, content string) {
	t.Helper()

	canonical := types.Canonical(pagePath)
	require.NoError(t, fs.MkdirAll(path.Dir(canonical), 0o755))
	require.NoError(t, afero.WriteFile(fs, canonical, []byte(content), 0o644))
}

// StubArtifact is the compiled form of a stub page.
//
// Stub source is plain text. A first line of the form "layout: Name" declares
// a layout; "layout:" with nothing after it declares an explicit opt-out. A
// first line "fail: message" makes the page fail to execute. The remaining
// text is the body, where BodyMarker and ModelMarker are substituted.
type StubArtifact struct {
	Path           string
	Body           string
	Layout         string
	LayoutDeclared bool
	ExecFailure    string
	Model          reflect.Type
}

// Bind implements types.Artifact.
func (a *StubArtifact) Bind(model any) (types.BoundInstance, error) {
	if a.Model != nil && model != nil && reflect.TypeOf(model) != a.Model {
		return nil, fmt.Errorf("%s expects model %s, got %T", a.Path, a.Model, model)
	}
	return &stubInstance{artifact: a, model: model}, nil
}

// ModelType implements types.ModelTyper.
func (a *StubArtifact) ModelType() reflect.Type { return a.Model }

type stubInstance struct {
	artifact *StubArtifact
	model    any
}

func (i *stubInstance) Execute(_ context.Context, childBody string) (types.Output, error) {
	if i.artifact.ExecFailure != "" {
		return types.Output{}, fmt.Errorf("%s", i.artifact.ExecFailure)
	}
	text := strings.ReplaceAll(i.artifact.Body, BodyMarker, childBody)
	if i.model != nil {
		text = strings.ReplaceAll(text, ModelMarker, fmt.Sprint(i.model))
	}
	return types.Output{
		Text:           text,
		Layout:         i.artifact.Layout,
		LayoutDeclared: i.artifact.LayoutDeclared,
	}, nil
}

// ParseStub compiles stub source. A first line "error: message" is a
// compile error reported at line 1.
func ParseStub(src *types.SourceHandle) (*StubArtifact, error) {
	content := string(src.Content)
	artifact := &StubArtifact{Path: src.Path}

	first, rest, _ := strings.Cut(content, "\n")
	switch {
	case strings.HasPrefix(first, "error:"):
		msg := strings.TrimSpace(strings.TrimPrefix(first, "error:"))
		return nil, errors.NewCompileError(msg, nil).WithLocation(src.Path, 1, 1).WithPage(src.Path)
	case strings.HasPrefix(first, "layout:"):
		artifact.Layout = strings.TrimSpace(strings.TrimPrefix(first, "layout:"))
		artifact.LayoutDeclared = true
		artifact.Body = rest
	case strings.HasPrefix(first, "fail:"):
		artifact.ExecFailure = strings.TrimSpace(strings.TrimPrefix(first, "fail:"))
		artifact.Body = rest
	default:
		artifact.Body = content
	}
	return artifact, nil
}

// CountingCompiler compiles stub sources and counts invocations per path.
type CountingCompiler struct {
	// Delay is slept inside every Compile call.
	Delay time.Duration
	// Hook, when set, runs before parsing and may return a raw error or panic.
	Hook func(src *types.SourceHandle) error

	total atomic.Int64
	mu    sync.Mutex
	calls map[string]int
}

// NewCountingCompiler creates a compiler for the stub language.
func NewCountingCompiler() *CountingCompiler {
	return &CountingCompiler{calls: make(map[string]int)}
}

// Compile implements types.Compiler.
func (c *CountingCompiler) Compile(_ context.Context, src *types.SourceHandle) (types.Artifact, error) {
	c.total.Add(1)
	c.mu.Lock()
	c.calls[src.Path]++
	c.mu.Unlock()

	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	if c.Hook != nil {
		if err := c.Hook(src); err != nil {
			return nil, err
		}
	}
	artifact, err := ParseStub(src)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Calls returns how many times path was compiled.
func (c *CountingCompiler) Calls(pagePath string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[types.Canonical(pagePath)]
}

// Total returns the number of Compile calls across all paths.
func (c *CountingCompiler) Total() int {
	return int(c.total.Load())
}

// CreateTempProject creates an on-disk project with the given files, keyed
// by slash path relative to the project root.
func CreateTempProject(t testing.TB, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

// WaitFor polls cond until it returns true or timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
