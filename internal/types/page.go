// Package types provides the collaborator contracts shared by the page engine.
// It holds only interfaces and plain data so that the registry, the build cache,
// the renderer and the concrete compilers can depend on it without importing
// each other.
package types

import (
	"context"
	"reflect"
	"time"
)

// SourceHandle is a snapshot of one page source as read from a SourceProvider.
type SourceHandle struct {
	// Path is the canonical path the source was read from (e.g. "/views/Home.tmpl")
	Path string
	// Content holds the raw source bytes
	Content []byte
	// ModTime is the modification time reported by the provider
	ModTime time.Time
	// Hash is the content digest used for change detection
	Hash string
}

// SourceProvider exposes page sources by canonical path.
type SourceProvider interface {
	// ReadSource returns the current source for path, or an error that
	// satisfies errors.IsSourceNotFound when nothing exists there.
	ReadSource(path string) (*SourceHandle, error)
}

// Compiler turns a page source into an executable artifact. Compile errors
// that can be attributed to the source are returned as structured page errors.
type Compiler interface {
	Compile(ctx context.Context, src *SourceHandle) (Artifact, error)
}

// CompilerFunc adapts a plain function to the Compiler interface.
type CompilerFunc func(ctx context.Context, src *SourceHandle) (Artifact, error)

// Compile implements Compiler.
func (f CompilerFunc) Compile(ctx context.Context, src *SourceHandle) (Artifact, error) {
	return f(ctx, src)
}

// Artifact is the compiled, immutable form of a page. Artifacts are shared
// between goroutines and must not be mutated after Compile returns.
type Artifact interface {
	Bind(model any) (BoundInstance, error)
}

// BoundInstance is an artifact bound to one model for one execution.
type BoundInstance interface {
	// Execute renders the page. childBody carries the rendered output of the
	// page being wrapped when the instance is used as a layout.
	Execute(ctx context.Context, childBody string) (Output, error)
}

// ModelTyper is implemented by artifacts that declare the model type they expect.
type ModelTyper interface {
	ModelType() reflect.Type
}

// Output is the result of executing a bound page.
type Output struct {
	// Text is the rendered page body
	Text string
	// Layout is the logical name of the parent template requested by the page
	Layout string
	// LayoutDeclared reports whether the page set Layout explicitly. An explicit
	// empty Layout opts the page out of the default layout.
	LayoutDeclared bool
}
