// Package templc serves templ components as pages.
//
// templ files are compiled to Go ahead of time by `templ generate`, so this
// compiler does not interpret the .templ source. It reads the component
// name declared in the source and looks up a factory registered from Go
// code for that name. Inside a layout component, the wrapped page is
// available as the templ children ({ children... }).
package templc

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/types"
)

// Extension is the file extension handled by this compiler.
const Extension = ".templ"

var componentDecl = regexp.MustCompile(`(?m)^templ\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// Factory builds a component for a model.
type Factory func(model any) (templ.Component, error)

type registration struct {
	factory   Factory
	layout    string
	declared  bool
	modelType reflect.Type
}

// RegisterOption configures a component registration.
type RegisterOption func(*registration)

// WithLayout declares the layout that wraps the component. An empty name
// opts the component out of the default layout.
func WithLayout(name string) RegisterOption {
	return func(r *registration) {
		r.layout = name
		r.declared = true
	}
}

// Components maps templ component names to factories. It is safe for
// concurrent use.
type Components struct {
	mu    sync.RWMutex
	byKey map[string]registration
}

// NewComponents creates an empty component table.
func NewComponents() *Components {
	return &Components{byKey: make(map[string]registration)}
}

// RegisterFactory registers an untyped factory under name.
func (c *Components) RegisterFactory(name string, factory Factory, opts ...RegisterOption) {
	reg := registration{factory: factory}
	for _, opt := range opts {
		opt(&reg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[name] = reg
}

// Register registers a typed component constructor under name. Binding a
// model of another type fails; a nil model binds the zero M.
func Register[M any](c *Components, name string, fn func(M) templ.Component, opts ...RegisterOption) {
	modelType := reflect.TypeFor[M]()
	c.RegisterFactory(name, func(model any) (templ.Component, error) {
		if model == nil {
			var zero M
			return fn(zero), nil
		}
		m, ok := model.(M)
		if !ok {
			return nil, fmt.Errorf("component %s expects model %s, got %T", name, modelType, model)
		}
		return fn(m), nil
	}, append(opts, func(r *registration) { r.modelType = modelType })...)
}

func (c *Components) lookup(name string) (registration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.byKey[name]
	return reg, ok
}

// Compiler is a types.Compiler for .templ sources.
type Compiler struct {
	components *Components
}

// New creates a compiler resolving components from table.
func New(components *Components) *Compiler {
	return &Compiler{components: components}
}

// Compile implements types.Compiler. The first component declared in the
// source names the page; a missing factory is a compile error at the
// declaration line.
func (c *Compiler) Compile(_ context.Context, src *types.SourceHandle) (types.Artifact, error) {
	content := string(src.Content)

	match := componentDecl.FindStringSubmatchIndex(content)
	if match == nil {
		return nil, errors.NewCompileError("no templ component declared", nil).
			WithPage(src.Path).
			WithLocation(src.Path, 1, 1)
	}
	name := content[match[2]:match[3]]
	line := strings.Count(content[:match[0]], "\n") + 1

	reg, ok := c.components.lookup(name)
	if !ok {
		return nil, errors.NewCompileError(fmt.Sprintf("component %s has no registered factory (run templ generate and register it)", name), nil).
			WithPage(src.Path).
			WithLocation(src.Path, line, 1)
	}

	return &Artifact{name: name, path: src.Path, reg: reg}, nil
}

// Artifact is a resolved templ component.
type Artifact struct {
	name string
	path string
	reg  registration
}

// Name returns the component name.
func (a *Artifact) Name() string { return a.name }

// ModelType implements types.ModelTyper.
func (a *Artifact) ModelType() reflect.Type { return a.reg.modelType }

// Bind implements types.Artifact.
func (a *Artifact) Bind(model any) (types.BoundInstance, error) {
	component, err := a.reg.factory(model)
	if err != nil {
		return nil, err
	}
	if component == nil {
		return nil, fmt.Errorf("component %s factory returned nil", a.name)
	}
	return &instance{artifact: a, component: component}, nil
}

type instance struct {
	artifact  *Artifact
	component templ.Component
}

// Execute implements types.BoundInstance.
func (i *instance) Execute(ctx context.Context, childBody string) (types.Output, error) {
	if childBody != "" {
		ctx = templ.WithChildren(ctx, templ.Raw(childBody))
	}

	var buf bytes.Buffer
	if err := i.component.Render(ctx, &buf); err != nil {
		return types.Output{}, err
	}
	return types.Output{
		Text:           buf.String(),
		Layout:         i.artifact.reg.layout,
		LayoutDeclared: i.artifact.reg.declared,
	}, nil
}
