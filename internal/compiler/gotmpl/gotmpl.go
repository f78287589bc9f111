// Package gotmpl compiles html/template pages.
//
// Two functions are available to every page:
//
//	{{ layout "Site" }}  declares the layout that wraps the page; an empty
//	                     name opts the page out of the default layout
//	{{ body }}           inserts the rendered child page when the template
//	                     is used as a layout
//
// The model bound at render time is the template's dot. Any extra functions
// passed through WithFuncs are available too.
package gotmpl

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/types"
)

// Extension is the file extension handled by this compiler.
const Extension = ".tmpl"

// Option configures a Compiler.
type Option func(*Compiler)

// WithFuncs makes extra template functions available to all pages.
func WithFuncs(funcs template.FuncMap) Option {
	return func(c *Compiler) {
		for name, fn := range funcs {
			c.funcs[name] = fn
		}
	}
}

// WithDelims sets the action delimiters.
func WithDelims(left, right string) Option {
	return func(c *Compiler) {
		c.left, c.right = left, right
	}
}

// Compiler is a types.Compiler for html/template sources.
type Compiler struct {
	funcs  template.FuncMap
	left   string
	right  string
	parser *errors.LocationParser
}

// New creates an html/template page compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		funcs:  template.FuncMap{},
		parser: errors.NewLocationParser(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile implements types.Compiler. Parse errors are returned as compile
// errors located in the page source.
func (c *Compiler) Compile(_ context.Context, src *types.SourceHandle) (types.Artifact, error) {
	funcs := template.FuncMap{
		"layout": func(string) string { return "" },
		"body":   func() template.HTML { return "" },
	}
	for name, fn := range c.funcs {
		funcs[name] = fn
	}

	tmpl, err := template.New(src.Path).Delims(c.left, c.right).Funcs(funcs).Parse(string(src.Content))
	if err != nil {
		return nil, c.parser.CompileErrorFrom(src.Path, err)
	}
	return &Artifact{path: src.Path, tmpl: tmpl}, nil
}

// Artifact is a parsed page template. The parsed tree is never executed
// directly; every execution works on a clone carrying its own layout and
// body functions.
type Artifact struct {
	path string
	tmpl *template.Template
}

// Bind implements types.Artifact.
func (a *Artifact) Bind(model any) (types.BoundInstance, error) {
	return &instance{artifact: a, model: model}, nil
}

type instance struct {
	artifact *Artifact
	model    any
}

// Execute implements types.BoundInstance.
func (i *instance) Execute(_ context.Context, childBody string) (types.Output, error) {
	var out types.Output

	tmpl, err := i.artifact.tmpl.Clone()
	if err != nil {
		return out, fmt.Errorf("clone %s: %w", i.artifact.path, err)
	}
	tmpl.Funcs(template.FuncMap{
		"layout": func(name string) string {
			out.Layout = name
			out.LayoutDeclared = true
			return ""
		},
		"body": func() template.HTML {
			// child output was already escaped by its own page
			return template.HTML(childBody) //nolint:gosec
		},
	})

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, i.model); err != nil {
		return types.Output{}, err
	}
	out.Text = buf.String()
	return out, nil
}
