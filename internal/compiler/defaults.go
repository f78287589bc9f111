package compiler

import (
	"github.com/conneroisu/pageforge/internal/compiler/gotmpl"
	"github.com/conneroisu/pageforge/internal/compiler/markdown"
	"github.com/conneroisu/pageforge/internal/compiler/templc"
)

// NewDefault returns a mux with the built-in compilers: html/template for
// .tmpl, Markdown for .md and templ components from components for .templ.
// A nil components table leaves .templ unregistered.
func NewDefault(components *templc.Components, opts ...gotmpl.Option) *Mux {
	mux := NewMux()
	mux.Register(gotmpl.Extension, gotmpl.New(opts...))
	mux.Register(markdown.Extension, markdown.New())
	if components != nil {
		mux.Register(templc.Extension, templc.New(components))
	}
	return mux
}
