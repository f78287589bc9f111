// Package markdown compiles Markdown pages with optional YAML front matter.
//
// A page may start with a front matter block:
//
//	---
//	title: Getting started
//	layout: Docs
//	---
//
// layout names the wrapping layout; an explicit empty layout opts the page
// out of the default one. The body is rendered to HTML once, at compile
// time, with GitHub Flavored Markdown enabled. Markdown pages ignore the
// bound model and cannot act as layouts themselves.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/types"
)

// Extension is the file extension handled by this compiler.
const Extension = ".md"

const fence = "---"

// FrontMatter is the metadata block at the top of a page.
type FrontMatter struct {
	Title  string  `yaml:"title"`
	Layout *string `yaml:"layout"`
	// Extra keeps every key, known or not.
	Extra map[string]any `yaml:"-"`
}

// Compiler is a types.Compiler for Markdown sources. The goldmark instance
// is shared; goldmark keeps per-call state in the parse context.
type Compiler struct {
	md goldmark.Markdown
}

// Option configures the goldmark instance.
type Option = goldmark.Option

// New creates a Markdown page compiler. Options are appended after the
// defaults.
func New(opts ...Option) *Compiler {
	defaults := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	}
	return &Compiler{md: goldmark.New(append(defaults, opts...)...)}
}

// Compile implements types.Compiler.
func (c *Compiler) Compile(_ context.Context, src *types.SourceHandle) (types.Artifact, error) {
	meta, body, bodyLine, err := splitFrontMatter(string(src.Content))
	if err != nil {
		return nil, errors.NewCompileError("invalid front matter", err).
			WithPage(src.Path).
			WithLocation(src.Path, frontMatterLine(err), 0)
	}

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(body), &buf); err != nil {
		return nil, errors.NewCompileError("markdown conversion failed", err).
			WithPage(src.Path).
			WithLocation(src.Path, bodyLine, 0)
	}

	return &Artifact{path: src.Path, meta: meta, html: buf.String()}, nil
}

// Artifact is a rendered Markdown page.
type Artifact struct {
	path string
	meta FrontMatter
	html string
}

// FrontMatter returns the page metadata.
func (a *Artifact) FrontMatter() FrontMatter { return a.meta }

// Bind implements types.Artifact. The model is not used.
func (a *Artifact) Bind(any) (types.BoundInstance, error) {
	return a, nil
}

// Execute implements types.BoundInstance.
func (a *Artifact) Execute(_ context.Context, childBody string) (types.Output, error) {
	if childBody != "" {
		return types.Output{}, fmt.Errorf("%s: markdown pages cannot wrap other pages", a.path)
	}
	out := types.Output{Text: a.html}
	if a.meta.Layout != nil {
		out.Layout = *a.meta.Layout
		out.LayoutDeclared = true
	}
	return out, nil
}

// splitFrontMatter separates a leading "---" block from the body. bodyLine
// is the 1-based source line where the body starts.
func splitFrontMatter(content string) (FrontMatter, string, int, error) {
	var meta FrontMatter

	content = strings.TrimPrefix(content, "\ufeff")
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, fence+"\n") {
		return meta, content, 1, nil
	}

	rest := normalized[len(fence)+1:]
	block, body, ok := cutAtFence(rest)
	if !ok {
		return meta, content, 1, fmt.Errorf("front matter is not terminated by %q", fence)
	}

	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return meta, "", 1, err
	}
	if err := yaml.Unmarshal([]byte(block), &meta.Extra); err != nil {
		return meta, "", 1, err
	}
	if _, ok := meta.Extra["layout"]; ok && meta.Layout == nil {
		// "layout:" with no value
		empty := ""
		meta.Layout = &empty
	}

	bodyLine := strings.Count(normalized[:len(normalized)-len(body)], "\n") + 1
	return meta, body, bodyLine, nil
}

// cutAtFence splits rest at the first line that is exactly the fence.
func cutAtFence(rest string) (block, body string, ok bool) {
	for offset := 0; ; {
		line, next := rest[offset:], len(rest)
		nl := strings.IndexByte(line, '\n')
		if nl >= 0 {
			line, next = line[:nl], offset+nl+1
		}
		if line == fence {
			return rest[:offset], rest[next:], true
		}
		if nl < 0 {
			return "", "", false
		}
		offset = next
	}
}

// frontMatterLine maps a yaml error to its source line. The block starts on
// line 2, after the opening fence.
func frontMatterLine(err error) int {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return 2
	}
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		return line + 1
	}
	return 1
}
