package gotmpl

import (
	"context"
	"html/template"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/types"
)

func compile(t *testing.T, c *Compiler, path, content string) types.Artifact {
	t.Helper()
	artifact, err := c.Compile(context.Background(), &types.SourceHandle{Path: path, Content: []byte(content)})
	require.NoError(t, err)
	return artifact
}

func execute(t *testing.T, a types.Artifact, model any, child string) types.Output {
	t.Helper()
	inst, err := a.Bind(model)
	require.NoError(t, err)
	out, err := inst.Execute(context.Background(), child)
	require.NoError(t, err)
	return out
}

func TestCompile_RendersModel(t *testing.T) {
	a := compile(t, New(), "/views/Hello.tmpl", `<p>Hello {{ .Name }}</p>`)

	out := execute(t, a, struct{ Name string }{"<Ada>"}, "")
	assert.Equal(t, "<p>Hello &lt;Ada&gt;</p>", out.Text)
	assert.False(t, out.LayoutDeclared)
}

func TestCompile_LayoutDeclaration(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		layout   string
		declared bool
	}{
		{"none", `hi`, "", false},
		{"named", `{{ layout "Site" }}hi`, "Site", true},
		{"opt out", `{{ layout "" }}hi`, "", true},
		{"conditional", `{{ if .Wide }}{{ layout "Wide" }}{{ end }}hi`, "Wide", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := compile(t, New(), "/views/P.tmpl", tt.src)
			out := execute(t, a, map[string]bool{"Wide": true}, "")
			assert.Equal(t, "hi", out.Text)
			assert.Equal(t, tt.layout, out.Layout)
			assert.Equal(t, tt.declared, out.LayoutDeclared)
		})
	}
}

func TestCompile_BodyIsNotEscaped(t *testing.T) {
	a := compile(t, New(), "/views/_Layout.tmpl", `<main>{{ body }}</main>`)

	out := execute(t, a, nil, "<p>child</p>")
	assert.Equal(t, "<main><p>child</p></main>", out.Text)
}

func TestCompile_ParseErrorHasLocation(t *testing.T) {
	_, err := New().Compile(context.Background(), &types.SourceHandle{
		Path:    "/views/Broken.tmpl",
		Content: []byte("line one\n{{ if .X }}\nno end"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCompileError(err))

	var perr *errors.PageError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "/views/Broken.tmpl", perr.Page)
	assert.Equal(t, "/views/Broken.tmpl", perr.FilePath)
	assert.Positive(t, perr.Line)
}

func TestCompile_UnknownFunction(t *testing.T) {
	_, err := New().Compile(context.Background(), &types.SourceHandle{
		Path:    "/views/P.tmpl",
		Content: []byte(`{{ shout "x" }}`),
	})
	assert.True(t, errors.IsCompileError(err))
}

func TestWithFuncs(t *testing.T) {
	c := New(WithFuncs(template.FuncMap{"shout": strings.ToUpper}))
	a := compile(t, c, "/views/P.tmpl", `{{ shout "x" }}`)
	assert.Equal(t, "X", execute(t, a, nil, "").Text)
}

func TestWithDelims(t *testing.T) {
	c := New(WithDelims("[[", "]]"))
	a := compile(t, c, "/views/P.tmpl", `[[ layout "Site" ]]{{ literal }}`)
	out := execute(t, a, nil, "")
	assert.Equal(t, "{{ literal }}", out.Text)
	assert.Equal(t, "Site", out.Layout)
}

func TestExecute_ConcurrentInstancesAreIsolated(t *testing.T) {
	a := compile(t, New(), "/views/_Layout.tmpl", `{{ if .Nest }}{{ layout "Outer" }}{{ end }}[{{ body }}]`)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nest := i%2 == 0
			inst, err := a.Bind(map[string]bool{"Nest": nest})
			require.NoError(t, err)
			out, err := inst.Execute(context.Background(), strings.Repeat("x", i))
			require.NoError(t, err)
			assert.Equal(t, "["+strings.Repeat("x", i)+"]", out.Text)
			assert.Equal(t, nest, out.LayoutDeclared)
		}(i)
	}
	wg.Wait()
}

func TestExecute_RuntimeError(t *testing.T) {
	a := compile(t, New(), "/views/P.tmpl", `{{ .Missing.Field }}`)
	inst, err := a.Bind(struct{ Missing *struct{ Field string } }{})
	require.NoError(t, err)
	_, err = inst.Execute(context.Background(), "")
	assert.Error(t, err)
}
