package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageError_Error(t *testing.T) {
	err := NewCompileError("unexpected EOF", nil).
		WithPage("/views/Home.tmpl").
		WithLocation("/views/Home.tmpl", 3, 7)

	assert.Equal(t, "[ERR_COMPILE] /views/Home.tmpl:3:7 unexpected EOF", err.Error())
}

func TestPageError_Predicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"resolution miss", ErrResolutionMiss("/nope"), IsResolutionMiss},
		{"compile", NewCompileError("bad", nil), IsCompileError},
		{"unexpected compile", NewUnexpectedCompileError("/a", errors.New("boom")), IsCompileError},
		{"layout cycle", ErrLayoutCycle([]string{"/a", "/b", "/a"}), IsLayoutCycle},
		{"source not found", ErrSourceNotFound("/a", nil), IsSourceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped), "predicate must see through wrapping")
		})
	}

	assert.False(t, IsCompileError(errors.New("plain")))
	assert.False(t, IsUnexpectedCompileError(NewCompileError("bad", nil)))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(fmt.Errorf("wrapped: %w", NewCompileError("bad", nil))))
	assert.False(t, IsRecoverable(ErrLayoutCycle([]string{"/views/A.tmpl"})))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestPageError_Is(t *testing.T) {
	a := ErrResolutionMiss("/a")
	b := ErrResolutionMiss("/b")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, NewCompileError("x", nil)))
}

func TestLayoutCycleMessage(t *testing.T) {
	err := ErrLayoutCycle([]string{"/views/A.tmpl", "/views/B.tmpl", "/views/A.tmpl"})
	assert.Contains(t, err.Error(), "/views/A.tmpl -> /views/B.tmpl -> /views/A.tmpl")
	assert.Equal(t, "/views/A.tmpl", err.Page)
}

func TestLocationParser(t *testing.T) {
	lp := NewLocationParser()

	tests := []struct {
		name    string
		msg     string
		want    Location
		matched bool
	}{
		{
			name:    "text/template parse error",
			msg:     `template: /views/Home.tmpl:4: unexpected "}" in operand`,
			want:    Location{File: "/views/Home.tmpl", Line: 4, Message: `unexpected "}" in operand`},
			matched: true,
		},
		{
			name:    "html/template escape error",
			msg:     "html/template:/views/Home.tmpl:2:15: no such template",
			want:    Location{File: "/views/Home.tmpl", Line: 2, Column: 15, Message: "no such template"},
			matched: true,
		},
		{
			name:    "no location",
			msg:     "something went wrong",
			matched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := lp.Parse(tt.msg)
			require.Equal(t, tt.matched, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLocationParser_CompileErrorFrom(t *testing.T) {
	lp := NewLocationParser()
	cause := errors.New(`template: /views/Home.tmpl:9: function "nope" not defined`)

	perr := lp.CompileErrorFrom("/views/Home.tmpl", cause)

	assert.Equal(t, ErrCodeCompile, perr.Code)
	assert.Equal(t, 9, perr.Line)
	assert.Equal(t, `function "nope" not defined`, perr.Message)
	assert.ErrorIs(t, perr, cause)
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())

	ec.Add("/b", errors.New("b"))
	ec.Add("/a", errors.New("a"))
	ec.Add("/c", nil)

	failures := ec.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "/a", failures[0].Page)
	assert.Equal(t, "/b", failures[1].Page)

	ec.Clear()
	assert.False(t, ec.HasErrors())
}
