// Package errors defines the structured error taxonomy of the page engine.
//
// Every failure that crosses a package boundary is a *PageError carrying a
// category (Type), a stable code, an optional cause and, for compile errors,
// the source location. Callers classify errors with the Is* predicates rather
// than by string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeCompile    ErrorType = "compile"
	ErrorTypeLayout     ErrorType = "layout"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeResolutionMiss    = "ERR_RESOLUTION_MISS"
	ErrCodeCompile           = "ERR_COMPILE"
	ErrCodeCompileUnexpected = "ERR_COMPILE_UNEXPECTED"
	ErrCodeLayoutCycle       = "ERR_LAYOUT_CYCLE"
	ErrCodeRenderFailed      = "ERR_RENDER_FAILED"
	ErrCodeSourceNotFound    = "ERR_SOURCE_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeInternal          = "ERR_INTERNAL"
)

// PageError is a structured error type with context.
type PageError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Page        string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *PageError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Page != "" && e.Page != e.FilePath {
		parts = append(parts, "page:"+e.Page)
	}

	if e.FilePath != "" {
		parts = append(parts, e.Location())
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Location formats the file position as path[:line[:column]].
func (e *PageError) Location() string {
	location := e.FilePath
	if e.Line > 0 {
		location += fmt.Sprintf(":%d", e.Line)
		if e.Column > 0 {
			location += fmt.Sprintf(":%d", e.Column)
		}
	}
	return location
}

// Unwrap returns the underlying cause error.
func (e *PageError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PageError) Is(target error) bool {
	var t *PageError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PageError) WithContext(key string, value interface{}) *PageError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *PageError) WithLocation(filePath string, line, column int) *PageError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithPage records the canonical path of the page the error belongs to.
func (e *PageError) WithPage(page string) *PageError {
	e.Page = page

	return e
}

// NewCompileError creates a structured compile error. Use WithLocation to
// attach the position the compiler reported.
func NewCompileError(message string, cause error) *PageError {
	return &PageError{
		Type:        ErrorTypeCompile,
		Code:        ErrCodeCompile,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewUnexpectedCompileError wraps a failure that the compiler did not
// attribute to the page source.
func NewUnexpectedCompileError(page string, cause error) *PageError {
	return &PageError{
		Type:        ErrorTypeCompile,
		Code:        ErrCodeCompileUnexpected,
		Message:     "unexpected failure compiling page",
		Cause:       cause,
		Page:        page,
		Recoverable: true,
	}
}

// NewRenderError creates an error raised while executing a compiled page.
func NewRenderError(page string, cause error) *PageError {
	return &PageError{
		Type:        ErrorTypeRender,
		Code:        ErrCodeRenderFailed,
		Message:     "rendering failed",
		Cause:       cause,
		Page:        page,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *PageError {
	return &PageError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *PageError {
	return &PageError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternal,
		Message: message,
		Cause:   cause,
	}
}

// ErrResolutionMiss reports that no page matched a request.
func ErrResolutionMiss(requestPath string) *PageError {
	return &PageError{
		Type:        ErrorTypeResolution,
		Code:        ErrCodeResolutionMiss,
		Message:     "no page found for " + requestPath,
		Recoverable: true,
	}
}

// ErrSourceNotFound reports that the source provider has nothing at path.
func ErrSourceNotFound(path string, cause error) *PageError {
	return &PageError{
		Type:        ErrorTypeIO,
		Code:        ErrCodeSourceNotFound,
		Message:     "source not found",
		Cause:       cause,
		FilePath:    path,
		Recoverable: true,
	}
}

// ErrLayoutCycle reports a layout chain that leads back to a page already
// rendered in the same chain.
func ErrLayoutCycle(chain []string) *PageError {
	return &PageError{
		Type:    ErrorTypeLayout,
		Code:    ErrCodeLayoutCycle,
		Message: "layout cycle: " + strings.Join(chain, " -> "),
		Page:    chain[0],
	}
}

func hasCode(err error, codes ...string) bool {
	var pe *PageError
	if !errors.As(err, &pe) {
		return false
	}
	for _, code := range codes {
		if pe.Code == code {
			return true
		}
	}
	return false
}

// IsResolutionMiss checks if no page matched a request.
func IsResolutionMiss(err error) bool {
	return hasCode(err, ErrCodeResolutionMiss)
}

// IsCompileError checks if an error is a structured or unexpected compile failure.
func IsCompileError(err error) bool {
	return hasCode(err, ErrCodeCompile, ErrCodeCompileUnexpected)
}

// IsUnexpectedCompileError checks if a compile failure was not attributed to the source.
func IsUnexpectedCompileError(err error) bool {
	return hasCode(err, ErrCodeCompileUnexpected)
}

// IsLayoutCycle checks if an error reports a layout cycle.
func IsLayoutCycle(err error) bool {
	return hasCode(err, ErrCodeLayoutCycle)
}

// IsSourceNotFound checks if an error reports a missing source.
func IsSourceNotFound(err error) bool {
	return hasCode(err, ErrCodeSourceNotFound)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// As is re-exported so callers importing this package under its usual name
// do not also need the standard errors package.
func As(err error, target any) bool {
	return errors.As(err, target)
}
