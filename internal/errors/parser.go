package errors

import (
	"regexp"
	"strconv"
	"strings"
)

// Location is a position inside a page source.
type Location struct {
	File    string
	Line    int
	Column  int
	Message string
}

type locationPattern struct {
	regex       *regexp.Regexp
	parseFields func(matches []string) Location
}

// LocationParser extracts source positions from compiler messages so that
// compile errors can be reported with file, line and column.
type LocationParser struct {
	patterns []locationPattern
}

// NewLocationParser creates a parser that understands html/template,
// text/template and generic "file:line:col: message" output.
func NewLocationParser() *LocationParser {
	return &LocationParser{patterns: buildLocationPatterns()}
}

// Parse returns the first location found in msg. ok is false when no known
// pattern matched.
func (lp *LocationParser) Parse(msg string) (Location, bool) {
	for _, line := range strings.Split(msg, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, pattern := range lp.patterns {
			if matches := pattern.regex.FindStringSubmatch(line); matches != nil {
				return pattern.parseFields(matches), true
			}
		}
	}
	return Location{}, false
}

// CompileErrorFrom builds a structured compile error for page from a
// compiler error, attaching the parsed location when one is present.
func (lp *LocationParser) CompileErrorFrom(page string, cause error) *PageError {
	perr := NewCompileError("compilation failed", cause).WithPage(page)
	if loc, ok := lp.Parse(cause.Error()); ok {
		perr.Message = loc.Message
		perr.WithLocation(page, loc.Line, loc.Column)
	} else {
		perr.FilePath = page
	}
	return perr
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func buildLocationPatterns() []locationPattern {
	return []locationPattern{
		{
			// html/template: "html/template:page.tmpl:3:12: message"
			regex: regexp.MustCompile(`^html/template:(.+?):(\d+):(\d+): (.+)$`),
			parseFields: func(m []string) Location {
				return Location{File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: m[4]}
			},
		},
		{
			// text/template parse: "template: page.tmpl:3: message"
			regex: regexp.MustCompile(`^template: (.+?):(\d+): (.+)$`),
			parseFields: func(m []string) Location {
				return Location{File: m[1], Line: atoi(m[2]), Message: m[3]}
			},
		},
		{
			regex: regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+)$`),
			parseFields: func(m []string) Location {
				return Location{File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: m[4]}
			},
		},
		{
			regex: regexp.MustCompile(`^(.+?):(\d+): (.+)$`),
			parseFields: func(m []string) Location {
				return Location{File: m[1], Line: atoi(m[2]), Message: m[3]}
			},
		},
	}
}
