package types

import (
	"path"
	"strings"
)

// Canonical normalizes a page path into the registry key form: forward
// slashes, a single leading slash, no "." or ".." elements.
func Canonical(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
