// Package source implements the virtual source provider over an afero
// filesystem. Production code roots it at the project directory; tests use
// an in-memory filesystem.
package source

import (
	"encoding/hex"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/types"
)

// Provider reads page sources from an afero filesystem addressed by
// canonical paths.
type Provider struct {
	fs afero.Fs
}

var _ types.SourceProvider = (*Provider)(nil)

// NewProvider wraps fs. Canonical paths are resolved relative to the root of fs.
func NewProvider(fs afero.Fs) *Provider {
	return &Provider{fs: fs}
}

// NewOSProvider serves sources from the directory root on the local disk.
func NewOSProvider(root string) *Provider {
	return NewProvider(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// Fs exposes the underlying filesystem for scanners.
func (p *Provider) Fs() afero.Fs {
	return p.fs
}

// ReadSource implements types.SourceProvider.
func (p *Provider) ReadSource(pagePath string) (*types.SourceHandle, error) {
	canonical := types.Canonical(pagePath)

	info, err := p.fs.Stat(canonical)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrSourceNotFound(canonical, err)
		}
		return nil, errors.NewInternalError("stat "+canonical, err)
	}
	if info.IsDir() {
		return nil, errors.ErrSourceNotFound(canonical, fs.ErrInvalid)
	}

	content, err := afero.ReadFile(p.fs, canonical)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrSourceNotFound(canonical, err)
		}
		return nil, errors.NewInternalError("read "+canonical, err)
	}

	return &types.SourceHandle{
		Path:    canonical,
		Content: content,
		ModTime: info.ModTime(),
		Hash:    HashContent(content),
	}, nil
}

// Exists reports whether a regular file exists at pagePath.
func (p *Provider) Exists(pagePath string) bool {
	info, err := p.fs.Stat(types.Canonical(pagePath))
	return err == nil && !info.IsDir()
}

// HashSource returns the content hash of the file at pagePath without
// building a full handle.
func (p *Provider) HashSource(pagePath string) (string, error) {
	content, err := afero.ReadFile(p.fs, types.Canonical(pagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.ErrSourceNotFound(types.Canonical(pagePath), err)
		}
		return "", err
	}
	return HashContent(content), nil
}

// Walk lists the canonical paths of every regular file under root whose
// extension is in exts. Directories matching an exclude glob (by base name)
// are skipped, as are files matching one.
func (p *Provider) Walk(root string, exts []string, exclude []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}

	var paths []string
	err := afero.Walk(p.fs, types.Canonical(root), func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if excluded(info.Name(), exclude) {
			if info.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if allowed[strings.ToLower(path.Ext(walkPath))] {
			paths = append(paths, types.Canonical(walkPath))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

func excluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// HashContent returns the hex BLAKE3 digest of content.
func HashContent(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
