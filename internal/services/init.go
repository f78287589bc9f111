package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pageforge/internal/config"
)

// InitService scaffolds a new site.
type InitService struct {
	fs afero.Fs
}

// NewInitService creates an init service writing to fs. A nil fs means the
// local disk.
func NewInitService(fs afero.Fs) *InitService {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &InitService{fs: fs}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	// Minimal writes only the configuration file and the views directory
	Minimal bool
	// Force overwrites existing files
	Force bool
}

// starterPages are written unless InitOptions.Minimal is set.
var starterPages = map[string]string{
	"views/_Layout.tmpl": `<!DOCTYPE html>
<html>
<head><title>{{ with .Title }}{{ . }}{{ else }}pageforge{{ end }}</title></head>
<body>
{{ body }}
</body>
</html>
`,
	"index.tmpl": `<h1>It works</h1>
<p>Edit index.tmpl and the page reloads.</p>
`,
	"docs/intro.md": `---
title: Introduction
---
# Introduction

Markdown pages are wrapped in the default layout too.
`,
}

// InitProject writes the configuration file and starter pages. It returns
// the paths it created, relative to the project directory.
func (s *InitService) InitProject(opts InitOptions) ([]string, error) {
	dir := opts.ProjectDir
	if dir == "" {
		dir = "."
	}
	cfg := config.Default()

	if err := s.fs.MkdirAll(filepath.Join(dir, cfg.Source.ViewsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}

	files := map[string][]byte{config.FileName + ".yml": data}
	if !opts.Minimal {
		for name, content := range starterPages {
			files[name] = []byte(content)
		}
	}

	created := make([]string, 0, len(files))
	for _, name := range sortedKeys(files) {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if !opts.Force {
			if exists, err := afero.Exists(s.fs, full); err != nil {
				return created, err
			} else if exists {
				return created, fmt.Errorf("%s already exists (use --force to overwrite)", full)
			}
		}
		if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return created, err
		}
		if err := afero.WriteFile(s.fs, full, files[name], os.FileMode(0o644)); err != nil {
			return created, fmt.Errorf("writing %s: %w", full, err)
		}
		created = append(created, name)
	}
	return created, nil
}
