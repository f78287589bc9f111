package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Source.Root)
	assert.Equal(t, "views", cfg.Source.ViewsDir)
	assert.Equal(t, []string{".tmpl", ".md", ".templ"}, cfg.Source.Extensions)
	assert.Equal(t, "index", cfg.Source.IndexName)
	assert.Contains(t, cfg.Source.Exclude, "node_modules")
	assert.Equal(t, "_Layout", cfg.Render.DefaultLayout)
	assert.Equal(t, "bare", cfg.Render.BareFormat)
	assert.Equal(t, PrecompileBackground, cfg.Precompile.Mode)
	assert.Equal(t, "localhost:8080", cfg.Server.Address())
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pageforge", cfg.Metrics.Namespace)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	loaded, err := LoadFrom(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, loaded, cfg)
}

func TestLoad_Overrides(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(v *viper.Viper)
		verify func(t *testing.T, cfg *Config)
	}{
		{
			name: "extensions are normalized",
			setup: func(v *viper.Viper) {
				v.Set("source.extensions", []string{"TMPL", ".Md"})
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{".tmpl", ".md"}, cfg.Source.Extensions)
			},
		},
		{
			name: "comma separated lists",
			setup: func(v *viper.Viper) {
				v.Set("source.exclude", "dist, .cache")
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"dist", ".cache"}, cfg.Source.Exclude)
			},
		},
		{
			name: "default layout can be disabled",
			setup: func(v *viper.Viper) {
				v.Set("render.default_layout", "")
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "", cfg.Render.DefaultLayout)
			},
		},
		{
			name: "debounce from string",
			setup: func(v *viper.Viper) {
				v.Set("watch.debounce", "1s")
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, time.Second, cfg.Watch.Debounce)
			},
		},
		{
			name: "mode is case insensitive",
			setup: func(v *viper.Viper) {
				v.Set("precompile.mode", "Blocking")
				v.Set("precompile.rewarm_schedule", "*/5 * * * *")
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, PrecompileBlocking, cfg.Precompile.Mode)
				assert.Equal(t, "*/5 * * * *", cfg.Precompile.RewarmSchedule)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t)
			tt.setup(v)
			cfg, err := LoadFrom(v)
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"port too large", "server.port", 70000},
		{"negative port", "server.port", -1},
		{"port not a number", "server.port", "http"},
		{"host injection", "server.host", "localhost; rm -rf /"},
		{"unknown precompile mode", "precompile.mode", "eager"},
		{"negative workers", "precompile.workers", -2},
		{"bad rewarm schedule", "precompile.rewarm_schedule", "every tuesday"},
		{"nested views dir", "source.views_dir", "a/views"},
		{"empty index name", "source.index_name", ""},
		{"no extensions", "source.extensions", []string{}},
		{"dotted extension", "source.extensions", []string{".tar.gz"}},
		{"bad exclude glob", "source.exclude", []string{"[oops"}},
		{"unknown log level", "log.level", "chatty"},
		{"unknown log format", "log.format", "xml"},
		{"negative debounce", "watch.debounce", "-1s"},
		{"empty root", "source.root", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tt.key, tt.value)
			_, err := LoadFrom(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ValidationErrorIsTyped(t *testing.T) {
	v := newViper(t)
	v.Set("precompile.mode", "eager")
	_, err := LoadFrom(v)

	var perr *errors.PageError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, errors.ErrCodeConfigInvalid, perr.Code)
}

func TestConfigure_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
source:
  root: ./site
  views_dir: templates
server:
  port: 9000
log:
  level: debug
`), 0o644))

	t.Setenv("PAGEFORGE_SERVER_HOST", "0.0.0.0")
	t.Setenv("PAGEFORGE_RENDER_DEFAULT_LAYOUT", "Shell")

	v := viper.New()
	Configure(v, file)
	require.NoError(t, ReadFile(v))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "./site", cfg.Source.Root)
	assert.Equal(t, "templates", cfg.Source.ViewsDir)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address())
	assert.Equal(t, "Shell", cfg.Render.DefaultLayout)
	assert.Equal(t, logging.LevelDebug, cfg.LoggerConfig().Level)
}

func TestReadFile_MissingDefaultIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	v := viper.New()
	Configure(v, "")
	assert.NoError(t, ReadFile(v))
}

func TestReadFile_MissingExplicitFails(t *testing.T) {
	v := viper.New()
	Configure(v, filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, ReadFile(v))
}
