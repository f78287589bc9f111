package services

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pageforge/internal/config"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/resolver"
	"github.com/conneroisu/pageforge/internal/testutils"
)

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Source.Root = root
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Watch.Enabled = false
	return cfg
}

func TestEngineOptions(t *testing.T) {
	cfg := config.Default()
	opts := EngineOptions(cfg)
	assert.Equal(t, "_Layout", opts.DefaultLayout)
	assert.False(t, opts.NoDefaultLayout)
	assert.Equal(t, cfg.Source.Exclude, opts.Exclude)

	cfg.Render.DefaultLayout = ""
	assert.True(t, EngineOptions(cfg).NoDefaultLayout)
}

func TestBuildService_Build(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{
		"views/_Layout.tmpl": "<main>{{ body }}</main>",
		"index.tmpl":         "home",
		"docs/intro.md":      "# Intro",
		"node_modules/x.md":  "ignored",
	})
	rt := NewRuntime(testConfig(root), logging.NewNopLogger(), nil)
	defer rt.Close()

	result, err := NewBuildService(rt).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 3, result.Scan.Found)
	assert.Equal(t, 3, result.Report.Valid)

	out, err := rt.Engine.Render(context.Background(), resolver.Descriptor{RequestPath: "/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<main>home</main>", out)
}

func TestBuildService_ReportsFailures(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{
		"index.tmpl":  "{{ if }}",
		"about.templ": "templ About() {}",
	})
	rt := NewRuntime(testConfig(root), logging.NewNopLogger(), nil)
	defer rt.Close()

	result, err := NewBuildService(rt).Build(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 2, result.Report.Failed)
	require.Len(t, result.Report.Failures, 2)
	assert.Equal(t, "/about.templ", result.Report.Failures[0].Page)
	assert.Equal(t, "/index.tmpl", result.Report.Failures[1].Page)
}

func TestServeService_GetServerInfo(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Server.Port = 9090
	rt := NewRuntime(cfg, logging.NewNopLogger(), nil)
	defer rt.Close()

	info := NewServeService(rt).GetServerInfo()
	assert.Equal(t, "http://127.0.0.1:9090", info.URL)
	assert.Equal(t, "http://127.0.0.1:9090/_pageforge/metrics", info.MetricsURL)
	assert.True(t, info.LiveReload)

	cfg.Metrics.Enabled = false
	assert.Empty(t, NewServeService(rt).GetServerInfo().MetricsURL)
}

func TestServeService_StopsWithContext(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{"index.tmpl": "home"})
	cfg := testConfig(root)
	cfg.Precompile.Mode = config.PrecompileBlocking
	rt := NewRuntime(cfg, logging.NewNopLogger(), nil)
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServeService(rt).Serve(ctx) }()

	testutils.WaitFor(t, 2*time.Second, func() bool {
		entry, ok := rt.Engine.Registry().LookupByPath("/index.tmpl")
		return ok && entry.Status().String() == "valid"
	}, "blocking precompile")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestInitService_InitProject(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := NewInitService(fs)

	created, err := svc.InitProject(InitOptions{ProjectDir: "/site"})
	require.NoError(t, err)
	assert.Equal(t, []string{".pageforge.yml", "docs/intro.md", "index.tmpl", "views/_Layout.tmpl"}, created)

	for _, name := range created {
		exists, err := afero.Exists(fs, filepath.Join("/site", name))
		require.NoError(t, err)
		assert.True(t, exists, name)
	}

	// The written configuration loads back to the defaults.
	data, err := afero.ReadFile(fs, "/site/.pageforge.yml")
	require.NoError(t, err)
	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(data)))
	loaded, err := config.LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), loaded)

	_, err = svc.InitProject(InitOptions{ProjectDir: "/site"})
	assert.ErrorContains(t, err, "already exists")

	_, err = svc.InitProject(InitOptions{ProjectDir: "/site", Force: true})
	assert.NoError(t, err)
}

func TestInitService_Minimal(t *testing.T) {
	fs := afero.NewMemMapFs()
	created, err := NewInitService(fs).InitProject(InitOptions{ProjectDir: "/site", Minimal: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".pageforge.yml"}, created)

	isDir, err := afero.IsDir(fs, "/site/views")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestInitService_StarterSiteBuilds(t *testing.T) {
	root := t.TempDir()
	_, err := NewInitService(nil).InitProject(InitOptions{ProjectDir: root})
	require.NoError(t, err)

	rt := NewRuntime(testConfig(root), logging.NewNopLogger(), nil)
	defer rt.Close()
	result, err := NewBuildService(rt).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success(), "%+v", result.Report.Failures)
	assert.Equal(t, 3, result.Report.Valid)
}
