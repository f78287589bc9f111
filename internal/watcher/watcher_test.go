package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/testutils"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestFilters(t *testing.T) {
	ext := ExtensionFilter(".tmpl", ".MD")
	assert.True(t, ext("/views/Home.tmpl"))
	assert.True(t, ext("/docs/a.md"))
	assert.False(t, ext("/static/a.css"))

	exclude := ExcludeFilter("node_modules", ".*")
	assert.True(t, exclude("/views/Home.tmpl"))
	assert.False(t, exclude("/node_modules/x/a.tmpl"))
	assert.False(t, exclude("/views/.Home.tmpl.swp"))
}

func TestCanonical(t *testing.T) {
	root := t.TempDir()
	fw, err := NewFileWatcher(root, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	got, err := fw.canonical(filepath.Join(fw.Root(), "views", "Home.tmpl"))
	require.NoError(t, err)
	assert.Equal(t, "/views/Home.tmpl", got)

	_, err = fw.canonical(filepath.Dir(fw.Root()))
	assert.Error(t, err)
}

func TestDebouncer_CoalescesByPath(t *testing.T) {
	d := &Debouncer{
		delay:  20 * time.Millisecond,
		events: make(chan ChangeEvent, 10),
		output: make(chan []ChangeEvent, 1),
	}

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "/b.tmpl"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "/a.tmpl"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "/b.tmpl"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "/a.tmpl", events[0].Path)
		assert.Equal(t, "/b.tmpl", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(time.Second):
		t.Fatal("debouncer did not flush")
	}
}

type recorder struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (r *recorder) handle(events []ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) saw(pagePath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Path == pagePath {
			return true
		}
	}
	return false
}

func TestFileWatcher_ReportsCanonicalChanges(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{
		"views/Home.tmpl":       "home",
		"node_modules/x/a.tmpl": "ignored",
		"static/site.css":       "body{}",
	})

	fw, err := NewFileWatcher(root, 20*time.Millisecond, logging.NewNopLogger())
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(ExtensionFilter(".tmpl", ".md"))
	fw.Exclude("node_modules", ".*")
	rec := &recorder{}
	fw.AddHandler(rec.handle)
	require.NoError(t, fw.AddRecursive("/"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "views", "Home.tmpl"), []byte("home v2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "static", "site.css"), []byte("p{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x", "a.tmpl"), []byte("x"), 0o644))

	testutils.WaitFor(t, 2*time.Second, func() bool { return rec.saw("/views/Home.tmpl") }, "Home.tmpl change")
	assert.False(t, rec.saw("/static/site.css"))
	assert.False(t, rec.saw("/node_modules/x/a.tmpl"))
}

func TestFileWatcher_WatchesNewDirectories(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{"views/Home.tmpl": "home"})

	fw, err := NewFileWatcher(root, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(ExtensionFilter(".tmpl"))
	rec := &recorder{}
	fw.AddHandler(rec.handle)
	require.NoError(t, fw.AddRecursive("/"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	dir := filepath.Join(root, "blog", "views")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Post.tmpl"), []byte("post"), 0o644))

	testutils.WaitFor(t, 2*time.Second, func() bool { return rec.saw("/blog/views/Post.tmpl") }, "new file in new directory")
}
