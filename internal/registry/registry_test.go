package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pageforge/internal/types"
)

type stubArtifact struct{ name string }

func (a *stubArtifact) Bind(model any) (types.BoundInstance, error) { return nil, nil }

func TestNewRegistry(t *testing.T) {
	r := NewRegistry("", nil)

	assert.NotNil(t, r)
	assert.Equal(t, DefaultViewsDir, r.ViewsDir())
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.Entries())
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry("views", nil)

	first := r.Register("/views/Home.tmpl")
	second := r.Register("views/./Home.tmpl")

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, StatusUnbuilt, first.Status())
	assert.Equal(t, "/views/Home.tmpl", first.Path())
}

func TestRegistry_RegisterConcurrent(t *testing.T) {
	r := NewRegistry("views", nil)

	const goroutines = 50
	results := make([]*PageEntry, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Register("/views/Home.tmpl")
		}(i)
	}
	wg.Wait()

	for _, entry := range results {
		assert.Same(t, results[0], entry)
	}
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_LogicalNameIndex(t *testing.T) {
	r := NewRegistry("views", nil)

	home := r.Register("/views/Home.tmpl")
	nested := r.Register("/admin/Views/Dashboard.tmpl")
	static := r.Register("/about/index.tmpl")

	assert.Equal(t, "Home", home.LogicalName())
	assert.Equal(t, "Dashboard", nested.LogicalName())
	assert.Equal(t, "", static.LogicalName())

	got, ok := r.LookupByLogicalName("home")
	require.True(t, ok)
	assert.Same(t, home, got)

	got, ok = r.LookupByLogicalName("DASHBOARD")
	require.True(t, ok)
	assert.Same(t, nested, got)

	_, ok = r.LookupByLogicalName("index")
	assert.False(t, ok, "pages outside the views namespace are not indexed")
}

func TestRegistry_LogicalNameCollisionLastWins(t *testing.T) {
	r := NewRegistry("views", nil)

	r.Register("/views/Item.tmpl")
	second := r.Register("/shop/views/Item.md")

	got, ok := r.LookupByLogicalName("Item")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_LookupByPath(t *testing.T) {
	r := NewRegistry("views", nil)
	entry := r.Register("/views/Home.tmpl")

	got, ok := r.LookupByPath("/views/Home.tmpl")
	require.True(t, ok)
	assert.Same(t, entry, got)

	_, ok = r.LookupByPath("/views/home.tmpl")
	assert.False(t, ok, "paths are case-sensitive")
	assert.True(t, r.Contains("/views/Home.tmpl"))
}

func TestRegistry_Invalidate(t *testing.T) {
	r := NewRegistry("views", nil)
	entry := r.Register("/views/Home.tmpl")

	assert.False(t, r.Invalidate(entry), "unbuilt entries have nothing to drop")

	artifact := &stubArtifact{name: "v1"}
	_, compiled, err := entry.Build(func() (types.Artifact, string, error) {
		return artifact, "hash-1", nil
	})
	require.NoError(t, err)
	require.True(t, compiled)
	require.Equal(t, StatusValid, entry.Status())
	assert.Equal(t, "hash-1", entry.SourceHash())

	assert.True(t, r.Invalidate(entry))
	assert.Equal(t, StatusUnbuilt, entry.Status())
	_, ok := entry.Artifact()
	assert.False(t, ok)
	assert.Equal(t, "", entry.SourceHash())

	// The entry itself survives invalidation.
	got, ok := r.LookupByPath("/views/Home.tmpl")
	require.True(t, ok)
	assert.Same(t, entry, got)
}

func TestRegistry_InvalidateFailedEntry(t *testing.T) {
	r := NewRegistry("views", nil)
	entry := r.Register("/views/Broken.tmpl")

	_, _, err := entry.Build(func() (types.Artifact, string, error) {
		return nil, "", fmt.Errorf("syntax error")
	})
	require.Error(t, err)
	require.Equal(t, StatusFailed, entry.Status())

	assert.True(t, r.Invalidate(entry))
	assert.Equal(t, StatusUnbuilt, entry.Status())
	assert.NoError(t, entry.LastError())
}

func TestRegistry_WatchEvents(t *testing.T) {
	r := NewRegistry("views", nil)
	events := r.Watch()
	defer r.UnWatch(events)

	entry := r.Register("/views/Home.tmpl")
	_, _, _ = entry.Build(func() (types.Artifact, string, error) { return &stubArtifact{}, "", nil })
	r.Invalidate(entry)

	first := <-events
	assert.Equal(t, EventTypeAdded, first.Type)
	assert.Equal(t, "/views/Home.tmpl", first.Path)

	second := <-events
	assert.Equal(t, EventTypeInvalidated, second.Type)
}

func TestRegistry_EntriesSorted(t *testing.T) {
	r := NewRegistry("views", nil)
	for _, p := range []string{"/views/b.tmpl", "/a.tmpl", "/views/a.tmpl"} {
		r.Register(p)
	}

	var paths []string
	for _, entry := range r.Entries() {
		paths = append(paths, entry.Path())
	}
	assert.Equal(t, []string{"/a.tmpl", "/views/a.tmpl", "/views/b.tmpl"}, paths)
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, FoldName("Straße"), FoldName("STRASSE"))
	assert.Equal(t, FoldName("Layout"), FoldName("layout"))
}
