package build

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/registry"
)

var sitePages = map[string]string{
	"/views/Home.tmpl":    "home",
	"/views/About.tmpl":   "about",
	"/views/_Layout.tmpl": "<main>@body</main>",
	"/views/Broken.tmpl":  "error: unexpected EOF",
	"/docs/intro.md":      "intro",
}

func newScheduler(f *fixture, workers int) *Scheduler {
	return NewScheduler(f.cache, workers, logging.NewNopLogger(), f.metrics)
}

func TestScheduleAll_Blocking(t *testing.T) {
	f := newFixture(t, sitePages)
	s := newScheduler(f, 2)
	defer s.Stop()

	batch := s.ScheduleAll(context.Background(), f.reg.Entries(), true)

	select {
	case <-batch.Done():
	default:
		t.Fatal("blocking batch returned before completion")
	}

	report := batch.Wait()
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 4, report.Valid)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "/views/Broken.tmpl", report.Failures[0].Page)
	assert.True(t, errors.IsCompileError(report.Failures[0].Err))

	for _, e := range f.reg.Entries() {
		assert.NotEqual(t, registry.StatusUnbuilt, e.Status(), e.Path())
		assert.NotEqual(t, registry.StatusBuilding, e.Status(), e.Path())
	}
}

func TestScheduleAll_NonBlocking(t *testing.T) {
	f := newFixture(t, sitePages)
	f.compiler.Delay = 20 * time.Millisecond
	s := newScheduler(f, 1)
	defer s.Stop()

	batch := s.ScheduleAll(context.Background(), f.reg.Entries(), false)

	select {
	case <-batch.Done():
		t.Fatal("non-blocking batch finished before returning")
	default:
	}

	report := batch.Wait()
	assert.Equal(t, 4, report.Valid)
	assert.Equal(t, 1, report.Failed)
}

func TestScheduleAll_RacesWithRequests(t *testing.T) {
	f := newFixture(t, sitePages)
	f.compiler.Delay = 10 * time.Millisecond
	s := newScheduler(f, 4)
	defer s.Stop()

	home := f.entry(t, "/views/Home.tmpl")
	batch := s.ScheduleAll(context.Background(), f.reg.Entries(), false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cache.EnsureCompiled(context.Background(), home)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	batch.Wait()

	for path := range sitePages {
		assert.Equal(t, 1, f.compiler.Calls(path), path)
	}
}

func TestScheduleAll_DuplicatesCompileOnce(t *testing.T) {
	f := newFixture(t, sitePages)
	s := newScheduler(f, 3)
	defer s.Stop()

	home := f.entry(t, "/views/Home.tmpl")
	report := s.ScheduleAll(context.Background(), []*registry.PageEntry{home, home, home}, true).Wait()

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, f.compiler.Calls("/views/Home.tmpl"))

	expected := `
# HELP test_precompile_pages Pages submitted in the most recent precompile batch
# TYPE test_precompile_pages gauge
test_precompile_pages 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(),
		strings.NewReader(expected), "test_precompile_pages"))
}

func TestScheduleAll_CancelledContextSkips(t *testing.T) {
	f := newFixture(t, sitePages)
	s := newScheduler(f, 2)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := s.ScheduleAll(ctx, f.reg.Entries(), true).Wait()
	assert.Equal(t, 5, report.Skipped)
	assert.Equal(t, 0, f.compiler.Total())
	for _, e := range f.reg.Entries() {
		assert.Equal(t, registry.StatusUnbuilt, e.Status())
	}
}

func TestScheduleAll_Empty(t *testing.T) {
	f := newFixture(t, map[string]string{})
	s := newScheduler(f, 2)
	defer s.Stop()

	report := s.ScheduleAll(context.Background(), nil, true).Wait()
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Valid+report.Failed+report.Skipped)
	assert.Empty(t, report.Failures)
}

func TestStartRewarm(t *testing.T) {
	f := newFixture(t, sitePages)
	s := newScheduler(f, 2)
	defer s.Stop()

	t.Run("rejects bad schedule", func(t *testing.T) {
		err := s.StartRewarm(context.Background(), "not a schedule", f.reg.Entries)
		assert.Error(t, err)
		assert.True(t, s.NextRewarm().IsZero())
	})

	t.Run("empty schedule is a no-op", func(t *testing.T) {
		assert.NoError(t, s.StartRewarm(context.Background(), "", f.reg.Entries))
		assert.True(t, s.NextRewarm().IsZero())
	})

	t.Run("schedules and refuses double start", func(t *testing.T) {
		require.NoError(t, s.StartRewarm(context.Background(), "@every 1h", f.reg.Entries))
		assert.False(t, s.NextRewarm().IsZero())
		assert.Error(t, s.StartRewarm(context.Background(), "@every 1h", f.reg.Entries))
	})
}

func TestRewarmOnce_OnlyUnbuilt(t *testing.T) {
	f := newFixture(t, sitePages)
	s := newScheduler(f, 2)
	defer s.Stop()

	s.ScheduleAll(context.Background(), f.reg.Entries(), true).Wait()
	require.Equal(t, 5, f.compiler.Total())

	home := f.entry(t, "/views/Home.tmpl")
	f.reg.Invalidate(home)

	s.rewarmOnce(context.Background(), f.reg.Entries())

	assert.Equal(t, 6, f.compiler.Total())
	assert.Equal(t, 2, f.compiler.Calls("/views/Home.tmpl"))
	assert.Equal(t, 1, f.compiler.Calls("/views/Broken.tmpl"))
	assert.Equal(t, registry.StatusValid, home.Status())
}
