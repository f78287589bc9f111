package build

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/monitoring"
	"github.com/conneroisu/pageforge/internal/registry"
)

// Report summarizes a precompilation batch.
type Report struct {
	Total    int
	Valid    int
	Failed   int
	Skipped  int
	Failures []errors.PageFailure
	Duration time.Duration
}

// Batch is a handle on a submitted precompilation batch.
type Batch struct {
	done   chan struct{}
	report Report
}

// Wait blocks until every unit of the batch has finished and returns its
// report.
func (b *Batch) Wait() Report {
	<-b.done
	return b.report
}

// Done is closed when the batch completes.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Scheduler warms the compilation cache ahead of first request. Work units
// go through the same Cache as request-time lookups, so a page being
// precompiled and requested at once is still compiled exactly once.
type Scheduler struct {
	cache   *Cache
	workers int
	metrics *monitoring.Collector
	logger  logging.Logger

	// background batches
	wg sync.WaitGroup

	mu      sync.Mutex
	cron    *cron.Cron
	rewarm  cron.EntryID
	running bool
}

// NewScheduler creates a scheduler running at most workers compiles at once.
// workers <= 0 means runtime.NumCPU().
func NewScheduler(cache *Cache, workers int, logger logging.Logger, metrics *monitoring.Collector) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scheduler{
		cache:   cache,
		workers: workers,
		metrics: metrics,
		logger:  logger.WithComponent("scheduler"),
	}
}

// Workers returns the concurrency limit.
func (s *Scheduler) Workers() int { return s.workers }

// ScheduleAll submits one compile unit per entry. With blocking set the call
// returns after all units finish; otherwise it returns immediately and the
// batch completes in the background. Individual failures are recorded in
// the entries and the report, never returned. Units not yet started when ctx
// is cancelled are skipped and their entries stay Unbuilt.
func (s *Scheduler) ScheduleAll(ctx context.Context, entries []*registry.PageEntry, blocking bool) *Batch {
	batch := &Batch{done: make(chan struct{})}
	entries = unique(entries)
	s.metrics.SetPrecompilePages(len(entries))

	if blocking {
		s.run(ctx, entries, batch)
		return batch
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, entries, batch)
	}()
	return batch
}

func (s *Scheduler) run(ctx context.Context, entries []*registry.PageEntry, batch *Batch) {
	defer close(batch.done)

	start := time.Now()
	collector := errors.NewErrorCollector()
	var valid, failed, skipped atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, entry := range entries {
		if ctx.Err() != nil {
			skipped.Add(1)
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			if _, err := s.cache.EnsureCompiled(ctx, entry); err != nil {
				collector.Add(entry.Path(), err)
				failed.Add(1)
				return nil
			}
			valid.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	batch.report = Report{
		Total:    len(entries),
		Valid:    int(valid.Load()),
		Failed:   int(failed.Load()),
		Skipped:  int(skipped.Load()),
		Failures: collector.Failures(),
		Duration: time.Since(start),
	}

	s.logger.Info(ctx, "precompile batch finished",
		"total", batch.report.Total,
		"valid", batch.report.Valid,
		"failed", batch.report.Failed,
		"skipped", batch.report.Skipped,
		"duration_ms", batch.report.Duration.Milliseconds())
}

// unique drops repeated entries, keeping first-seen order.
func unique(entries []*registry.PageEntry) []*registry.PageEntry {
	seen := make(map[*registry.PageEntry]struct{}, len(entries))
	out := make([]*registry.PageEntry, 0, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out
}

// StartRewarm recompiles Unbuilt entries on a cron schedule, so pages
// invalidated by source changes are warm again before the next request.
// entries is called on every tick. A tick that overlaps a running one is
// skipped. An empty schedule is a no-op.
func (s *Scheduler) StartRewarm(ctx context.Context, schedule string, entries func() []*registry.PageEntry) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid rewarm schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("rewarm already running")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := c.AddFunc(schedule, func() {
		s.rewarmOnce(ctx, entries())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule rewarm: %w", err)
	}

	c.Start()
	s.cron = c
	s.rewarm = id
	s.running = true

	s.logger.Info(ctx, "rewarm scheduler started", "schedule", schedule)
	return nil
}

func (s *Scheduler) rewarmOnce(ctx context.Context, entries []*registry.PageEntry) {
	if ctx.Err() != nil {
		return
	}

	stale := make([]*registry.PageEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status() == registry.StatusUnbuilt {
			stale = append(stale, e)
		}
	}
	if len(stale) == 0 {
		s.logger.Debug(ctx, "rewarm tick, nothing to compile")
		return
	}
	s.ScheduleAll(ctx, stale, true)
}

// NextRewarm returns the next scheduled rewarm, or the zero time when no
// rewarm is running.
func (s *Scheduler) NextRewarm() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.rewarm).Next
}

// Stop stops the rewarm schedule and waits for running ticks and background
// batches to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
	}
	s.mu.Unlock()

	s.wg.Wait()
}
