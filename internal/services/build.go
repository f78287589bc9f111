package services

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/pageforge/internal/build"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/scanner"
)

// BuildService compiles every page of a project once.
type BuildService struct {
	runtime *Runtime
}

// NewBuildService creates a new build service
func NewBuildService(rt *Runtime) *BuildService {
	return &BuildService{runtime: rt}
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Scan     scanner.ScanResult
	Report   build.Report
	Duration time.Duration
}

// Success reports whether every page compiled.
func (r *BuildResult) Success() bool {
	return r.Report.Failed == 0 && r.Report.Skipped == 0
}

// Build scans the source root and precompiles every page, waiting for the
// batch to finish. Page failures are reported in the result, not as an
// error.
func (s *BuildService) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	op := logging.StartOperation(s.runtime.Logger, "build")

	scan, err := s.runtime.Engine.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.runtime.Config.Source.Root, err)
	}

	report := s.runtime.Engine.Precompile(ctx, true).Wait()
	op.End(ctx, "pages", report.Total, "failed", report.Failed)
	return &BuildResult{
		Scan:     scan,
		Report:   report,
		Duration: time.Since(start),
	}, nil
}
