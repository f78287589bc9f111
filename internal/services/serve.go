package services

import (
	"context"
	"fmt"

	"github.com/conneroisu/pageforge/internal/config"
	"github.com/conneroisu/pageforge/internal/server"
)

// ServeService runs the development server.
type ServeService struct {
	runtime *Runtime
}

// NewServeService creates a new serve service
func NewServeService(rt *Runtime) *ServeService {
	return &ServeService{runtime: rt}
}

// ServerInfo describes where the server listens.
type ServerInfo struct {
	URL        string
	MetricsURL string
	LiveReload bool
}

// GetServerInfo returns the URLs the server will answer on.
func (s *ServeService) GetServerInfo() *ServerInfo {
	cfg := s.runtime.Config
	base := "http://" + cfg.Server.Address()
	info := &ServerInfo{URL: base, LiveReload: cfg.Server.LiveReload}
	if cfg.Metrics.Enabled {
		info.MetricsURL = base + server.RouteMetrics
	}
	return info
}

// Serve scans the project, warms the cache according to the precompile
// mode and serves until ctx is cancelled.
func (s *ServeService) Serve(ctx context.Context) error {
	cfg := s.runtime.Config
	engine := s.runtime.Engine
	logger := s.runtime.Logger

	if _, err := engine.Scan(ctx); err != nil {
		return fmt.Errorf("scanning %s: %w", cfg.Source.Root, err)
	}

	switch cfg.Precompile.Mode {
	case config.PrecompileBlocking:
		report := engine.Precompile(ctx, true).Wait()
		if report.Failed > 0 {
			logger.Info(ctx, "Serving with failed pages", "failed", report.Failed)
		}
	case config.PrecompileBackground:
		engine.Precompile(ctx, false)
	}

	if err := engine.StartRewarm(ctx, cfg.Precompile.RewarmSchedule); err != nil {
		return fmt.Errorf("starting rewarm: %w", err)
	}

	srv, err := server.New(engine, cfg, logger)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
