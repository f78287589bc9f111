// Package server exposes a page engine over HTTP: rendered pages, a live
// reload websocket feed of registry events, health and page listings, and
// the Prometheus metrics endpoint.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/pageforge/internal/config"
	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/pages"
	"github.com/conneroisu/pageforge/internal/watcher"
)

// Reserved routes. Everything else is a page request.
const (
	RoutePrefix   = "/_pageforge/"
	RouteHealth   = RoutePrefix + "health"
	RoutePages    = RoutePrefix + "pages"
	RouteMetrics  = RoutePrefix + "metrics"
	RouteReload   = RoutePrefix + "ws"
	shutdownGrace = 5 * time.Second
)

// Server serves pages from an engine.
type Server struct {
	engine  *pages.Engine
	config  *config.Config
	logger  logging.Logger
	hub     *Hub
	watcher *watcher.FileWatcher

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New creates a server for engine. The file watcher is only created when
// cfg.Watch.Enabled is set.
func New(engine *pages.Engine, cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	s := &Server{
		engine: engine,
		config: cfg,
		logger: logger,
		hub:    NewHub(engine.Registry(), logger),
	}

	if cfg.Watch.Enabled {
		fw, err := watcher.NewFileWatcher(cfg.Source.Root, cfg.Watch.Debounce, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		fw.AddFilter(watcher.ExtensionFilter(cfg.Source.Extensions...))
		fw.Exclude(cfg.Source.Exclude...)
		s.watcher = fw
	}

	return s, nil
}

// Handler returns the HTTP handler with every route and middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(RouteHealth, s.handleHealth)
	mux.HandleFunc(RoutePages, s.handlePages)
	if s.config.Server.LiveReload {
		mux.HandleFunc(RouteReload, s.hub.HandleWebSocket)
	}
	if s.config.Metrics.Enabled && s.engine.Metrics() != nil {
		mux.Handle(RouteMetrics, s.engine.Metrics().Handler())
	}
	mux.HandleFunc("/", s.handlePage)

	return Chain(mux, RequestID(), RequestLogger(s.logger), Recoverer(s.logger))
}

// Start serves until ctx is cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.watcher != nil {
		s.watcher.AddHandler(s.engine.HandleChanges(ctx))
		if err := s.watcher.AddRecursive("/"); err != nil {
			s.logger.Warn(ctx, err, "Failed to watch source root", "root", s.watcher.Root())
		} else if err := s.watcher.Start(ctx); err != nil {
			s.logger.Warn(ctx, err, "Failed to start file watcher")
		}
	}

	if s.config.Server.LiveReload {
		s.hub.Start(ctx)
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Shutdown did not complete cleanly")
		}
	}()

	s.logger.Info(ctx, "Serving pages", "address", ln.Addr().String(), "pages", s.engine.Registry().Count())
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server, the file watcher and the reload hub.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}
		s.hub.Close()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
