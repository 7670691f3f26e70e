// Package server exposes the monitoring agent over an HTTP JSON API,
// including a bounded live-streaming endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/setevik/sentinel/internal/agent"
	"github.com/setevik/sentinel/internal/config"
	"github.com/setevik/sentinel/internal/metrics"
	"github.com/setevik/sentinel/internal/scheduler"
)

// Server translates HTTP requests into store queries, on-demand scans,
// and live streams.
type Server struct {
	cfg     *config.Config
	agent   *agent.Agent
	sched   *scheduler.Scheduler // nil when running without the background loop
	version string
	started time.Time

	httpServer *http.Server
}

// New creates the API server. sched may be nil (scan-only deployments).
func New(cfg *config.Config, a *agent.Agent, sched *scheduler.Scheduler, version string) *Server {
	s := &Server{
		cfg:     cfg,
		agent:   a,
		sched:   sched,
		version: version,
		started: time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	return s
}

// Handler returns the route table. Exposed separately so tests can drive
// it without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("GET /monitor", s.handleMonitor)
	mux.HandleFunc("GET /rules", s.handleRules)
	mux.HandleFunc("POST /rules/reload", s.handleRulesReload)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /processes", s.handleProcesses)
	mux.HandleFunc("GET /network", s.handleNetwork)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

// Start begins serving in the background. ListenAndServe errors other than
// a clean shutdown are logged, not returned.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", "addr", s.cfg.Server.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) uptime() time.Duration {
	return time.Since(s.started)
}

func (s *Server) schedulerState() string {
	if s.sched == nil {
		return "disabled"
	}
	return s.sched.State().String()
}
