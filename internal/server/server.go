// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the lineage, session-summary, and job-search
// surfaces over REST, plus a WebSocket stream of job-registered events, so
// external tooling (dashboards, CI status checks) can observe the engine
// without shelling out to the CLI. The surface is strictly read-only.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noldarim/roar/internal/dag"
	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/logger"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

// Config configures the REST/WebSocket server (mirrors
// config.AppConfig.Server).
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Server is the REST + WebSocket API server over the provenance store.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
}

// New wires up the API server. It does not start listening — call Run for
// that.
func New(cfg Config, jobRepo *jobs.Repository, artifactRepo *artifacts.Repository, sessionRepo *sessions.Repository, dagSvc *dag.Service, lineageSvc *lineage.Service, events <-chan JobEvent) *Server {
	registry := NewClientRegistry()
	broadcaster := NewEventBroadcaster(events, registry)
	h := &handlers{jobs: jobRepo, artifacts: artifactRepo, sessions: sessionRepo, dag: dagSvc, lineage: lineageSvc}

	r := chi.NewRouter()
	r.Use(recoverPanics)
	r.Use(requestLogger)
	r.Use(corsHeaders(cfg.AllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/lineage/{id}", h.getLineage)
		r.Get("/sessions/{hash}/summary", h.getSessionSummary)
		r.Get("/jobs/search", h.searchJobs)
		r.Get("/jobs/{uid}", h.getJob)
		r.Get("/artifacts/{id}", h.getArtifact)
	})

	r.Get("/ws", HandleWebSocket(registry, cfg.AllowedOrigins))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		broadcaster: broadcaster,
	}
}

// Run starts the event broadcaster and the HTTP server, blocking until the
// server is shut down.
func (s *Server) Run(ctx context.Context) error {
	go s.broadcaster.Run(ctx)

	logger.Server().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
