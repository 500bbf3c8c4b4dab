// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/dag"
	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

func newTestHandlers(t *testing.T) (*handlers, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	jobRepo := jobs.New(db.Conn)
	artifactRepo := artifacts.New(db.Conn)
	sessionRepo := sessions.New(db.Conn)
	dagSvc := dag.New(sessionRepo, jobRepo, artifactRepo)
	lineageSvc := lineage.New(artifactRepo, jobRepo)

	return &handlers{jobs: jobRepo, artifacts: artifactRepo, sessions: sessionRepo, dag: dagSvc, lineage: lineageSvc}, db
}

func newTestRouter(h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/lineage/{id}", h.getLineage)
		r.Get("/sessions/{hash}/summary", h.getSessionSummary)
		r.Get("/jobs/search", h.searchJobs)
		r.Get("/jobs/{uid}", h.getJob)
		r.Get("/artifacts/{id}", h.getArtifact)
	})
	return r
}

func TestGetJobNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/deadbeef", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobFound(t *testing.T) {
	h, db := newTestHandlers(t)
	router := newTestRouter(h)

	cmd := "python train.py"
	jobID, uid, err := jobs.Create(db.Conn, jobs.CreateParams{
		Command:   cmd,
		Timestamp: 1000,
	})
	require.NoError(t, err)
	require.NotZero(t, jobID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uid, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), cmd)
}

func TestSearchJobsRequiresQuery(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetArtifactNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionSummaryNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nosuchhash/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
