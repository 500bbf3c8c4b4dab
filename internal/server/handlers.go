// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noldarim/roar/internal/dag"
	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/logger"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

type handlers struct {
	jobs      *jobs.Repository
	artifacts *artifacts.Repository
	sessions  *sessions.Repository
	dag       *dag.Service
	lineage   *lineage.Service
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Server().Error().Err(err).Msg("failed to encode response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// getLineage handles GET /api/v1/lineage/{id}, accepting either an artifact
// ID or an artifact hash, with an optional ?depth= query parameter.
func (h *handlers) getLineage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing artifact id")
		return
	}
	depth := 50
	if q := r.URL.Query().Get("depth"); q != "" {
		if d, err := strconv.Atoi(q); err == nil && d > 0 {
			depth = d
		}
	}
	result, err := h.lineage.GetFilteredLineage(id, depth)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getSessionSummary handles GET /api/v1/sessions/{hash}/summary.
func (h *handlers) getSessionSummary(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	session, err := h.sessions.GetByHash(hash)
	if err != nil || session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	summary, err := h.dag.GetSummary(session.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	states, err := h.dag.GetArtifactStates(session.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":         summary,
		"artifact_states": states,
	})
}

// searchJobs handles GET /api/v1/jobs/search?q=...&limit=....
func (h *handlers) searchJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if l, err := strconv.Atoi(q); err == nil && l > 0 {
			limit = l
		}
	}
	results, err := h.jobs.Search(query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// getJob handles GET /api/v1/jobs/{uid}.
func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	job, err := h.jobs.GetByUID(uid)
	if err != nil || job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	inputs, _ := h.jobs.GetInputs(job.ID)
	outputs, _ := h.jobs.GetOutputs(job.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":     job,
		"inputs":  inputs,
		"outputs": outputs,
	})
}

// getArtifact handles GET /api/v1/artifacts/{id}, accepting either a full
// artifact ID or a hash digest prefix.
func (h *handlers) getArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifact, err := h.artifacts.Get(id)
	if err != nil || artifact == nil {
		artifact, err = h.artifacts.GetByHash(id, "")
	}
	if err != nil || artifact == nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	hashes, _ := h.artifacts.GetHashes(artifact.ID)
	locations, _ := h.artifacts.GetLocations(artifact.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"artifact":  artifact,
		"hashes":    hashes,
		"locations": locations,
	})
}
