// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lookup resolves a user-supplied identifier (a job UID prefix, an
// artifact hash prefix, a "@N"/"@BN" step reference, or a session hash) to
// the concrete entity it names. It is a thin facade over the artifact, job,
// and session repositories.
package lookup

import (
	"github.com/noldarim/roar/internal/stepref"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

// EntityType classifies what a Result resolved to.
type EntityType string

const (
	EntityJob      EntityType = "job"
	EntityArtifact EntityType = "artifact"
	EntitySession  EntityType = "session"
	EntityStep     EntityType = "step"
)

// Result is a resolved identifier, carrying exactly one populated entity
// field depending on Type.
type Result struct {
	Type     EntityType
	Job      *store.Job
	Artifact *store.Artifact
	Session  *store.Session
}

// Service resolves identifiers against the local store.
type Service struct {
	jobs      *jobs.Repository
	artifacts *artifacts.Repository
	sessions  *sessions.Repository
}

// New builds a lookup service over the three repositories it fans out to.
func New(jobRepo *jobs.Repository, artifactRepo *artifacts.Repository, sessionRepo *sessions.Repository) *Service {
	return &Service{jobs: jobRepo, artifacts: artifactRepo, sessions: sessionRepo}
}

// Resolve tries, in order: step reference (identifiers starting with "@"),
// job UID, artifact hash, session hash. Returns (nil, nil) when nothing
// matches, the same collapse of ambiguous-prefix and not-found the
// repositories use.
func (s *Service) Resolve(identifier string) (*Result, error) {
	if stepref.IsStepReference(identifier) {
		return s.resolveStep(identifier)
	}
	if len(identifier) < 4 {
		return nil, nil
	}

	if job, err := s.jobs.GetByUID(identifier); err != nil {
		return nil, err
	} else if job != nil {
		return &Result{Type: EntityJob, Job: job}, nil
	}

	if len(identifier) >= 8 {
		if artifact, err := s.artifacts.GetByHash(identifier, ""); err != nil {
			return nil, err
		} else if artifact != nil {
			return &Result{Type: EntityArtifact, Artifact: artifact}, nil
		}
	}

	if session, err := s.resolveSessionHash(identifier); err != nil {
		return nil, err
	} else if session != nil {
		return &Result{Type: EntitySession, Session: session}, nil
	}

	return nil, nil
}

func (s *Service) resolveSessionHash(hashOrPrefix string) (*store.Session, error) {
	if exact, err := s.sessions.GetByHash(hashOrPrefix); err != nil {
		return nil, err
	} else if exact != nil {
		return exact, nil
	}
	return nil, nil
}

func (s *Service) resolveStep(reference string) (*Result, error) {
	ref, err := stepref.Parse(reference)
	if err != nil {
		return nil, nil
	}

	active, err := s.sessions.GetActive()
	if err != nil || active == nil {
		return nil, err
	}

	job, err := s.sessions.GetStepByNumber(active.ID, ref.StepNumber, ref.JobType())
	if err != nil || job == nil {
		return nil, err
	}
	return &Result{Type: EntityStep, Job: job}, nil
}
