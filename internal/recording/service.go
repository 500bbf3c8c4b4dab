// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recording implements the transactional job recording service.
package recording

import (
	"fmt"
	"os"
	"sync"

	"gorm.io/gorm"

	"github.com/noldarim/roar/internal/hashing"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

// Service records job executions with full lineage tracking: filtering
// hashable files, step-identity computation, session/step assignment,
// artifact registration, and input/output linking, all inside one
// transaction.
type Service struct {
	db        *gorm.DB
	hashing   *hashing.Service
	jobs      *jobs.Repository
	artifacts *artifacts.Repository
	sessions  *sessions.Repository

	// writeMu serializes job recording so two racing calls cannot read the
	// same MAX(step_number) and allocate duplicate step slots.
	writeMu sync.Mutex
}

// New builds a job recording service over the given dependencies.
func New(db *gorm.DB, hashingSvc *hashing.Service, jobRepo *jobs.Repository, artifactRepo *artifacts.Repository, sessionRepo *sessions.Repository) *Service {
	return &Service{db: db, hashing: hashingSvc, jobs: jobRepo, artifacts: artifactRepo, sessions: sessionRepo}
}

// RecordJobParams bundles every field RecordJob accepts, mirroring
// record_job's keyword arguments.
type RecordJobParams struct {
	Command         string
	Timestamp       float64
	GitRepo         string
	GitCommit       string
	GitBranch       string
	DurationSeconds *float64
	ExitCode        *int
	InputFiles      []string
	OutputFiles     []string
	Metadata        string
	StepName        string
	AssignToSession bool
	JobType         string
	RepoRoot        string
	Telemetry       string
	HashAlgorithms  []string
}

// RecordJob filters the given input/output files down to ones that can
// actually be hashed, computes the step identity over them, assigns a
// session and step number (creating an active session if none exists),
// inserts the job row, and registers + links every hashable artifact —
// all within a single transaction.
func (s *Service) RecordJob(p RecordJobParams) (uint, string, error) {
	algorithms := p.HashAlgorithms
	if len(algorithms) == 0 {
		algorithms = []string{"blake3"}
	}
	// Always include blake3: lineage tracing keys on the blake3 digest, so
	// every registered artifact carries one whatever the caller requested.
	algorithms = ensureBlake3(algorithms)

	hashableInputs := s.filterHashable(p.InputFiles)
	hashableOutputs := s.filterHashable(p.OutputFiles)

	stepIdentity := sessions.ComputeStepIdentity(hashableInputs, hashableOutputs, p.RepoRoot, p.Command)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var jobID uint
	var jobUID string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sessionID, stepNumber, err := s.assignToSession(tx, p.AssignToSession, stepIdentity, p.GitCommit)
		if err != nil {
			return err
		}

		jobID, jobUID, err = jobs.Create(tx, jobs.CreateParams{
			Command:         p.Command,
			Timestamp:       p.Timestamp,
			StepIdentity:    stepIdentity,
			SessionID:       sessionID,
			StepNumber:      stepNumber,
			StepName:        p.StepName,
			GitRepo:         p.GitRepo,
			GitCommit:       p.GitCommit,
			GitBranch:       p.GitBranch,
			DurationSeconds: p.DurationSeconds,
			ExitCode:        p.ExitCode,
			Metadata:        p.Metadata,
			JobType:         p.JobType,
			Telemetry:       p.Telemetry,
		})
		if err != nil {
			return err
		}

		if err := s.registerArtifacts(tx, jobID, hashableInputs, algorithms, true); err != nil {
			return err
		}
		return s.registerArtifacts(tx, jobID, hashableOutputs, algorithms, false)
	})
	if err != nil {
		if store.IsConflict(err) {
			return 0, "", fmt.Errorf("recording: %w: %v", store.ErrConflict, err)
		}
		return 0, "", err
	}

	return jobID, jobUID, nil
}

func ensureBlake3(algorithms []string) []string {
	for _, a := range algorithms {
		if a == "blake3" {
			return algorithms
		}
	}
	return append([]string{"blake3"}, algorithms...)
}

func (s *Service) filterHashable(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	var hashable []string
	for _, path := range files {
		digest, found, err := s.hashing.ComputeHash(path, "blake3")
		if err != nil || !found || digest == "" {
			continue
		}
		hashable = append(hashable, path)
	}
	return hashable
}

func (s *Service) assignToSession(tx *gorm.DB, assign bool, stepIdentity, gitCommit string) (*uint, *int, error) {
	if !assign {
		return nil, nil, nil
	}

	sessionRepo := sessions.New(tx)
	sessionID, err := sessionRepo.GetOrCreateActive()
	if err != nil {
		return nil, nil, err
	}

	var stepNumber int
	existing, err := sessionRepo.GetStepByIdentity(sessionID, stepIdentity)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil && existing.StepNumber != nil {
		stepNumber = *existing.StepNumber
	} else {
		stepNumber, err = sessionRepo.GetNextStepNumber(sessionID)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := sessionRepo.UpdateCurrentStep(sessionID, stepNumber); err != nil {
		return nil, nil, err
	}
	if gitCommit != "" {
		if err := sessionRepo.UpdateGitCommits(sessionID, gitCommit, true); err != nil {
			return nil, nil, err
		}
	}

	return &sessionID, &stepNumber, nil
}

func (s *Service) registerArtifacts(tx *gorm.DB, jobID uint, paths []string, algorithms []string, isInput bool) error {
	artifactRepo := artifacts.New(tx)
	hashSvc := s.hashing.WithDB(tx)
	for _, path := range paths {
		hashes, err := hashSvc.ComputeHashes(path, algorithms)
		if err != nil {
			return err
		}
		if len(hashes) == 0 {
			continue
		}

		size := int64(0)
		if info, statErr := os.Stat(path); statErr == nil {
			size = info.Size()
		}

		artifactID, _, err := artifactRepo.Register(tx, hashes, size, path, "", "", "")
		if err != nil {
			return err
		}

		if isInput {
			err = jobs.AddInput(tx, jobID, artifactID, path)
		} else {
			err = jobs.AddOutput(tx, jobID, artifactID, path)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
