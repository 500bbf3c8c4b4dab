// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dag computes session-level staleness, dependency, and artifact
// state analyses over the jobs recorded in a session.
package dag

import (
	"sort"

	"github.com/samber/lo"

	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

// Service computes staleness and dependency relationships across the jobs
// recorded in a session, without mutating any of it.
type Service struct {
	sessions *sessions.Repository
	db       Queries
}

// Queries is the narrow repository surface the dag service needs, factored
// out so tests can substitute a double for the join-heavy lookups.
type Queries interface {
	GetInputs(jobID uint) ([]store.JobInput, error)
	GetOutputs(jobID uint) ([]store.JobOutput, error)
	FirstSeenPath(artifactID string) (string, error)
}

type repoQueries struct {
	jobs      *jobs.Repository
	artifacts *artifacts.Repository
}

func (q repoQueries) GetInputs(jobID uint) ([]store.JobInput, error) { return q.jobs.GetInputs(jobID) }
func (q repoQueries) GetOutputs(jobID uint) ([]store.JobOutput, error) {
	return q.jobs.GetOutputs(jobID)
}

func (q repoQueries) FirstSeenPath(artifactID string) (string, error) {
	a, err := q.artifacts.Get(artifactID)
	if err != nil || a == nil || a.FirstSeenPath == nil {
		return "", err
	}
	return *a.FirstSeenPath, nil
}

// New builds a dag service over the session, job, and artifact repositories.
func New(sessionRepo *sessions.Repository, jobRepo *jobs.Repository, artifactRepo *artifacts.Repository) *Service {
	return &Service{
		sessions: sessionRepo,
		db:       repoQueries{jobs: jobRepo, artifacts: artifactRepo},
	}
}

type stepOutput struct {
	stepNumber int
	artifactID string
}

// latestStepsByNumber collapses a session's job history to the most recent
// run of each distinct step number.
func latestStepsByNumber(steps []store.Job) map[int]store.Job {
	latest := make(map[int]store.Job)
	for _, step := range steps {
		if step.StepNumber == nil {
			continue
		}
		num := *step.StepNumber
		if existing, ok := latest[num]; !ok || step.Timestamp > existing.Timestamp {
			latest[num] = step
		}
	}
	return latest
}

// sortedStepNumbers returns the keys of a latest-step map in ascending
// order, the iteration order every analysis below relies on.
func sortedStepNumbers(latest map[int]store.Job) []int {
	nums := lo.Keys(latest)
	sort.Ints(nums)
	return nums
}

// outputPath resolves the path to credit a JobOutput row with, falling back
// to the artifact's first-seen path when the row carries none.
func (s *Service) outputPath(out store.JobOutput) (string, error) {
	if out.Path != "" {
		return out.Path, nil
	}
	return s.db.FirstSeenPath(out.ArtifactID)
}

func (s *Service) inputPath(in store.JobInput) (string, error) {
	if in.Path != "" {
		return in.Path, nil
	}
	return s.db.FirstSeenPath(in.ArtifactID)
}

// staleAnalysis carries the intermediate results shared by GetStaleSteps,
// GetStaleArtifacts, and GetArtifactStates.
type staleAnalysis struct {
	latest map[int]store.Job
	stale  map[int]struct{}
}

// analyzeStaleness builds the current output map, the inter-step dependency
// edges, and the stale-step fixed point for one session.
//
// A step is directly stale when its latest run consumed an artifact at a
// path whose current producer now emits a different artifact. Staleness then
// propagates to every step that depends, transitively, on a stale one.
func (s *Service) analyzeStaleness(sessionID uint) (*staleAnalysis, error) {
	steps, err := s.sessions.GetSteps(sessionID)
	if err != nil || len(steps) == 0 {
		return nil, err
	}
	latest := latestStepsByNumber(steps)
	nums := sortedStepNumbers(latest)

	// path -> (producing step number, current artifact ID). Ascending step
	// order makes the highest-numbered producer win when two steps write
	// the same path.
	outputPathToCurrent := make(map[string]stepOutput)
	for _, num := range nums {
		outputs, err := s.db.GetOutputs(latest[num].ID)
		if err != nil {
			return nil, err
		}
		for _, out := range outputs {
			path, err := s.outputPath(out)
			if err != nil {
				return nil, err
			}
			if path == "" {
				continue
			}
			outputPathToCurrent[path] = stepOutput{stepNumber: num, artifactID: out.ArtifactID}
		}
	}

	dependsOn := make(map[int]map[int]struct{})
	consumedArtifacts := make(map[int]map[string]string)
	for _, num := range nums {
		dependsOn[num] = map[int]struct{}{}
		consumedArtifacts[num] = map[string]string{}

		inputs, err := s.db.GetInputs(latest[num].ID)
		if err != nil {
			return nil, err
		}
		for _, in := range inputs {
			path, err := s.inputPath(in)
			if err != nil {
				return nil, err
			}
			if path == "" {
				continue
			}
			producer, ok := outputPathToCurrent[path]
			if !ok || producer.stepNumber >= num {
				continue
			}
			dependsOn[num][producer.stepNumber] = struct{}{}
			consumedArtifacts[num][path] = in.ArtifactID
		}
	}

	stale := make(map[int]struct{})
	for _, num := range nums {
		for path, consumedArtifactID := range consumedArtifacts[num] {
			if current, ok := outputPathToCurrent[path]; ok && current.artifactID != consumedArtifactID {
				stale[num] = struct{}{}
				break
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, num := range nums {
			if _, already := stale[num]; already {
				continue
			}
			for dep := range dependsOn[num] {
				if _, isStale := stale[dep]; isStale {
					stale[num] = struct{}{}
					changed = true
					break
				}
			}
		}
	}

	return &staleAnalysis{latest: latest, stale: stale}, nil
}

// GetStaleSteps returns the step numbers whose current run consumed an
// artifact that a re-run of its producer has since replaced, plus every
// step depending (directly or transitively) on one of those.
func (s *Service) GetStaleSteps(sessionID uint) ([]int, error) {
	analysis, err := s.analyzeStaleness(sessionID)
	if err != nil || analysis == nil {
		return nil, err
	}
	result := lo.Keys(analysis.stale)
	sort.Ints(result)
	return result, nil
}

// GetStaleArtifacts returns the artifact IDs produced by the session's
// currently stale steps.
func (s *Service) GetStaleArtifacts(sessionID uint) ([]string, error) {
	analysis, err := s.analyzeStaleness(sessionID)
	if err != nil || analysis == nil || len(analysis.stale) == 0 {
		return nil, err
	}

	var ids []string
	for num := range analysis.stale {
		step, ok := analysis.latest[num]
		if !ok {
			continue
		}
		outputs, err := s.db.GetOutputs(step.ID)
		if err != nil {
			return nil, err
		}
		for _, out := range outputs {
			ids = append(ids, out.ArtifactID)
		}
	}
	return ids, nil
}

// ArtifactState classifies an artifact produced within a session.
type ArtifactState string

const (
	// StateActive marks an artifact produced by the latest run of a
	// non-stale step.
	StateActive ArtifactState = "active"
	// StateStale marks an artifact produced by the latest run of a stale
	// step.
	StateStale ArtifactState = "stale"
	// StateSuperseded marks an artifact produced by a run that is no longer
	// its step's latest.
	StateSuperseded ArtifactState = "superseded"
)

// GetArtifactStates classifies every artifact produced in a session as
// active, stale, or superseded. An artifact produced by both a superseded
// run and the current one keeps the current run's state.
func (s *Service) GetArtifactStates(sessionID uint) (map[string]ArtifactState, error) {
	steps, err := s.sessions.GetSteps(sessionID)
	if err != nil || len(steps) == 0 {
		return nil, err
	}
	analysis, err := s.analyzeStaleness(sessionID)
	if err != nil || analysis == nil {
		return nil, err
	}

	latestJobIDs := make(map[uint]int, len(analysis.latest))
	for num, job := range analysis.latest {
		latestJobIDs[job.ID] = num
	}

	states := make(map[string]ArtifactState)
	// Superseded runs first so current-run classifications overwrite them.
	for _, job := range steps {
		if job.StepNumber == nil {
			continue
		}
		if _, isLatest := latestJobIDs[job.ID]; isLatest {
			continue
		}
		outputs, err := s.db.GetOutputs(job.ID)
		if err != nil {
			return nil, err
		}
		for _, out := range outputs {
			states[out.ArtifactID] = StateSuperseded
		}
	}
	for num, job := range analysis.latest {
		state := StateActive
		if _, isStale := analysis.stale[num]; isStale {
			state = StateStale
		}
		outputs, err := s.db.GetOutputs(job.ID)
		if err != nil {
			return nil, err
		}
		for _, out := range outputs {
			states[out.ArtifactID] = state
		}
	}
	return states, nil
}

// GetDownstreamSteps returns the sorted step numbers whose current run
// consumes an artifact produced by stepNumber's current run.
func (s *Service) GetDownstreamSteps(sessionID uint, stepNumber int) ([]int, error) {
	steps, err := s.sessions.GetSteps(sessionID)
	if err != nil || len(steps) == 0 {
		return nil, err
	}
	latest := latestStepsByNumber(steps)

	source, ok := latest[stepNumber]
	if !ok {
		return nil, nil
	}
	sourceOutputs, err := s.db.GetOutputs(source.ID)
	if err != nil {
		return nil, err
	}
	sourceArtifacts := lo.SliceToMap(sourceOutputs, func(o store.JobOutput) (string, struct{}) {
		return o.ArtifactID, struct{}{}
	})
	if len(sourceArtifacts) == 0 {
		return nil, nil
	}

	var downstream []int
	for num, step := range latest {
		if num == stepNumber {
			continue
		}
		inputs, err := s.db.GetInputs(step.ID)
		if err != nil {
			return nil, err
		}
		for _, in := range inputs {
			if _, ok := sourceArtifacts[in.ArtifactID]; ok {
				downstream = append(downstream, num)
				break
			}
		}
	}
	sort.Ints(downstream)
	return downstream, nil
}

// CheckGitConsistency delegates to the session repository.
func (s *Service) CheckGitConsistency(sessionID uint) (sessions.GitConsistency, error) {
	return s.sessions.CheckGitConsistency(sessionID)
}

// GetSummary delegates to the session repository.
func (s *Service) GetSummary(sessionID uint) (*sessions.Summary, error) {
	return s.sessions.GetSummary(sessionID)
}
