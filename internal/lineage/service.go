// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lineage implements artifact lineage tracing and DAG
// reconstruction.
package lineage

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
)

// Service traces the job DAG needed to reproduce a set of target artifacts.
type Service struct {
	artifacts *artifacts.Repository
	jobs      *jobs.Repository
}

// New builds a lineage service over the artifact and job repositories.
func New(artifactRepo *artifacts.Repository, jobRepo *jobs.Repository) *Service {
	return &Service{artifacts: artifactRepo, jobs: jobRepo}
}

// LineageJob is a job discovered during upstream lineage traversal, with
// its input/output artifacts resolved to (hash, path) pairs.
type LineageJob struct {
	Job     store.Job
	Inputs  []ArtifactRef
	Outputs []ArtifactRef
}

// ArtifactRef is a (blake3 hash, path) pair attached to a lineage job.
type ArtifactRef struct {
	Hash string
	Path string
}

func (s *Service) blake3Of(artifactID string) (string, error) {
	hashes, err := s.artifacts.GetHashes(artifactID)
	if err != nil {
		return "", err
	}
	for _, h := range hashes {
		if h.Algorithm == "blake3" {
			return h.Digest, nil
		}
	}
	return "", nil
}

// resolveArtifactID accepts either a full artifact ID or a blake3 hash
// (prefix), returning the canonical artifact ID.
func (s *Service) resolveArtifactID(idOrHash string) (string, error) {
	a, err := s.artifacts.Get(idOrHash)
	if err != nil {
		return "", err
	}
	if a != nil {
		return a.ID, nil
	}
	a, err = s.artifacts.GetByHash(idOrHash, "blake3")
	if err != nil {
		return "", err
	}
	if a != nil {
		return a.ID, nil
	}
	return "", nil
}

// GetLineageJobs returns every job in the upstream DAG of the given
// artifacts (by ID or blake3 hash), depth-first from `produced_by[0]`,
// deduplicated by job ID and artifact ID, sorted by timestamp ascending —
// a topological order that reproduces the targets when replayed in
// sequence.
func (s *Service) GetLineageJobs(artifactIDs []string, maxDepth int) ([]LineageJob, error) {
	visitedJobs := make(map[uint]struct{})
	visitedArtifacts := make(map[string]struct{})
	var result []LineageJob

	var traceUpstream func(artifactID string, depth int) error
	traceUpstream = func(artifactID string, depth int) error {
		if depth > maxDepth {
			return nil
		}
		if _, seen := visitedArtifacts[artifactID]; seen {
			return nil
		}
		visitedArtifacts[artifactID] = struct{}{}

		producerJobs, err := s.artifacts.GetJobs(artifactID)
		if err != nil {
			return err
		}
		if len(producerJobs.ProducedBy) == 0 {
			return nil
		}
		producer := producerJobs.ProducedBy[0]
		if _, seen := visitedJobs[producer.ID]; seen {
			return nil
		}
		visitedJobs[producer.ID] = struct{}{}

		inputRows, err := s.jobs.GetInputs(producer.ID)
		if err != nil {
			return err
		}
		inputs := make([]ArtifactRef, 0, len(inputRows))
		for _, in := range inputRows {
			hash, err := s.blake3Of(in.ArtifactID)
			if err != nil {
				return err
			}
			if hash != "" {
				inputs = append(inputs, ArtifactRef{Hash: hash, Path: in.Path})
			}
		}
		for _, in := range inputRows {
			if err := traceUpstream(in.ArtifactID, depth+1); err != nil {
				return err
			}
		}

		outputRows, err := s.jobs.GetOutputs(producer.ID)
		if err != nil {
			return err
		}
		outputs := make([]ArtifactRef, 0, len(outputRows))
		for _, out := range outputRows {
			hash, err := s.blake3Of(out.ArtifactID)
			if err != nil {
				return err
			}
			if hash != "" {
				outputs = append(outputs, ArtifactRef{Hash: hash, Path: out.Path})
			}
		}

		result = append(result, LineageJob{Job: producer, Inputs: inputs, Outputs: outputs})
		return nil
	}

	for _, idOrHash := range artifactIDs {
		resolved, err := s.resolveArtifactID(idOrHash)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			continue
		}
		if err := traceUpstream(resolved, 0); err != nil {
			return nil, err
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Job.Timestamp < result[j].Job.Timestamp })
	return result, nil
}

// FilteredLineage is the result of GetFilteredLineage: the resolved target
// artifact, its upstream jobs (inputs/outputs pruned to the dependency
// path), and the set of blake3 hashes that lie on that path.
type FilteredLineage struct {
	Target       *store.Artifact
	Jobs         []LineageJob
	OnPathHashes map[string]struct{}
}

// GetFilteredLineage traces the upstream DAG of a single artifact and, for
// each job on the path, filters its inputs/outputs to only those artifacts
// whose blake3 hash is itself on the path. Returns a nil Target when
// the artifact cannot be resolved by ID or hash.
func (s *Service) GetFilteredLineage(artifactIDOrHash string, maxDepth int) (*FilteredLineage, error) {
	target, err := s.artifacts.Get(artifactIDOrHash)
	if err != nil {
		return nil, err
	}
	if target == nil {
		target, err = s.artifacts.GetByHash(artifactIDOrHash, "blake3")
		if err != nil {
			return nil, err
		}
		if target == nil {
			return &FilteredLineage{}, nil
		}
	}

	targetHash, err := s.blake3Of(target.ID)
	if err != nil {
		return nil, err
	}
	if targetHash == "" {
		return &FilteredLineage{}, nil
	}

	onPath := map[string]struct{}{targetHash: {}}
	visitedArtifacts := make(map[string]struct{})
	visitedJobs := make(map[uint]struct{})

	type rawJob struct {
		job        store.Job
		allInputs  []store.JobInput
		allOutputs []store.JobOutput
	}
	var raw []rawJob

	var traceUpstream func(artifactID string, depth int) error
	traceUpstream = func(artifactID string, depth int) error {
		if depth > maxDepth {
			return nil
		}
		if _, seen := visitedArtifacts[artifactID]; seen {
			return nil
		}
		visitedArtifacts[artifactID] = struct{}{}

		producerJobs, err := s.artifacts.GetJobs(artifactID)
		if err != nil {
			return err
		}
		if len(producerJobs.ProducedBy) == 0 {
			return nil
		}
		producer := producerJobs.ProducedBy[0]
		if _, seen := visitedJobs[producer.ID]; seen {
			return nil
		}
		visitedJobs[producer.ID] = struct{}{}

		inputRows, err := s.jobs.GetInputs(producer.ID)
		if err != nil {
			return err
		}
		for _, in := range inputRows {
			hash, err := s.blake3Of(in.ArtifactID)
			if err != nil {
				return err
			}
			if hash != "" {
				onPath[hash] = struct{}{}
			}
		}

		outputRows, err := s.jobs.GetOutputs(producer.ID)
		if err != nil {
			return err
		}

		raw = append(raw, rawJob{job: producer, allInputs: inputRows, allOutputs: outputRows})

		for _, in := range inputRows {
			if err := traceUpstream(in.ArtifactID, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := traceUpstream(target.ID, 0); err != nil {
		return nil, err
	}

	result := make([]LineageJob, 0, len(raw))
	for _, r := range raw {
		var inputs, outputs []ArtifactRef
		for _, in := range r.allInputs {
			hash, err := s.blake3Of(in.ArtifactID)
			if err != nil {
				return nil, err
			}
			if _, onPathOK := onPath[hash]; hash != "" && onPathOK {
				inputs = append(inputs, ArtifactRef{Hash: hash, Path: in.Path})
			}
		}
		for _, out := range r.allOutputs {
			hash, err := s.blake3Of(out.ArtifactID)
			if err != nil {
				return nil, err
			}
			if _, onPathOK := onPath[hash]; hash != "" && onPathOK {
				outputs = append(outputs, ArtifactRef{Hash: hash, Path: out.Path})
			}
		}
		result = append(result, LineageJob{Job: r.job, Inputs: inputs, Outputs: outputs})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Job.Timestamp < result[j].Job.Timestamp })

	return &FilteredLineage{Target: target, Jobs: result, OnPathHashes: onPath}, nil
}

// Manifest is the YAML-serializable reproduction manifest for a lineage.
type Manifest struct {
	Target string         `yaml:"target"`
	Steps  []ManifestStep `yaml:"steps"`
}

// ManifestStep is one replay step of a reproduction manifest.
type ManifestStep struct {
	JobUID    string   `yaml:"job_uid,omitempty"`
	Command   string   `yaml:"command"`
	Timestamp float64  `yaml:"timestamp"`
	Inputs    []string `yaml:"inputs,omitempty"`
	Outputs   []string `yaml:"outputs,omitempty"`
}

// ExportManifest renders a lineage job list as a topologically-ordered YAML
// reproduction manifest.
func ExportManifest(target string, jobsInOrder []LineageJob) (string, error) {
	manifest := Manifest{Target: target}
	for _, lj := range jobsInOrder {
		step := ManifestStep{Command: lj.Job.Command, Timestamp: lj.Job.Timestamp}
		if lj.Job.JobUID != nil {
			step.JobUID = *lj.Job.JobUID
		}
		for _, in := range lj.Inputs {
			step.Inputs = append(step.Inputs, in.Path)
		}
		for _, out := range lj.Outputs {
			step.Outputs = append(step.Outputs, out.Path)
		}
		manifest.Steps = append(manifest.Steps, step)
	}

	b, err := yaml.Marshal(manifest)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
