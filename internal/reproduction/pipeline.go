// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package reproduction

import (
	"errors"

	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobmeta"
	"github.com/noldarim/roar/internal/store/sessions"
)

// ErrArtifactNotFound is returned when the hash prefix given to Reproduce
// resolves to nothing in the local store.
var ErrArtifactNotFound = errors.New("reproduction: artifact not found")

// ErrNoGitRepo is returned when the artifact's producing session carries no
// recorded git remote — there's nothing to clone.
var ErrNoGitRepo = errors.New("reproduction: no git repository recorded for this artifact's session")

// Pipeline is everything Reproduce needs to replay the sequence of jobs
// that produced one artifact: where to clone from, what commit to check
// out, and the ordered steps to run.
type Pipeline struct {
	ArtifactHash string
	GitRepo      string
	GitCommit    string
	Steps        []lineage.LineageJob
}

// lookupPipeline resolves an artifact hash prefix to its reproduction
// pipeline: the lineage jobs needed to recreate it, in replay order, plus
// the git repo/commit recorded on its session.
func lookupPipeline(artifactRepo *artifacts.Repository, sessionRepo *sessions.Repository, lineageSvc *lineage.Service, hashPrefix string, maxDepth int) (*Pipeline, error) {
	artifact, err := artifactRepo.GetByHash(hashPrefix, "")
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, ErrArtifactNotFound
	}

	steps, err := lineageSvc.GetLineageJobs([]string{artifact.ID}, maxDepth)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, ErrArtifactNotFound
	}

	var gitRepo, gitCommit string
	for _, step := range steps {
		if step.Job.SessionID == nil {
			continue
		}
		session, err := sessionRepo.Get(*step.Job.SessionID)
		if err != nil || session == nil {
			continue
		}
		if session.GitRepo != nil && *session.GitRepo != "" {
			gitRepo = *session.GitRepo
		}
		if session.GitCommitEnd != nil && *session.GitCommitEnd != "" {
			gitCommit = *session.GitCommitEnd
		} else if session.GitCommitStart != nil {
			gitCommit = *session.GitCommitStart
		}
		if gitRepo != "" {
			break
		}
	}
	if gitRepo == "" {
		return nil, ErrNoGitRepo
	}

	hash := hashPrefix
	if hashes, err := artifactRepo.GetHashes(artifact.ID); err == nil {
		for _, h := range hashes {
			if h.Algorithm == "blake3" {
				hash = h.Digest
				break
			}
		}
	}

	return &Pipeline{ArtifactHash: hash, GitRepo: gitRepo, GitCommit: gitCommit, Steps: steps}, nil
}

// mergedMetadata folds every step's jobs.metadata packages/runtime into one
// set, since the container is provisioned once for the whole replay rather
// than per step.
func mergedMetadata(steps []lineage.LineageJob) jobmeta.Metadata {
	merged := jobmeta.Metadata{
		Packages: jobmeta.Packages{
			Pip: jobmeta.PackageSet{}, Dpkg: jobmeta.PackageSet{},
			BuildPip: jobmeta.PackageSet{}, BuildDpkg: jobmeta.PackageSet{},
		},
		EnvVars: map[string]string{},
	}
	for _, step := range steps {
		if step.Job.Metadata == nil {
			continue
		}
		meta, err := jobmeta.Parse(*step.Job.Metadata)
		if err != nil {
			continue
		}
		mergeSet(merged.Packages.Pip, meta.Packages.Pip)
		mergeSet(merged.Packages.Dpkg, meta.Packages.Dpkg)
		mergeSet(merged.Packages.BuildPip, meta.Packages.BuildPip)
		mergeSet(merged.Packages.BuildDpkg, meta.Packages.BuildDpkg)
		for k, v := range meta.EnvVars {
			merged.EnvVars[k] = v
		}
		if meta.Runtime.OS != "" {
			merged.Runtime = meta.Runtime
		}
	}
	return merged
}

func mergeSet(dst, src jobmeta.PackageSet) {
	for k, v := range src {
		dst[k] = v
	}
}
