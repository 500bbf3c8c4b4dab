// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package reproduction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobmeta"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

func newPipelineFixture(t *testing.T) (*store.DB, *artifacts.Repository, *sessions.Repository, *lineage.Service) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	artifactRepo := artifacts.New(db.Conn)
	sessionRepo := sessions.New(db.Conn)
	jobRepo := jobs.New(db.Conn)
	lineageSvc := lineage.New(artifactRepo, jobRepo)
	return db, artifactRepo, sessionRepo, lineageSvc
}

func TestLookupPipelineReturnsNotFoundForUnknownHash(t *testing.T) {
	_, artifactRepo, sessionRepo, lineageSvc := newPipelineFixture(t)
	_, err := lookupPipeline(artifactRepo, sessionRepo, lineageSvc, "deadbeef", 10)
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLookupPipelineRequiresGitRepo(t *testing.T) {
	db, artifactRepo, sessionRepo, lineageSvc := newPipelineFixture(t)

	sessionID, err := sessionRepo.GetOrCreateActive()
	require.NoError(t, err)

	digest := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	artifactID, created, err := artifactRepo.Register(db.Conn, map[string]string{"blake3": digest}, 10, "/repo/out.csv", "local", "", "")
	require.NoError(t, err)
	require.True(t, created)

	stepOne := 1
	jobID, _, err := jobs.Create(db.Conn, jobs.CreateParams{
		Command: "python gen.py", Timestamp: 1000, SessionID: &sessionID, StepNumber: &stepOne,
	})
	require.NoError(t, err)
	require.NoError(t, jobs.AddOutput(db.Conn, jobID, artifactID, "/repo/out.csv"))

	_, err = lookupPipeline(artifactRepo, sessionRepo, lineageSvc, digest, 10)
	require.ErrorIs(t, err, ErrNoGitRepo)
}

func TestLookupPipelineResolvesGitRepoAndCommit(t *testing.T) {
	db, artifactRepo, sessionRepo, lineageSvc := newPipelineFixture(t)

	sessionID, err := sessionRepo.Create(sessions.CreateParams{GitRepo: strPtr("https://example.com/repo.git"), GitCommit: strPtr("abc123")})
	require.NoError(t, err)
	require.NoError(t, sessionRepo.SetActive(sessionID))

	digest := "1111111111111111111111111111111111111111111111111111111111111111"
	artifactID, created, err := artifactRepo.Register(db.Conn, map[string]string{"blake3": digest}, 10, "/repo/out.csv", "local", "", "")
	require.NoError(t, err)
	require.True(t, created)

	stepOne := 1
	jobID, _, err := jobs.Create(db.Conn, jobs.CreateParams{
		Command: "python gen.py", Timestamp: 1000, SessionID: &sessionID, StepNumber: &stepOne,
	})
	require.NoError(t, err)
	require.NoError(t, jobs.AddOutput(db.Conn, jobID, artifactID, "/repo/out.csv"))

	pipeline, err := lookupPipeline(artifactRepo, sessionRepo, lineageSvc, digest, 10)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/repo.git", pipeline.GitRepo)
	require.Equal(t, digest, pipeline.ArtifactHash)
	require.Len(t, pipeline.Steps, 1)
}

func TestMergedMetadataCombinesPackagesAcrossSteps(t *testing.T) {
	meta1, err := jobmeta.Marshal(jobmeta.Metadata{Packages: jobmeta.Packages{Pip: jobmeta.PackageSet{"numpy": "1.26.0"}}})
	require.NoError(t, err)
	meta2, err := jobmeta.Marshal(jobmeta.Metadata{Packages: jobmeta.Packages{Pip: jobmeta.PackageSet{"pandas": ""}}})
	require.NoError(t, err)

	steps := []lineage.LineageJob{
		{Job: store.Job{Metadata: &meta1}},
		{Job: store.Job{Metadata: &meta2}},
	}

	merged := mergedMetadata(steps)
	require.Equal(t, "1.26.0", merged.Packages.Pip["numpy"])
	require.Contains(t, merged.Packages.Pip.AnyVersion(), "pandas")
}

func strPtr(s string) *string { return &s }
