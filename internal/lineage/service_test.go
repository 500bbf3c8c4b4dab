// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package lineage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/recording"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"

	"github.com/noldarim/roar/internal/hashing"
	"github.com/noldarim/roar/internal/store/sessions"
)

func newPipeline(t *testing.T) (*store.DB, *recording.Service, *lineage.Service) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hashingSvc := hashing.NewService(hashing.NewRegistry(), hashing.NewCache(db.Conn))
	jobRepo := jobs.New(db.Conn)
	artifactRepo := artifacts.New(db.Conn)
	sessionRepo := sessions.New(db.Conn)
	recordingSvc := recording.New(db.Conn, hashingSvc, jobRepo, artifactRepo, sessionRepo)
	lineageSvc := lineage.New(artifactRepo, jobRepo)

	return db, recordingSvc, lineageSvc
}

func TestGetLineageJobsTracesUpstreamChain(t *testing.T) {
	db, recordingSvc, lineageSvc := newPipeline(t)
	dir := t.TempDir()

	raw := filepath.Join(dir, "raw.csv")
	cleaned := filepath.Join(dir, "cleaned.csv")
	model := filepath.Join(dir, "model.pkl")
	require.NoError(t, os.WriteFile(raw, []byte("raw"), 0o644))

	_, _, err := recordingSvc.RecordJob(recording.RecordJobParams{
		Command:     "python clean.py",
		Timestamp:   1,
		InputFiles:  []string{raw},
		OutputFiles: []string{cleaned},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cleaned, []byte("cleaned"), 0o644))
	_, _, err = recordingSvc.RecordJob(recording.RecordJobParams{
		Command:     "python clean.py",
		Timestamp:   1,
		InputFiles:  []string{raw},
		OutputFiles: []string{cleaned},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))
	_, _, err = recordingSvc.RecordJob(recording.RecordJobParams{
		Command:     "python train.py",
		Timestamp:   2,
		InputFiles:  []string{cleaned},
		OutputFiles: []string{model},
	})
	require.NoError(t, err)

	artifactRepo := artifacts.New(db.Conn)
	modelArtifact, err := artifactRepo.GetByPath(model)
	require.NoError(t, err)
	require.NotNil(t, modelArtifact)

	jobsInOrder, err := lineageSvc.GetLineageJobs([]string{modelArtifact.ID}, 10)
	require.NoError(t, err)
	require.Len(t, jobsInOrder, 2)
	require.Equal(t, "python clean.py", jobsInOrder[0].Job.Command)
	require.Equal(t, "python train.py", jobsInOrder[1].Job.Command)
}

func TestGetFilteredLineageFiltersOnPathArtifacts(t *testing.T) {
	db, recordingSvc, lineageSvc := newPipeline(t)
	dir := t.TempDir()

	raw := filepath.Join(dir, "raw.csv")
	sideInput := filepath.Join(dir, "config.yaml")
	model := filepath.Join(dir, "model.pkl")
	require.NoError(t, os.WriteFile(raw, []byte("raw"), 0o644))
	require.NoError(t, os.WriteFile(sideInput, []byte("cfg"), 0o644))
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	_, _, err := recordingSvc.RecordJob(recording.RecordJobParams{
		Command:     "python train.py",
		Timestamp:   1,
		InputFiles:  []string{raw, sideInput},
		OutputFiles: []string{model},
	})
	require.NoError(t, err)

	artifactRepo := artifacts.New(db.Conn)
	modelArtifact, err := artifactRepo.GetByPath(model)
	require.NoError(t, err)

	filtered, err := lineageSvc.GetFilteredLineage(modelArtifact.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, filtered.Target)
	require.Len(t, filtered.Jobs, 1)
	require.Len(t, filtered.Jobs[0].Inputs, 2)
	require.Len(t, filtered.Jobs[0].Outputs, 1)
}

func TestGetFilteredLineageUnknownArtifact(t *testing.T) {
	_, _, lineageSvc := newPipeline(t)
	filtered, err := lineageSvc.GetFilteredLineage("doesnotexist", 10)
	require.NoError(t, err)
	require.Nil(t, filtered.Target)
}

func TestExportManifestProducesYAML(t *testing.T) {
	db, recordingSvc, lineageSvc := newPipeline(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "data.csv")
	output := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(output, []byte("y"), 0o644))

	_, _, err := recordingSvc.RecordJob(recording.RecordJobParams{
		Command:     "python process.py",
		Timestamp:   1,
		InputFiles:  []string{input},
		OutputFiles: []string{output},
	})
	require.NoError(t, err)

	artifactRepo := artifacts.New(db.Conn)
	outArtifact, err := artifactRepo.GetByPath(output)
	require.NoError(t, err)

	jobsInOrder, err := lineageSvc.GetLineageJobs([]string{outArtifact.ID}, 10)
	require.NoError(t, err)

	manifest, err := lineage.ExportManifest(outArtifact.ID, jobsInOrder)
	require.NoError(t, err)
	require.Contains(t, manifest, "command: python process.py")
	require.Contains(t, manifest, "target:")
}
