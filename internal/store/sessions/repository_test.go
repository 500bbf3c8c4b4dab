// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package sessions_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNormalizePathGlobifiesSequences(t *testing.T) {
	got := sessions.NormalizePath("/repo/checkpoints/model_001.pt", "/repo")
	require.Equal(t, "checkpoints/model_*.pt", got)
}

func TestNormalizePathFallsBackToBaseName(t *testing.T) {
	got := sessions.NormalizePath("/unrelated/tree/data_042.csv", "")
	require.Equal(t, "data_*.csv", got)
}

func TestComputeStepIdentityDeterministicRegardlessOfOrder(t *testing.T) {
	a := sessions.ComputeStepIdentity(
		[]string{"/repo/b.csv", "/repo/a.csv"},
		[]string{"/repo/out.csv"},
		"/repo", "",
	)
	b := sessions.ComputeStepIdentity(
		[]string{"/repo/a.csv", "/repo/b.csv"},
		[]string{"/repo/out.csv"},
		"/repo", "",
	)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestComputeStepIdentityFallsBackToCommand(t *testing.T) {
	id := sessions.ComputeStepIdentity(nil, nil, "", "python train.py --epochs 5")
	require.Len(t, id, 64)

	// Identical script, different flags, same identity.
	id2 := sessions.ComputeStepIdentity(nil, nil, "", "python train.py --epochs 50")
	require.Equal(t, id, id2)
}

func TestGetOrCreateActiveIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := sessions.New(db.Conn)

	first, err := repo.GetOrCreateActive()
	require.NoError(t, err)
	require.NotZero(t, first)

	second, err := repo.GetOrCreateActive()
	require.NoError(t, err)
	require.Equal(t, first, second)

	active, err := repo.GetActive()
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, first, active.ID)
	require.Len(t, *active.Hash, 64)
}

func TestCreateDeactivatesOthers(t *testing.T) {
	db := newTestDB(t)
	repo := sessions.New(db.Conn)

	first, err := repo.Create(sessions.CreateParams{MakeActive: true})
	require.NoError(t, err)
	second, err := repo.Create(sessions.CreateParams{MakeActive: true})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	active, err := repo.GetActive()
	require.NoError(t, err)
	require.Equal(t, second, active.ID)
}

func TestSetActive(t *testing.T) {
	db := newTestDB(t)
	repo := sessions.New(db.Conn)

	a, err := repo.Create(sessions.CreateParams{MakeActive: true})
	require.NoError(t, err)
	b, err := repo.Create(sessions.CreateParams{MakeActive: false})
	require.NoError(t, err)

	require.NoError(t, repo.SetActive(b))
	active, err := repo.GetActive()
	require.NoError(t, err)
	require.Equal(t, b, active.ID)
	require.NotEqual(t, a, active.ID)
}

func TestStepNumberingAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := sessions.New(db.Conn)

	sessionID, err := repo.Create(sessions.CreateParams{MakeActive: true})
	require.NoError(t, err)

	next, err := repo.GetNextStepNumber(sessionID)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	stepOne := 1
	sid := sessionID
	identity := sessions.ComputeStepIdentity(nil, nil, "", "python train.py")
	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{
		Command:      "python train.py",
		Timestamp:    1,
		SessionID:    &sid,
		StepNumber:   &stepOne,
		StepIdentity: identity,
	})
	require.NoError(t, err)

	next, err = repo.GetNextStepNumber(sessionID)
	require.NoError(t, err)
	require.Equal(t, 2, next)

	byIdentity, err := repo.GetStepByIdentity(sessionID, identity)
	require.NoError(t, err)
	require.NotNil(t, byIdentity)
	require.Equal(t, "python train.py", byIdentity.Command)

	byNumber, err := repo.GetStepByNumber(sessionID, 1, "run")
	require.NoError(t, err)
	require.NotNil(t, byNumber)

	steps, err := repo.GetSteps(sessionID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
}

func TestCheckGitConsistency(t *testing.T) {
	db := newTestDB(t)
	repo := sessions.New(db.Conn)
	sessionID, err := repo.Create(sessions.CreateParams{MakeActive: true})
	require.NoError(t, err)

	sid := sessionID
	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "a", Timestamp: 1, SessionID: &sid, GitCommit: "commit1aaa"})
	require.NoError(t, err)

	clean, err := repo.CheckGitConsistency(sessionID)
	require.NoError(t, err)
	require.True(t, clean.Consistent)

	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "b", Timestamp: 2, SessionID: &sid, GitCommit: "commit2bbb"})
	require.NoError(t, err)

	mixed, err := repo.CheckGitConsistency(sessionID)
	require.NoError(t, err)
	require.False(t, mixed.Consistent)
	require.Len(t, mixed.Commits, 2)
	require.NotEmpty(t, mixed.Warning)
}

func TestGetSummaryCollapsesRepeatedSteps(t *testing.T) {
	db := newTestDB(t)
	repo := sessions.New(db.Conn)
	sessionID, err := repo.Create(sessions.CreateParams{MakeActive: true})
	require.NoError(t, err)

	sid := sessionID
	stepOne := 1
	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "a", Timestamp: 1, SessionID: &sid, StepNumber: &stepOne})
	require.NoError(t, err)
	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "a-rerun", Timestamp: 2, SessionID: &sid, StepNumber: &stepOne})
	require.NoError(t, err)

	summary, err := repo.GetSummary(sessionID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Equal(t, 1, summary.TotalSteps)
	require.Equal(t, "a-rerun", summary.Steps[0].Command)
}

func TestClearDisassociatesJobs(t *testing.T) {
	db := newTestDB(t)
	repo := sessions.New(db.Conn)
	sessionID, err := repo.Create(sessions.CreateParams{MakeActive: true})
	require.NoError(t, err)

	sid := sessionID
	stepOne := 1
	jobID, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "a", Timestamp: 1, SessionID: &sid, StepNumber: &stepOne})
	require.NoError(t, err)

	require.NoError(t, repo.Clear(sessionID))

	gone, err := repo.Get(sessionID)
	require.NoError(t, err)
	require.Nil(t, gone)

	jobRepo := jobs.New(db.Conn)
	job, err := jobRepo.Get(jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Nil(t, job.SessionID)
}
