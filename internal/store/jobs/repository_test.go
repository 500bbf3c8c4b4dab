// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package jobs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/jobs"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExtractScript(t *testing.T) {
	require.Equal(t, "train.py", *jobs.ExtractScript("python train.py --epochs 10"))
	require.Equal(t, "prep.sh", *jobs.ExtractScript("bash scripts/prep.sh"))
	require.Equal(t, "mymodule", *jobs.ExtractScript("python -m mymodule --flag"))
	require.Nil(t, jobs.ExtractScript("echo hello"))
}

func TestCreateAndGetByUID(t *testing.T) {
	db := newTestDB(t)
	repo := jobs.New(db.Conn)

	id, uid, err := jobs.Create(db.Conn, jobs.CreateParams{
		Command:   "python train.py",
		Timestamp: 100,
	})
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Len(t, uid, 8)

	got, err := repo.GetByUID(uid)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, id, got.ID)
	require.Equal(t, "train.py", *got.Script)

	// Prefix match, unambiguous.
	byPrefix, err := repo.GetByUID(uid[:4])
	require.NoError(t, err)
	require.NotNil(t, byPrefix)
	require.Equal(t, id, byPrefix.ID)

	// Prefix too short.
	short, err := repo.GetByUID(uid[:2])
	require.NoError(t, err)
	require.Nil(t, short)

	// Unknown UID.
	missing, err := repo.GetByUID("deadbeef")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestGetByUIDAmbiguousPrefix(t *testing.T) {
	db := newTestDB(t)
	repo := jobs.New(db.Conn)

	_, uid1, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "a", Timestamp: 1})
	require.NoError(t, err)
	// Force a collision on the prefix by constructing a second job and then
	// asserting the repo correctly handles two distinct real UIDs sharing no
	// prefix (sanity) as well as an explicit shared-prefix scenario below.
	_, uid2, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "b", Timestamp: 2})
	require.NoError(t, err)
	require.NotEqual(t, uid1, uid2)

	// Manually craft an ambiguous prefix by writing two rows that share one.
	shared := "ab12"
	_, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "c", Timestamp: 3})
	require.NoError(t, err)
	require.NoError(t, db.Conn.Exec("UPDATE jobs SET job_uid = ? WHERE command = ?", shared+"0001", "a").Error)
	require.NoError(t, db.Conn.Exec("UPDATE jobs SET job_uid = ? WHERE command = ?", shared+"0002", "b").Error)

	ambiguous, err := repo.GetByUID(shared)
	require.NoError(t, err)
	require.Nil(t, ambiguous)
}

func TestAddInputOutputIdempotent(t *testing.T) {
	db := newTestDB(t)
	id, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "x", Timestamp: 1})
	require.NoError(t, err)

	require.NoError(t, jobs.AddInput(db.Conn, id, "artifact-1", "data/in.csv"))
	require.NoError(t, jobs.AddInput(db.Conn, id, "artifact-1", "data/in.csv"))
	require.NoError(t, jobs.AddOutput(db.Conn, id, "artifact-2", "data/out.csv"))

	repo := jobs.New(db.Conn)
	ins, err := repo.GetInputs(id)
	require.NoError(t, err)
	require.Len(t, ins, 1)

	outs, err := repo.GetOutputs(id)
	require.NoError(t, err)
	require.Len(t, outs, 1)
}

func TestSearchUsesFTS(t *testing.T) {
	db := newTestDB(t)
	repo := jobs.New(db.Conn)

	_, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "python train.py --lr 0.01", Timestamp: 1})
	require.NoError(t, err)
	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "python evaluate.py", Timestamp: 2})
	require.NoError(t, err)

	results, err := repo.Search("train", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "train.py", *results[0].Script)
}

func TestGetBySessionAndRecent(t *testing.T) {
	db := newTestDB(t)
	repo := jobs.New(db.Conn)

	session := uintPtr(1)
	_, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "a", Timestamp: 1, SessionID: session})
	require.NoError(t, err)
	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "b", Timestamp: 2, SessionID: session})
	require.NoError(t, err)
	_, _, err = jobs.Create(db.Conn, jobs.CreateParams{Command: "c", Timestamp: 3})
	require.NoError(t, err)

	bySession, err := repo.GetBySession(*session, 10)
	require.NoError(t, err)
	require.Len(t, bySession, 2)
	require.Equal(t, "b", bySession[0].Command)

	recent, err := repo.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "c", recent[0].Command)
}

func TestCleanupOrphanedArtifacts(t *testing.T) {
	db := newTestDB(t)
	id, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "x", Timestamp: 1})
	require.NoError(t, err)
	require.NoError(t, jobs.AddOutput(db.Conn, id, "kept", "out.csv"))

	deletedHashes := map[string]bool{}
	deletedArtifacts := map[string]bool{}

	err = jobs.CleanupOrphanedArtifacts(db.Conn, []string{"kept", "orphan"},
		func(artifactID string) error { deletedHashes[artifactID] = true; return nil },
		func(artifactID string) error { deletedArtifacts[artifactID] = true; return nil },
	)
	require.NoError(t, err)

	require.False(t, deletedArtifacts["kept"])
	require.True(t, deletedArtifacts["orphan"])
	require.True(t, deletedHashes["orphan"])
}

func uintPtr(v uint) *uint { return &v }
