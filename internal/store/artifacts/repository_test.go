// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package artifacts_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRegisterRejectsEmptyHashes(t *testing.T) {
	db := newTestDB(t)
	repo := artifacts.New(db.Conn)

	_, _, err := repo.Register(db.Conn, map[string]string{}, 10, "", "", "", "")
	require.ErrorIs(t, err, artifacts.ErrNoHashes)
}

func TestRegisterCreatesThenDeduplicates(t *testing.T) {
	db := newTestDB(t)
	repo := artifacts.New(db.Conn)

	id1, created1, err := repo.Register(db.Conn, map[string]string{"blake3": "AAAA"}, 100, "/data/in.csv", "", "", "")
	require.NoError(t, err)
	require.True(t, created1)
	require.Len(t, id1, 32)

	// Same blake3 digest (case-insensitive), new sha256 algorithm: same
	// artifact, extended with the new hash.
	id2, created2, err := repo.Register(db.Conn, map[string]string{"blake3": "aaaa", "sha256": "BBBB"}, 100, "/data/in.csv", "", "", "")
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, id1, id2)

	hashes, err := repo.GetHashes(id1)
	require.NoError(t, err)
	require.Len(t, hashes, 2)

	algosSeen := map[string]string{}
	for _, h := range hashes {
		algosSeen[h.Algorithm] = h.Digest
	}
	require.Equal(t, "aaaa", algosSeen["blake3"])
	require.Equal(t, "bbbb", algosSeen["sha256"])
}

func TestGetByHashRequiresMinimumPrefixLength(t *testing.T) {
	db := newTestDB(t)
	repo := artifacts.New(db.Conn)

	_, _, err := repo.Register(db.Conn, map[string]string{"blake3": "deadbeef00"}, 1, "", "", "", "")
	require.NoError(t, err)

	got, err := repo.GetByHash("", "")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = repo.GetByHash("dead", "")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = repo.GetByHash("deadbeef", "")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestGetByHashAmbiguousPrefixReturnsNil(t *testing.T) {
	db := newTestDB(t)
	repo := artifacts.New(db.Conn)

	_, _, err := repo.Register(db.Conn, map[string]string{"blake3": "deadbeef01"}, 1, "", "", "", "")
	require.NoError(t, err)
	_, _, err = repo.Register(db.Conn, map[string]string{"blake3": "deadbeef02"}, 1, "", "", "", "")
	require.NoError(t, err)

	got, err := repo.GetByHash("deadbeef", "")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetByPathPrefersMostRecentOutput(t *testing.T) {
	db := newTestDB(t)
	repo := artifacts.New(db.Conn)

	olderID, _, err := repo.Register(db.Conn, map[string]string{"blake3": "old0000000"}, 1, "", "", "", "")
	require.NoError(t, err)
	newerID, _, err := repo.Register(db.Conn, map[string]string{"blake3": "new0000000"}, 1, "", "", "", "")
	require.NoError(t, err)

	jobOld, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "gen v1", Timestamp: 1})
	require.NoError(t, err)
	jobNew, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "gen v2", Timestamp: 2})
	require.NoError(t, err)

	require.NoError(t, jobs.AddOutput(db.Conn, jobOld, olderID, "/data/out.csv"))
	require.NoError(t, jobs.AddOutput(db.Conn, jobNew, newerID, "/data/out.csv"))

	got, err := repo.GetByPath("/data/out.csv")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, newerID, got.ID)
}

func TestGetLocationsUnionsAllSources(t *testing.T) {
	db := newTestDB(t)
	repo := artifacts.New(db.Conn)

	id, _, err := repo.Register(db.Conn, map[string]string{"blake3": "loc0000000"}, 1, "/first/seen.csv", "", "", "")
	require.NoError(t, err)

	job, _, err := jobs.Create(db.Conn, jobs.CreateParams{Command: "cmd", Timestamp: 1})
	require.NoError(t, err)
	require.NoError(t, jobs.AddInput(db.Conn, job, id, "/consumed/seen.csv"))
	require.NoError(t, jobs.AddOutput(db.Conn, job, id, "/produced/seen.csv"))

	locs, err := repo.GetLocations(id)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/first/seen.csv", "/consumed/seen.csv", "/produced/seen.csv"}, locs)
}

func TestUpdateUploadDeduplicates(t *testing.T) {
	db := newTestDB(t)
	repo := artifacts.New(db.Conn)

	id, _, err := repo.Register(db.Conn, map[string]string{"blake3": "up00000000"}, 1, "", "", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateUpload(id, "gs://bucket/a"))
	require.NoError(t, repo.UpdateUpload(id, "gs://bucket/a"))
	require.NoError(t, repo.UpdateUpload(id, "gs://bucket/b"))

	a, err := repo.Get(id)
	require.NoError(t, err)
	require.NotNil(t, a.UploadedTo)
	require.Contains(t, *a.UploadedTo, "gs://bucket/a")
	require.Contains(t, *a.UploadedTo, "gs://bucket/b")
}
