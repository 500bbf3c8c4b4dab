// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hashing_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noldarim/roar/internal/hashing"
	"github.com/noldarim/roar/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.HashCache{}))
	return db
}

func TestComputeHashesSinglePassAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("aaa"), 0o644))

	db := newTestDB(t)
	svc := hashing.NewService(hashing.NewRegistry(), hashing.NewCache(db))

	hashes, err := svc.ComputeHashes(path, []string{"blake3", "sha256"})
	require.NoError(t, err)
	require.Len(t, hashes, 2)
	require.NotEmpty(t, hashes["blake3"])
	require.NotEmpty(t, hashes["sha256"])

	var entries []store.HashCache
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 2)

	// Second call should be served from cache and return identical digests.
	again, err := svc.ComputeHashes(path, []string{"blake3", "sha256"})
	require.NoError(t, err)
	require.Equal(t, hashes, again)
}

func TestComputeHashesMissingFileReturnsNil(t *testing.T) {
	db := newTestDB(t)
	svc := hashing.NewService(hashing.NewRegistry(), hashing.NewCache(db))

	hashes, err := svc.ComputeHashes(filepath.Join(t.TempDir(), "missing"), []string{"blake3"})
	require.NoError(t, err)
	require.Nil(t, hashes)
}

func TestComputeHashesPartialCacheOnlyHashesMissingAlgorithm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	db := newTestDB(t)
	svc := hashing.NewService(hashing.NewRegistry(), hashing.NewCache(db))

	_, err := svc.ComputeHashes(path, []string{"blake3"})
	require.NoError(t, err)

	both, err := svc.ComputeHashes(path, []string{"blake3", "md5"})
	require.NoError(t, err)
	require.Len(t, both, 2)

	var entries []store.HashCache
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 2)
}

func TestCacheInvalidatedByMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.pkl")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	db := newTestDB(t)
	cache := hashing.NewCache(db)
	svc := hashing.NewService(hashing.NewRegistry(), cache)

	first, found, err := svc.ComputeHash(path, "blake3")
	require.NoError(t, err)
	require.True(t, found)
	require.NotEmpty(t, first)

	digest, ok := cache.GetOne(path, "blake3")
	require.True(t, ok)
	require.Equal(t, first, digest)

	// Touch mtime forward without changing size or content; cache must miss.
	future := time.Now().Add(2 * time.Millisecond)
	require.NoError(t, os.Chtimes(path, future, future))

	_, ok = cache.GetOne(path, "blake3")
	require.False(t, ok)
}

func TestUnknownAlgorithmError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	db := newTestDB(t)
	svc := hashing.NewService(hashing.NewRegistry(), hashing.NewCache(db))

	_, err := svc.ComputeHashes(path, []string{"nonexistent-algo"})
	require.Error(t, err)
	var unknown *hashing.ErrUnknownAlgorithm
	require.ErrorAs(t, err, &unknown)
}
