// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hashing

import (
	"math"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/noldarim/roar/internal/store"
)

// Cache is the persistent (path, algorithm) -> digest cache. Entries are
// validated against the file's current size and mtime on every read.
type Cache struct {
	db *gorm.DB
}

// NewCache wraps a gorm connection as a hash cache repository.
func NewCache(db *gorm.DB) *Cache {
	return &Cache{db: db}
}

// statResult mirrors the (size, mtime) pair the cache validates reads
// against.
type statResult struct {
	size  int64
	mtime float64
}

func statPath(path string) (statResult, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return statResult{}, false
	}
	return statResult{size: info.Size(), mtime: float64(info.ModTime().UnixNano()) / 1e9}, true
}

// validAgainst reports whether a cache entry's stamped (size, mtime) still
// matches the file on disk, within a 1ms mtime tolerance.
func validAgainst(entry store.HashCache, current statResult) bool {
	return entry.Size == current.size && math.Abs(entry.Mtime-current.mtime) < 0.001
}

// GetOne returns the cached digest for (path, algo) iff the entry exists and
// stat(path) still matches the stamped size/mtime.
func (c *Cache) GetOne(path, algorithm string) (string, bool) {
	current, ok := statPath(path)
	if !ok {
		return "", false
	}
	var entry store.HashCache
	err := c.db.Where("path = ? AND algorithm = ?", path, algorithm).First(&entry).Error
	if err != nil {
		return "", false
	}
	if !validAgainst(entry, current) {
		return "", false
	}
	return entry.Digest, true
}

// GetAll returns every still-valid cached digest for path, keyed by
// algorithm. The result may be a partial subset of what the caller wants.
func (c *Cache) GetAll(path string) map[string]string {
	result := make(map[string]string)
	current, ok := statPath(path)
	if !ok {
		return result
	}
	var entries []store.HashCache
	if err := c.db.Where("path = ?", path).Find(&entries).Error; err != nil {
		return result
	}
	for _, e := range entries {
		if validAgainst(e, current) {
			result[e.Algorithm] = e.Digest
		}
	}
	return result
}

// PutOne upserts a single (path, algorithm) -> digest entry, stamping
// cached_at = now.
func (c *Cache) PutOne(path, algorithm, digest string, size int64, mtime float64) error {
	entry := store.HashCache{
		Path:      path,
		Algorithm: algorithm,
		Digest:    digest,
		Size:      size,
		Mtime:     mtime,
		CachedAt:  nowUnix(),
	}
	return c.db.Save(&entry).Error
}

// PutMany atomically upserts several algorithms' digests for one path,
// within a single transaction so concurrent readers never observe a partial
// multi-algorithm write.
func (c *Cache) PutMany(path string, hashes map[string]string, size int64, mtime float64) error {
	now := nowUnix()
	return c.db.Transaction(func(tx *gorm.DB) error {
		for algo, digest := range hashes {
			entry := store.HashCache{
				Path:      path,
				Algorithm: algo,
				Digest:    digest,
				Size:      size,
				Mtime:     mtime,
				CachedAt:  now,
			}
			if err := tx.Save(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Invalidate removes the cache entry for (path, algorithm), or every entry
// for path when algorithm is empty.
func (c *Cache) Invalidate(path, algorithm string) error {
	q := c.db.Where("path = ?", path)
	if algorithm != "" {
		q = q.Where("algorithm = ?", algorithm)
	}
	return q.Delete(&store.HashCache{}).Error
}

// Prune deletes cache entries older than maxAgeDays.
func (c *Cache) Prune(maxAgeDays int) error {
	cutoff := nowUnix() - float64(maxAgeDays)*86400
	return c.db.Where("cached_at < ?", cutoff).Delete(&store.HashCache{}).Error
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
