// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hashing

import (
	"hash"
	"io"
	"os"

	"gorm.io/gorm"
)

// ChunkSize is the fixed-size read buffer used for single-pass multi-hash
// computation.
const ChunkSize = 8 << 20

// Service computes single- or multi-algorithm digests of a file in one
// pass, consulting and repopulating a Cache.
type Service struct {
	registry *Registry
	cache    *Cache
}

// NewService builds a hashing service over the given registry and cache.
func NewService(registry *Registry, cache *Cache) *Service {
	return &Service{registry: registry, cache: cache}
}

// WithDB returns a copy of the service whose cache reads and writes go
// through db. Callers hashing inside a transaction pass their tx handle so
// the cache never reflects a digest for work that later rolls back.
func (s *Service) WithDB(db *gorm.DB) *Service {
	return &Service{registry: s.registry, cache: NewCache(db)}
}

// ComputeHash computes (or returns the cached) digest for path under a
// single algorithm. Returns ("", false) if path cannot be stat'd.
func (s *Service) ComputeHash(path, algorithm string) (string, bool, error) {
	result, err := s.ComputeHashes(path, []string{algorithm})
	if err != nil {
		return "", false, err
	}
	if result == nil {
		return "", false, nil
	}
	return result[algorithm], true, nil
}

// ComputeHashes computes (or returns the cached subset of) digests for path
// under every named algorithm, hashing any uncached algorithms in a single
// file pass. Returns (nil, nil) if path cannot be stat'd, which is distinct
// from an error.
func (s *Service) ComputeHashes(path string, algorithms []string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil
	}
	size := info.Size()
	mtime := float64(info.ModTime().UnixNano()) / 1e9

	cached := s.cache.GetAll(path)

	var needed []string
	for _, algo := range algorithms {
		if _, ok := cached[algo]; !ok {
			needed = append(needed, algo)
		}
	}

	if len(needed) == 0 {
		return subsetOf(cached, algorithms), nil
	}

	hashers := make(map[string]hash.Hash, len(needed))
	for _, algo := range needed {
		h, err := s.registry.New(algo)
		if err != nil {
			return nil, err
		}
		hashers[algo] = h
	}

	f, err := os.Open(path)
	if err != nil {
		// File vanished between stat and open: treated as a miss,
		// not an error — nothing is written to the cache.
		return nil, nil
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			for _, h := range hashers {
				h.Write(buf[:n])
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// Read failed mid-file: bail without touching the cache so it
			// never holds a digest of partial content.
			return nil, nil
		}
	}

	newHashes := make(map[string]string, len(hashers))
	for algo, h := range hashers {
		digest := finalize(h)
		cached[algo] = digest
		newHashes[algo] = digest
	}

	if err := s.cache.PutMany(path, newHashes, size, mtime); err != nil {
		return nil, err
	}

	return subsetOf(cached, algorithms), nil
}

func subsetOf(all map[string]string, algorithms []string) map[string]string {
	out := make(map[string]string, len(algorithms))
	for _, algo := range algorithms {
		if v, ok := all[algo]; ok {
			out[algo] = v
		}
	}
	return out
}
