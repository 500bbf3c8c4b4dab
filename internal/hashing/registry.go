// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hashing implements the hash algorithm registry, the persistent
// hash cache, and the single-pass multi-algorithm hashing service built on
// both.
package hashing

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"sync"

	"lukechampine.com/blake3"
)

// ErrUnknownAlgorithm is returned when a caller requests an algorithm that
// has not been registered.
type ErrUnknownAlgorithm struct{ Algorithm string }

func (e *ErrUnknownAlgorithm) Error() string {
	return fmt.Sprintf("hashing: unknown algorithm %q", e.Algorithm)
}

// ErrAlgorithmUnavailable is returned when a registered algorithm's hasher
// cannot be constructed on the current platform.
type ErrAlgorithmUnavailable struct {
	Algorithm string
	Reason    string
}

func (e *ErrAlgorithmUnavailable) Error() string {
	return fmt.Sprintf("hashing: algorithm %q unavailable: %s", e.Algorithm, e.Reason)
}

// Strategy constructs hash.Hash instances for one named algorithm.
type Strategy interface {
	New() (hash.Hash, error)
}

type strategyFunc func() (hash.Hash, error)

func (f strategyFunc) New() (hash.Hash, error) { return f() }

// Registry is the process-wide mapping from algorithm name to Strategy.
// Lookups and registrations are synchronized; the engine construction
// (internal/cli's newApp) registers defaults once at startup and treats
// the registry as read-mostly afterward.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns a Registry pre-populated with blake3, sha256, sha512,
// and md5.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register("blake3", strategyFunc(func() (hash.Hash, error) {
		return blake3.New(32, nil), nil
	}))
	r.Register("sha256", strategyFunc(func() (hash.Hash, error) {
		return sha256.New(), nil
	}))
	r.Register("sha512", strategyFunc(func() (hash.Hash, error) {
		return sha512.New(), nil
	}))
	r.Register("md5", strategyFunc(func() (hash.Hash, error) {
		return md5.New(), nil
	}))
	return r
}

// Register adds or replaces a named strategy. Intended for startup-time
// extension with additional algorithms beyond the built-in four.
func (r *Registry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// New constructs a fresh hasher for the named algorithm.
func (r *Registry) New(name string) (hash.Hash, error) {
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrUnknownAlgorithm{Algorithm: name}
	}
	h, err := s.New()
	if err != nil {
		return nil, &ErrAlgorithmUnavailable{Algorithm: name, Reason: err.Error()}
	}
	return h, nil
}

// Names returns the registered algorithm names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// finalize renders a hasher's current state as lowercase hex.
func finalize(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
