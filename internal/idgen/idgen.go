// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package idgen generates the engine's random identifiers: 128-bit
// artifact IDs, 32-bit job UIDs, and 256-bit session hashes, all rendered
// as lowercase hex.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewArtifactID returns a 32-lowercase-hex-character (128-bit) artifact
// identifier. google/uuid's v4 generator already draws 16 random bytes from
// a CSPRNG, which is exactly the artifact ID shape; we strip the
// dashes rather than rolling our own byte buffer.
func NewArtifactID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// NewJobUID returns an 8-lowercase-hex-character (4 random byte) job UID.
func NewJobUID() (string, error) {
	return randomHex(4)
}

// NewSessionHash returns a 64-lowercase-hex-character (32 random byte)
// session hash.
func NewSessionHash() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("idgen: read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
