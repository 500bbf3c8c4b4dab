// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ErrConflict wraps a sqlite constraint violation surfaced mid-transaction.
// Callers that see it know the transaction was rolled back with the store
// unchanged.
var ErrConflict = errors.New("store: constraint violation")

// IsConflict reports whether err is (or wraps) a sqlite constraint
// violation — a unique, primary-key, foreign-key, or check failure.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
