// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stepref parses @N / @BN step references used at the CLI boundary
// to address a DAG node directly.
package stepref

import (
	"fmt"
	"strconv"
	"strings"
)

// Error reports a malformed step reference.
type Error struct {
	Reference string
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid step reference %q: %s", e.Reference, e.Reason)
}

// Reference is a parsed @N or @BN step reference.
type Reference struct {
	StepNumber int
	IsBuild    bool
	Original   string
}

// Prefix returns "@B" for build steps, "@" for run steps.
func (r Reference) Prefix() string {
	if r.IsBuild {
		return "@B"
	}
	return "@"
}

// Formatted re-renders the reference in canonical @N / @BN form.
func (r Reference) Formatted() string {
	return fmt.Sprintf("%s%d", r.Prefix(), r.StepNumber)
}

// JobType returns "build" for build steps, "" for run steps. The empty
// string matches the default job type in queries.
func (r Reference) JobType() string {
	if r.IsBuild {
		return "build"
	}
	return ""
}

// Parse parses a step reference string such as "@1", "@B2", "3", or "B1".
func Parse(ref string) (Reference, error) {
	original := ref
	working := ref

	working = strings.TrimPrefix(working, "@")
	if working == "" {
		return Reference{}, &Error{Reference: original, Reason: "empty after removing @"}
	}

	isBuild := false
	if strings.HasPrefix(strings.ToUpper(working), "B") {
		isBuild = true
		working = working[1:]
	}
	if working == "" {
		return Reference{}, &Error{Reference: original, Reason: "no step number after B"}
	}

	stepNumber, err := strconv.Atoi(working)
	if err != nil {
		return Reference{}, &Error{
			Reference: original,
			Reason:    fmt.Sprintf("expected number, got %q. Use @N or @BN format", working),
		}
	}
	if stepNumber < 1 {
		return Reference{}, &Error{
			Reference: original,
			Reason:    fmt.Sprintf("step number must be positive, got %d", stepNumber),
		}
	}

	return Reference{StepNumber: stepNumber, IsBuild: isBuild, Original: original}, nil
}

// IsStepReference reports whether s looks like a step reference (starts
// with '@'), without fully parsing it — useful for dispatch logic that
// must distinguish step references from hashes or job UIDs.
func IsStepReference(s string) bool {
	return strings.HasPrefix(s, "@")
}

// FormatNotFoundError renders the "No @N in DAG" message for a step
// reference that resolved to nothing.
func FormatNotFoundError(ref Reference) string {
	return fmt.Sprintf("no %s%d in DAG", ref.Prefix(), ref.StepNumber)
}
