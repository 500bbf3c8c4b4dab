// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reproduction drives "roar reproduce": given an artifact hash, it
// reconstructs the pipeline that produced it, clones the recorded
// git commit, provisions a container matching the recorded runtime and
// package set, and replays the session's build/run steps inside it.
package reproduction

import "time"

// RunStatus is the lifecycle state of a reproduction container.
type RunStatus string

const (
	StatusCreated RunStatus = "created"
	StatusRunning RunStatus = "running"
	StatusStopped RunStatus = "stopped"
	StatusFailed  RunStatus = "failed"
)

// Run is a single short-lived reproduction container, scoped to one
// artifact's pipeline replay.
type Run struct {
	ID           string
	Name         string
	Image        string
	Status       RunStatus
	Environment  map[string]string
	Volumes      []VolumeMapping
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ArtifactHash string
}

// VolumeMapping binds a host path into the container, used to mount the
// cloned repository.
type VolumeMapping struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// RunConfig configures a reproduction container before creation.
type RunConfig struct {
	Name         string
	Image        string
	Environment  map[string]string
	Volumes      []VolumeMapping
	WorkingDir   string
	Labels       map[string]string
	ArtifactHash string
	// Ports are docker-style port specs ("8888:8888", "127.0.0.1:6006:6006")
	// published for replayed jobs that serve something, e.g. a notebook or
	// a tensorboard the recorded pipeline exposed.
	Ports []string
}

// ExecResult holds the outcome of replaying one step inside a run.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
