// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry exposes a job-observability capability. OTelProvider
// exports one span per recorded job; NullProvider is a no-op. The recording
// service does not call a Provider.
package telemetry

import "context"

// JobSummary is the subset of a recorded job's fields worth exporting.
type JobSummary struct {
	Command         string
	ExitCode        *int
	DurationSeconds *float64
	SessionHash     string
	StepNumber      *int
}

// Provider is the telemetry capability: one RecordJob call per job, then
// Close.
type Provider interface {
	RecordJob(ctx context.Context, job JobSummary) error
	Close(ctx context.Context) error
}
