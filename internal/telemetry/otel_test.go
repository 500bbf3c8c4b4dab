// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/telemetry"
)

func TestNullProviderIsNoOp(t *testing.T) {
	p := telemetry.NewNullProvider()
	exitCode := 0
	require.NoError(t, p.RecordJob(context.Background(), telemetry.JobSummary{
		Command:  "python train.py",
		ExitCode: &exitCode,
	}))
	require.NoError(t, p.Close(context.Background()))
}

func TestOTelProviderRecordsSpanWithoutError(t *testing.T) {
	ctx := context.Background()
	p, err := telemetry.NewOTelProvider(ctx, "localhost:4318", "roar-test")
	require.NoError(t, err)
	defer func() { _ = p.Close(ctx) }()

	exitCode := 0
	duration := 1.5
	step := 3
	err = p.RecordJob(ctx, telemetry.JobSummary{
		Command:         "python train.py",
		ExitCode:        &exitCode,
		DurationSeconds: &duration,
		SessionHash:     "abc123",
		StepNumber:      &step,
	})
	require.NoError(t, err)
}
