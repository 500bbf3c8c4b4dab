// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stepref_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/stepref"
)

func TestParseRunStep(t *testing.T) {
	ref, err := stepref.Parse("@3")
	require.NoError(t, err)
	require.Equal(t, 3, ref.StepNumber)
	require.False(t, ref.IsBuild)
	require.Equal(t, "@3", ref.Formatted())
	require.Equal(t, "", ref.JobType())
}

func TestParseBuildStep(t *testing.T) {
	ref, err := stepref.Parse("@B12")
	require.NoError(t, err)
	require.Equal(t, 12, ref.StepNumber)
	require.True(t, ref.IsBuild)
	require.Equal(t, "@B12", ref.Formatted())
	require.Equal(t, "build", ref.JobType())
}

func TestParseAcceptsBareForms(t *testing.T) {
	ref, err := stepref.Parse("B4")
	require.NoError(t, err)
	require.Equal(t, 4, ref.StepNumber)
	require.True(t, ref.IsBuild)

	ref2, err := stepref.Parse("5")
	require.NoError(t, err)
	require.Equal(t, 5, ref2.StepNumber)
	require.False(t, ref2.IsBuild)
}

func TestParseRejectsNonPositiveStep(t *testing.T) {
	_, err := stepref.Parse("@0")
	require.Error(t, err)

	_, err = stepref.Parse("@-1")
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := stepref.Parse("@")
	require.Error(t, err)

	_, err = stepref.Parse("@Bfoo")
	require.Error(t, err)

	_, err = stepref.Parse("@B")
	require.Error(t, err)
}

func TestIsStepReference(t *testing.T) {
	require.True(t, stepref.IsStepReference("@12"))
	require.False(t, stepref.IsStepReference("abc1234"))
}

func TestFormatNotFoundError(t *testing.T) {
	ref, err := stepref.Parse("@B7")
	require.NoError(t, err)
	require.Equal(t, "no @B7 in DAG", stepref.FormatNotFoundError(ref))
}
