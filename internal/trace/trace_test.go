// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package trace_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noldarim/roar/internal/trace"
)

func TestDecode(t *testing.T) {
	raw := []byte(`{
		"opened_files": ["/a.csv", "/b.csv"],
		"imported_modules": ["pandas"],
		"env_reads": {"CUDA_VISIBLE_DEVICES": "0"},
		"installed_packages": {"pandas": "2.1.0"},
		"argv": ["python", "train.py"]
	}`)
	r, err := trace.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"/a.csv", "/b.csv"}, r.OpenedFiles)
	require.Equal(t, "0", r.EnvReads["CUDA_VISIBLE_DEVICES"])
	require.Equal(t, "2.1.0", r.InstalledPackages["pandas"])
}

func TestClassifySplitsByMtime(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "input.csv")
	newer := filepath.Join(dir, "output.csv")

	require.NoError(t, os.WriteFile(older, []byte("in"), 0o644))
	jobStart := float64(time.Now().UnixNano())/1e9 + 0.5

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(newer, []byte("out"), 0o644))

	// Re-stamp older to predate jobStart comfortably.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	c := trace.Classify([]string{older, newer, filepath.Join(dir, "missing.csv")}, jobStart)
	require.Equal(t, []string{older}, c.Inputs)
	require.Equal(t, []string{newer}, c.Outputs)
}
