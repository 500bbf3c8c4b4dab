// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"blake3"}, cfg.Hashing.Algorithms)
	assert.Equal(t, 8<<20, cfg.Hashing.ChunkSizeBytes)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8741, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Cloud.Provider)
}

func TestNewConfig_AppendsBlake3WhenMissing(t *testing.T) {
	path := writeYAML(t, `
hashing:
  algorithms: ["sha256"]
`)
	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sha256", "blake3"}, cfg.Hashing.Algorithms)
}

func TestNewConfig_FileOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
database:
  path: "/tmp/custom.db"
server:
  port: 9999
cloud:
  provider: "gcs"
  gcs_bucket: "my-bucket"
`)
	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "gcs", cfg.Cloud.Provider)
	assert.Equal(t, "my-bucket", cfg.Cloud.GCSBucket)
}

func TestNewConfig_EnvOverridesFile(t *testing.T) {
	path := writeYAML(t, `
server:
  port: 1111
`)
	t.Setenv("ROAR_SERVER_PORT", "2222")
	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Server.Port)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{
			name:   "chunk size too small",
			mutate: func(c *AppConfig) { c.Hashing.ChunkSizeBytes = 1024 },
			errMsg: "hashing.chunk_size_bytes must be at least 1 MiB, got 1024",
		},
		{
			name:   "invalid port",
			mutate: func(c *AppConfig) { c.Server.Port = 70000 },
			errMsg: "invalid server port: 70000",
		},
		{
			name:   "invalid cloud provider",
			mutate: func(c *AppConfig) { c.Cloud.Provider = "s3" },
			errMsg: `cloud.provider must be one of none|gcs|local, got "s3"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Equal(t, tt.errMsg, err.Error())
		})
	}
}

func TestExpandPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got := expandPath("~/roar/data.db")
	assert.Equal(t, filepath.Join(home, "roar/data.db"), got)
}

func writeYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}
