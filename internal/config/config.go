// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads roar's configuration: typed defaults, then a YAML
// file, then ROAR_* environment variables, via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all configuration for the roar CLI/server/reproduction
// surfaces. None of this is consumed by the repositories or services
// directly; it exists purely for wiring them at startup.
type AppConfig struct {
	RepoRoot  string          `mapstructure:"repo_root"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Hashing   HashingConfig   `mapstructure:"hashing"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Cloud     CloudConfig     `mapstructure:"cloud"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Container ContainerConfig `mapstructure:"container"`
}

// DatabaseConfig points at the sqlite file backing the relational store.
// A single local file is the only supported driver.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HashingConfig selects which algorithms record_job computes by
// default.
type HashingConfig struct {
	Algorithms      []string `mapstructure:"algorithms"`
	ChunkSizeBytes  int      `mapstructure:"chunk_size_bytes"`
	CacheMaxAgeDays int      `mapstructure:"cache_max_age_days"`
}

// LogConfig mirrors logger.Config's shape for unmarshalling.
type LogConfig struct {
	Level  string            `mapstructure:"level"`
	Format string            `mapstructure:"format"`
	Levels map[string]string `mapstructure:"levels"`
	Output LogOutputConfig   `mapstructure:"output"`
}

type LogOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// ServerConfig configures `roar serve` (internal/server).
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CloudConfig holds the cloud upload provider settings (internal/cloud).
// They are loaded and validated here; no command builds a provider from
// them.
type CloudConfig struct {
	Provider  string `mapstructure:"provider"` // "none", "gcs", "local"
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// TelemetryConfig holds the telemetry provider settings
// (internal/telemetry). They are loaded here; no command builds a provider
// from them.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// ContainerConfig holds container runtime settings. The reproduction
// orchestrator (internal/reproduction) does not read them: it uses its own
// default image and mounts the clone at /workspace.
type ContainerConfig struct {
	DefaultImage string            `mapstructure:"default_image"`
	DockerHost   string            `mapstructure:"docker_host"`
	WorkspaceDir string            `mapstructure:"workspace_dir"`
	Environment  map[string]string `mapstructure:"environment"`
}

// NewConfig loads configuration in layers: defaults, then an optional YAML
// file, then ROAR_* environment variables.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("roar")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.roar")
	}

	v.SetEnvPrefix("ROAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func defaultConfig() AppConfig {
	return AppConfig{
		RepoRoot: "",
		Database: DatabaseConfig{Path: ".roar/roar.db"},
		Hashing: HashingConfig{
			Algorithms:      []string{"blake3"},
			ChunkSizeBytes:  8 << 20,
			CacheMaxAgeDays: 90,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Levels: map[string]string{
				"hashing": "INFO",
				"dag":     "INFO",
				"server":  "INFO",
			},
			Output: LogOutputConfig{
				Enabled:    true,
				Path:       ".roar/logs/roar.log",
				MaxSizeMB:  50,
				MaxBackups: 5,
				MaxAgeDays: 30,
				Compress:   true,
				Console:    false,
			},
		},
		Server: ServerConfig{Host: "127.0.0.1", Port: 8741},
		Cloud:  CloudConfig{Provider: "none", LocalDir: ".roar/uploads"},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "roar",
		},
		Container: ContainerConfig{
			DefaultImage: "ubuntu:22.04",
			DockerHost:   "unix:///var/run/docker.sock",
			WorkspaceDir: "/workspace",
		},
	}
}

func (c *AppConfig) expandPaths() {
	c.Database.Path = expandPath(c.Database.Path)
	c.Log.Output.Path = expandPath(c.Log.Output.Path)
	c.Cloud.LocalDir = expandPath(c.Cloud.LocalDir)
	c.Container.DockerHost = expandPath(c.Container.DockerHost)
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}

func (c *AppConfig) validate() error {
	if len(c.Hashing.Algorithms) == 0 {
		return errors.New("hashing.algorithms must include at least one algorithm")
	}
	hasBlake3 := false
	for _, a := range c.Hashing.Algorithms {
		if strings.EqualFold(a, "blake3") {
			hasBlake3 = true
		}
	}
	if !hasBlake3 {
		// Lineage traversal keys on blake3, so every artifact must carry it.
		c.Hashing.Algorithms = append(c.Hashing.Algorithms, "blake3")
	}
	if c.Hashing.ChunkSizeBytes < 1<<20 {
		return fmt.Errorf("hashing.chunk_size_bytes must be at least 1 MiB, got %d", c.Hashing.ChunkSizeBytes)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Cloud.Provider {
	case "none", "gcs", "local":
	default:
		return fmt.Errorf("cloud.provider must be one of none|gcs|local, got %q", c.Cloud.Provider)
	}
	return nil
}

// LoggerConfig projects AppConfig's Log section into logger.Config.
func (c *AppConfig) LoggerConfig() loggerConfigShape {
	return loggerConfigShape{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Levels: c.Log.Levels,
		Output: c.Log.Output,
	}
}

// loggerConfigShape avoids an import cycle between config and logger while
// keeping field names aligned; internal/cli's newApp builds logger.Config
// from the same Log fields via a one-to-one field copy.
type loggerConfigShape struct {
	Level  string
	Format string
	Levels map[string]string
	Output LogOutputConfig
}
