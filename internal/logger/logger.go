// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger manages one named zerolog logger per component: a single
// global Manager configures rotation and per-component level overrides,
// and callers fetch their named logger rather than constructing one.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the [log] section of internal/config.AppConfig.
type Config struct {
	Level  string
	Format string // "console" or "json"
	Output OutputConfig
	Levels map[string]string // per-component overrides, e.g. "hashing": "DEBUG"
}

// OutputConfig describes the rotating file sink.
type OutputConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    bool
}

// Manager owns the shared writer and per-component loggers.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	writer  io.Writer
	loggers map[string]*zerolog.Logger
}

var (
	globalMu sync.RWMutex
	global   *Manager
)

// Init configures the process-wide logger manager. Safe to call once at
// startup; subsequent component loggers are derived from it via Get.
func Init(cfg Config) error {
	m, err := NewManager(cfg)
	if err != nil {
		return err
	}
	globalMu.Lock()
	global = m
	globalMu.Unlock()
	return nil
}

// NewManager builds a Manager without installing it globally; useful in
// tests that want an isolated logger.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{cfg: cfg, loggers: make(map[string]*zerolog.Logger)}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writers []io.Writer
	if cfg.Output.Enabled && cfg.Output.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.Path), 0o755); err != nil {
			return nil, fmt.Errorf("logger: create log dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Output.Path,
			MaxSize:    cfg.Output.MaxSizeMB,
			MaxBackups: cfg.Output.MaxBackups,
			MaxAge:     cfg.Output.MaxAgeDays,
			Compress:   cfg.Output.Compress,
		})
	}
	if cfg.Output.Console || len(writers) == 0 {
		if cfg.Format == "console" {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		} else {
			writers = append(writers, os.Stderr)
		}
	}

	if len(writers) == 1 {
		m.writer = writers[0]
	} else {
		m.writer = io.MultiWriter(writers...)
	}
	return m, nil
}

// Get returns the named component logger, applying any per-component level
// override from configuration.
func (m *Manager) Get(component string) *zerolog.Logger {
	m.mu.RLock()
	if l, ok := m.loggers[component]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	level := parseLevel(m.cfg.Level)
	if override, ok := m.cfg.Levels[component]; ok {
		level = parseLevel(override)
	}

	l := zerolog.New(m.writer).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()

	m.mu.Lock()
	m.loggers[component] = &l
	m.mu.Unlock()
	return &l
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

func getGlobal() *Manager {
	globalMu.RLock()
	m := global
	globalMu.RUnlock()
	if m == nil {
		// Fall back to a stderr-only manager rather than panicking.
		fallback, _ := NewManager(Config{Level: "INFO", Output: OutputConfig{Console: true}})
		globalMu.Lock()
		if global == nil {
			global = fallback
		}
		m = global
		globalMu.Unlock()
	}
	return m
}

// Component loggers, one per package.
func Hashing() *zerolog.Logger      { return getGlobal().Get("hashing") }
func Artifacts() *zerolog.Logger    { return getGlobal().Get("artifacts") }
func Jobs() *zerolog.Logger         { return getGlobal().Get("jobs") }
func Sessions() *zerolog.Logger     { return getGlobal().Get("sessions") }
func DAG() *zerolog.Logger          { return getGlobal().Get("dag") }
func Recording() *zerolog.Logger    { return getGlobal().Get("recording") }
func Lineage() *zerolog.Logger      { return getGlobal().Get("lineage") }
func CLI() *zerolog.Logger          { return getGlobal().Get("cli") }
func Server() *zerolog.Logger       { return getGlobal().Get("server") }
func Reproduction() *zerolog.Logger { return getGlobal().Get("reproduction") }
func VCS() *zerolog.Logger          { return getGlobal().Get("vcs") }
func Telemetry() *zerolog.Logger    { return getGlobal().Get("telemetry") }
func Store() *zerolog.Logger        { return getGlobal().Get("store") }
