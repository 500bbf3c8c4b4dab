// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is roar's command-line front end: a flat command switch in
// cli.go, one file per subcommand, flag.NewFlagSet per command. It only
// wires the services (internal/recording, internal/dag, internal/lineage,
// ...) behind the `roar` verbs.
package cli

import (
	"context"
	"fmt"

	"github.com/noldarim/roar/internal/config"
	"github.com/noldarim/roar/internal/dag"
	"github.com/noldarim/roar/internal/hashing"
	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/logger"
	"github.com/noldarim/roar/internal/lookup"
	"github.com/noldarim/roar/internal/recording"
	"github.com/noldarim/roar/internal/reproduction"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
	"github.com/noldarim/roar/internal/vcs"
)

const (
	appName    = "roar"
	appVersion = "0.1.0"
)

// app bundles every service a command needs, built once per invocation
// from configuration rather than threading a DI container through the
// package.
type app struct {
	cfg *config.AppConfig
	db  *store.DB

	jobRepo      *jobs.Repository
	artifactRepo *artifacts.Repository
	sessionRepo  *sessions.Repository

	hashing   *hashing.Service
	recording *recording.Service
	dag       *dag.Service
	lineage   *lineage.Service
	lookup    *lookup.Service
	vcs       vcs.Provider
}

// newApp loads configuration, opens the store, and wires every core and
// ambient service behind it. Callers must call close() when done.
func newApp(configPath string) (*app, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("cli: load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Levels: cfg.Log.Levels,
		Output: logger.OutputConfig{
			Enabled:    cfg.Log.Output.Enabled,
			Path:       cfg.Log.Output.Path,
			MaxSizeMB:  cfg.Log.Output.MaxSizeMB,
			MaxBackups: cfg.Log.Output.MaxBackups,
			MaxAgeDays: cfg.Log.Output.MaxAgeDays,
			Compress:   cfg.Log.Output.Compress,
			Console:    cfg.Log.Output.Console,
		},
	}); err != nil {
		return nil, fmt.Errorf("cli: init logger: %w", err)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("cli: open store: %w", err)
	}

	jobRepo := jobs.New(db.Conn)
	artifactRepo := artifacts.New(db.Conn)
	sessionRepo := sessions.New(db.Conn)

	registry := hashing.NewRegistry()
	cache := hashing.NewCache(db.Conn)
	hashingSvc := hashing.NewService(registry, cache)

	recordingSvc := recording.New(db.Conn, hashingSvc, jobRepo, artifactRepo, sessionRepo)
	dagSvc := dag.New(sessionRepo, jobRepo, artifactRepo)
	lineageSvc := lineage.New(artifactRepo, jobRepo)
	lookupSvc := lookup.New(jobRepo, artifactRepo, sessionRepo)

	var vcsProvider vcs.Provider = vcs.NewNullProvider()
	if cfg.RepoRoot != "" {
		vcsProvider = vcs.NewGitProvider()
	}

	return &app{
		cfg:          cfg,
		db:           db,
		jobRepo:      jobRepo,
		artifactRepo: artifactRepo,
		sessionRepo:  sessionRepo,
		hashing:      hashingSvc,
		recording:    recordingSvc,
		dag:          dagSvc,
		lineage:      lineageSvc,
		lookup:       lookupSvc,
		vcs:          vcsProvider,
	}, nil
}

// gitContext reports the current commit/branch/repo for the configured
// repo root via the VCS provider, tolerating a
// non-repo working directory by returning empty strings.
func (a *app) gitContext() (repo, commit, branch string) {
	dir := a.cfg.RepoRoot
	if dir == "" {
		dir = "."
	}
	ctx := cliContext()
	commit, _ = a.vcs.CurrentCommit(ctx, dir)
	branch, _ = a.vcs.CurrentBranch(ctx, dir)
	if url, err := a.vcs.RemoteURL(ctx, dir); err == nil {
		repo = url
	}
	return repo, commit, branch
}

func (a *app) close() error {
	sqlDB, err := a.db.Conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newReproductionService wires the reproduction orchestrator, built
// lazily since it requires a Docker connection that most commands never
// touch.
func (a *app) newReproductionService() (*reproduction.Service, error) {
	docker, err := reproduction.NewDockerRunner()
	if err != nil {
		return nil, fmt.Errorf("cli: connect to docker: %w", err)
	}
	return reproduction.New(a.artifactRepo, a.sessionRepo, a.lineage, docker), nil
}

func cliContext() context.Context { return context.Background() }
