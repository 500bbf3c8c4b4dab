// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package reproduction

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/logger"
	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobmeta"
	"github.com/noldarim/roar/internal/store/sessions"
)

// defaultImage is used when no runtime metadata recorded a more specific
// base image; package installs still run on top of it.
const defaultImage = "ubuntu:22.04"

// StepResult is the outcome of replaying one recorded job.
type StepResult struct {
	JobUID  string
	Command string
	ExecResult
}

// Result is the overall outcome of a reproduction run.
type Result struct {
	Pipeline  *Pipeline
	RepoDir   string
	Container *Run
	Steps     []StepResult
	Warnings  []string
}

// Options configures one Reproduce call.
type Options struct {
	WorkDir     string // host directory to clone into
	MaxDepth    int
	RunSteps    bool // replay steps after the environment is ready
	KeepRunning bool // skip teardown, useful for interactive debugging
}

// Service orchestrates artifact reproduction: resolve the pipeline that
// produced an artifact, clone its git repository at the recorded commit,
// provision a container matching its recorded runtime/packages, and replay
// its jobs in dependency order.
type Service struct {
	artifacts *artifacts.Repository
	sessions  *sessions.Repository
	lineage   *lineage.Service
	docker    DockerClient
}

// New builds a reproduction orchestrator.
func New(artifactRepo *artifacts.Repository, sessionRepo *sessions.Repository, lineageSvc *lineage.Service, docker DockerClient) *Service {
	return &Service{artifacts: artifactRepo, sessions: sessionRepo, lineage: lineageSvc, docker: docker}
}

// Reproduce clones, provisions, and optionally replays the pipeline that
// produced the artifact identified by hashPrefix.
func (s *Service) Reproduce(ctx context.Context, hashPrefix string, opts Options) (*Result, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 50
	}

	pipeline, err := lookupPipeline(s.artifacts, s.sessions, s.lineage, hashPrefix, maxDepth)
	if err != nil {
		return nil, err
	}
	log := logger.Reproduction()
	log.Info().Str("artifact_hash", pipeline.ArtifactHash).Str("git_repo", pipeline.GitRepo).Int("steps", len(pipeline.Steps)).Msg("resolved reproduction pipeline")

	repoDir, err := cloneRepo(ctx, pipeline.GitRepo, pipeline.GitCommit, opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("reproduction: clone: %w", err)
	}

	meta := mergedMetadata(pipeline.Steps)
	run, warnings, err := s.provisionContainer(ctx, pipeline, meta, repoDir)
	if err != nil {
		return nil, err
	}

	result := &Result{Pipeline: pipeline, RepoDir: repoDir, Container: run, Warnings: warnings}

	if opts.RunSteps {
		steps, err := s.replaySteps(ctx, run, pipeline)
		if err != nil {
			return result, err
		}
		result.Steps = steps
	}

	if !opts.KeepRunning {
		timeout := 5 * time.Second
		if err := s.docker.StopContainer(ctx, run.ID, &timeout); err != nil {
			log.Warn().Err(err).Str("container_id", run.ID).Msg("failed to stop reproduction container")
		}
		if err := s.docker.RemoveContainer(ctx, run.ID, true); err != nil {
			log.Warn().Err(err).Str("container_id", run.ID).Msg("failed to remove reproduction container")
		}
	}

	return result, nil
}

func (s *Service) provisionContainer(ctx context.Context, pipeline *Pipeline, meta jobmeta.Metadata, repoDir string) (*Run, []string, error) {
	var warnings []string

	image := defaultImage
	if meta.Runtime.OS != "" {
		warnings = append(warnings, fmt.Sprintf("recorded OS %q not matched to a specific base image; using %s", meta.Runtime.OS, defaultImage))
	}

	env, droppedEnv := SanitizeRunEnvironment(meta.EnvVars)
	if len(droppedEnv) > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped recorded environment variable(s) unsafe to replay: %s", strings.Join(droppedEnv, ", ")))
	}

	labels := map[string]string{"roar.reproduction": "true", "roar.artifact-hash": pipeline.ArtifactHash}
	if err := ValidateRunLabels(labels); err != nil {
		return nil, warnings, fmt.Errorf("reproduction: invalid container labels: %w", err)
	}

	cfg := RunConfig{
		Name:        "roar-reproduce-" + shortHash(pipeline.ArtifactHash),
		Image:       image,
		Environment: env,
		Volumes: []VolumeMapping{
			{HostPath: repoDir, ContainerPath: "/workspace", ReadOnly: false},
		},
		WorkingDir:   "/workspace",
		Labels:       labels,
		ArtifactHash: pipeline.ArtifactHash,
	}

	run, err := s.docker.CreateContainer(ctx, cfg)
	if err != nil {
		return nil, warnings, err
	}
	if err := s.docker.StartContainer(ctx, run.ID); err != nil {
		return run, warnings, fmt.Errorf("reproduction: start container: %w", err)
	}

	if anyPip := meta.Packages.Pip.AnyVersion(); len(anyPip) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d pip package(s) recorded without a pinned version; installing latest", len(anyPip)))
	}
	if err := installPackages(ctx, s.docker, run.ID, meta.Packages); err != nil {
		warnings = append(warnings, fmt.Sprintf("package installation failed: %s", err))
	}

	return run, warnings, nil
}

func installPackages(ctx context.Context, docker DockerClient, runID string, packages jobmeta.Packages) error {
	if len(packages.Dpkg) > 0 || len(packages.BuildDpkg) > 0 {
		args := []string{"apt-get", "install", "-y"}
		for name := range packages.Dpkg {
			args = append(args, name)
		}
		for name := range packages.BuildDpkg {
			args = append(args, name)
		}
		if _, err := docker.ExecContainer(ctx, runID, args, "/workspace"); err != nil {
			return err
		}
	}
	if len(packages.Pip) > 0 || len(packages.BuildPip) > 0 {
		args := []string{"pip", "install"}
		for name, version := range packages.Pip {
			args = append(args, pipSpec(name, version))
		}
		for name, version := range packages.BuildPip {
			args = append(args, pipSpec(name, version))
		}
		if _, err := docker.ExecContainer(ctx, runID, args, "/workspace"); err != nil {
			return err
		}
	}
	return nil
}

func pipSpec(name, version string) string {
	if version == "" {
		return name
	}
	return fmt.Sprintf("%s==%s", name, version)
}

// replaySteps runs each recorded job's command inside the container, in the
// lineage-derived dependency order, stopping at the first failure.
func (s *Service) replaySteps(ctx context.Context, run *Run, pipeline *Pipeline) ([]StepResult, error) {
	results := make([]StepResult, 0, len(pipeline.Steps))
	for _, step := range pipeline.Steps {
		cmd := []string{"sh", "-c", step.Job.Command}
		jobUID := ""
		if step.Job.JobUID != nil {
			jobUID = *step.Job.JobUID
		}
		execResult, err := s.docker.ExecContainer(ctx, run.ID, cmd, "/workspace")
		if err != nil {
			return results, fmt.Errorf("reproduction: replay step %s: %w", jobUID, err)
		}
		results = append(results, StepResult{JobUID: jobUID, Command: step.Job.Command, ExecResult: *execResult})
		if execResult.ExitCode != 0 {
			return results, fmt.Errorf("reproduction: step %s exited with code %d", jobUID, execResult.ExitCode)
		}
	}
	return results, nil
}

func shortHash(h string) string {
	if len(h) <= 8 {
		return h
	}
	return h[:8]
}

// cloneRepo clones repoURL into a fresh subdirectory of workDir and checks
// out commit, using a narrow command allowlist the same way internal/vcs
// does for its read-only queries — clone/checkout are write operations
// intentionally kept out of that package's read-only contract.
func cloneRepo(ctx context.Context, repoURL, commit, workDir string) (string, error) {
	if workDir == "" {
		var err error
		workDir, err = os.MkdirTemp("", "roar-reproduce-")
		if err != nil {
			return "", err
		}
	}
	target := filepath.Join(workDir, "repo")

	if err := runGitWrite(ctx, workDir, "clone", repoURL, target); err != nil {
		return "", err
	}
	if commit != "" {
		if err := runGitWrite(ctx, target, "checkout", commit); err != nil {
			return "", fmt.Errorf("checkout %s: %w", commit, err)
		}
	}
	return target, nil
}

func runGitWrite(ctx context.Context, dir string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = []string{
		"HOME=" + os.Getenv("HOME"),
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=",
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
