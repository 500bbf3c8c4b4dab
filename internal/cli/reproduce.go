// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/noldarim/roar/internal/reproduction"
)

// reproduceCommand drives the reproduction orchestrator: clone the
// recorded git commit, provision a container matching the recorded
// runtime/package metadata, and replay the lineage in order.
func reproduceCommand(args []string) error {
	fs := flag.NewFlagSet("reproduce", flag.ExitOnError)
	configPath := fs.String("config", "roar.yaml", "Path to config file")
	workDir := fs.String("work-dir", "", "Host directory to clone into (defaults to a temp dir)")
	maxDepth := fs.Int("max-depth", 10, "Maximum upstream traversal depth")
	runSteps := fs.Bool("run-steps", true, "Replay recorded commands after provisioning")
	keepRunning := fs.Bool("keep-running", false, "Leave the container running for interactive debugging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("reproduce: target artifact hash (8+ character prefix) required")
	}
	target := fs.Arg(0)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	repro, err := a.newReproductionService()
	if err != nil {
		return err
	}

	work := *workDir
	if work == "" {
		tmp, err := os.MkdirTemp("", "roar-reproduce-*")
		if err != nil {
			return fmt.Errorf("reproduce: create work dir: %w", err)
		}
		work = tmp
	}

	result, err := repro.Reproduce(context.Background(), target, reproduction.Options{
		WorkDir:     work,
		MaxDepth:    *maxDepth,
		RunSteps:    *runSteps,
		KeepRunning: *keepRunning,
	})
	if err != nil {
		return fmt.Errorf("reproduce: %w", err)
	}

	fmt.Printf("cloned into %s\n", result.RepoDir)
	if result.Container != nil {
		fmt.Printf("container %s (%s)\n", result.Container.ID, result.Container.Image)
	}
	for _, step := range result.Steps {
		fmt.Printf("  [%s] %s -> exit %d\n", step.JobUID, step.Command, step.ExitCode)
	}
	for _, warning := range result.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	return nil
}
