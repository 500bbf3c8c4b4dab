// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"
	"fmt"

	"github.com/noldarim/roar/internal/dag"
)

// dagCommand prints the active session's DAG analysis: step list, stale
// steps, stale artifacts, downstream closures, and git consistency.
func dagCommand(args []string) error {
	fs := flag.NewFlagSet("dag", flag.ExitOnError)
	configPath := fs.String("config", "roar.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	session, err := a.sessionRepo.GetActive()
	if err != nil {
		return fmt.Errorf("dag: load active session: %w", err)
	}
	if session == nil {
		fmt.Println("no active session")
		return nil
	}

	summary, err := a.dag.GetSummary(session.ID)
	if err != nil {
		return fmt.Errorf("dag: summary: %w", err)
	}

	staleSteps, err := a.dag.GetStaleSteps(session.ID)
	if err != nil {
		return fmt.Errorf("dag: stale steps: %w", err)
	}
	staleSet := make(map[int]bool, len(staleSteps))
	for _, n := range staleSteps {
		staleSet[n] = true
	}

	consistency, err := a.dag.CheckGitConsistency(session.ID)
	if err != nil {
		return fmt.Errorf("dag: git consistency: %w", err)
	}

	fmt.Printf("session %s (%d steps, active=%v)\n", summary.Hash, summary.TotalSteps, summary.IsActive)
	if !consistency.Consistent {
		fmt.Printf("  warning: %s\n", consistency.Warning)
	}
	for _, step := range summary.Steps {
		state := "fresh"
		n := 0
		if step.StepNumber != nil {
			n = *step.StepNumber
		}
		if staleSet[n] {
			state = "stale"
		}
		downstream, err := a.dag.GetDownstreamSteps(session.ID, n)
		if err != nil {
			return fmt.Errorf("dag: downstream of step %d: %w", n, err)
		}
		fmt.Printf("  [%d] %-8s %s  (downstream: %v)\n", n, state, step.Command, downstream)
	}

	states, err := a.dag.GetArtifactStates(session.ID)
	if err != nil {
		return fmt.Errorf("dag: artifact states: %w", err)
	}
	counts := map[dag.ArtifactState]int{}
	for _, state := range states {
		counts[state]++
	}
	fmt.Printf("artifacts: %d active, %d stale, %d superseded\n",
		counts[dag.StateActive], counts[dag.StateStale], counts[dag.StateSuperseded])
	return nil
}
