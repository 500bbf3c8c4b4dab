// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noldarim/roar/internal/tui/watch"
)

// watchCommand starts the bubbletea TUI polling the active session's DAG
// summary.
func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
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
		return fmt.Errorf("watch: load active session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("watch: no active session — record a job with `roar run` first")
	}

	model := watch.New(a.dag, a.sessionRepo, a.jobRepo, session.ID)
	program := tea.NewProgram(model)
	_, err = program.Run()
	return err
}
