// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"
	"fmt"

	"gorm.io/gorm"

	"github.com/noldarim/roar/internal/store/artifacts"
	"github.com/noldarim/roar/internal/store/jobs"
)

// gcCommand runs the orphaned-artifact sweep. It is advisory, never
// triggered automatically by job recording, and runs in its own
// transaction assuming no concurrent writer.
func gcCommand(args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	configPath := fs.String("config", "roar.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ids, err := a.artifactRepo.ListIDs()
	if err != nil {
		return fmt.Errorf("gc: list artifacts: %w", err)
	}

	var removed int
	txErr := a.db.Conn.Transaction(func(tx *gorm.DB) error {
		txArtifacts := artifacts.New(tx)
		return jobs.CleanupOrphanedArtifacts(tx, ids, func(id string) error {
			if delErr := txArtifacts.DeleteHashes(id); delErr != nil {
				return delErr
			}
			return nil
		}, func(id string) error {
			if delErr := txArtifacts.Delete(id); delErr != nil {
				return delErr
			}
			removed++
			return nil
		})
	})
	if txErr != nil {
		return fmt.Errorf("gc: sweep: %w", txErr)
	}

	fmt.Printf("removed %d orphaned artifact(s) out of %d candidates\n", removed, len(ids))
	return nil
}
