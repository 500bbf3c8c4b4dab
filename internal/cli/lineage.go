// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"
	"fmt"
	"time"

	"github.com/noldarim/roar/internal/lineage"
	"github.com/noldarim/roar/internal/lookup"
)

// lineageCommand prints the upstream job lineage of a target artifact,
// either as a flat topological job list or, with --manifest, as a YAML
// reproduction manifest restricted to on-path I/O.
func lineageCommand(args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ExitOnError)
	configPath := fs.String("config", "roar.yaml", "Path to config file")
	maxDepth := fs.Int("max-depth", 10, "Maximum upstream traversal depth")
	manifest := fs.Bool("manifest", false, "Print a YAML reproduction manifest instead of a job list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("lineage: target artifact id, hash, or path required")
	}
	target := fs.Arg(0)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	artifactID, err := a.resolveTarget(target)
	if err != nil {
		return err
	}

	if *manifest {
		filtered, err := a.lineage.GetFilteredLineage(artifactID, *maxDepth)
		if err != nil {
			return fmt.Errorf("lineage: %w", err)
		}
		if filtered == nil || filtered.Target == nil {
			return fmt.Errorf("lineage: target %q not found", target)
		}
		doc, err := lineage.ExportManifest(target, filtered.Jobs)
		if err != nil {
			return fmt.Errorf("lineage: export manifest: %w", err)
		}
		fmt.Print(doc)
		return nil
	}

	jobsInOrder, err := a.lineage.GetLineageJobs([]string{artifactID}, *maxDepth)
	if err != nil {
		return fmt.Errorf("lineage: %w", err)
	}
	if len(jobsInOrder) == 0 {
		fmt.Println("no lineage jobs found")
		return nil
	}

	for _, lj := range jobsInOrder {
		uid := ""
		if lj.Job.JobUID != nil {
			uid = *lj.Job.JobUID
		}
		ts := time.Unix(int64(lj.Job.Timestamp), 0).Format(time.RFC3339)
		fmt.Printf("%s  %s  %s  (%d in, %d out)\n", uid, ts, lj.Job.Command, len(lj.Inputs), len(lj.Outputs))
	}
	return nil
}

// resolveTarget accepts a bare artifact ID, a hash, a job UID, a "@N"/"@BN"
// step reference, or a filesystem path, and resolves it to the
// artifact ID lineage tracing should start from. A job/step reference
// resolves to the artifact its job produced most recently, preferring its
// first recorded output.
func (a *app) resolveTarget(target string) (string, error) {
	if result, err := a.lookup.Resolve(target); err == nil && result != nil {
		switch result.Type {
		case lookup.EntityArtifact:
			return result.Artifact.ID, nil
		case lookup.EntityJob, lookup.EntityStep:
			outputs, err := a.jobRepo.GetOutputs(result.Job.ID)
			if err != nil {
				return "", fmt.Errorf("lineage: load outputs of job %d: %w", result.Job.ID, err)
			}
			if len(outputs) == 0 {
				return "", fmt.Errorf("lineage: job %q produced no outputs", target)
			}
			return outputs[0].ArtifactID, nil
		}
	}

	if artifact, err := a.artifactRepo.Get(target); err == nil && artifact != nil {
		return artifact.ID, nil
	}
	if artifact, err := a.artifactRepo.GetByHash(target, ""); err == nil && artifact != nil {
		return artifact.ID, nil
	}
	if artifact, err := a.artifactRepo.GetByPath(target); err == nil && artifact != nil {
		return artifact.ID, nil
	}
	return "", fmt.Errorf("could not resolve %q to an artifact", target)
}
