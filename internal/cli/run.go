// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/noldarim/roar/internal/logger"
	"github.com/noldarim/roar/internal/recording"
	"github.com/noldarim/roar/internal/store/jobmeta"
	"github.com/noldarim/roar/internal/trace"
)

// runOptions configures `roar run` / `roar build`.
type runOptions struct {
	configPath string
	stepName   string
	algorithms string
	noSession  bool
}

// runCommand executes the trailing command line under the external tracer
// and records the result via internal/recording. jobType is "run" or
// "build" per the caller's invocation verb.
func runCommand(args []string, jobType string) error {
	opts := &runOptions{configPath: "roar.yaml"}
	fs := flag.NewFlagSet(jobType, flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", opts.configPath, "Path to config file")
	fs.StringVar(&opts.stepName, "name", "", "Human-readable step name")
	fs.StringVar(&opts.algorithms, "algorithms", opts.algorithms, "Comma-separated hash algorithms (default: hashing.algorithms from config)")
	fs.BoolVar(&opts.noSession, "no-session", false, "Do not place this job in the active session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := fs.Args()
	// Support `roar run -- cmd args...` as well as `roar run cmd args...`.
	if len(command) > 0 && command[0] == "--" {
		command = command[1:]
	}
	if len(command) == 0 {
		return fmt.Errorf("%s: no command given", jobType)
	}

	a, err := newApp(opts.configPath)
	if err != nil {
		return err
	}
	defer a.close()

	log := logger.CLI()
	startedAt := time.Now()

	traceFile, cleanup, err := traceOutputFile()
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "ROAR_LOG_FILE="+traceFile)

	runErr := cmd.Run()
	duration := time.Since(startedAt).Seconds()
	exitCode := exitCodeOf(runErr)

	inputs, outputs, metadata := classifyTrace(traceFile, float64(startedAt.UnixNano())/1e9, jobType)

	gitRepo, gitCommit, gitBranch := a.gitContext()

	algorithms := splitCSV(opts.algorithms)
	if len(algorithms) == 0 {
		algorithms = a.cfg.Hashing.Algorithms
	}

	jobID, jobUID, err := a.recording.RecordJob(recording.RecordJobParams{
		Command:         strings.Join(command, " "),
		Timestamp:       float64(startedAt.UnixNano()) / 1e9,
		GitRepo:         gitRepo,
		GitCommit:       gitCommit,
		GitBranch:       gitBranch,
		DurationSeconds: &duration,
		ExitCode:        &exitCode,
		InputFiles:      inputs,
		OutputFiles:     outputs,
		Metadata:        metadata,
		StepName:        opts.stepName,
		AssignToSession: !opts.noSession,
		JobType:         jobType,
		RepoRoot:        a.cfg.RepoRoot,
		HashAlgorithms:  algorithms,
	})
	if err != nil {
		return fmt.Errorf("%s: record job: %w", jobType, err)
	}

	log.Info().
		Uint("job_id", jobID).
		Str("job_uid", jobUID).
		Int("exit_code", exitCode).
		Msg("job recorded")
	fmt.Printf("recorded job %s (exit %d, %d inputs, %d outputs)\n", jobUID, exitCode, len(inputs), len(outputs))

	if runErr != nil {
		os.Exit(exitCode)
	}
	return nil
}

// traceOutputFile allocates the scratch path the external tracer is told
// to write its JSON record to via ROAR_LOG_FILE.
func traceOutputFile() (string, func(), error) {
	f, err := os.CreateTemp("", "roar-trace-*.json")
	if err != nil {
		return "", func() {}, fmt.Errorf("cli: create trace scratch file: %w", err)
	}
	path := f.Name()
	f.Close()
	os.Remove(path)
	return path, func() { os.Remove(path) }, nil
}

// classifyTrace reads the tracer's output, if the instrumented command
// produced one, splits opened_files into inputs/outputs by mtime relative
// to jobStart, and folds the recorded package sets and environment reads
// into the job metadata JSON. Absence of a trace file (the command was not
// instrumented, or no tracer is installed) degrades gracefully to no
// observed I/O rather than failing the job recording.
func classifyTrace(path string, jobStart float64, jobType string) ([]string, []string, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, ""
	}
	record, err := trace.Decode(data)
	if err != nil {
		logger.CLI().Warn().Err(err).Msg("failed to decode tracer output, recording job with no observed I/O")
		return nil, nil, ""
	}
	c := trace.Classify(record.OpenedFiles, jobStart)
	return c.Inputs, c.Outputs, traceMetadata(record, jobType)
}

// traceMetadata renders the tracer record's package and environment
// observations as the jobs.metadata JSON document. Build jobs record their
// packages under the build_* buckets so reproduction can split environment
// setup from runtime installs.
func traceMetadata(record trace.Record, jobType string) string {
	meta := jobmeta.Metadata{EnvVars: record.EnvReads}
	if jobType == "build" {
		meta.Packages.BuildPip = jobmeta.PackageSet(record.UsedPackages)
	} else {
		meta.Packages.Pip = jobmeta.PackageSet(record.UsedPackages)
	}
	if len(meta.Packages.Pip) == 0 && len(meta.Packages.BuildPip) == 0 && len(meta.EnvVars) == 0 {
		return ""
	}
	encoded, err := jobmeta.Marshal(meta)
	if err != nil {
		logger.CLI().Warn().Err(err).Msg("failed to encode job metadata")
		return ""
	}
	return encoded
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
