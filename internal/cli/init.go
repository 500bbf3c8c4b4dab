// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/noldarim/roar/internal/vcs"
)

// initAnswers collects the wizard's free-form fields before they are
// translated into a roar.yaml document.
type initAnswers struct {
	repoRoot        string
	databasePath    string
	algorithms      string
	enableTelemetry bool
	otlpEndpoint    string
	cloudProvider   string
	gcsBucket       string
}

func initCommand(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", "roar.yaml", "Path to write the configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	answers := initAnswers{
		databasePath:  ".roar/roar.db",
		algorithms:    "blake3",
		cloudProvider: "none",
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if root, err := vcs.NewGitProvider().RepoRoot(context.Background(), cwd); err == nil && root != "" {
		answers.repoRoot = root
	} else {
		answers.repoRoot = cwd
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("repo_root").
				Title("Repository root").
				Description("Files outside this tree are recorded by basename or home-relative path").
				Value(&answers.repoRoot),

			huh.NewInput().
				Key("database").
				Title("Database path").
				Value(&answers.databasePath),

			huh.NewInput().
				Key("algorithms").
				Title("Hash algorithms").
				Description("Comma-separated; blake3 is always included regardless of this list").
				Value(&answers.algorithms),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Key("telemetry").
				Title("Enable telemetry export?").
				Value(&answers.enableTelemetry),

			huh.NewInput().
				Key("otlp_endpoint").
				Title("OTLP endpoint").
				Value(&answers.otlpEndpoint).
				Placeholder("localhost:4318"),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("cloud_provider").
				Title("Cloud artifact upload provider").
				Options(
					huh.NewOption("none", "none"),
					huh.NewOption("gcs", "gcs"),
					huh.NewOption("local", "local"),
				).
				Value(&answers.cloudProvider),

			huh.NewInput().
				Key("gcs_bucket").
				Title("GCS bucket").
				Value(&answers.gcsBucket),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	doc := renderConfig(answers)
	if err := os.WriteFile(*out, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("init: write %s: %w", *out, err)
	}

	fmt.Printf("Wrote %s\n", *out)
	return nil
}

// configDoc mirrors config.AppConfig's yaml shape closely enough for a
// hand-rolled yaml.Marshal of the wizard's answers to round-trip through
// config.NewConfig.
type configDoc struct {
	RepoRoot string `yaml:"repo_root"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Hashing struct {
		Algorithms []string `yaml:"algorithms"`
	} `yaml:"hashing"`
	Telemetry struct {
		Enabled      bool   `yaml:"enabled"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`
	Cloud struct {
		Provider  string `yaml:"provider"`
		GCSBucket string `yaml:"gcs_bucket"`
	} `yaml:"cloud"`
}

func renderConfig(a initAnswers) string {
	var doc configDoc
	doc.RepoRoot = a.repoRoot
	doc.Database.Path = a.databasePath
	for _, alg := range strings.Split(a.algorithms, ",") {
		if alg = strings.TrimSpace(alg); alg != "" {
			doc.Hashing.Algorithms = append(doc.Hashing.Algorithms, alg)
		}
	}
	doc.Telemetry.Enabled = a.enableTelemetry
	doc.Telemetry.OTLPEndpoint = a.otlpEndpoint
	doc.Cloud.Provider = a.cloudProvider
	doc.Cloud.GCSBucket = a.gcsBucket

	b, err := yaml.Marshal(doc)
	if err != nil {
		// yaml.Marshal over a plain struct of strings/bools cannot fail;
		// fall back to an empty document rather than panicking.
		return ""
	}
	return string(b)
}
