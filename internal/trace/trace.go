// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package trace models the record emitted by the external subprocess
// tracer and the invoker-side classification of its opened files into job
// inputs and outputs. The tracer itself is a separate process; this package
// only decodes its output.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
)

// Record is one execution's tracer output.
type Record struct {
	OpenedFiles       []string          `json:"opened_files"`
	ImportedModules   []string          `json:"imported_modules"`
	EnvReads          map[string]string `json:"env_reads"`
	ModulesFiles      []string          `json:"modules_files"`
	SharedLibs        []string          `json:"shared_libs"`
	InstalledPackages map[string]string `json:"installed_packages"`
	UsedPackages      map[string]string `json:"used_packages"`
	SysPrefix         string            `json:"sys_prefix"`
	SysBasePrefix     string            `json:"sys_base_prefix"`
	VirtualEnv        string            `json:"virtual_env"`
	Argv              []string          `json:"argv"`
}

// Decode parses a tracer record from its JSON representation.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("trace: decode record: %w", err)
	}
	return r, nil
}

// Classification splits a tracer's opened_files into inputs and outputs by
// comparing each file's mtime against the job's start time.
type Classification struct {
	Inputs  []string
	Outputs []string
}

// Classify stats every path in opened, bucketing it as an output if its
// mtime is at or after jobStart (it was written during the run) and as an
// input otherwise. Paths that cannot be stat'd (removed mid-run, tracer
// false positive) are silently dropped — the recording service's own
// hashing pass drops them again regardless.
func Classify(opened []string, jobStart float64) Classification {
	var c Classification
	for _, path := range opened {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		mtime := float64(info.ModTime().UnixNano()) / 1e9
		if mtime >= jobStart {
			c.Outputs = append(c.Outputs, path)
		} else {
			c.Inputs = append(c.Inputs, path)
		}
	}
	return c
}
