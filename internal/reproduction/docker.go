// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package reproduction

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/noldarim/roar/internal/logger"
)

// DockerClient is the container lifecycle surface a reproduction run
// needs: create, start, exec, copy files in, tear down.
type DockerClient interface {
	CreateContainer(ctx context.Context, config RunConfig) (*Run, error)
	StartContainer(ctx context.Context, runID string) error
	ExecContainer(ctx context.Context, runID string, cmd []string, workDir string) (*ExecResult, error)
	CopyToContainer(ctx context.Context, runID string, srcPath string, dstPath string) error
	StopContainer(ctx context.Context, runID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, runID string, force bool) error
	Close() error
}

// DockerRunner implements DockerClient over the real Docker Engine API.
// Tests substitute DockerClient itself rather than mocking the Docker SDK
// client directly.
type DockerRunner struct {
	docker *client.Client
}

var _ DockerClient = (*DockerRunner)(nil)

// NewDockerRunner builds a runner using Docker's default environment
// settings (DOCKER_HOST, TLS config, etc.).
func NewDockerRunner() (*DockerRunner, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("reproduction: create docker client: %w", err)
	}
	return &DockerRunner{docker: c}, nil
}

// CreateContainer creates (but does not start) a reproduction container.
func (c *DockerRunner) CreateContainer(ctx context.Context, cfg RunConfig) (*Run, error) {
	binds := make([]string, 0, len(cfg.Volumes))
	for _, v := range cfg.Volumes {
		bind := fmt.Sprintf("%s:%s", v.HostPath, v.ContainerPath)
		if v.ReadOnly {
			bind += ":ro"
		}
		binds = append(binds, bind)
	}

	exposed, bindings, err := nat.ParsePortSpecs(cfg.Ports)
	if err != nil {
		return nil, fmt.Errorf("reproduction: parse port specs: %w", err)
	}

	containerCfg := &dockercontainer.Config{
		Image:        cfg.Image,
		Env:          envMapToSlice(cfg.Environment),
		WorkingDir:   cfg.WorkingDir,
		Labels:       cfg.Labels,
		Tty:          false,
		Cmd:          []string{"sleep", "infinity"},
		ExposedPorts: exposed,
	}
	hostCfg := &dockercontainer.HostConfig{Binds: binds, PortBindings: bindings}

	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("reproduction: create container: %w", err)
	}

	now := time.Now()
	logger.Reproduction().Info().Str("container_id", resp.ID).Str("image", cfg.Image).Msg("reproduction container created")
	return &Run{
		ID:           resp.ID,
		Name:         cfg.Name,
		Image:        cfg.Image,
		Status:       StatusCreated,
		Environment:  cfg.Environment,
		Volumes:      cfg.Volumes,
		CreatedAt:    now,
		UpdatedAt:    now,
		ArtifactHash: cfg.ArtifactHash,
	}, nil
}

// StartContainer starts a created container.
func (c *DockerRunner) StartContainer(ctx context.Context, runID string) error {
	return c.docker.ContainerStart(ctx, runID, dockercontainer.StartOptions{})
}

// StopContainer stops a running container, giving it timeout to exit
// gracefully before Docker kills it.
func (c *DockerRunner) StopContainer(ctx context.Context, runID string, timeout *time.Duration) error {
	var seconds *int
	if timeout != nil {
		s := int(timeout.Seconds())
		seconds = &s
	}
	return c.docker.ContainerStop(ctx, runID, dockercontainer.StopOptions{Timeout: seconds})
}

// RemoveContainer deletes a container.
func (c *DockerRunner) RemoveContainer(ctx context.Context, runID string, force bool) error {
	return c.docker.ContainerRemove(ctx, runID, dockercontainer.RemoveOptions{Force: force})
}

// CopyToContainer tars srcPath and extracts it into the dstPath directory
// inside the container: a directory's contents land directly under dstPath,
// a single file lands as dstPath/<base name>.
func (c *DockerRunner) CopyToContainer(ctx context.Context, runID, srcPath, dstPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("reproduction: stat %s: %w", srcPath, err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if info.IsDir() {
		err = filepath.Walk(srcPath, func(path string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(srcPath, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			header, err := tar.FileInfoHeader(fi, "")
			if err != nil {
				return err
			}
			header.Name = rel
			if err := tw.WriteHeader(header); err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		})
	} else {
		header := &tar.Header{Name: filepath.Base(srcPath), Mode: int64(info.Mode()), Size: info.Size()}
		if err = tw.WriteHeader(header); err == nil {
			var f *os.File
			f, err = os.Open(srcPath)
			if err == nil {
				defer f.Close()
				_, err = io.Copy(tw, f)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("reproduction: build tar for %s: %w", srcPath, err)
	}
	if err := tw.Close(); err != nil {
		return err
	}

	if err := c.docker.CopyToContainer(ctx, runID, dstPath, &buf, dockercontainer.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("reproduction: copy to container: %w", err)
	}
	return nil
}

// ExecContainer runs one command inside a running container and captures
// its combined output and exit code.
func (c *DockerRunner) ExecContainer(ctx context.Context, runID string, cmd []string, workDir string) (*ExecResult, error) {
	execResp, err := c.docker.ContainerExecCreate(ctx, runID, dockercontainer.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("reproduction: create exec: %w", err)
	}

	hijacked, err := c.docker.ContainerExecAttach(ctx, execResp.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("reproduction: attach exec: %w", err)
	}
	defer hijacked.Close()

	var out strings.Builder
	if _, err := io.Copy(&out, hijacked.Reader); err != nil {
		return nil, fmt.Errorf("reproduction: read exec output: %w", err)
	}

	inspect, err := c.docker.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("reproduction: inspect exec: %w", err)
	}

	return &ExecResult{ExitCode: inspect.ExitCode, Stdout: out.String()}, nil
}

// Close releases the underlying Docker API connection.
func (c *DockerRunner) Close() error {
	return c.docker.Close()
}

func envMapToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
