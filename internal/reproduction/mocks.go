// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package reproduction

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockDockerClient is a testify mock of DockerClient, adapted from
// pkg/containers/docker.MockClient.
type MockDockerClient struct {
	mock.Mock
}

func (m *MockDockerClient) CreateContainer(ctx context.Context, config RunConfig) (*Run, error) {
	args := m.Called(ctx, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Run), args.Error(1)
}

func (m *MockDockerClient) StartContainer(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockDockerClient) ExecContainer(ctx context.Context, runID string, cmd []string, workDir string) (*ExecResult, error) {
	args := m.Called(ctx, runID, cmd, workDir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ExecResult), args.Error(1)
}

func (m *MockDockerClient) CopyToContainer(ctx context.Context, runID, srcPath, dstPath string) error {
	args := m.Called(ctx, runID, srcPath, dstPath)
	return args.Error(0)
}

func (m *MockDockerClient) StopContainer(ctx context.Context, runID string, timeout *time.Duration) error {
	args := m.Called(ctx, runID, timeout)
	return args.Error(0)
}

func (m *MockDockerClient) RemoveContainer(ctx context.Context, runID string, force bool) error {
	args := m.Called(ctx, runID, force)
	return args.Error(0)
}

func (m *MockDockerClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
