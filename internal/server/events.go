// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"

	"github.com/noldarim/roar/internal/logger"
)

// JobEvent is broadcast over /ws whenever a newly recorded job lands in
// the store (see WatchJobs).
type JobEvent struct {
	JobUID      string `json:"job_uid"`
	Command     string `json:"command"`
	SessionHash string `json:"session_hash,omitempty"`
	StepNumber  *int   `json:"step_number,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`
}

// EventBroadcaster reads every event from the job watcher's event channel
// (WatchJobs) and fans it out to all connected WebSocket clients.
type EventBroadcaster struct {
	events  <-chan JobEvent
	clients *ClientRegistry
}

// NewEventBroadcaster builds a broadcaster over the given channel and
// client registry.
func NewEventBroadcaster(events <-chan JobEvent, clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{events: events, clients: clients}
}

// Run reads events until the channel closes or ctx is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				logger.Server().Info().Msg("event broadcaster stopped: channel closed")
				return
			}
			if b.clients != nil {
				b.clients.Broadcast(event)
			}
		case <-ctx.Done():
			logger.Server().Info().Msg("event broadcaster stopped: context cancelled")
			return
		}
	}
}
