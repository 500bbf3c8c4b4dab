// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"time"

	"github.com/noldarim/roar/internal/logger"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

// watchBatchLimit bounds how many backlogged jobs one poll converts into
// events, so a burst of recordings cannot stall the poll loop.
const watchBatchLimit = 100

// WatchJobs tails the store for newly committed jobs and publishes one
// JobEvent per job on the returned channel until ctx is cancelled. Jobs are
// recorded by separate short-lived CLI processes, so the serve process polls
// the shared store rather than hooking the recorder in-process. The stream
// starts at the current head; history is not replayed.
func WatchJobs(ctx context.Context, jobRepo *jobs.Repository, sessionRepo *sessions.Repository, interval time.Duration) <-chan JobEvent {
	events := make(chan JobEvent, watchBatchLimit)

	// Head is read before the poll loop starts so every job committed after
	// this call is guaranteed to produce an event.
	lastID, err := jobRepo.MaxID()
	if err != nil {
		logger.Server().Warn().Err(err).Msg("job watcher failed to read store head, starting from zero")
	}

	go func() {
		defer close(events)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			fresh, err := jobRepo.GetAfter(lastID, watchBatchLimit)
			if err != nil {
				logger.Server().Warn().Err(err).Msg("job watcher poll failed")
				continue
			}
			for _, job := range fresh {
				lastID = job.ID
				select {
				case events <- jobEventOf(job, sessionRepo):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events
}

func jobEventOf(job store.Job, sessionRepo *sessions.Repository) JobEvent {
	event := JobEvent{
		Command:    job.Command,
		StepNumber: job.StepNumber,
		ExitCode:   job.ExitCode,
	}
	if job.JobUID != nil {
		event.JobUID = *job.JobUID
	}
	if job.SessionID != nil {
		if session, err := sessionRepo.Get(*job.SessionID); err == nil && session != nil && session.Hash != nil {
			event.SessionHash = *session.Hash
		}
	}
	return event
}
