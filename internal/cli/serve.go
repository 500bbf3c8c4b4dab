// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noldarim/roar/internal/server"
)

const shutdownTimeout = 5 * time.Second

// serveCommand starts the REST + WebSocket status server.
func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "roar.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Jobs are recorded by separate `roar run` processes, so the /ws stream
	// is fed by tailing the shared store rather than an in-process hook.
	events := server.WatchJobs(ctx, a.jobRepo, a.sessionRepo, time.Second)

	srv := server.New(server.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}, a.jobRepo, a.artifactRepo, a.sessionRepo, a.dag, a.lineage, events)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv.Run(ctx)
}
