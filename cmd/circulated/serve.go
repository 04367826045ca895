// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/jdwhite/circulate/internal/logging"
	"github.com/jdwhite/circulate/internal/scheduler"
	"github.com/jdwhite/circulate/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	rt, err := buildRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger := logging.Logger()

	sched := scheduler.New(rt.reconciler, rt.dispatcher, logger, scheduler.Config{
		SyncEnabled:   rt.cfg.Sync.Enabled,
		SyncInterval:  rt.cfg.Sync.Interval,
		DigestEnabled: rt.cfg.Digest.Enabled,
		DigestHour:    rt.cfg.Digest.Hour,
	})

	handlers := server.NewHandlers(rt.store, rt.reconciler, rt.dispatcher, logger)
	router := server.NewRouter(handlers, rt.cfg.Server.APIToken, rt.cfg.Server.RateLimitReqs, logger)
	addr := net.JoinHostPort(rt.cfg.Server.Host, strconv.Itoa(rt.cfg.Server.Port))
	httpSvc := server.NewService(addr, router, rt.cfg.Server.Timeout, 10*time.Second)

	// The supervisor restarts a crashed service with backoff; sutureslog
	// routes its lifecycle events through the zerolog pipeline.
	slogHandler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("circulated", suture.Spec{
		EventHook: slogHandler.MustHook(),
	})
	root.Add(scheduler.NewService(sched))
	root.Add(httpSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("addr", addr).Str("version", version).Msg("circulated starting")

	if err := root.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor exited: %w", err)
	}

	logger.Info().Msg("circulated stopped")
	return nil
}
