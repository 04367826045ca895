// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdwhite/circulate/internal/circulation"
	"github.com/jdwhite/circulate/internal/config"
	"github.com/jdwhite/circulate/internal/digest"
	"github.com/jdwhite/circulate/internal/logging"
	"github.com/jdwhite/circulate/internal/reconcile"
	"github.com/jdwhite/circulate/internal/store"
)

// version is set via -ldflags at build time.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "circulated",
		Short:         "Track library loans and broadcast daily reading notes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newSyncCmd(&configPath))
	root.AddCommand(newDigestCmd(&configPath))

	return root
}

// runtime bundles the wired components shared by every command.
type runtime struct {
	cfg        *config.Config
	store      *store.Store
	client     *circulation.Client
	reconciler *reconcile.Reconciler
	dispatcher *digest.Dispatcher
}

// buildRuntime loads configuration, initializes logging, and wires the
// engine: store, circuit-broken circulation client, reconciler, dispatcher.
func buildRuntime(configPath string) (*runtime, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	logger := logging.Logger()

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	client := circulation.NewClient(cfg.Circulation, logger)
	source := circulation.NewBreakerClient(client, logger)
	reconciler := reconcile.New(source, client.Sessions(), st, logger)
	dispatcher := digest.NewDispatcher(st, cfg.Digest.WebhookURL, cfg.Digest.Timeout, logger)

	return &runtime{
		cfg:        cfg,
		store:      st,
		client:     client,
		reconciler: reconciler,
		dispatcher: dispatcher,
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Failed to close store")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}
