// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/norsu-alumni/logkeeper/internal/app"
	"github.com/norsu-alumni/logkeeper/internal/config"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/supervisor"
	"github.com/norsu-alumni/logkeeper/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	app.InitLogging(&cfg.Logging)
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("scheduler", cfg.Schedule.Enabled).
		Msg("Starting Logkeeper")

	if err := run(cfg); err != nil {
		logging.Error().Err(err).Msg("Logkeeper stopped with error")
		os.Exit(1)
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing stores")
		}
	}()

	server, err := a.HTTPServer()
	if err != nil {
		return err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		return err
	}
	if cfg.Schedule.Enabled {
		tree.AddDataService(services.NewSchedulerService(a.Scheduler))
	} else {
		logging.Info().Msg("Background cleanup scheduler disabled; use logctl scheduler or manual cleanup")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Str("base_path", cfg.Server.BasePath).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for services to stop")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return treeErr
	}
	return nil
}
