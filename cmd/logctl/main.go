// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Command logctl runs log cleanup, the cleanup scheduler and storage checks
// from the shell or cron, against the same stores as the server.
//
//	logctl cleanup                     # scheduled-type run
//	logctl cleanup --manual --user ana # manual run attributed to ana
//	logctl cleanup --dry-run           # report what would be processed
//	logctl scheduler                   # one check, run if due
//	logctl scheduler --continuous --interval 1h
//	logctl scheduler --show-next
//	logctl storage                     # measure archive usage
//
// DuckDB allows a single writer process; stop the server before running
// commands that write.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/norsu-alumni/logkeeper/internal/app"
	"github.com/norsu-alumni/logkeeper/internal/config"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "logctl",
		Short:         "Log retention and cleanup for the NORSU alumni system",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCleanupCmd(),
		newSchedulerCmd(),
		newStorageCmd(),
	)
	return root
}

// withApp loads configuration, builds the app and closes it after fn.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	app.InitLogging(&cfg.Logging)

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
