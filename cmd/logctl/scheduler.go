// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/norsu-alumni/logkeeper/internal/app"
	"github.com/norsu-alumni/logkeeper/internal/schedule"
)

func newSchedulerCmd() *cobra.Command {
	var (
		continuous bool
		interval   time.Duration
		showNext   bool
	)

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Check the cleanup schedule and run a cleanup when due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			return withApp(cmd, func(a *app.App) error {
				out := cmd.OutOrStdout()
				switch {
				case showNext:
					info, err := a.Scheduler.NextRunInfo(cmd.Context())
					if err != nil {
						return err
					}
					printNextRun(out, info, a.Location)
					return nil
				case continuous:
					return runContinuous(cmd.Context(), out, a.Scheduler, interval)
				default:
					return runOnce(cmd.Context(), out, a.Scheduler, a.Location)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&continuous, "continuous", false, "Keep checking until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "Check interval with --continuous")
	cmd.Flags().BoolVar(&showNext, "show-next", false, "Print the next scheduled run and exit")
	return cmd
}

func runOnce(ctx context.Context, out io.Writer, s *schedule.Scheduler, loc *time.Location) error {
	fmt.Fprintln(out, "Checking for scheduled cleanup...")
	res, err := s.CheckAndExecute(ctx)
	if err != nil {
		fmt.Fprintf(out, "✗ Scheduler error: %v\n", err)
		return err
	}
	printResult(out, res, loc)
	return nil
}

func printResult(out io.Writer, res *schedule.Result, loc *time.Location) {
	if !res.Executed {
		fmt.Fprintf(out, "○ Cleanup not executed: %s\n", res.Reason)
		if res.NextRun != nil {
			fmt.Fprintf(out, "  Next run: %s\n", res.NextRun.In(loc).Format(timeLayout))
		}
		return
	}
	fmt.Fprintln(out, "✓ Cleanup executed")
	fmt.Fprintf(out, "  Operation ID: %d\n", res.OperationID)
	fmt.Fprintf(out, "  Status: %s\n", res.Status)
	if m := res.Metrics; m != nil {
		fmt.Fprintf(out, "  Audit logs processed: %d\n", m.AuditLogsProcessed)
		fmt.Fprintf(out, "  Audit logs deleted: %d\n", m.AuditLogsDeleted)
		fmt.Fprintf(out, "  File logs processed: %d\n", m.FileLogsProcessed)
		fmt.Fprintf(out, "  File logs deleted: %d\n", m.FileLogsDeleted)
		fmt.Fprintf(out, "  Archives created: %d\n", m.ArchivesCreated)
	}
	if res.NextRun != nil {
		fmt.Fprintf(out, "  Next run: %s\n", res.NextRun.In(loc).Format(timeLayout))
	}
}

func runContinuous(ctx context.Context, out io.Writer, s *schedule.Scheduler, interval time.Duration) error {
	fmt.Fprintf(out, "Starting continuous scheduler (checking every %s)\nPress Ctrl+C to stop\n", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stamp := time.Now().Format(timeLayout)
		res, err := s.CheckAndExecute(ctx)
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			fmt.Fprintf(out, "[%s] Error: %v\n", stamp, err)
		case res.Executed:
			fmt.Fprintf(out, "[%s] Cleanup executed (Operation %d)\n", stamp, res.OperationID)
		default:
			fmt.Fprintf(out, "[%s] %s\n", stamp, res.Reason)
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func printNextRun(out io.Writer, info *schedule.Info, loc *time.Location) {
	if !info.Enabled {
		fmt.Fprintf(out, "✗ %s\n\n", info.Message)
		fmt.Fprintln(out, "To enable scheduling, save an enabled schedule with POST /save-cleanup-schedule.")
		return
	}
	fmt.Fprintln(out, "✓ Scheduled cleanup is enabled")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Frequency: %s\n", info.Frequency)
	fmt.Fprintf(out, "Execution time: %s\n", info.ExecutionTime)
	if info.DayOfWeek != "" {
		fmt.Fprintf(out, "Day of week: %s\n", info.DayOfWeek)
	}
	if info.DayOfMonth != nil {
		fmt.Fprintf(out, "Day of month: %d\n", *info.DayOfMonth)
	}
	if info.LastRun != nil {
		fmt.Fprintf(out, "\nLast run: %s\n", info.LastRun.In(loc).Format(timeLayout))
	}
	if info.NextRun != nil {
		fmt.Fprintf(out, "Next run: %s\n", info.NextRun.In(loc).Format(timeLayout))
	} else {
		fmt.Fprintln(out, "Next run: Not calculated yet")
	}
}
