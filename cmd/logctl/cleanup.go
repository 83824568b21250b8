// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/norsu-alumni/logkeeper/internal/app"
	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/retention"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

const rule = "======================================================================"

// errCleanupFailed marks a run whose operation was recorded as failed.
var errCleanupFailed = errors.New("log cleanup operation failed")

func newCleanupCmd() *cobra.Command {
	var (
		manual bool
		dryRun bool
		user   string
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Export and delete logs older than their retention period",
		Long: "Runs one cleanup across the enabled retention policies. Without --manual the\n" +
			"run is recorded as scheduled and advances the cleanup schedule.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				return runCleanup(cmd, a, manual, dryRun, user)
			})
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Record the run as manual instead of scheduled")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be processed without changing anything")
	cmd.Flags().StringVar(&user, "user", "", "Username to attribute a manual run to")
	return cmd
}

func runCleanup(cmd *cobra.Command, a *app.App, manual, dryRun bool, user string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	opType := history.TypeScheduled
	if manual {
		opType = history.TypeManual
	}
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "Log Cleanup and Archival Operation")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Operation Type: %s\n", strings.ToUpper(string(opType)))
	if dryRun {
		fmt.Fprintln(out, "DRY RUN MODE - No changes will be made")
	}
	fmt.Fprintln(out)

	policies, err := a.Settings.Policies(ctx)
	if err != nil {
		return fmt.Errorf("loading retention policies: %w", err)
	}
	enabled := enabledPolicies(policies)
	if len(enabled) == 0 {
		fmt.Fprintln(out, "No retention policies are enabled.")
		fmt.Fprintln(out, "Enable at least one retention policy under /settings.")
		return nil
	}
	fmt.Fprintln(out, "Enabled Retention Policies:")
	for _, p := range enabled {
		fmt.Fprintf(out, "  - %s: %d days, Export: %s\n", p.LogType.DisplayName(), p.RetentionDays, p.ExportFormat)
	}
	fmt.Fprintln(out)

	if dryRun {
		plan, err := a.Engine.Plan(ctx)
		if err != nil {
			return fmt.Errorf("building cleanup plan: %w", err)
		}
		printPlan(out, plan)
		return nil
	}

	trigger := retention.Trigger{Type: opType}
	if manual && user != "" {
		trigger.Actor = user
		fmt.Fprintf(out, "Triggered by: %s\n\n", user)
	}

	fmt.Fprintln(out, "Processing logs...")
	op, err := a.Engine.ExecuteCleanup(ctx, trigger)
	if err != nil {
		return fmt.Errorf("log cleanup failed: %w", err)
	}
	printOperation(out, op)

	if !manual {
		if sched, err := a.Settings.Schedule(ctx); err == nil && sched.Enabled && sched.NextRun != nil {
			fmt.Fprintf(out, "Next Scheduled Run: %s\n\n", sched.NextRun.In(a.Location).Format(timeLayout))
		}
	}

	switch op.Status {
	case history.StatusSuccess:
		fmt.Fprintln(out, "✓ Log cleanup completed successfully")
	case history.StatusPartial:
		fmt.Fprintln(out, "⚠ Log cleanup completed with some errors")
	default:
		fmt.Fprintln(out, "✗ Log cleanup failed")
		return errCleanupFailed
	}
	return nil
}

const timeLayout = "2006-01-02 15:04:05"

func enabledPolicies(policies []*settings.RetentionPolicy) []*settings.RetentionPolicy {
	var out []*settings.RetentionPolicy
	for _, p := range policies {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

func printPlan(w io.Writer, plan *retention.Plan) {
	fmt.Fprintln(w, "DRY RUN: Simulating cleanup process...")
	fmt.Fprintln(w)
	if !plan.ExportEnabled {
		fmt.Fprintf(w, "  Archive storage is %s: exports would be skipped\n", plan.StorageStatus)
	}
	for _, p := range plan.Policies {
		if !p.Enabled {
			continue
		}
		cutoff := p.Cutoff.Format("2006-01-02")
		switch p.LogType {
		case settings.LogTypeAudit:
			fmt.Fprintf(w, "  Would process %d audit log(s) older than %s\n", p.Eligible, cutoff)
		case settings.LogTypeFile:
			fmt.Fprintf(w, "  Would process %d file log entr(ies) older than %s\n", p.Eligible, cutoff)
			for _, f := range p.Files {
				if !f.Exists {
					fmt.Fprintf(w, "    %s: not found\n", f.Name)
					continue
				}
				fmt.Fprintf(w, "    %s: %d\n", f.Name, f.Eligible)
			}
		}
		if p.ExportBeforeDelete {
			fmt.Fprintf(w, "  Would export to: %s\n", p.ExportFormat)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DRY RUN COMPLETE - No changes were made")
}

func printOperation(w io.Writer, op *history.Operation) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Operation Complete")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Operation ID: %d\n", op.ID)
	fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(string(op.Status)))
	fmt.Fprintf(w, "Duration: %.2f seconds\n\n", op.Duration().Seconds())

	fmt.Fprintln(w, "Metrics:")
	fmt.Fprintf(w, "  Audit Logs Processed: %d\n", op.AuditLogsProcessed)
	fmt.Fprintf(w, "  Audit Logs Deleted: %d\n", op.AuditLogsDeleted)
	fmt.Fprintf(w, "  File Logs Processed: %d\n", op.FileLogsProcessed)
	fmt.Fprintf(w, "  File Logs Deleted: %d\n", op.FileLogsDeleted)
	fmt.Fprintf(w, "  Total Processed: %d\n", op.TotalProcessed())
	fmt.Fprintf(w, "  Total Deleted: %d\n", op.TotalDeleted())
	fmt.Fprintf(w, "  Archives Created: %d\n\n", op.ArchivesCreated)

	if len(op.ArchiveFiles) > 0 {
		fmt.Fprintln(w, "Archive Files Created:")
		for _, f := range op.ArchiveFiles {
			fmt.Fprintf(w, "  - %s\n", f)
		}
		fmt.Fprintln(w)
	}
	if op.ErrorMessage != "" {
		fmt.Fprintln(w, "Errors:")
		fmt.Fprintf(w, "  %s\n\n", op.ErrorMessage)
	}
}
