// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/norsu-alumni/logkeeper/internal/app"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

func newStorageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Measure archive storage and report usage against the quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				cfg, err := a.Governor.Measure(cmd.Context())
				if err != nil {
					return fmt.Errorf("measuring archive storage: %w", err)
				}
				printStorage(cmd.OutOrStdout(), a.Exporter.Root(), cfg)
				return nil
			})
		},
	}
}

func printStorage(w io.Writer, root string, c *settings.StorageConfig) {
	fmt.Fprintf(w, "Archive root: %s\n", root)
	fmt.Fprintf(w, "Current size: %.2f GB of %.2f GB (%.1f%%)\n", c.CurrentSizeGB, c.MaxStorageGB, c.UsagePercent())
	fmt.Fprintf(w, "Thresholds: warning %d%%, critical %d%%\n", c.WarningThresholdPercent, c.CriticalThresholdPercent)

	switch c.Status() {
	case settings.StorageCritical:
		fmt.Fprintln(w, "Status: CRITICAL - archival exports are paused")
	case settings.StorageWarning:
		fmt.Fprintln(w, "Status: WARNING - approaching the storage limit")
	default:
		fmt.Fprintln(w, "Status: normal")
	}
}
