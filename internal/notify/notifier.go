// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package notify routes cleanup and storage signals to the process log and,
// for failures and critical storage, to the admin mailing list.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/metrics"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// Signal names used in logs and metrics.
const (
	SignalCleanupSucceeded = "cleanup_succeeded"
	SignalCleanupFailed    = "cleanup_failed"
	SignalStorageWarning   = "storage_warning"
	SignalStorageCritical  = "storage_critical"
)

// Email subjects.
const (
	SubjectCleanupFailed   = "CRITICAL: Log Cleanup Operation Failed"
	SubjectStorageCritical = "CRITICAL: Archive Storage Full - Archival Paused"
)

// Notifier delivers cleanup and storage signals.
type Notifier struct {
	mailer     Mailer
	admins     []string
	subjectTag string
	logger     zerolog.Logger
}

// New creates a Notifier. A nil mailer or an empty admin list disables email.
func New(mailer Mailer, admins []string, subjectTag string) *Notifier {
	return &Notifier{
		mailer:     mailer,
		admins:     admins,
		subjectTag: subjectTag,
		logger:     logging.WithComponent("notifier"),
	}
}

// SetLogger replaces the component logger.
func (n *Notifier) SetLogger(l zerolog.Logger) {
	n.logger = l
}

// CleanupSucceeded logs a completed cleanup.
func (n *Notifier) CleanupSucceeded(_ context.Context, op *history.Operation) {
	n.logger.Info().
		Int64("operation_id", op.ID).
		Str("operation_type", string(op.Type)).
		Str("status", string(op.Status)).
		Int64("total_processed", op.TotalProcessed()).
		Int64("total_deleted", op.TotalDeleted()).
		Int("archives_created", op.ArchivesCreated).
		Msgf("Cleanup operation completed successfully: Processed %d records, Deleted %d records, Created %d archives",
			op.TotalProcessed(), op.TotalDeleted(), op.ArchivesCreated)
	metrics.RecordNotification(SignalCleanupSucceeded, "logged")
}

// CleanupFailed logs a failed or partial cleanup and emails the admins.
func (n *Notifier) CleanupFailed(ctx context.Context, op *history.Operation) {
	n.logger.Error().
		Int64("operation_id", op.ID).
		Str("operation_type", string(op.Type)).
		Str("status", string(op.Status)).
		Time("started_at", op.StartedAt).
		Str("error_message", op.ErrorMessage).
		Int64("total_processed", op.TotalProcessed()).
		Int64("total_deleted", op.TotalDeleted()).
		Msg("CRITICAL: Log cleanup operation failed!")

	body := strings.Join([]string{
		"CRITICAL: Log cleanup operation failed!",
		"Operation Type: " + titleCase(string(op.Type)),
		"Status: " + titleCase(string(op.Status)),
		"Started: " + op.StartedAt.Format("2006-01-02 15:04:05 MST"),
		"Error: " + op.ErrorMessage,
		fmt.Sprintf("Records Processed: %d", op.TotalProcessed()),
		fmt.Sprintf("Records Deleted: %d", op.TotalDeleted()),
	}, "\n")
	n.email(ctx, SignalCleanupFailed, SubjectCleanupFailed, body)
}

// StorageWarning logs that archive usage crossed the warning threshold.
func (n *Notifier) StorageWarning(_ context.Context, c *settings.StorageConfig) {
	n.logger.Warn().
		Float64("current_gb", c.CurrentSizeGB).
		Float64("max_gb", c.MaxStorageGB).
		Float64("usage_percent", c.UsagePercent()).
		Int("warning_threshold_percent", c.WarningThresholdPercent).
		Msg("WARNING: Archive storage approaching limit!")
	metrics.RecordNotification(SignalStorageWarning, "logged")
}

// StorageCritical logs that archival is paused and emails the admins.
func (n *Notifier) StorageCritical(ctx context.Context, c *settings.StorageConfig) {
	n.logger.Error().
		Str("severity", "critical").
		Float64("current_gb", c.CurrentSizeGB).
		Float64("max_gb", c.MaxStorageGB).
		Float64("usage_percent", c.UsagePercent()).
		Int("critical_threshold_percent", c.CriticalThresholdPercent).
		Msg("CRITICAL: Archive storage at critical level! Archival paused")

	body := strings.Join([]string{
		"CRITICAL: Archive storage at critical level!",
		fmt.Sprintf("Current Usage: %.2f GB / %.2f GB (%.1f%%)", c.CurrentSizeGB, c.MaxStorageGB, c.UsagePercent()),
		fmt.Sprintf("Critical Threshold: %d%%", c.CriticalThresholdPercent),
		"AUTOMATIC ARCHIVAL HAS BEEN PAUSED!",
		"Immediate Action Required: Increase storage limit or remove old archives",
		"Note: Log deletion will continue, but exports will be skipped",
	}, "\n")
	n.email(ctx, SignalStorageCritical, SubjectStorageCritical, body)
}

// email sends to the admin list. Errors are logged and never returned.
func (n *Notifier) email(ctx context.Context, signal, subject, body string) {
	if n.mailer == nil || len(n.admins) == 0 {
		metrics.RecordNotification(signal, "skipped")
		return
	}
	if n.subjectTag != "" {
		subject = n.subjectTag + " " + subject
	}
	if err := n.mailer.Send(ctx, n.admins, subject, body); err != nil {
		n.logger.Error().Err(err).Str("signal", signal).Msg("Failed to send notification email")
		metrics.RecordNotification(signal, "failed")
		return
	}
	n.logger.Info().Str("signal", signal).Int("recipients", len(n.admins)).Msg("Notification email sent")
	metrics.RecordNotification(signal, "sent")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
