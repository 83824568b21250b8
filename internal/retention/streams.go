// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package retention

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// streamResult carries one stream's counters and the archives it wrote.
type streamResult struct {
	processed int64
	deleted   int64
	archives  []string
}

// cleanupAudit exports and deletes audit records older than the policy
// cutoff. Counters are set only on success; archives are returned even
// when a later step fails.
func (e *Engine) cleanupAudit(ctx context.Context, p *settings.RetentionPolicy, now time.Time, exportEnabled bool, logger zerolog.Logger) (streamResult, error) {
	var res streamResult
	cutoff := p.Cutoff(now)

	count, err := e.deps.Audit.CountBefore(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("count expired audit records: %w", err)
	}
	if count == 0 {
		logger.Info().Time("cutoff", cutoff).Msg("No audit logs to process")
		return res, nil
	}
	logger.Info().Int64("count", count).Time("cutoff", cutoff).Msg("Found audit logs to process")

	if exportEnabled && p.ExportBeforeDelete {
		records, err := e.loadExpired(ctx, cutoff, count)
		if err != nil {
			return res, fmt.Errorf("export failed: %w", err)
		}
		paths, err := e.deps.Exporter.ExportAudit(records, p)
		res.archives = paths
		if err != nil {
			return res, fmt.Errorf("export failed: %w", err)
		}
	}

	deleted, err := e.deps.Audit.DeleteBefore(ctx, cutoff, e.cfg.BatchSize)
	if err != nil {
		return res, err
	}
	logger.Info().Int64("deleted", deleted).Msg("Deleted audit logs")

	res.processed = count
	res.deleted = deleted
	return res, nil
}

// loadExpired reads the expired records in batches.
func (e *Engine) loadExpired(ctx context.Context, cutoff time.Time, count int64) ([]audit.Record, error) {
	records := make([]audit.Record, 0, count)
	for offset := 0; ; offset += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := e.deps.Audit.ListBefore(ctx, cutoff, e.cfg.BatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("load expired audit records: %w", err)
		}
		records = append(records, batch...)
		if len(batch) < e.cfg.BatchSize {
			return records, nil
		}
	}
}

// cleanupFiles processes each managed log file in turn. It stops at the
// first failing file; counters of the files completed before it are kept.
func (e *Engine) cleanupFiles(ctx context.Context, p *settings.RetentionPolicy, now time.Time, exportEnabled bool, logger zerolog.Logger) (streamResult, error) {
	var res streamResult
	cutoff := p.Cutoff(now)

	for _, name := range e.deps.Files.Files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path, err := e.deps.Files.Resolve(name)
		if err != nil {
			return res, err
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("path", path).Msg("Log file not found")
			continue
		}

		removed, archives, err := e.cleanupFile(name, path, p, cutoff, exportEnabled, logger)
		res.archives = append(res.archives, archives...)
		if err != nil {
			return res, fmt.Errorf("file log processing failed for %s: %w", name, err)
		}
		res.processed += removed
		res.deleted += removed
	}
	return res, nil
}

// cleanupFile archives and removes the expired blocks of one file. The
// .backup sibling holds exactly the bytes read and stays in place on failure.
func (e *Engine) cleanupFile(name, path string, p *settings.RetentionPolicy, cutoff time.Time, exportEnabled bool, logger zerolog.Logger) (int64, []string, error) {
	data, err := filelog.Snapshot(path)
	if err != nil {
		return 0, nil, err
	}
	if err := filelog.WriteBackup(path, data); err != nil {
		return 0, nil, fmt.Errorf("create backup: %w", err)
	}
	blocks, err := filelog.SplitBlocks(bytes.NewReader(data), e.deps.Files.Location)
	if err != nil {
		return 0, nil, fmt.Errorf("parse: %w", err)
	}
	old, kept := filelog.Partition(blocks, cutoff)
	if len(old) == 0 {
		logger.Info().Str("file", name).Msg("No old entries in log file")
		e.discardBackup(path, logger)
		return 0, nil, nil
	}
	logger.Info().Str("file", name).Int("count", len(old)).Msg("Found old log entries")

	var archives []string
	if exportEnabled && p.ExportBeforeDelete {
		archives, err = e.deps.Exporter.ExportFileLog(name, old, p)
		if err != nil {
			return 0, archives, fmt.Errorf("export failed: %w", err)
		}
	}

	if err := e.rewrite(path, kept, int64(len(data))); err != nil {
		if restoreErr := filelog.Restore(path); restoreErr != nil {
			logger.Error().Err(restoreErr).Str("path", path).Msg("Failed to restore log file from backup")
			return 0, archives, fmt.Errorf("rewrite: %w (restore failed: %v)", err, restoreErr)
		}
		logger.Warn().Str("path", path).Msg("Restored log file from backup after rewrite error")
		return 0, archives, fmt.Errorf("rewrite: %w", err)
	}

	if !e.cfg.KeepBackups {
		e.discardBackup(path, logger)
	}
	logger.Info().Str("file", name).Int("deleted", len(old)).Msg("Removed old log entries")
	return int64(len(old)), archives, nil
}

func (e *Engine) discardBackup(path string, logger zerolog.Logger) {
	if err := filelog.RemoveBackup(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to remove log backup")
	}
}
