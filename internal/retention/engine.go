// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

/*
Package retention archives and deletes expired audit records and log file
entries according to the admin-edited retention policies.

One cleanup runs at a time. ExecuteCleanup takes an in-process mutex and a
cross-process file lock, records a pessimistic "failed" history row and
then processes two streams:

  - audit: expired records are exported in batches and deleted in one
    transaction
  - file: each managed log file is backed up, split into timestamped
    blocks, the expired blocks exported and the file rewritten atomically
    with the remaining blocks

Export is skipped while archive storage is at the critical level; deletion
proceeds regardless. The final status is success when neither stream
failed, partial when a stream failed after something was processed and
failed otherwise.
*/
package retention

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/export"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/metrics"
	"github.com/norsu-alumni/logkeeper/internal/schedule"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// DefaultBatchSize is the number of audit records loaded or deleted per batch.
const DefaultBatchSize = 1000

// ErrCleanupInProgress is returned when another cleanup holds the lock.
var ErrCleanupInProgress = errors.New("cleanup already in progress")

// Governor gates archival on archive storage usage.
//
// The interface is satisfied by *storage.Governor.
type Governor interface {
	Check(ctx context.Context) (settings.StorageStatus, error)
	Measure(ctx context.Context) (*settings.StorageConfig, error)
}

// Notifier receives the outcome of each cleanup.
//
// The interface is satisfied by *notify.Notifier.
type Notifier interface {
	CleanupSucceeded(ctx context.Context, op *history.Operation)
	CleanupFailed(ctx context.Context, op *history.Operation)
}

// RewriteFunc replaces a log file with the kept blocks plus any bytes
// appended after readSize.
type RewriteFunc func(path string, kept []filelog.Block, readSize int64) error

// Trigger identifies who or what started a cleanup.
type Trigger struct {
	Type     history.Type
	ActorKey *int64
	Actor    string
}

// Config tunes the engine.
type Config struct {
	BatchSize   int
	KeepBackups bool
	// LockFile is the cross-process lock path. Empty disables the file lock.
	LockFile string
	// Location is used to advance the cleanup schedule.
	Location *time.Location
}

// Deps are the stores and collaborators the engine works on. Governor and
// Notifier are optional.
type Deps struct {
	Audit    audit.Store
	History  history.Store
	Settings *settings.Service
	Files    *filelog.Source
	Exporter *export.Exporter
	Governor Governor
	Notifier Notifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRewriter replaces the file rewrite step.
func WithRewriter(fn RewriteFunc) Option {
	return func(e *Engine) { e.rewrite = fn }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine runs retention cleanups.
type Engine struct {
	cfg     Config
	deps    Deps
	now     func() time.Time
	rewrite RewriteFunc
	logger  zerolog.Logger

	mu sync.Mutex
}

// New creates an Engine.
func New(cfg Config, deps Deps, opts ...Option) (*Engine, error) {
	if deps.Audit == nil || deps.History == nil || deps.Settings == nil || deps.Files == nil || deps.Exporter == nil {
		return nil, errors.New("retention engine requires audit, history, settings, files and exporter")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	e := &Engine{
		cfg:     cfg,
		deps:    deps,
		now:     time.Now,
		rewrite: filelog.Rewrite,
		logger:  logging.WithComponent("retention"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunScheduled runs a cleanup on behalf of the scheduler.
func (e *Engine) RunScheduled(ctx context.Context) (*history.Operation, error) {
	return e.ExecuteCleanup(ctx, Trigger{Type: history.TypeScheduled})
}

// ExecuteCleanup runs one cleanup and returns its history record.
//
// ErrCleanupInProgress is returned, without a history record, when another
// cleanup is running. Stream failures are not errors: they are reported in
// the operation's status and error message. An error is returned only when
// the history record cannot be written.
func (e *Engine) ExecuteCleanup(ctx context.Context, t Trigger) (*history.Operation, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if t.Type == "" {
		t.Type = history.TypeManual
	}
	start := e.now()
	op := &history.Operation{
		Type:           t.Type,
		Status:         history.StatusFailed,
		StartedAt:      start,
		TriggeredByKey: t.ActorKey,
		TriggeredBy:    t.Actor,
	}
	if err := e.deps.History.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("create operation history: %w", err)
	}
	logger := e.logger.With().
		Int64("operation_id", op.ID).
		Str("operation_type", string(op.Type)).
		Logger()
	logger.Info().Str("triggered_by", op.TriggeredByDisplay()).Msg("Starting log cleanup operation")

	exportEnabled := e.exportAllowed(ctx, logger)
	errs := e.runStreams(ctx, op, start, exportEnabled, logger)

	completed := e.now()
	op.CompletedAt = &completed
	op.ArchivesCreated = len(op.ArchiveFiles)
	op.Status = finalStatus(errs, op.TotalProcessed())
	op.ErrorMessage = strings.Join(errs, "; ")

	if err := e.deps.History.Update(ctx, op); err != nil {
		op.Status = history.StatusFailed
		op.ErrorMessage = joinNonEmpty(op.ErrorMessage, "history: "+err.Error())
		if retryErr := e.deps.History.Update(context.WithoutCancel(ctx), op); retryErr != nil {
			logger.Error().Err(retryErr).Msg("Failed to persist failed operation")
		}
		e.finish(ctx, op, logger)
		return op, fmt.Errorf("update operation history: %w", err)
	}

	if op.Type == history.TypeScheduled {
		e.advanceSchedule(ctx, completed, logger)
	}
	e.finish(ctx, op, logger)
	return op, nil
}

// exportAllowed checks archive storage. A failed check counts as normal.
func (e *Engine) exportAllowed(ctx context.Context, logger zerolog.Logger) bool {
	if e.deps.Governor == nil {
		return true
	}
	status, err := e.deps.Governor.Check(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Storage check failed, continuing with export enabled")
		return true
	}
	if status == settings.StorageCritical {
		logger.Warn().Msg("Archive storage at critical level, skipping export")
		return false
	}
	return true
}

// runStreams processes the enabled policies and returns the stream errors.
func (e *Engine) runStreams(ctx context.Context, op *history.Operation, now time.Time, exportEnabled bool, logger zerolog.Logger) []string {
	var errs []string

	if p, err := e.deps.Settings.Policy(ctx, settings.LogTypeAudit); err != nil {
		errs = append(errs, "Audit logs: "+err.Error())
	} else if p.Enabled {
		logger.Info().Int("retention_days", p.RetentionDays).Msg("Processing audit logs")
		res, err := e.cleanupAudit(ctx, p, now, exportEnabled, logger)
		op.ArchiveFiles = append(op.ArchiveFiles, res.archives...)
		if err != nil {
			logger.Error().Err(err).Msg("Error processing audit logs")
			errs = append(errs, "Audit logs: "+err.Error())
		} else {
			op.AuditLogsProcessed = res.processed
			op.AuditLogsDeleted = res.deleted
		}
	}

	if p, err := e.deps.Settings.Policy(ctx, settings.LogTypeFile); err != nil {
		errs = append(errs, "File logs: "+err.Error())
	} else if p.Enabled {
		logger.Info().Int("retention_days", p.RetentionDays).Msg("Processing file logs")
		res, err := e.cleanupFiles(ctx, p, now, exportEnabled, logger)
		op.ArchiveFiles = append(op.ArchiveFiles, res.archives...)
		op.FileLogsProcessed = res.processed
		op.FileLogsDeleted = res.deleted
		if err != nil {
			logger.Error().Err(err).Msg("Error processing file logs")
			errs = append(errs, "File logs: "+err.Error())
		}
	}
	return errs
}

// finish refreshes the storage size, notifies and records metrics.
func (e *Engine) finish(ctx context.Context, op *history.Operation, logger zerolog.Logger) {
	if e.deps.Governor != nil {
		if _, err := e.deps.Governor.Measure(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to update archive storage size")
		}
	}

	logger.Info().
		Str("status", string(op.Status)).
		Int64("processed", op.TotalProcessed()).
		Int64("deleted", op.TotalDeleted()).
		Int("archives", op.ArchivesCreated).
		Msg("Cleanup completed")

	if e.deps.Notifier != nil {
		if op.Status == history.StatusSuccess {
			e.deps.Notifier.CleanupSucceeded(ctx, op)
		} else {
			e.deps.Notifier.CleanupFailed(ctx, op)
		}
	}
	metrics.RecordCleanup(string(op.Type), string(op.Status), op.Duration(), op.AuditLogsDeleted, op.FileLogsDeleted)
}

// advanceSchedule stamps last_run and recomputes next_run after a
// scheduled run.
func (e *Engine) advanceSchedule(ctx context.Context, now time.Time, logger zerolog.Logger) {
	sched, err := e.deps.Settings.Schedule(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load cleanup schedule")
		return
	}
	if !sched.Enabled {
		return
	}
	local := now.In(e.cfg.Location)
	next := schedule.NextRun(sched, local)
	sched.LastRun = &local
	sched.NextRun = &next
	if err := e.deps.Settings.SaveSchedule(ctx, sched); err != nil {
		logger.Error().Err(err).Msg("Failed to advance cleanup schedule")
		return
	}
	logger.Info().Time("next_run", next).Msg("Cleanup schedule advanced")
}

// acquire takes the in-process and cross-process cleanup locks.
func (e *Engine) acquire() (release func(), err error) {
	if !e.mu.TryLock() {
		return nil, ErrCleanupInProgress
	}
	if e.cfg.LockFile == "" {
		return e.mu.Unlock, nil
	}
	if err := os.MkdirAll(filepath.Dir(e.cfg.LockFile), 0o755); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(e.cfg.LockFile)
	locked, err := fl.TryLock()
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("acquire cleanup lock: %w", err)
	}
	if !locked {
		e.mu.Unlock()
		return nil, ErrCleanupInProgress
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			e.logger.Warn().Err(err).Str("path", e.cfg.LockFile).Msg("Failed to release cleanup lock")
		}
		e.mu.Unlock()
	}, nil
}

func finalStatus(errs []string, processed int64) history.Status {
	switch {
	case len(errs) == 0:
		return history.StatusSuccess
	case processed > 0:
		return history.StatusPartial
	default:
		return history.StatusFailed
	}
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
