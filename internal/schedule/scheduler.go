// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package schedule runs automatic log cleanup from the admin-edited
// cleanup schedule.
//
// The Scheduler polls on a fixed interval (default: 1 hour) and:
//   - does nothing while the schedule is disabled
//   - initializes next_run the first time it sees an enabled schedule
//   - runs a scheduled cleanup once next_run has passed
//
// The retention engine advances last_run and next_run after a scheduled
// run returns without error, so a failed run is retried on the next poll.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// DefaultInterval is the polling interval when none is configured.
const DefaultInterval = time.Hour

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Reasons reported by CheckAndExecute when nothing ran.
const (
	ReasonNoSchedule  = "No active schedule configured"
	ReasonInitialized = "Schedule initialized"
	ReasonNotDue      = "Not due yet"
)

// Runner executes one scheduled cleanup.
//
// The interface is satisfied by *retention.Engine.
type Runner interface {
	RunScheduled(ctx context.Context) (*history.Operation, error)
}

// Result describes one CheckAndExecute pass.
type Result struct {
	Executed    bool           `json:"executed"`
	Reason      string         `json:"reason,omitempty"`
	OperationID int64          `json:"operation_id,omitempty"`
	Status      history.Status `json:"status,omitempty"`
	NextRun     *time.Time     `json:"next_run,omitempty"`
	Metrics     *RunMetrics    `json:"metrics,omitempty"`
}

// RunMetrics are the counters of an executed run.
type RunMetrics struct {
	AuditLogsProcessed int64 `json:"audit_logs_processed"`
	AuditLogsDeleted   int64 `json:"audit_logs_deleted"`
	FileLogsProcessed  int64 `json:"file_logs_processed"`
	FileLogsDeleted    int64 `json:"file_logs_deleted"`
	ArchivesCreated    int   `json:"archives_created"`
}

// MetricsOf extracts the counters of op.
func MetricsOf(op *history.Operation) *RunMetrics {
	return &RunMetrics{
		AuditLogsProcessed: op.AuditLogsProcessed,
		AuditLogsDeleted:   op.AuditLogsDeleted,
		FileLogsProcessed:  op.FileLogsProcessed,
		FileLogsDeleted:    op.FileLogsDeleted,
		ArchivesCreated:    op.ArchivesCreated,
	}
}

// Info summarizes the schedule for the admin UI.
type Info struct {
	Enabled       bool       `json:"enabled"`
	Message       string     `json:"message,omitempty"`
	Frequency     string     `json:"frequency,omitempty"`
	ExecutionTime string     `json:"execution_time,omitempty"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
	DayOfWeek     string     `json:"day_of_week,omitempty"`
	DayOfMonth    *int       `json:"day_of_month,omitempty"`
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Scheduler polls the cleanup schedule and triggers due runs.
type Scheduler struct {
	settings *settings.Service
	runner   Runner
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Scheduler. Times are evaluated in loc (time.Local if nil).
func New(svc *settings.Service, runner Runner, interval time.Duration, loc *time.Location) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		settings: svc,
		runner:   runner,
		interval: interval,
		loc:      loc,
		now:      time.Now,
		logger:   logging.WithComponent("scheduler"),
	}
}

// SetClock overrides the scheduler clock.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Scheduler) clock() time.Time {
	return s.now().In(s.loc)
}

// CheckAndExecute runs a scheduled cleanup if one is due.
func (s *Scheduler) CheckAndExecute(ctx context.Context) (*Result, error) {
	sched, err := s.settings.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	if !sched.Enabled {
		s.logger.Debug().Msg("No active cleanup schedule found")
		return &Result{Reason: ReasonNoSchedule}, nil
	}

	now := s.clock()
	if sched.NextRun == nil {
		next := NextRun(sched, now)
		sched.NextRun = &next
		if err := s.settings.SaveSchedule(ctx, sched); err != nil {
			return nil, fmt.Errorf("initialize next run: %w", err)
		}
		s.logger.Info().Time("next_run", next).Msg("Initialized next run time")
		return &Result{Reason: ReasonInitialized, NextRun: &next}, nil
	}
	if now.Before(*sched.NextRun) {
		s.logger.Debug().Time("next_run", *sched.NextRun).Msg("Cleanup not due yet")
		return &Result{Reason: ReasonNotDue, NextRun: sched.NextRun}, nil
	}

	s.logger.Info().Time("due_at", *sched.NextRun).Msg("Executing scheduled cleanup")
	op, err := s.runner.RunScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduled cleanup: %w", err)
	}

	res := &Result{
		Executed:    true,
		OperationID: op.ID,
		Status:      op.Status,
		Metrics:     MetricsOf(op),
	}
	if updated, err := s.settings.Schedule(ctx); err == nil {
		res.NextRun = updated.NextRun
	}
	s.logger.Info().
		Int64("operation_id", op.ID).
		Str("status", string(op.Status)).
		Interface("next_run", res.NextRun).
		Msg("Scheduled cleanup completed")
	return res, nil
}

// NextRunInfo describes the active schedule.
func (s *Scheduler) NextRunInfo(ctx context.Context) (*Info, error) {
	sched, err := s.settings.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	return Describe(sched), nil
}

// Describe summarizes sched for display.
func Describe(sched *settings.CleanupSchedule) *Info {
	if !sched.Enabled {
		return &Info{Message: ReasonNoSchedule}
	}
	info := &Info{
		Enabled:       true,
		Frequency:     titleCase(string(sched.Frequency)),
		ExecutionTime: sched.ExecutionTime,
		LastRun:       sched.LastRun,
		NextRun:       sched.NextRun,
		DayOfMonth:    sched.DayOfMonth,
	}
	if d := sched.DayOfWeek; d != nil && *d >= 0 && *d < len(weekdayNames) {
		info.DayOfWeek = weekdayNames[*d]
	}
	return info
}

// Start begins the polling loop. The schedule is checked immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.interval).Msg("Starting cleanup scheduler")
	go s.run(ctx, stopCh, doneCh)
	return nil
}

// Stop ends the polling loop and waits for an in-flight check to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	doneCh := s.doneCh
	s.running = false
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	<-doneCh

	s.logger.Info().Msg("Cleanup scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one check. Errors are logged and the loop continues.
func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.CheckAndExecute(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error in scheduler")
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
