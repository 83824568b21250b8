// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package services

import (
	"context"
	"fmt"
)

// SchedulerManager is the Start/Stop lifecycle of *schedule.Scheduler.
type SchedulerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts the cleanup scheduler's Start/Stop lifecycle to
// suture's Serve. A failed Start is returned so suture retries it.
type SchedulerService struct {
	manager SchedulerManager
	name    string
}

// NewSchedulerService wraps manager.
//
//	sched := schedule.New(settingsSvc, engine, cfg.Scheduler.Interval, loc)
//	tree.AddDataService(services.NewSchedulerService(sched))
func NewSchedulerService(manager SchedulerManager) *SchedulerService {
	return &SchedulerService{
		manager: manager,
		name:    "cleanup-scheduler",
	}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("cleanup scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("cleanup scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String names the service in suture events.
func (s *SchedulerService) String() string {
	return s.name
}
