// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package history records every retention cleanup run.
package history

import (
	"context"
	"errors"
	"time"
)

// PageSize is the number of operations per listing page.
const PageSize = 50

// ErrNotFound is returned when an operation does not exist.
var ErrNotFound = errors.New("operation not found")

// Type is how a cleanup was triggered.
type Type string

const (
	TypeScheduled Type = "scheduled"
	TypeManual    Type = "manual"
)

// Status is the outcome of a cleanup.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Operation is one cleanup run with its counters.
type Operation struct {
	ID                 int64      `json:"id"`
	Type               Type       `json:"operation_type"`
	Status             Status     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	AuditLogsProcessed int64      `json:"audit_logs_processed"`
	AuditLogsDeleted   int64      `json:"audit_logs_deleted"`
	FileLogsProcessed  int64      `json:"file_logs_processed"`
	FileLogsDeleted    int64      `json:"file_logs_deleted"`
	ArchivesCreated    int        `json:"archives_created"`
	ArchiveFiles       []string   `json:"archive_files"`
	ErrorMessage       string     `json:"error_message"`
	TriggeredByKey     *int64     `json:"triggered_by_key"`
	TriggeredBy        string     `json:"triggered_by"`
}

// Duration is the run time, or zero while the operation is still running.
func (o *Operation) Duration() time.Duration {
	if o.CompletedAt == nil {
		return 0
	}
	return o.CompletedAt.Sub(o.StartedAt)
}

// TotalProcessed sums audit and file entries examined.
func (o *Operation) TotalProcessed() int64 {
	return o.AuditLogsProcessed + o.FileLogsProcessed
}

// TotalDeleted sums audit and file entries removed.
func (o *Operation) TotalDeleted() int64 {
	return o.AuditLogsDeleted + o.FileLogsDeleted
}

// TriggeredByDisplay returns the actor name, or "System" for unattended runs.
func (o *Operation) TriggeredByDisplay() string {
	if o.TriggeredBy == "" {
		return "System"
	}
	return o.TriggeredBy
}

// Filter selects operations. Zero values mean "no constraint".
type Filter struct {
	Status   Status
	Type     Type
	DateFrom *time.Time // inclusive calendar day of started_at
	DateTo   *time.Time // inclusive calendar day of started_at
	Limit    int
	Offset   int
}

// Page returns a copy of f limited to the given 1-based page.
func (f Filter) Page(page int) Filter {
	if page < 1 {
		page = 1
	}
	f.Limit = PageSize
	f.Offset = (page - 1) * PageSize
	return f
}

func (f *Filter) bounds() (from, until *time.Time) {
	if f.DateFrom != nil {
		y, m, d := f.DateFrom.Date()
		v := time.Date(y, m, d, 0, 0, 0, 0, f.DateFrom.Location())
		from = &v
	}
	if f.DateTo != nil {
		y, m, d := f.DateTo.Date()
		v := time.Date(y, m, d+1, 0, 0, 0, 0, f.DateTo.Location())
		until = &v
	}
	return from, until
}

// Store persists operations.
type Store interface {
	// Create assigns an ID and persists op.
	Create(ctx context.Context, op *Operation) error
	Update(ctx context.Context, op *Operation) error
	Get(ctx context.Context, id int64) (*Operation, error)
	// List returns matching operations, newest first.
	List(ctx context.Context, f Filter) ([]Operation, error)
	Count(ctx context.Context, f Filter) (int64, error)
}
