// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/history"
)

// Timestamp layout used in every export.
const timeLayout = "2006-01-02 15:04:05"

// Column headers.
var (
	AuditHeader = []string{
		"Timestamp", "Action", "Model", "App", "Object ID", "User",
		"IP Address", "Message", "Changed Fields", "Old Values", "New Values",
	}
	FileLogHeader    = []string{"Source File", "Log Entry"}
	EntriesHeader    = []string{"Level", "Date", "Time", "Module", "Message"}
	OperationsHeader = []string{
		"ID", "Type", "Status", "Started", "Completed", "Duration (s)",
		"Audit Processed", "Audit Deleted", "File Processed", "File Deleted",
		"Archives", "Triggered By", "Error",
	}
)

// AuditCSV streams audit records as CSV. The header is written on creation.
type AuditCSV struct {
	w *csv.Writer
}

// NewAuditCSV writes the header to w and returns a writer for the rows.
func NewAuditCSV(w io.Writer) (*AuditCSV, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(AuditHeader); err != nil {
		return nil, err
	}
	return &AuditCSV{w: cw}, nil
}

// Write appends records.
func (a *AuditCSV) Write(records []audit.Record) error {
	for i := range records {
		row, err := auditRow(&records[i])
		if err != nil {
			return err
		}
		if err := a.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered rows and reports any write error.
func (a *AuditCSV) Flush() error {
	a.w.Flush()
	return a.w.Error()
}

func auditRow(r *audit.Record) ([]string, error) {
	oldValues, err := compactJSON(r.OldValues)
	if err != nil {
		return nil, fmt.Errorf("encode old values of record %d: %w", r.ID, err)
	}
	newValues, err := compactJSON(r.NewValues)
	if err != nil {
		return nil, fmt.Errorf("encode new values of record %d: %w", r.ID, err)
	}
	objectID := ""
	if r.EntityKey != nil {
		objectID = strconv.FormatInt(*r.EntityKey, 10)
	}
	return []string{
		r.Timestamp.Format(timeLayout),
		string(r.Action),
		r.ModelName,
		r.AppLabel,
		objectID,
		r.ActorDisplay(),
		r.IPAddress,
		r.Message,
		strings.Join(r.ChangedFields, ", "),
		oldValues,
		newValues,
	}, nil
}

// compactJSON renders a value map, or "" for a missing map.
func compactJSON(v audit.Values) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteAuditCSV writes a complete audit CSV.
func WriteAuditCSV(w io.Writer, records []audit.Record) error {
	a, err := NewAuditCSV(w)
	if err != nil {
		return err
	}
	if err := a.Write(records); err != nil {
		return err
	}
	return a.Flush()
}

// WriteFileLogCSV writes expired file-log blocks, one row per block.
func WriteFileLogCSV(w io.Writer, source string, blocks []filelog.Block) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FileLogHeader); err != nil {
		return err
	}
	for _, b := range blocks {
		if err := cw.Write([]string{source, b.Text()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEntriesCSV writes parsed viewer entries.
func WriteEntriesCSV(w io.Writer, entries []filelog.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EntriesHeader); err != nil {
		return err
	}
	for _, e := range entries {
		date, clock := "", ""
		if e.Date != nil {
			date = e.Date.Format("2006-01-02")
			clock = e.Date.Format("15:04:05")
		}
		if err := cw.Write([]string{e.Level, date, clock, e.Module, e.Message}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOperationsCSV writes cleanup history rows.
func WriteOperationsCSV(w io.Writer, ops []history.Operation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OperationsHeader); err != nil {
		return err
	}
	for i := range ops {
		op := &ops[i]
		completed := ""
		if op.CompletedAt != nil {
			completed = op.CompletedAt.Format(timeLayout)
		}
		row := []string{
			strconv.FormatInt(op.ID, 10),
			string(op.Type),
			string(op.Status),
			op.StartedAt.Format(timeLayout),
			completed,
			strconv.FormatFloat(op.Duration().Seconds(), 'f', 1, 64),
			strconv.FormatInt(op.AuditLogsProcessed, 10),
			strconv.FormatInt(op.AuditLogsDeleted, 10),
			strconv.FormatInt(op.FileLogsProcessed, 10),
			strconv.FormatInt(op.FileLogsDeleted, 10),
			strconv.Itoa(op.ArchivesCreated),
			op.TriggeredByDisplay(),
			op.ErrorMessage,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
