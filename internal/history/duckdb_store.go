// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/logging"
)

// TableName is the physical table backing DuckDBStore.
const TableName = "log_operations"

// DuckDBStore implements Store on DuckDB.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a DuckDB-backed history store.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates log_operations and its sequence.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS log_operations_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS log_operations (
			id BIGINT PRIMARY KEY DEFAULT nextval('log_operations_id_seq'),
			operation_type VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			audit_logs_processed BIGINT NOT NULL DEFAULT 0,
			audit_logs_deleted BIGINT NOT NULL DEFAULT 0,
			file_logs_processed BIGINT NOT NULL DEFAULT 0,
			file_logs_deleted BIGINT NOT NULL DEFAULT 0,
			archives_created INTEGER NOT NULL DEFAULT 0,
			archive_files JSON,
			error_message VARCHAR NOT NULL DEFAULT '',
			triggered_by_key BIGINT,
			triggered_by VARCHAR NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_log_operations_started ON log_operations(started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	logging.Info().Msg("Log operations table created/verified")
	return nil
}

// Create implements Store.
func (s *DuckDBStore) Create(ctx context.Context, op *Operation) error {
	files, err := encodeFiles(op.ArchiveFiles)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO log_operations (
			operation_type, status, started_at, completed_at,
			audit_logs_processed, audit_logs_deleted, file_logs_processed, file_logs_deleted,
			archives_created, archive_files, error_message, triggered_by_key, triggered_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		string(op.Type), string(op.Status), op.StartedAt, nullTime(op.CompletedAt),
		op.AuditLogsProcessed, op.AuditLogsDeleted, op.FileLogsProcessed, op.FileLogsDeleted,
		op.ArchivesCreated, files, op.ErrorMessage, nullInt(op.TriggeredByKey), op.TriggeredBy,
	).Scan(&op.ID)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

// Update implements Store.
func (s *DuckDBStore) Update(ctx context.Context, op *Operation) error {
	files, err := encodeFiles(op.ArchiveFiles)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE log_operations SET
			status = ?, completed_at = ?,
			audit_logs_processed = ?, audit_logs_deleted = ?,
			file_logs_processed = ?, file_logs_deleted = ?,
			archives_created = ?, archive_files = ?, error_message = ?
		WHERE id = ?`,
		string(op.Status), nullTime(op.CompletedAt),
		op.AuditLogsProcessed, op.AuditLogsDeleted,
		op.FileLogsProcessed, op.FileLogsDeleted,
		op.ArchivesCreated, files, op.ErrorMessage,
		op.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation %d: %w", op.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `
	id, operation_type, status, started_at, completed_at,
	audit_logs_processed, audit_logs_deleted, file_logs_processed, file_logs_deleted,
	archives_created, CAST(archive_files AS VARCHAR), error_message, triggered_by_key, triggered_by`

// Get implements Store.
func (s *DuckDBStore) Get(ctx context.Context, id int64) (*Operation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM log_operations WHERE id = ?", id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation %d: %w", id, err)
	}
	return op, nil
}

// List implements Store.
func (s *DuckDBStore) List(ctx context.Context, f Filter) ([]Operation, error) {
	where, args := buildFilterConditions(&f)
	query := "SELECT " + selectColumns + " FROM log_operations" + where + " ORDER BY started_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

// Count implements Store.
func (s *DuckDBStore) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := buildFilterConditions(&f)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_operations"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return n, nil
}

func buildFilterConditions(f *Filter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conditions = append(conditions, "operation_type = ?")
		args = append(args, string(f.Type))
	}
	from, until := f.bounds()
	if from != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, *from)
	}
	if until != nil {
		conditions = append(conditions, "started_at < ?")
		args = append(args, *until)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (*Operation, error) {
	var (
		op          Operation
		opType      string
		status      string
		completedAt sql.NullTime
		files       sql.NullString
		triggeredBy sql.NullInt64
	)
	err := row.Scan(
		&op.ID, &opType, &status, &op.StartedAt, &completedAt,
		&op.AuditLogsProcessed, &op.AuditLogsDeleted, &op.FileLogsProcessed, &op.FileLogsDeleted,
		&op.ArchivesCreated, &files, &op.ErrorMessage, &triggeredBy, &op.TriggeredBy,
	)
	if err != nil {
		return nil, err
	}
	op.Type = Type(opType)
	op.Status = Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		op.CompletedAt = &t
	}
	if triggeredBy.Valid {
		k := triggeredBy.Int64
		op.TriggeredByKey = &k
	}
	op.ArchiveFiles = []string{}
	if files.Valid {
		if err := json.Unmarshal([]byte(files.String), &op.ArchiveFiles); err != nil {
			return nil, fmt.Errorf("failed to decode archive files: %w", err)
		}
	}
	return &op, nil
}

func encodeFiles(files []string) (string, error) {
	if files == nil {
		files = []string{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("failed to encode archive files: %w", err)
	}
	return string(data), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
