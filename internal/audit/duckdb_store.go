// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/logging"
)

// TableName is the physical table backing DuckDBStore.
const TableName = "audit_records"

// DuckDBStore implements Store using DuckDB for persistent storage.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore creates a new DuckDB-backed audit store.
// Call CreateTable before the first Insert.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_records table, its ID sequence and indexes.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE SEQUENCE IF NOT EXISTS audit_records_id_seq START 1;

		CREATE TABLE IF NOT EXISTS audit_records (
			id BIGINT PRIMARY KEY DEFAULT nextval('audit_records_id_seq'),
			action VARCHAR NOT NULL,
			app_label VARCHAR NOT NULL,
			model_name VARCHAR NOT NULL,
			entity_key BIGINT,
			actor_key BIGINT,
			actor_name VARCHAR,
			old_values JSON,
			new_values JSON,
			changed_fields JSON,
			ip_address VARCHAR,
			user_agent VARCHAR,
			request_path VARCHAR,
			message VARCHAR NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp_action ON audit_records(timestamp, action);
		CREATE INDEX IF NOT EXISTS idx_audit_records_entity_type ON audit_records(app_label, model_name);
		CREATE INDEX IF NOT EXISTS idx_audit_records_actor ON audit_records(actor_key, timestamp);
	`

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Audit records table created/verified")
	return nil
}

// TableExists reports whether audit_records is present.
func (s *DuckDBStore) TableExists(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", TableName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check audit table: %w", err)
	}
	return n > 0, nil
}

// Insert persists a record and assigns its ID.
func (s *DuckDBStore) Insert(ctx context.Context, r *Record) error {
	if r == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if err := r.Validate(); err != nil {
		return err
	}

	oldJSON, err := marshalNullable(r.OldValues, r.OldValues == nil)
	if err != nil {
		return fmt.Errorf("failed to encode old values: %w", err)
	}
	newJSON, err := marshalNullable(r.NewValues, r.NewValues == nil)
	if err != nil {
		return fmt.Errorf("failed to encode new values: %w", err)
	}
	changedJSON, err := marshalNullable(r.ChangedFields, r.ChangedFields == nil)
	if err != nil {
		return fmt.Errorf("failed to encode changed fields: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO audit_records (
			action, app_label, model_name, entity_key,
			actor_key, actor_name,
			old_values, new_values, changed_fields,
			ip_address, user_agent, request_path,
			message, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		string(r.Action), r.AppLabel, r.ModelName, nullInt(r.EntityKey),
		nullInt(r.ActorKey), nullString(r.ActorName),
		oldJSON, newJSON, changedJSON,
		nullString(r.IPAddress), nullString(r.UserAgent), nullString(r.RequestPath),
		r.Message, r.Timestamp,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

const selectColumns = `
	id, action, app_label, model_name, entity_key,
	actor_key, actor_name,
	CAST(old_values AS VARCHAR) AS old_values,
	CAST(new_values AS VARCHAR) AS new_values,
	CAST(changed_fields AS VARCHAR) AS changed_fields,
	ip_address, user_agent, request_path,
	message, timestamp`

// Get retrieves a record by ID.
func (s *DuckDBStore) Get(ctx context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM audit_records WHERE id = ?", id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}
	return r, nil
}

// Query returns records matching the filter, newest first.
func (s *DuckDBStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildFilterConditions(&f)
	query := "SELECT " + selectColumns + " FROM audit_records" + where + " ORDER BY timestamp DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}
	return s.queryRecords(ctx, query, args...)
}

// Count returns the number of records matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildFilterConditions(&f)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// Facets computes per-action, per-app and per-model breakdowns.
func (s *DuckDBStore) Facets(ctx context.Context, f Filter) (*Facets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildFilterConditions(&f)
	facets := &Facets{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records"+where, args...).Scan(&facets.Total); err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	var err error
	if facets.ActionCounts, err = s.countByColumn(ctx, "action", where, args); err != nil {
		return nil, err
	}
	if facets.AppCounts, err = s.countByColumn(ctx, "app_label", where, args); err != nil {
		return nil, err
	}
	if facets.TopModels, err = s.topModels(ctx, where, args); err != nil {
		return nil, err
	}
	if facets.Actions, err = s.distinct(ctx, "action"); err != nil {
		return nil, err
	}
	if facets.Apps, err = s.distinct(ctx, "app_label"); err != nil {
		return nil, err
	}
	if facets.Models, err = s.distinct(ctx, "model_name"); err != nil {
		return nil, err
	}
	return facets, nil
}

// CountBefore counts records older than cutoff.
func (s *DuckDBStore) CountBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records WHERE timestamp < ?", cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count expired audit records: %w", err)
	}
	return count, nil
}

// ListBefore returns records older than cutoff, oldest first.
func (s *DuckDBStore) ListBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx,
		"SELECT "+selectColumns+" FROM audit_records WHERE timestamp < ? ORDER BY id LIMIT ? OFFSET ?",
		cutoff, limit, offset)
}

// DeleteBefore removes records older than cutoff, batchSize ids at a time,
// inside one transaction. Any failure rolls back every batch.
func (s *DuckDBStore) DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for {
		ids, err := selectIDs(ctx, tx, cutoff, batchSize)
		if err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			break
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]interface{}, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM audit_records WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete audit batch: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get deleted count: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit audit deletion: %w", err)
	}
	if total > 0 {
		logging.Info().Int64("deleted", total).Time("older_than", cutoff).Msg("Deleted expired audit records")
	}
	return total, nil
}

func selectIDs(ctx context.Context, tx *sql.Tx, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM audit_records WHERE timestamp < ? ORDER BY id LIMIT ?", cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit batch: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan audit id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *DuckDBStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

// countByColumn executes a GROUP BY over the filtered set.
func (s *DuckDBStore) countByColumn(ctx context.Context, column, where string, args []interface{}) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM audit_records%s GROUP BY %s", column, where, column)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s counts: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		result[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return result, nil
}

func (s *DuckDBStore) topModels(ctx context.Context, where string, args []interface{}) ([]ModelCount, error) {
	query := "SELECT app_label, model_name, COUNT(*) AS n FROM audit_records" + where +
		" GROUP BY app_label, model_name ORDER BY n DESC, app_label, model_name LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, append(append([]interface{}{}, args...), topModelLimit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get model counts: %w", err)
	}
	defer rows.Close()

	var models []ModelCount
	for rows.Next() {
		var m ModelCount
		if err := rows.Scan(&m.AppLabel, &m.ModelName, &m.Count); err != nil {
			return nil, fmt.Errorf("failed to scan model count: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (s *DuckDBStore) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM audit_records ORDER BY %s", column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// buildFilterConditions renders a Filter as a WHERE clause with positional args.
func buildFilterConditions(f *Filter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	appendCondition := func(cond string, vals ...interface{}) {
		conditions = append(conditions, cond)
		args = append(args, vals...)
	}

	if f.Action != "" {
		appendCondition("action = ?", string(f.Action))
	}
	if f.AppLabel != "" {
		appendCondition("app_label = ?", f.AppLabel)
	}
	if f.ModelName != "" {
		appendCondition("model_name = ?", f.ModelName)
	}
	if f.Actor != "" {
		appendCondition("contains(lower(coalesce(actor_name, '')), ?)", strings.ToLower(f.Actor))
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		appendCondition(`(contains(lower(message), ?)
			OR contains(lower(coalesce(actor_name, '')), ?)
			OR contains(lower(model_name), ?)
			OR contains(lower(app_label), ?))`, term, term, term, term)
	}
	from, until := f.bounds()
	if from != nil {
		appendCondition("timestamp >= ?", *from)
	}
	if until != nil {
		appendCondition("timestamp < ?", *until)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r                             Record
		action                        string
		entityKey, actorKey           sql.NullInt64
		actorName, ip, ua, path       sql.NullString
		oldValues, newValues, changed sql.NullString
	)
	err := row.Scan(
		&r.ID, &action, &r.AppLabel, &r.ModelName, &entityKey,
		&actorKey, &actorName,
		&oldValues, &newValues, &changed,
		&ip, &ua, &path,
		&r.Message, &r.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	r.Action = Action(action)
	if entityKey.Valid {
		r.EntityKey = &entityKey.Int64
	}
	if actorKey.Valid {
		r.ActorKey = &actorKey.Int64
	}
	r.ActorName = actorName.String
	r.IPAddress = ip.String
	r.UserAgent = ua.String
	r.RequestPath = path.String

	if oldValues.Valid {
		if err := json.Unmarshal([]byte(oldValues.String), &r.OldValues); err != nil {
			return nil, fmt.Errorf("failed to decode old values: %w", err)
		}
	}
	if newValues.Valid {
		if err := json.Unmarshal([]byte(newValues.String), &r.NewValues); err != nil {
			return nil, fmt.Errorf("failed to decode new values: %w", err)
		}
	}
	if changed.Valid {
		if err := json.Unmarshal([]byte(changed.String), &r.ChangedFields); err != nil {
			return nil, fmt.Errorf("failed to decode changed fields: %w", err)
		}
	}
	return &r, nil
}

// marshalNullable encodes v as JSON, returning nil (SQL NULL) when isNull is set.
func marshalNullable(v interface{}, isNull bool) (*string, error) {
	if isNull {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
