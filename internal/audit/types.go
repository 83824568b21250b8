// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package audit holds the audit trail of domain mutations: the Record model,
// its query filter, and the stores that persist records (DuckDB in
// production, memory for tests and embedding).
//
// Records are append-only. Nothing updates a stored record; the retention
// engine is the only caller of the delete path.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// PageSize is the number of records per page on list views.
const PageSize = 50

// Field length limits enforced before persistence.
const (
	MaxUserAgentLength = 500
	MaxPathLength      = 500
	MaxMessageLength   = 500
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("audit record not found")

// Action is the kind of mutation a record describes.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	// ActionView is reserved; nothing emits it yet.
	ActionView Action = "VIEW"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionView:
		return true
	}
	return false
}

// Values maps field names to JSON-serializable snapshots.
type Values map[string]any

// Record is one audited mutation.
type Record struct {
	ID            int64     `json:"id"`
	Action        Action    `json:"action"`
	AppLabel      string    `json:"app_label"`
	ModelName     string    `json:"model_name"`
	EntityKey     *int64    `json:"entity_key"`
	ActorKey      *int64    `json:"actor_key"`
	ActorName     string    `json:"actor_name"`
	OldValues     Values    `json:"old_values"`
	NewValues     Values    `json:"new_values"`
	ChangedFields []string  `json:"changed_fields"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	RequestPath   string    `json:"request_path"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// EntityLabel returns "app_label.model_name".
func (r *Record) EntityLabel() string {
	return r.AppLabel + "." + r.ModelName
}

// ActorDisplay returns the actor name, or "Anonymous" when there is none.
func (r *Record) ActorDisplay() string {
	if r.ActorName == "" {
		return "Anonymous"
	}
	return r.ActorName
}

// ChangesSummary describes the record for list views.
func (r *Record) ChangesSummary() string {
	switch r.Action {
	case ActionCreate:
		return "Object created"
	case ActionUpdate:
		if len(r.ChangedFields) > 0 {
			return "Fields changed: " + strings.Join(r.ChangedFields, ", ")
		}
		return "Object updated"
	case ActionDelete:
		return "Object deleted"
	default:
		return "Action performed"
	}
}

// Normalize truncates the bounded text fields and stamps a zero timestamp.
func (r *Record) Normalize(now time.Time) {
	r.UserAgent = Truncate(r.UserAgent, MaxUserAgentLength)
	r.RequestPath = Truncate(r.RequestPath, MaxPathLength)
	r.Message = Truncate(r.Message, MaxMessageLength)
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
}

// Validate checks the action and the old/new image invariants.
func (r *Record) Validate() error {
	if !r.Action.Valid() {
		return fmt.Errorf("invalid action %q", r.Action)
	}
	if r.AppLabel == "" || r.ModelName == "" {
		return fmt.Errorf("entity type is required")
	}
	if r.Action == ActionCreate && r.OldValues != nil {
		return fmt.Errorf("CREATE record must not carry old values")
	}
	if r.Action == ActionDelete && r.NewValues != nil {
		return fmt.Errorf("DELETE record must not carry new values")
	}
	return nil
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Filter selects records for listing, counting and export.
// Zero values mean "no constraint".
type Filter struct {
	Action    Action
	AppLabel  string
	ModelName string
	Actor     string     // case-insensitive substring of actor_name
	Search    string     // case-insensitive substring of message, actor, model or app
	DateFrom  *time.Time // inclusive calendar day
	DateTo    *time.Time // inclusive calendar day
	Limit     int
	Offset    int
}

// Page returns a copy of f limited to the given 1-based page of PageSize records.
func (f Filter) Page(page int) Filter {
	if page < 1 {
		page = 1
	}
	f.Limit = PageSize
	f.Offset = (page - 1) * PageSize
	return f
}

// dayStart truncates t to midnight in t's location.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// bounds returns the half-open timestamp interval implied by DateFrom/DateTo.
func (f *Filter) bounds() (from, until *time.Time) {
	if f.DateFrom != nil {
		v := dayStart(*f.DateFrom)
		from = &v
	}
	if f.DateTo != nil {
		v := dayStart(*f.DateTo).AddDate(0, 0, 1)
		until = &v
	}
	return from, until
}

// ModelCount is one row of the per-model breakdown.
type ModelCount struct {
	AppLabel  string `json:"app_label"`
	ModelName string `json:"model_name"`
	Count     int64  `json:"count"`
}

// Facets summarizes records for the list view's statistics and filter dropdowns.
// Counts are over the filtered set; the distinct lists span the whole table.
type Facets struct {
	Total        int64            `json:"total"`
	ActionCounts map[string]int64 `json:"action_counts"`
	AppCounts    map[string]int64 `json:"app_counts"`
	TopModels    []ModelCount     `json:"top_models"`
	Actions      []string         `json:"actions"`
	Apps         []string         `json:"apps"`
	Models       []string         `json:"models"`
}

// topModelLimit caps Facets.TopModels.
const topModelLimit = 10

// Store persists audit records.
type Store interface {
	// Insert assigns an ID and persists the record.
	Insert(ctx context.Context, r *Record) error
	Get(ctx context.Context, id int64) (*Record, error)
	// Query returns matching records, newest first.
	Query(ctx context.Context, f Filter) ([]Record, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Facets(ctx context.Context, f Filter) (*Facets, error)

	// CountBefore counts records with timestamp strictly before cutoff.
	CountBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// ListBefore pages through records older than cutoff, oldest first.
	ListBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]Record, error)
	// DeleteBefore removes records older than cutoff in batches of batchSize
	// ids inside a single transaction and returns the number removed.
	DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)

	// TableExists reports whether the backing table has been created.
	TableExists(ctx context.Context) (bool, error)
}
