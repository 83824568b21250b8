// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/retention"
	"github.com/norsu-alumni/logkeeper/internal/schedule"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeCleaner records triggers and answers with a canned operation.
type fakeCleaner struct {
	mu       sync.Mutex
	triggers []retention.Trigger
	op       *history.Operation
	err      error
	plan     *retention.Plan
}

func (f *fakeCleaner) ExecuteCleanup(_ context.Context, t retention.Trigger) (*history.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, t)
	if f.err != nil {
		return nil, f.err
	}
	return f.op, nil
}

func (f *fakeCleaner) RunScheduled(ctx context.Context) (*history.Operation, error) {
	return f.ExecuteCleanup(ctx, retention.Trigger{Type: history.TypeScheduled})
}

func (f *fakeCleaner) Plan(context.Context) (*retention.Plan, error) {
	if f.plan == nil {
		return &retention.Plan{GeneratedAt: testNow}, nil
	}
	return f.plan, nil
}

// fakeMeasurer reports a fixed archive size and persists it.
type fakeMeasurer struct {
	svc  *settings.Service
	size float64
}

func (f *fakeMeasurer) Measure(ctx context.Context) (*settings.StorageConfig, error) {
	cfg, err := f.svc.Storage(ctx)
	if err != nil {
		return nil, err
	}
	cfg.CurrentSizeGB = f.size
	checked := testNow
	cfg.LastSizeCheck = &checked
	return cfg, f.svc.SaveStorage(ctx, cfg)
}

type testEnv struct {
	handler  *Handler
	router   http.Handler
	audit    *audit.MemoryStore
	history  *history.MemoryStore
	settings *settings.Service
	cleaner  *fakeCleaner
	logDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		audit:    audit.NewMemoryStore(),
		history:  history.NewMemoryStore(),
		settings: settings.NewService(settings.NewMemoryStore(), nil),
		cleaner:  &fakeCleaner{},
		logDir:   t.TempDir(),
	}
	env.settings.SetClock(func() time.Time { return testNow })
	sched := schedule.New(env.settings, env.cleaner, time.Hour, time.UTC)
	sched.SetClock(func() time.Time { return testNow })

	h, err := NewHandler(Deps{
		Audit:    env.audit,
		History:  env.history,
		Settings: env.settings,
		Files:    filelog.NewSource(env.logDir, nil, time.UTC),
		Cleaner:  env.cleaner,
		Storage:  &fakeMeasurer{svc: env.settings, size: 8.5},
		Schedule: sched,
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	h.SetClock(func() time.Time { return testNow })
	env.handler = h
	env.router = NewRouter(h, RouterConfig{BasePath: "/logs"})
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, into any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if into != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func readCSV(t *testing.T, body []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	return rows
}

func (e *testEnv) seedAudit(t *testing.T, n int, action audit.Action, model string, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		r := &audit.Record{
			Action:    action,
			AppLabel:  "alumni_directory",
			ModelName: model,
			ActorName: "registrar",
			Message:   string(action) + " " + model,
			Timestamp: at.Add(time.Duration(i) * time.Minute),
		}
		if action != audit.ActionDelete {
			r.NewValues = audit.Values{"name": "Juan"}
		}
		if action != audit.ActionCreate {
			r.OldValues = audit.Values{"name": "Jon"}
		}
		if err := e.audit.Insert(context.Background(), r); err != nil {
			t.Fatalf("seed audit: %v", err)
		}
	}
}

func (e *testEnv) writeLog(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.logDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestAuditList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedAudit(t, 3, audit.ActionCreate, "alumnus", testNow.AddDate(0, 0, -2))
	env.seedAudit(t, 2, audit.ActionUpdate, "batch", testNow.AddDate(0, 0, -1))

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantTotal int64
	}{
		{"all", "", 5, 5},
		{"by action", "?action=UPDATE", 2, 2},
		{"by model", "?model=alumnus", 3, 3},
		{"by user", "?user=REGIS", 5, 5},
		{"by date", "?date_from=" + testNow.AddDate(0, 0, -1).Format("2006-01-02"), 2, 2},
		{"invalid date ignored", "?date_to=yesterday", 5, 5},
		{"no match", "?search=graduation", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := env.do(t, http.MethodGet, "/logs/audit/"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var data struct {
				Records []struct {
					ID             int64  `json:"id"`
					ChangesSummary string `json:"changes_summary"`
				} `json:"records"`
				Facets audit.Facets `json:"facets"`
			}
			resp := decodeEnvelope(t, rec, &data)
			if len(data.Records) != tt.wantCount {
				t.Errorf("records = %d, want %d", len(data.Records), tt.wantCount)
			}
			if data.Facets.Total != tt.wantTotal || resp.Meta.Pagination.Total != tt.wantTotal {
				t.Errorf("total = %d / %d, want %d", data.Facets.Total, resp.Meta.Pagination.Total, tt.wantTotal)
			}
		})
	}
}

func TestAuditList_NewestFirstWithSummary(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedAudit(t, 1, audit.ActionCreate, "alumnus", testNow.Add(-2*time.Hour))
	env.seedAudit(t, 1, audit.ActionDelete, "alumnus", testNow.Add(-time.Hour))

	var data AuditListResponse
	decodeEnvelope(t, env.do(t, http.MethodGet, "/logs/audit", ""), &data)
	if len(data.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(data.Records))
	}
	if data.Records[0].ChangesSummary != "Object deleted" || data.Records[1].ChangesSummary != "Object created" {
		t.Errorf("summaries = %q, %q", data.Records[0].ChangesSummary, data.Records[1].ChangesSummary)
	}
	if data.Facets.ActionCounts["CREATE"] != 1 || len(data.Facets.Actions) != 2 {
		t.Errorf("facets = %+v", data.Facets)
	}
}

func TestAuditList_Pagination(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedAudit(t, audit.PageSize+5, audit.ActionCreate, "alumnus", testNow.AddDate(0, 0, -1))

	tests := []struct {
		query    string
		wantPage int
		wantLen  int
	}{
		{"", 1, audit.PageSize},
		{"?page=2", 2, 5},
		{"?page=99", 2, 5},
		{"?page=abc", 1, audit.PageSize},
	}
	for _, tt := range tests {
		var data AuditListResponse
		resp := decodeEnvelope(t, env.do(t, http.MethodGet, "/logs/audit/"+tt.query, ""), &data)
		p := resp.Meta.Pagination
		if p.Page != tt.wantPage || len(data.Records) != tt.wantLen || p.TotalPages != 2 {
			t.Errorf("%q: page %d (%d records, %d pages), want page %d with %d", tt.query, p.Page, len(data.Records), p.TotalPages, tt.wantPage, tt.wantLen)
		}
	}
}

func TestAuditDetail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedAudit(t, 1, audit.ActionUpdate, "alumnus", testNow)

	rec := env.do(t, http.MethodGet, "/logs/audit/1", "")
	var view struct {
		ID            int64    `json:"id"`
		ChangedFields []string `json:"changed_fields"`
		EntityLabel   string   `json:"entity_label"`
	}
	if e := decodeEnvelope(t, rec, &view); !e.Success || view.ID != 1 || view.EntityLabel != "alumni_directory.alumnus" {
		t.Errorf("detail = %+v (success %v)", view, e.Success)
	}

	if rec := env.do(t, http.MethodGet, "/logs/audit/42", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/logs/audit/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
	if e := decodeEnvelope(t, rec, nil); e.Success || e.Message == "" {
		t.Errorf("error envelope = %+v", e)
	}
}

func TestAuditExport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedAudit(t, exportBatchSize+3, audit.ActionCreate, "alumnus", testNow.AddDate(0, 0, -3))
	env.seedAudit(t, 2, audit.ActionDelete, "batch", testNow.AddDate(0, 0, -1))

	rec := env.do(t, http.MethodGet, "/logs/audit/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "audit_logs_export_20250615_120000.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	rows := readCSV(t, rec.Body.Bytes())
	if len(rows) != exportBatchSize+5+1 {
		t.Errorf("rows = %d, want %d", len(rows), exportBatchSize+5+1)
	}
	if rows[0][0] != "Timestamp" {
		t.Errorf("header = %v", rows[0])
	}

	rows = readCSV(t, env.do(t, http.MethodGet, "/logs/audit/export?action=DELETE", "").Body.Bytes())
	if len(rows) != 3 {
		t.Errorf("filtered rows = %d, want 3", len(rows))
	}
}

const sampleLog = `INFO 2025-06-10 08:00:00,120 alumni_directory.views Profile viewed
WARNING 2025-06-12 09:30:00 events.tasks Reminder queue slow
ERROR 2025-06-14 10:00:00,001 alumni_directory.api Lookup failed
ERROR orphan line without timestamp
not a log line
`

func TestFileList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.writeLog(t, filelog.DefaultFiles[0], sampleLog)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 4},
		{"level", "?level=ERROR", 2},
		{"app prefix", "?app=alumni", 2},
		{"search", "?search=QUEUE", 1},
		{"date range keeps undated", "?date_from=2025-06-13&date_to=2025-06-14", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var data FileListResponse
			rec := env.do(t, http.MethodGet, "/logs/file/"+tt.query, "")
			decodeEnvelope(t, rec, &data)
			if len(data.Entries) != tt.want || data.TotalEntries != tt.want {
				t.Errorf("entries = %d (total %d), want %d", len(data.Entries), data.TotalEntries, tt.want)
			}
			if len(data.LogFiles) != len(filelog.DefaultFiles) || len(data.LogLevels) != 5 {
				t.Errorf("log files = %d, levels = %d", len(data.LogFiles), len(data.LogLevels))
			}
		})
	}

	var data FileListResponse
	decodeEnvelope(t, env.do(t, http.MethodGet, "/logs/file", ""), &data)
	if data.Entries[0].Message != "orphan line without timestamp" {
		t.Errorf("first entry = %+v, want newest first", data.Entries[0])
	}
	if data.Filters.LogFile != filelog.DefaultFiles[0] {
		t.Errorf("default log_file = %q", data.Filters.LogFile)
	}

	if rec := env.do(t, http.MethodGet, "/logs/file/?log_file=../../etc/passwd", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown file status = %d, want 400", rec.Code)
	}
}

func TestFileExport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.writeLog(t, filelog.DefaultFiles[0], sampleLog)

	rec := env.do(t, http.MethodGet, "/logs/export?level=ERROR", "")
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "logs_export_20250615_120000.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	rows := readCSV(t, rec.Body.Bytes())
	want := [][]string{
		{"Level", "Date", "Time", "Module", "Message"},
		{"ERROR", "2025-06-14", "10:00:00", "alumni_directory.api", "Lookup failed"},
		{"ERROR", "", "", "unknown", "orphan line without timestamp"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestClearLog(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	name := filelog.DefaultFiles[0]
	env.writeLog(t, name, sampleLog)

	rec := env.do(t, http.MethodPost, "/logs/clear", `{"log_file":"`+name+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	info, err := os.Stat(filepath.Join(env.logDir, name))
	if err != nil || info.Size() != 0 {
		t.Errorf("cleared log: size %v, err %v", info, err)
	}
	rotated := filepath.Join(env.logDir, strings.TrimSuffix(name, ".log")+".20250615_120000.bak")
	if data, err := os.ReadFile(rotated); err != nil || string(data) != sampleLog {
		t.Errorf("rotated copy: %v", err)
	}

	tests := []struct {
		body string
		want int
	}{
		{`{"log_file":"` + filelog.DefaultFiles[1] + `"}`, http.StatusNotFound},
		{`{"log_file":"secrets.log"}`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := env.do(t, http.MethodPost, "/logs/clear", tt.body); rec.Code != tt.want {
			t.Errorf("body %s: status = %d, want %d", tt.body, rec.Code, tt.want)
		}
	}
}

func TestOperations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	for i, status := range []history.Status{history.StatusSuccess, history.StatusFailed, history.StatusPartial} {
		started := testNow.AddDate(0, 0, -i)
		completed := started.Add(90 * time.Second)
		op := &history.Operation{
			Type: history.TypeScheduled, Status: status, StartedAt: started, CompletedAt: &completed,
			AuditLogsProcessed: 10, AuditLogsDeleted: 10, FileLogsProcessed: 2, FileLogsDeleted: 2,
		}
		if err := env.history.Create(ctx, op); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	var views []struct {
		ID                 int64   `json:"id"`
		Status             string  `json:"status"`
		DurationSeconds    float64 `json:"duration_seconds"`
		TotalDeleted       int64   `json:"total_deleted"`
		TriggeredByDisplay string  `json:"triggered_by_display"`
	}
	decodeEnvelope(t, env.do(t, http.MethodGet, "/logs/operations/?status=failed", ""), &views)
	if len(views) != 1 || views[0].Status != "failed" || views[0].DurationSeconds != 90 || views[0].TotalDeleted != 12 || views[0].TriggeredByDisplay != "System" {
		t.Errorf("filtered operations = %+v", views)
	}

	decodeEnvelope(t, env.do(t, http.MethodGet, "/logs/operations", ""), &views)
	if len(views) != 3 || views[0].ID != 1 {
		t.Errorf("operations = %+v, want 3 newest first", views)
	}

	if rec := env.do(t, http.MethodGet, "/logs/operations/2", ""); rec.Code != http.StatusOK {
		t.Errorf("detail status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/logs/operations/9", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing detail status = %d, want 404", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/logs/operations/export?type=scheduled", "")
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "operations_export_20250615_120000.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rows := readCSV(t, rec.Body.Bytes()); len(rows) != 4 {
		t.Errorf("export rows = %d, want 4", len(rows))
	}
}

func jsonUnmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func newRequest(method, target string) *http.Request { return httptest.NewRequest(method, target, nil) }

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }
