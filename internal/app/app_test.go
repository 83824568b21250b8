// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

//go:build integration

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/config"
	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/retention"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0, BasePath: "/logs", ReadTimeout: time.Second, WriteTimeout: time.Second},
		Database: config.DatabaseConfig{Path: ":memory:", Threads: 1},
		Settings: config.SettingsConfig{InMemory: true},
		Logs:     config.LogsConfig{Dir: filepath.Join(dir, "logs"), Timezone: "UTC"},
		Archive:  config.ArchiveConfig{Root: filepath.Join(dir, "archives"), Banner: "NORSU Alumni System"},
		Retention: config.RetentionConfig{
			BatchSize: 100,
		},
		Interceptor: config.InterceptorConfig{Enabled: true, CacheSize: 100},
		Schedule:    config.ScheduleConfig{Interval: time.Hour, Timezone: "UTC"},
		Security:    config.SecurityConfig{AuthMode: "none", RateLimitReqs: 0},
	}
}

func TestNew_WiresAuditedSettingsAndCleanup(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	// Saving a policy goes through the interceptor into the audit table.
	p := settings.DefaultPolicy(settings.LogTypeAudit)
	p.Enabled = true
	p.RetentionDays = 1
	if err := a.Settings.SavePolicy(ctx, p); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}
	n, err := a.Audit.Count(ctx, audit.Filter{AppLabel: "log_viewer"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("audited settings changes = %d, want 1", n)
	}

	old := &audit.Record{Action: audit.ActionCreate, AppLabel: "alumni_directory", ModelName: "alumnus", Message: "old", Timestamp: time.Now().Add(-72 * time.Hour)}
	if err := a.Audit.Insert(ctx, old); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	op, err := a.Engine.ExecuteCleanup(ctx, retention.Trigger{Type: history.TypeManual, Actor: "registrar"})
	if err != nil {
		t.Fatalf("ExecuteCleanup: %v", err)
	}
	if op.Status != history.StatusSuccess || op.AuditLogsDeleted != 1 {
		t.Errorf("operation = %+v", op)
	}
	if op.ArchivesCreated == 0 {
		t.Error("expected the expired record to be archived before deletion")
	}
}

func TestHandler_ServesHealth(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	h, err := a.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	for _, path := range []string{"/health", "/logs/settings", "/logs/audit/"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, body %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestNew_RejectsUnknownTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Timezone = "Mars/Olympus_Mons"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected timezone error")
	}
}
