// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package history

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestOperationDerived(t *testing.T) {
	t.Parallel()

	started := time.Date(2025, 4, 1, 2, 0, 0, 0, time.UTC)
	op := &Operation{
		StartedAt:          started,
		AuditLogsProcessed: 10,
		AuditLogsDeleted:   8,
		FileLogsProcessed:  5,
		FileLogsDeleted:    5,
	}
	if op.Duration() != 0 {
		t.Errorf("running operation duration = %v, want 0", op.Duration())
	}
	done := started.Add(90 * time.Second)
	op.CompletedAt = &done
	if op.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v", op.Duration())
	}
	if op.TotalProcessed() != 15 || op.TotalDeleted() != 13 {
		t.Errorf("totals = %d/%d", op.TotalProcessed(), op.TotalDeleted())
	}
	if op.TriggeredByDisplay() != "System" {
		t.Errorf("TriggeredByDisplay() = %q", op.TriggeredByDisplay())
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore())
}

// exerciseStore runs the behaviour shared by every Store implementation.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	day := func(d, h int) time.Time { return time.Date(2025, 4, d, h, 0, 0, 0, time.UTC) }
	actor := int64(7)

	ops := []*Operation{
		{Type: TypeScheduled, Status: StatusFailed, StartedAt: day(1, 2)},
		{Type: TypeManual, Status: StatusFailed, StartedAt: day(2, 9), TriggeredByKey: &actor, TriggeredBy: "registrar"},
		{Type: TypeScheduled, Status: StatusFailed, StartedAt: day(3, 2)},
	}
	for _, op := range ops {
		if err := store.Create(ctx, op); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if op.ID == 0 {
			t.Fatal("Create did not assign an ID")
		}
	}

	done := day(2, 10)
	manual := ops[1]
	manual.Status = StatusPartial
	manual.CompletedAt = &done
	manual.AuditLogsProcessed = 4
	manual.AuditLogsDeleted = 4
	manual.ArchiveFiles = []string{"a.csv", "a.pdf"}
	manual.ArchivesCreated = 2
	manual.ErrorMessage = "File logs: disk full"
	if err := store.Update(ctx, manual); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get(ctx, manual.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPartial || got.ArchivesCreated != 2 || got.ErrorMessage != manual.ErrorMessage {
		t.Errorf("updated operation = %+v", got)
	}
	if !reflect.DeepEqual(got.ArchiveFiles, manual.ArchiveFiles) {
		t.Errorf("archive files = %v", got.ArchiveFiles)
	}
	if got.TriggeredByKey == nil || *got.TriggeredByKey != actor || got.TriggeredBy != "registrar" {
		t.Errorf("triggered by = %v %q", got.TriggeredByKey, got.TriggeredBy)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed at = %v", got.CompletedAt)
	}

	if _, err := store.Get(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
	if err := store.Update(ctx, &Operation{ID: 9999, Status: StatusSuccess}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != ops[2].ID || all[2].ID != ops[0].ID {
		t.Errorf("List order = %v", ids(all))
	}

	scheduled, err := store.List(ctx, Filter{Type: TypeScheduled})
	if err != nil {
		t.Fatalf("List scheduled: %v", err)
	}
	if len(scheduled) != 2 {
		t.Errorf("scheduled = %v", ids(scheduled))
	}

	from, to := day(2, 0), day(2, 0)
	ranged, err := store.Count(ctx, Filter{DateFrom: &from, DateTo: &to})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if ranged != 1 {
		t.Errorf("operations on day 2 = %d, want 1", ranged)
	}

	partial, err := store.Count(ctx, Filter{Status: StatusPartial})
	if err != nil {
		t.Fatalf("Count partial: %v", err)
	}
	if partial != 1 {
		t.Errorf("partial = %d", partial)
	}

	page, err := store.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(page) != 1 || page[0].ID != manual.ID {
		t.Errorf("page = %v", ids(page))
	}
}

func ids(ops []Operation) []int64 {
	out := make([]int64, len(ops))
	for i, op := range ops {
		out[i] = op.ID
	}
	return out
}
