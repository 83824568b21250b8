// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package audit

import (
	"strings"
	"testing"
	"time"
)

func TestChangesSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		record Record
		want   string
	}{
		{Record{Action: ActionCreate}, "Object created"},
		{Record{Action: ActionUpdate, ChangedFields: []string{"email", "name"}}, "Fields changed: email, name"},
		{Record{Action: ActionUpdate}, "Object updated"},
		{Record{Action: ActionDelete}, "Object deleted"},
		{Record{Action: ActionView}, "Action performed"},
	}
	for _, tt := range tests {
		if got := tt.record.ChangesSummary(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.record.Action, got, tt.want)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"create", Record{Action: ActionCreate, AppLabel: "a", ModelName: "m", NewValues: Values{}}, false},
		{"update without diff", Record{Action: ActionUpdate, AppLabel: "a", ModelName: "m"}, false},
		{"delete with new", Record{Action: ActionDelete, AppLabel: "a", ModelName: "m", NewValues: Values{}}, true},
		{"unknown action", Record{Action: "PATCH", AppLabel: "a", ModelName: "m"}, true},
		{"missing type", Record{Action: ActionCreate}, true},
	}
	for _, tt := range tests {
		if err := tt.record.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Record{
		UserAgent:   strings.Repeat("u", 600),
		RequestPath: strings.Repeat("p", 501),
		Message:     strings.Repeat("é", 700),
	}
	r.Normalize(now)
	if len(r.UserAgent) != MaxUserAgentLength || len(r.RequestPath) != MaxPathLength {
		t.Errorf("ua=%d path=%d", len(r.UserAgent), len(r.RequestPath))
	}
	if n := len([]rune(r.Message)); n != MaxMessageLength {
		t.Errorf("message runes = %d", n)
	}
	if !r.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v", r.Timestamp)
	}
}

func TestFilterPage(t *testing.T) {
	t.Parallel()

	f := Filter{Action: ActionCreate}.Page(3)
	if f.Limit != PageSize || f.Offset != 100 || f.Action != ActionCreate {
		t.Errorf("unexpected page filter: %+v", f)
	}
	if (Filter{}).Page(0).Offset != 0 {
		t.Error("page 0 should clamp to the first page")
	}
}
