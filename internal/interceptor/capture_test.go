// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package interceptor

import (
	"reflect"
	"testing"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/audit"
)

func TestToSnake(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Name":           "name",
		"ID":             "id",
		"UserID":         "user_id",
		"GraduationYear": "graduation_year",
		"HTTPPath":       "http_path",
		"Address2":       "address2",
	}
	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

type status int

func (s status) String() string {
	if s == 1 {
		return "active"
	}
	return "inactive"
}

type address struct {
	City string `json:"city"`
	Zip  int
}

type embedded struct {
	Campus string `json:"campus"`
}

type profile struct {
	embedded
	ID        int64             `json:"id"`
	Status    status            `json:"status"`
	Graduated time.Time         `json:"graduated"`
	Verified  *time.Time        `json:"verified"`
	Mentor    *group            `json:"mentor"`
	Address   address           `json:"address"`
	Tags      []string          `json:"tags"`
	Clubs     map[string]*group `json:"clubs"`
	Avatar    []byte            `json:"avatar"`
	OnSave    func()            `json:"on_save"`
}

func (p *profile) AuditType() EntityType   { return EntityType{AppLabel: "alumni", ModelName: "profile"} }
func (p *profile) AuditKey() (int64, bool) { return p.ID, true }

func TestFieldSnapshotConversion(t *testing.T) {
	t.Parallel()

	graduated := time.Date(2015, 3, 28, 9, 0, 0, 0, time.FixedZone("PHT", 8*3600))
	p := &profile{
		embedded:  embedded{Campus: "Dumaguete"},
		ID:        3,
		Status:    1,
		Graduated: graduated,
		Mentor:    &group{ID: 5, Name: "Batch Council"},
		Address:   address{City: "Bais", Zip: 6206},
		Tags:      []string{"engineering", "2015"},
		Clubs:     map[string]*group{"chess": {ID: 1}},
		Avatar:    []byte("png"),
		OnSave:    func() {},
	}

	icpt := &Interceptor{sensitive: toSet(DefaultSensitiveFields)}
	got := icpt.snapshot(p)

	want := audit.Values{
		"campus":    "Dumaguete",
		"id":        int64(3),
		"status":    "active",
		"graduated": "2015-03-28T01:00:00Z",
		"verified":  nil,
		"mentor":    map[string]any{"id": int64(5), "str": "Batch Council"},
		"address":   map[string]any{"city": "Bais", "zip": int64(6206)},
		"tags":      []any{"engineering", "2015"},
		"avatar":    "png",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot mismatch\n got: %#v\nwant: %#v", got, want)
	}
}

type explicitFields struct{ id int64 }

func (e *explicitFields) AuditType() EntityType   { return EntityType{AppLabel: "cms", ModelName: "page"} }
func (e *explicitFields) AuditKey() (int64, bool) { return e.id, true }
func (e *explicitFields) AuditFields() map[string]any {
	return map[string]any{"title": "Homecoming", "token": "secret", "weight": 2}
}

func TestFieldProviderOverridesReflection(t *testing.T) {
	t.Parallel()

	icpt := &Interceptor{sensitive: toSet(DefaultSensitiveFields)}
	got := icpt.snapshot(&explicitFields{id: 1})
	want := audit.Values{"title": "Homecoming", "weight": int64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot = %#v, want %#v", got, want)
	}
}

func TestChangedFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		before audit.Values
		after  audit.Values
		want   []string
	}{
		{"identical", audit.Values{"a": 1, "b": "x"}, audit.Values{"a": 1, "b": "x"}, nil},
		{"value differs", audit.Values{"a": 1}, audit.Values{"a": 2}, []string{"a"}},
		{"key added and removed", audit.Values{"a": 1, "gone": true}, audit.Values{"a": 1, "new": false}, []string{"gone", "new"}},
		{"nested map order irrelevant", audit.Values{"m": map[string]any{"x": 1, "y": 2}}, audit.Values{"m": map[string]any{"y": 2, "x": 1}}, nil},
		{"null vs missing", audit.Values{"a": nil}, audit.Values{}, []string{"a"}},
		{"sorted output", audit.Values{"z": 1, "b": 1}, audit.Values{"z": 2, "b": 2}, []string{"b", "z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := changedFields(tt.before, tt.after); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("changedFields = %v, want %v", got, tt.want)
			}
		})
	}
}
