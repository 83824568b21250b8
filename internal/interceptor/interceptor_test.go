// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package interceptor

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/logging"
)

var (
	memberType = EntityType{AppLabel: "alumni", ModelName: "member"}
	groupType  = EntityType{AppLabel: "groups", ModelName: "alumni_group"}
)

type group struct {
	ID   int64
	Name string `json:"name"`
}

func (g *group) AuditType() EntityType   { return groupType }
func (g *group) AuditKey() (int64, bool) { return g.ID, g.ID != 0 }
func (g *group) String() string          { return g.Name }

type member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Batch     int       `json:"batch"`
	Password  string    `json:"password"`
	UpdatedAt time.Time `json:"updated_at"`
	Group     *group    `json:"group"`
	Groups    []*group  `json:"groups"`
	Notes     string    `audit:"-"`
	secret    string
}

func (m *member) AuditType() EntityType   { return memberType }
func (m *member) AuditKey() (int64, bool) { return m.ID, m.ID != 0 }
func (m *member) String() string          { return m.Name }
func (m *member) VerboseName() string     { return "alumni member" }

// memberRepo is a tiny host data layer that calls the registry around writes.
type memberRepo struct {
	mu       sync.Mutex
	rows     map[int64]member
	nextID   int64
	registry *Registry
}

func newMemberRepo(reg *Registry) *memberRepo {
	r := &memberRepo{rows: make(map[int64]member), nextID: 7, registry: reg}
	reg.RegisterLoader(memberType, r.load)
	return r
}

func (r *memberRepo) load(_ context.Context, key int64) (Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok {
		return nil, ErrNotPersisted
	}
	return &row, nil
}

func (r *memberRepo) save(ctx context.Context, m *member) {
	r.registry.PreSave(ctx, m)
	r.mu.Lock()
	created := m.ID == 0
	if created {
		m.ID = r.nextID
		r.nextID++
	}
	r.rows[m.ID] = *m
	r.mu.Unlock()
	r.registry.PostSave(ctx, m, created)
}

func (r *memberRepo) delete(ctx context.Context, m *member) {
	r.registry.PreDelete(ctx, m)
	r.mu.Lock()
	delete(r.rows, m.ID)
	r.mu.Unlock()
	r.registry.PostDelete(ctx, m)
}

func newTestInterceptor(t *testing.T, store Recorder, opts ...Option) (*Interceptor, *Registry, *bytes.Buffer) {
	t.Helper()
	var fallback bytes.Buffer
	reg := NewRegistry()
	opts = append([]Option{WithFallbackLogger(logging.NewTestLogger(&fallback))}, opts...)
	icpt, err := New(store, reg, Config{CacheSize: 16}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return icpt, reg, &fallback
}

func allRecords(t *testing.T, store *audit.MemoryStore) []audit.Record {
	t.Helper()
	records, err := store.Query(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	// Query is newest first; tests read in emission order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records
}

func TestCreateThenUpdate(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	repo := newMemberRepo(reg)
	ctx := context.Background()

	m := &member{Name: "A", Batch: 2015}
	repo.save(ctx, m)
	m.Name = "B"
	repo.save(ctx, m)

	records := allRecords(t, store)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	create := records[0]
	if create.Action != audit.ActionCreate {
		t.Errorf("first action = %s, want CREATE", create.Action)
	}
	if create.OldValues != nil {
		t.Errorf("CREATE old_values = %v, want nil", create.OldValues)
	}
	if create.NewValues["name"] != "A" {
		t.Errorf("CREATE new_values.name = %v", create.NewValues["name"])
	}
	if create.EntityKey == nil || *create.EntityKey != 7 {
		t.Errorf("CREATE entity_key = %v, want 7", create.EntityKey)
	}
	if create.Message != "CREATE: alumni member 'A' created" {
		t.Errorf("CREATE message = %q", create.Message)
	}

	update := records[1]
	if update.Action != audit.ActionUpdate {
		t.Errorf("second action = %s, want UPDATE", update.Action)
	}
	if update.OldValues["name"] != "A" || update.NewValues["name"] != "B" {
		t.Errorf("UPDATE images old=%v new=%v", update.OldValues["name"], update.NewValues["name"])
	}
	if !reflect.DeepEqual(update.ChangedFields, []string{"name"}) {
		t.Errorf("changed_fields = %v, want [name]", update.ChangedFields)
	}
	if update.Message != "UPDATE: alumni member 'B' updated - Fields: name" {
		t.Errorf("UPDATE message = %q", update.Message)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	repo := newMemberRepo(reg)
	ctx := context.Background()

	m := &member{Name: "B"}
	repo.save(ctx, m)
	repo.delete(ctx, m)

	records := allRecords(t, store)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	del := records[1]
	if del.Action != audit.ActionDelete {
		t.Fatalf("action = %s, want DELETE", del.Action)
	}
	if del.OldValues["name"] != "B" {
		t.Errorf("DELETE old_values.name = %v", del.OldValues["name"])
	}
	if del.NewValues != nil {
		t.Errorf("DELETE new_values = %v, want nil", del.NewValues)
	}
	if del.Message != "DELETE: alumni member 'B' deleted" {
		t.Errorf("DELETE message = %q", del.Message)
	}
}

func TestUpdate_ChangedFieldsExact(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	repo := newMemberRepo(reg)
	ctx := context.Background()

	g1 := &group{ID: 1, Name: "Class of 2015"}
	g2 := &group{ID: 2, Name: "Engineering"}
	m := &member{Name: "Ana", Batch: 2015, Group: g1}
	repo.save(ctx, m)

	m.Batch = 2016
	m.Group = g2
	// Sensitive and untracked fields change too but must not be reported.
	m.Password = "changed"
	m.UpdatedAt = time.Now().Add(time.Hour)
	m.Notes = "ignored"
	repo.save(ctx, m)

	update := allRecords(t, store)[1]
	want := []string{"batch", "group"}
	if !reflect.DeepEqual(update.ChangedFields, want) {
		t.Errorf("changed_fields = %v, want %v", update.ChangedFields, want)
	}
	ref, ok := update.NewValues["group"].(map[string]any)
	if !ok {
		t.Fatalf("group reference = %#v", update.NewValues["group"])
	}
	if ref["str"] != "Engineering" {
		t.Errorf("reference str = %v", ref["str"])
	}
}

func TestUpdate_NoChangesStillRecorded(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	repo := newMemberRepo(reg)
	ctx := context.Background()

	m := &member{Name: "Same"}
	repo.save(ctx, m)
	repo.save(ctx, m)

	update := allRecords(t, store)[1]
	if update.ChangedFields != nil {
		t.Errorf("changed_fields = %v, want nil", update.ChangedFields)
	}
	if update.OldValues == nil {
		t.Error("old_values should be present when the pre-image was captured")
	}
	if update.Message != "UPDATE: alumni member 'Same' updated" {
		t.Errorf("message = %q", update.Message)
	}
}

func TestUpdate_WithoutLoaderHasNoDiff(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	ctx := context.Background()

	g := &group{ID: 3, Name: "Batch 2001"}
	reg.PreSave(ctx, g)
	reg.PostSave(ctx, g, false)

	rec := allRecords(t, store)[0]
	if rec.Action != audit.ActionUpdate {
		t.Fatalf("action = %s", rec.Action)
	}
	if rec.OldValues != nil || rec.ChangedFields != nil {
		t.Errorf("expected null old_values and changed_fields, got %v / %v", rec.OldValues, rec.ChangedFields)
	}
}

func TestSensitiveFieldsNeverStored(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	reg := NewRegistry()
	_, err := New(store, reg, Config{SensitiveFields: []string{"batch"}})
	if err != nil {
		t.Fatal(err)
	}
	repo := newMemberRepo(reg)
	ctx := context.Background()

	m := &member{Name: "Ben", Password: "hunter2", Batch: 1999, UpdatedAt: time.Now()}
	repo.save(ctx, m)
	m.Password = "hunter3"
	repo.save(ctx, m)
	repo.delete(ctx, m)

	for _, rec := range allRecords(t, store) {
		for _, values := range []audit.Values{rec.OldValues, rec.NewValues} {
			for _, field := range []string{"password", "updated_at", "batch", "Notes", "notes", "secret"} {
				if _, ok := values[field]; ok {
					t.Errorf("%s record leaked field %q", rec.Action, field)
				}
			}
			if _, ok := values["groups"]; ok {
				t.Errorf("%s record captured an entity collection", rec.Action)
			}
		}
		if rec.Action == audit.ActionUpdate && rec.ChangedFields != nil {
			t.Errorf("password-only update should report no changed fields, got %v", rec.ChangedFields)
		}
	}
}

type session struct{ ID int64 }

func (s *session) AuditType() EntityType   { return EntityType{AppLabel: "sessions", ModelName: "session"} }
func (s *session) AuditKey() (int64, bool) { return s.ID, true }

type selfRecord struct{ ID int64 }

func (s *selfRecord) AuditType() EntityType   { return AuditRecordType }
func (s *selfRecord) AuditKey() (int64, bool) { return s.ID, true }

type importBatch struct{ ID int64 }

func (b *importBatch) AuditType() EntityType {
	return EntityType{AppLabel: "imports", ModelName: "batch"}
}
func (b *importBatch) AuditKey() (int64, bool) { return b.ID, true }

func TestSkippedEntities(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	reg := NewRegistry()
	if _, err := New(store, reg, Config{SkipApps: []string{"imports"}}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, e := range []Entity{&session{ID: 1}, &selfRecord{ID: 2}, &importBatch{ID: 3}} {
		reg.PreSave(ctx, e)
		reg.PostSave(ctx, e, true)
		reg.PreDelete(ctx, e)
		reg.PostDelete(ctx, e)
	}
	if store.Len() != 0 {
		t.Errorf("skipped entities produced %d records", store.Len())
	}
}

func TestRequestInfoStamped(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	repo := newMemberRepo(reg)

	actor := int64(42)
	ctx := WithRequestInfo(context.Background(), RequestInfo{
		ActorKey:  &actor,
		ActorName: "registrar",
		IPAddress: "10.0.0.5",
		UserAgent: strings.Repeat("x", 600),
		Path:      "/alumni/7/edit",
	})
	repo.save(ctx, &member{Name: "C"})

	rec := allRecords(t, store)[0]
	if rec.ActorKey == nil || *rec.ActorKey != 42 || rec.ActorName != "registrar" {
		t.Errorf("actor = %v/%q", rec.ActorKey, rec.ActorName)
	}
	if rec.IPAddress != "10.0.0.5" || rec.RequestPath != "/alumni/7/edit" {
		t.Errorf("ip/path = %q/%q", rec.IPAddress, rec.RequestPath)
	}
	if len(rec.UserAgent) != audit.MaxUserAgentLength {
		t.Errorf("user agent length = %d, want truncated to %d", len(rec.UserAgent), audit.MaxUserAgentLength)
	}

	repo.save(context.Background(), &member{Name: "D"})
	anon := allRecords(t, store)[1]
	if anon.ActorKey != nil || anon.ActorName != "" || anon.IPAddress != "" {
		t.Errorf("record without request info should have empty actor fields: %+v", anon)
	}
}

type failingStore struct {
	insertErr error
	exists    bool
	checks    int
}

func (f *failingStore) Insert(context.Context, *audit.Record) error { return f.insertErr }
func (f *failingStore) TableExists(context.Context) (bool, error) {
	f.checks++
	return f.exists, nil
}

func TestFailureIsolation(t *testing.T) {
	t.Parallel()

	store := &failingStore{insertErr: errors.New("disk full"), exists: true}
	_, reg, fallback := newTestInterceptor(t, store)
	repo := newMemberRepo(reg)

	m := &member{Name: "E"}
	repo.save(context.Background(), m) // must not panic or surface the error

	if !strings.Contains(fallback.String(), "disk full") {
		t.Errorf("fallback log missing failure: %s", fallback.String())
	}
	if !strings.Contains(fallback.String(), `"stage":"persist"`) {
		t.Errorf("fallback log missing stage: %s", fallback.String())
	}
	if m.ID == 0 {
		t.Error("host write should have proceeded")
	}
}

type panickyMember struct{ member }

func (p *panickyMember) AuditFields() map[string]any { panic("boom") }

func TestPanicRecovered(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, fallback := newTestInterceptor(t, store)

	reg.PostSave(context.Background(), &panickyMember{member{ID: 1, Name: "P"}}, true)

	if store.Len() != 0 {
		t.Errorf("expected no record after panic, got %d", store.Len())
	}
	if !strings.Contains(fallback.String(), "panic: boom") {
		t.Errorf("fallback log missing panic: %s", fallback.String())
	}
}

func TestStartupSafety(t *testing.T) {
	t.Parallel()

	t.Run("table missing", func(t *testing.T) {
		t.Parallel()
		store := audit.NewMemoryStore()
		store.SetReady(false)
		_, reg, _ := newTestInterceptor(t, store)
		newMemberRepo(reg).save(context.Background(), &member{Name: "F"})
		if store.Len() != 0 {
			t.Errorf("record written before table exists")
		}

		store.SetReady(true)
		newMemberRepo(reg).save(context.Background(), &member{Name: "G"})
		if store.Len() != 1 {
			t.Errorf("record not written after table appeared")
		}
	})

	t.Run("positive check cached", func(t *testing.T) {
		t.Parallel()
		store := &failingStore{exists: true}
		_, reg, _ := newTestInterceptor(t, store)
		repo := newMemberRepo(reg)
		for i := 0; i < 3; i++ {
			repo.save(context.Background(), &member{Name: "H"})
		}
		if store.checks != 1 {
			t.Errorf("TableExists called %d times, want 1", store.checks)
		}
	})

	t.Run("migration phase", func(t *testing.T) {
		t.Parallel()
		store := audit.NewMemoryStore()
		migrating := true
		_, reg, _ := newTestInterceptor(t, store, WithMigrationPhase(func() bool { return migrating }))
		repo := newMemberRepo(reg)
		repo.save(context.Background(), &member{Name: "I"})
		migrating = false
		repo.save(context.Background(), &member{Name: "J"})
		if store.Len() != 1 {
			t.Errorf("records = %d, want 1 (only after migration)", store.Len())
		}
	})
}

func TestDisableAndSuppress(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	icpt, reg, _ := newTestInterceptor(t, store)
	repo := newMemberRepo(reg)

	icpt.Disable()
	repo.save(context.Background(), &member{Name: "K"})
	icpt.Enable()
	repo.save(WithoutAuditing(context.Background()), &member{Name: "L"})
	repo.save(context.Background(), &member{Name: "M"})

	records := allRecords(t, store)
	if len(records) != 1 || records[0].NewValues["name"] != "M" {
		t.Errorf("expected only M to be audited, got %d records", len(records))
	}
}

func TestCanceledContextStillRecords(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	newMemberRepo(reg).save(ctx, &member{Name: "N"})
	if store.Len() != 1 {
		t.Errorf("records = %d, want 1", store.Len())
	}
}

func TestUpdateMessageListsFirstFiveFields(t *testing.T) {
	t.Parallel()

	got := updateMessage("alumni member", "X", []string{"a", "b", "c", "d", "e", "f", "g"})
	want := "UPDATE: alumni member 'X' updated - Fields: a, b, c, d, e"
	if got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestDeleteReprFallback(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	_, reg, _ := newTestInterceptor(t, store)
	ctx := context.Background()

	s := &importBatch{ID: 9}
	reg.PreDelete(ctx, s)
	reg.PostDelete(ctx, s)

	rec := allRecords(t, store)[0]
	if rec.Message != "DELETE: batch 'batch #9' deleted" {
		t.Errorf("message = %q", rec.Message)
	}
}
