// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package interceptor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/metrics"
)

// DefaultSkipApps lists application labels that are never audited.
var DefaultSkipApps = []string{"contenttypes", "sessions", "admin", "auth", "authtoken", "migrations"}

// DefaultSensitiveFields lists field names stripped from every snapshot.
var DefaultSensitiveFields = []string{
	"password", "password1", "password2", "secret_key", "api_key", "token",
	"created", "modified", "created_at", "updated_at",
}

// AuditRecordType is the entity type of audit records themselves.
var AuditRecordType = EntityType{AppLabel: "log_viewer", ModelName: "auditlog"}

// maxMessageFields is how many changed fields an UPDATE message names.
const maxMessageFields = 5

// Recorder is the slice of audit.Store the interceptor writes through.
type Recorder interface {
	Insert(ctx context.Context, r *audit.Record) error
	TableExists(ctx context.Context) (bool, error)
}

// Config tunes the interceptor. Skip apps and sensitive fields extend the
// built-in lists.
type Config struct {
	SkipApps        []string
	SensitiveFields []string
	CacheSize       int
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithFallbackLogger sets the logger that receives swallowed failures.
func WithFallbackLogger(l zerolog.Logger) Option {
	return func(i *Interceptor) { i.fallback = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) { i.now = now }
}

// WithMigrationPhase installs a probe that reports whether the host is
// migrating its schema. Persistence is skipped while it returns true.
func WithMigrationPhase(fn func() bool) Option {
	return func(i *Interceptor) { i.migrating = fn }
}

// Interceptor converts registry events into audit records.
type Interceptor struct {
	store     Recorder
	registry  *Registry
	skipApps  map[string]struct{}
	sensitive map[string]struct{}
	cache     *preImageCache
	fallback  zerolog.Logger
	now       func() time.Time
	migrating func() bool

	enabled    atomic.Bool
	tableReady atomic.Bool
}

// New creates an interceptor and subscribes it to registry.
func New(store Recorder, registry *Registry, cfg Config, opts ...Option) (*Interceptor, error) {
	if store == nil {
		return nil, errors.New("interceptor: store is required")
	}
	if registry == nil {
		return nil, errors.New("interceptor: registry is required")
	}
	cache, err := newPreImageCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("interceptor: create pre-image cache: %w", err)
	}

	i := &Interceptor{
		store:     store,
		registry:  registry,
		skipApps:  toSet(DefaultSkipApps, cfg.SkipApps),
		sensitive: toSet(DefaultSensitiveFields, cfg.SensitiveFields),
		cache:     cache,
		fallback:  logging.WithComponent("audit_interceptor"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.enabled.Store(true)
	registry.Subscribe(i)
	return i, nil
}

func toSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, v := range list {
			set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
		}
	}
	return set
}

// Enable turns auditing on.
func (i *Interceptor) Enable() { i.enabled.Store(true) }

// Disable turns auditing off for every caller until Enable.
func (i *Interceptor) Disable() { i.enabled.Store(false) }

// Enabled reports whether auditing is on.
func (i *Interceptor) Enabled() bool { return i.enabled.Load() }

// skipped reports whether entities of type t are never audited.
func (i *Interceptor) skipped(t EntityType) bool {
	if t == AuditRecordType {
		return true
	}
	_, ok := i.skipApps[strings.ToLower(t.AppLabel)]
	return ok
}

// Observe implements Observer. It never panics and never reports errors.
func (i *Interceptor) Observe(ctx context.Context, ev Event) {
	if ev.Entity == nil || !i.Enabled() {
		return
	}
	t := ev.Entity.AuditType()
	if i.skipped(t) {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			i.fail(ev.Phase.String(), t, fmt.Errorf("panic: %v", rec))
		}
	}()

	switch ev.Phase {
	case PhasePreSave:
		i.capturePreImage(ctx, ev.Entity)
	case PhasePostSave:
		i.recordSave(ctx, ev.Entity, ev.Created)
	case PhasePreDelete:
		if key, ok := ev.Entity.AuditKey(); ok {
			i.cache.put(t, key, i.snapshot(ev.Entity))
		}
	case PhasePostDelete:
		i.recordDelete(ctx, ev.Entity)
	}
}

// snapshot captures e's fields minus the sensitive deny-list.
func (i *Interceptor) snapshot(e Entity) audit.Values {
	raw := fieldSnapshot(e)
	out := make(audit.Values, len(raw))
	for name, v := range raw {
		if _, deny := i.sensitive[strings.ToLower(name)]; deny {
			continue
		}
		if cv, ok := convertValue(v); ok {
			out[name] = cv
		}
	}
	return out
}

// capturePreImage loads the persisted image for an update and caches it.
func (i *Interceptor) capturePreImage(ctx context.Context, e Entity) {
	key, ok := e.AuditKey()
	if !ok {
		return
	}
	t := e.AuditType()
	load, ok := i.registry.loader(t)
	if !ok {
		logging.Debug().Str("entity", t.Label()).Msg("No pre-image loader registered; update will carry no diff")
		return
	}
	stored, err := load(ctx, key)
	if errors.Is(err, ErrNotPersisted) {
		return
	}
	if err != nil {
		i.fail(PhasePreSave.String(), t, fmt.Errorf("load pre-image #%d: %w", key, err))
		return
	}
	if stored == nil {
		return
	}
	i.cache.put(t, key, i.snapshot(stored))
}

func (i *Interceptor) recordSave(ctx context.Context, e Entity, created bool) {
	t := e.AuditType()
	key, hasKey := e.AuditKey()
	rec := &audit.Record{
		AppLabel:  t.AppLabel,
		ModelName: t.ModelName,
		NewValues: i.snapshot(e),
	}
	if hasKey {
		rec.EntityKey = &key
	}
	verbose, repr := verboseName(e), reprOf(e)

	if created {
		if hasKey {
			i.cache.pop(t, key)
		}
		rec.Action = audit.ActionCreate
		rec.Message = fmt.Sprintf("CREATE: %s '%s' created", verbose, repr)
	} else {
		rec.Action = audit.ActionUpdate
		if hasKey {
			if old, found := i.cache.pop(t, key); found {
				rec.OldValues = old
				rec.ChangedFields = changedFields(old, rec.NewValues)
			}
		}
		rec.Message = updateMessage(verbose, repr, rec.ChangedFields)
	}
	i.persist(ctx, rec)
}

func (i *Interceptor) recordDelete(ctx context.Context, e Entity) {
	t := e.AuditType()
	key, hasKey := e.AuditKey()
	rec := &audit.Record{
		Action:    audit.ActionDelete,
		AppLabel:  t.AppLabel,
		ModelName: t.ModelName,
	}
	var found bool
	if hasKey {
		rec.EntityKey = &key
		rec.OldValues, found = i.cache.pop(t, key)
	}
	if !found {
		rec.OldValues = i.snapshot(e)
	}
	rec.Message = fmt.Sprintf("DELETE: %s '%s' deleted", verboseName(e), reprOf(e))
	i.persist(ctx, rec)
}

func updateMessage(verbose, repr string, changed []string) string {
	msg := fmt.Sprintf("UPDATE: %s '%s' updated", verbose, repr)
	if len(changed) == 0 {
		return msg
	}
	return msg + " - Fields: " + strings.Join(changed[:min(len(changed), maxMessageFields)], ", ")
}

// ready reports whether records can be written right now.
func (i *Interceptor) ready(ctx context.Context) (bool, error) {
	if i.migrating != nil && i.migrating() {
		return false, nil
	}
	if i.tableReady.Load() {
		return true, nil
	}
	exists, err := i.store.TableExists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		i.tableReady.Store(true)
	}
	return exists, nil
}

// persist stamps request metadata onto rec and inserts it.
func (i *Interceptor) persist(ctx context.Context, rec *audit.Record) {
	t := EntityType{AppLabel: rec.AppLabel, ModelName: rec.ModelName}
	// The host may cancel its context right after the write it audited.
	ctx = context.WithoutCancel(ctx)

	ok, err := i.ready(ctx)
	if err != nil {
		i.fail("persist", t, fmt.Errorf("check audit table: %w", err))
		return
	}
	if !ok {
		logging.Debug().Str("entity", t.Label()).Str("action", string(rec.Action)).
			Msg("Audit table unavailable (migration in progress); skipping record")
		return
	}

	if info, ok := RequestInfoFromContext(ctx); ok {
		rec.ActorKey = info.ActorKey
		rec.ActorName = info.ActorName
		rec.IPAddress = info.IPAddress
		rec.UserAgent = info.UserAgent
		rec.RequestPath = info.Path
	}
	rec.Normalize(i.now())

	if err := i.store.Insert(ctx, rec); err != nil {
		i.fail("persist", t, fmt.Errorf("insert audit record: %w", err))
		return
	}
	metrics.RecordAuditWrite(string(rec.Action))
	logRecord(ctx, rec)
}

// logRecord mirrors an audit record into the process log.
func logRecord(ctx context.Context, rec *audit.Record) {
	logger := logging.Ctx(ctx)
	event := logger.Info()
	if rec.Action == audit.ActionDelete {
		event = logger.Warn()
	}
	key := "-"
	if rec.EntityKey != nil {
		key = strconv.FormatInt(*rec.EntityKey, 10)
	}
	event.
		Int64("audit_id", rec.ID).
		Str("action", string(rec.Action)).
		Str("entity", rec.EntityLabel()).
		Strs("changed_fields", rec.ChangedFields).
		Msgf("AUDIT %s: %s #%s by %s - %s", rec.Action, rec.EntityLabel(), key, rec.ActorDisplay(), rec.Message)
}

// fail records a swallowed failure in the fallback log and metrics.
func (i *Interceptor) fail(stage string, t EntityType, err error) {
	metrics.RecordCaptureFailure(stage)
	i.fallback.Error().
		Err(err).
		Str("stage", stage).
		Str("entity", t.Label()).
		Msg("Audit capture failed")
}
