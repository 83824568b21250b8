// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package interceptor

import (
	"context"
	"sync"

	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/metrics"
)

// Phase is the point in a write at which an Event fires.
type Phase int

const (
	PhasePreSave Phase = iota
	PhasePostSave
	PhasePreDelete
	PhasePostDelete
)

// String returns the phase name used in logs and metrics.
func (p Phase) String() string {
	switch p {
	case PhasePreSave:
		return "pre_save"
	case PhasePostSave:
		return "post_save"
	case PhasePreDelete:
		return "pre_delete"
	case PhasePostDelete:
		return "post_delete"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification from the host's data layer.
type Event struct {
	Phase   Phase
	Entity  Entity
	Created bool // PostSave only: true when the save inserted a new row
}

// Observer receives lifecycle events. Observers must not block the host
// for long and never report errors back to it.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f(ctx, ev).
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Registry dispatches data-layer lifecycle events to observers and holds the
// loaders used to fetch persisted pre-images.
type Registry struct {
	mu        sync.RWMutex
	observers []Observer
	loaders   map[EntityType]Loader
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[EntityType]Loader)}
}

// Subscribe adds an observer. Observers are called in subscription order.
func (r *Registry) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// RegisterLoader installs the pre-image loader for an entity type.
func (r *Registry) RegisterLoader(t EntityType, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[t] = l
}

// loader returns the loader registered for t.
func (r *Registry) loader(t EntityType) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[t]
	return l, ok
}

// PreSave must be called before an entity is inserted or updated.
func (r *Registry) PreSave(ctx context.Context, e Entity) {
	r.dispatch(ctx, Event{Phase: PhasePreSave, Entity: e})
}

// PostSave must be called after a successful insert or update.
func (r *Registry) PostSave(ctx context.Context, e Entity, created bool) {
	r.dispatch(ctx, Event{Phase: PhasePostSave, Entity: e, Created: created})
}

// PreDelete must be called before an entity is deleted.
func (r *Registry) PreDelete(ctx context.Context, e Entity) {
	r.dispatch(ctx, Event{Phase: PhasePreDelete, Entity: e})
}

// PostDelete must be called after a successful delete.
func (r *Registry) PostDelete(ctx context.Context, e Entity) {
	r.dispatch(ctx, Event{Phase: PhasePostDelete, Entity: e})
}

func (r *Registry) dispatch(ctx context.Context, ev Event) {
	if ev.Entity == nil || auditingSuppressed(ctx) {
		return
	}
	r.mu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, o := range observers {
		notify(ctx, o, ev)
	}
}

// notify shields the host from a misbehaving observer.
func notify(ctx context.Context, o Observer, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordCaptureFailure("panic")
			logging.Error().
				Interface("panic", rec).
				Str("phase", ev.Phase.String()).
				Str("entity", ev.Entity.AuditType().Label()).
				Msg("Audit observer panicked")
		}
	}()
	o.Observe(ctx, ev)
}
