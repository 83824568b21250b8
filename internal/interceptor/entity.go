// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package interceptor turns domain mutations into audit records.
//
// The host application's data layer calls the Registry around every save and
// delete. The Interceptor subscribes to the registry, snapshots entity fields
// before and after the write, computes the changed field set and inserts one
// audit.Record per mutation.
//
// Nothing here returns an error to the host. Failures (including panics) are
// logged to a dedicated fallback file and counted in metrics; the host's
// write always proceeds.
//
// Typical wiring:
//
//	reg := interceptor.NewRegistry()
//	reg.RegisterLoader(alumni.ProfileType, profileRepo.LoadForAudit)
//	icpt, err := interceptor.New(auditStore, reg, interceptor.Config{CacheSize: 10000})
//
//	// in the repository
//	reg.PreSave(ctx, profile)
//	err := repo.save(ctx, profile)
//	reg.PostSave(ctx, profile, created)
package interceptor

import (
	"context"
	"errors"
	"strings"
)

// ErrNotPersisted is returned by a Loader when the key has no stored row.
// The interceptor treats it as "no pre-image" rather than a failure.
var ErrNotPersisted = errors.New("entity not persisted")

// EntityType identifies an audited aggregate by application and model.
type EntityType struct {
	AppLabel  string
	ModelName string
}

// Label returns "app_label.model_name".
func (t EntityType) Label() string {
	return t.AppLabel + "." + t.ModelName
}

// Entity is an audited aggregate. AuditKey reports false for an entity that
// has not been assigned a key yet (a create in progress).
type Entity interface {
	AuditType() EntityType
	AuditKey() (int64, bool)
}

// VerboseNamer supplies the human-readable model name used in messages.
// Without it the model name is used with underscores replaced by spaces.
type VerboseNamer interface {
	VerboseName() string
}

// FieldProvider supplies the field snapshot explicitly instead of having it
// captured by reflection. Values still go through the same conversion rules.
type FieldProvider interface {
	AuditFields() map[string]any
}

// Loader fetches the persisted image of an entity by key.
type Loader func(ctx context.Context, key int64) (Entity, error)

// verboseName returns the display name for an entity's model.
func verboseName(e Entity) string {
	if v, ok := e.(VerboseNamer); ok {
		if name := v.VerboseName(); name != "" {
			return name
		}
	}
	return strings.ReplaceAll(e.AuditType().ModelName, "_", " ")
}
