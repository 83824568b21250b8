// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/interceptor"
)

// Service reads settings with defaults and saves them through the audit
// registry, so every change is itself audited.
type Service struct {
	store    Store
	registry *interceptor.Registry
	now      func() time.Time
}

// NewService creates a Service. registry may be nil to skip auditing.
func NewService(store Store, registry *interceptor.Registry) *Service {
	s := &Service{store: store, registry: registry, now: time.Now}
	if registry != nil {
		s.registerLoaders(registry)
	}
	return s
}

// SetClock overrides the clock used for UpdatedAt stamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) registerLoaders(reg *interceptor.Registry) {
	reg.RegisterLoader(PolicyType, func(ctx context.Context, key int64) (interceptor.Entity, error) {
		t := LogTypeAudit
		if key == LogTypeFile.key() {
			t = LogTypeFile
		}
		p := &RetentionPolicy{}
		if err := s.load(ctx, policyKey(t), p); err != nil {
			return nil, err
		}
		return p, nil
	})
	reg.RegisterLoader(ScheduleType, func(ctx context.Context, _ int64) (interceptor.Entity, error) {
		sched := &CleanupSchedule{}
		if err := s.load(ctx, keySchedule, sched); err != nil {
			return nil, err
		}
		return sched, nil
	})
	reg.RegisterLoader(StorageType, func(ctx context.Context, _ int64) (interceptor.Entity, error) {
		c := &StorageConfig{}
		if err := s.load(ctx, keyStorage, c); err != nil {
			return nil, err
		}
		return c, nil
	})
}

// load maps ErrNotFound to interceptor.ErrNotPersisted for pre-image loaders.
func (s *Service) load(ctx context.Context, key string, dst any) error {
	err := s.store.Load(ctx, key, dst)
	if errors.Is(err, ErrNotFound) {
		return interceptor.ErrNotPersisted
	}
	return err
}

// Policy returns the policy for t, or its default when none was saved.
func (s *Service) Policy(ctx context.Context, t LogType) (*RetentionPolicy, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown log type %q", t)
	}
	p := &RetentionPolicy{}
	err := s.store.Load(ctx, policyKey(t), p)
	if errors.Is(err, ErrNotFound) {
		return DefaultPolicy(t), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s policy: %w", t, err)
	}
	return p, nil
}

// Policies returns the audit and file policies in that order.
func (s *Service) Policies(ctx context.Context) ([]*RetentionPolicy, error) {
	out := make([]*RetentionPolicy, 0, len(LogTypes))
	for _, t := range LogTypes {
		p, err := s.Policy(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SavePolicy validates and persists p.
func (s *Service) SavePolicy(ctx context.Context, p *RetentionPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = s.now()
	return s.save(ctx, policyKey(p.LogType), p)
}

// Schedule returns the cleanup schedule, or the default when none was saved.
func (s *Service) Schedule(ctx context.Context) (*CleanupSchedule, error) {
	sched := &CleanupSchedule{}
	err := s.store.Load(ctx, keySchedule, sched)
	if errors.Is(err, ErrNotFound) {
		return DefaultSchedule(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return sched, nil
}

// SaveSchedule validates and persists sched.
func (s *Service) SaveSchedule(ctx context.Context, sched *CleanupSchedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	sched.UpdatedAt = s.now()
	return s.save(ctx, keySchedule, sched)
}

// Storage returns the storage config, or the default when none was saved.
func (s *Service) Storage(ctx context.Context) (*StorageConfig, error) {
	c := &StorageConfig{}
	err := s.store.Load(ctx, keyStorage, c)
	if errors.Is(err, ErrNotFound) {
		return DefaultStorage(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}
	return c, nil
}

// SaveStorage validates and persists c.
func (s *Service) SaveStorage(ctx context.Context, c *StorageConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = s.now()
	return s.save(ctx, keyStorage, c)
}

// save wraps the write in the registry's save events.
func (s *Service) save(ctx context.Context, key string, e interceptor.Entity) error {
	var probe map[string]any
	err := s.store.Load(ctx, key, &probe)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load %s: %w", key, err)
	}
	created := errors.Is(err, ErrNotFound)

	if s.registry != nil {
		s.registry.PreSave(ctx, e)
	}
	if err := s.store.Save(ctx, key, e); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if s.registry != nil {
		s.registry.PostSave(ctx, e, created)
	}
	return nil
}
