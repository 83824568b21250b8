// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	ops    map[int64]Operation
	nextID int64

	// FailUpdate makes Update fail, for exercising hard-failure paths.
	FailUpdate error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[int64]Operation), nextID: 1}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, op *Operation) error {
	if op == nil {
		return fmt.Errorf("operation cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	op.ID = s.nextID
	s.nextID++
	s.ops[op.ID] = clone(op)
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, op *Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	if _, ok := s.ops[op.ID]; !ok {
		return ErrNotFound
	}
	s.ops[op.ID] = clone(op)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id int64) (*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(&op)
	return &out, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Operation, error) {
	matched := s.filtered(f)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []Operation{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, f Filter) (int64, error) {
	return int64(len(s.filtered(f))), nil
}

func (s *MemoryStore) filtered(f Filter) []Operation {
	from, until := f.bounds()
	s.mu.RLock()
	out := make([]Operation, 0, len(s.ops))
	for _, op := range s.ops {
		if f.Status != "" && op.Status != f.Status {
			continue
		}
		if f.Type != "" && op.Type != f.Type {
			continue
		}
		if from != nil && op.StartedAt.Before(*from) {
			continue
		}
		if until != nil && !op.StartedAt.Before(*until) {
			continue
		}
		out = append(out, clone(&op))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func clone(op *Operation) Operation {
	c := *op
	if op.ArchiveFiles != nil {
		c.ArchiveFiles = append([]string(nil), op.ArchiveFiles...)
	}
	if op.CompletedAt != nil {
		t := *op.CompletedAt
		c.CompletedAt = &t
	}
	if op.TriggeredByKey != nil {
		k := *op.TriggeredByKey
		c.TriggeredByKey = &k
	}
	return c
}
