// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package settings holds the admin-editable retention configuration: one
// retention policy per log stream, the cleanup schedule and the archive
// storage limits. Each is a JSON document under a fixed key.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned when a settings document has never been saved.
var ErrNotFound = errors.New("settings document not found")

// Document keys.
const (
	keySchedule = "schedule"
	keyStorage  = "storage"
)

func policyKey(t LogType) string {
	return "policy:" + string(t)
}

// Store persists settings documents as JSON under string keys.
type Store interface {
	// Load decodes the document at key into dst, or returns ErrNotFound.
	Load(ctx context.Context, key string, dst any) error
	Save(ctx context.Context, key string, v any) error
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, key string, dst any) error {
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, dst)
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	s.mu.Lock()
	s.docs[key] = data
	s.mu.Unlock()
	return nil
}
