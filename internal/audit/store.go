// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	nextID  int64
	ready   bool

	// FailDelete makes DeleteBefore fail, for exercising rollback paths.
	FailDelete error
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, ready: true}
}

// SetReady toggles TableExists, simulating a store before its schema exists.
func (s *MemoryStore) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Insert persists a record and assigns its ID.
func (s *MemoryStore) Insert(_ context.Context, r *Record) error {
	if r == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++
	s.records = append(s.records, cloneRecord(r))
	return nil
}

// Get retrieves a record by ID.
func (s *MemoryStore) Get(_ context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].ID == id {
			r := cloneRecord(&s.records[i])
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Query returns records matching the filter, newest first.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Record, error) {
	matched := s.filtered(f)
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, f.Limit, f.Offset), nil
}

// Count returns the number of records matching the filter.
func (s *MemoryStore) Count(_ context.Context, f Filter) (int64, error) {
	return int64(len(s.filtered(f))), nil
}

// Facets computes per-action, per-app and per-model breakdowns.
func (s *MemoryStore) Facets(_ context.Context, f Filter) (*Facets, error) {
	matched := s.filtered(f)
	facets := &Facets{
		Total:        int64(len(matched)),
		ActionCounts: make(map[string]int64),
		AppCounts:    make(map[string]int64),
	}
	models := make(map[[2]string]int64)
	for i := range matched {
		facets.ActionCounts[string(matched[i].Action)]++
		facets.AppCounts[matched[i].AppLabel]++
		models[[2]string{matched[i].AppLabel, matched[i].ModelName}]++
	}
	for k, n := range models {
		facets.TopModels = append(facets.TopModels, ModelCount{AppLabel: k[0], ModelName: k[1], Count: n})
	}
	sortModelCounts(facets.TopModels)
	if len(facets.TopModels) > topModelLimit {
		facets.TopModels = facets.TopModels[:topModelLimit]
	}

	s.mu.RLock()
	actions, apps, names := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for i := range s.records {
		actions[string(s.records[i].Action)] = true
		apps[s.records[i].AppLabel] = true
		names[s.records[i].ModelName] = true
	}
	s.mu.RUnlock()
	facets.Actions, facets.Apps, facets.Models = sortedKeys(actions), sortedKeys(apps), sortedKeys(names)
	return facets, nil
}

// CountBefore counts records older than cutoff.
func (s *MemoryStore) CountBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.records {
		if s.records[i].Timestamp.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// ListBefore returns records older than cutoff, oldest first.
func (s *MemoryStore) ListBefore(_ context.Context, cutoff time.Time, limit, offset int) ([]Record, error) {
	s.mu.RLock()
	var old []Record
	for i := range s.records {
		if s.records[i].Timestamp.Before(cutoff) {
			old = append(old, cloneRecord(&s.records[i]))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(old, func(i, j int) bool { return old[i].ID < old[j].ID })
	return paginate(old, limit, offset), nil
}

// DeleteBefore removes records older than cutoff. The whole removal is
// applied atomically: on failure nothing is removed.
func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDelete != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", s.FailDelete)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	kept := s.records[:0:0]
	var deleted int64
	for i := range s.records {
		if s.records[i].Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s.records[i])
	}
	s.records = kept
	return deleted, nil
}

// TableExists reports the simulated schema state.
func (s *MemoryStore) TableExists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) filtered(f Filter) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, until := f.bounds()
	var out []Record
	for i := range s.records {
		if matchesFilter(&s.records[i], &f, from, until) {
			out = append(out, cloneRecord(&s.records[i]))
		}
	}
	return out
}

//nolint:gocyclo // one branch per filter field
func matchesFilter(r *Record, f *Filter, from, until *time.Time) bool {
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	if f.AppLabel != "" && r.AppLabel != f.AppLabel {
		return false
	}
	if f.ModelName != "" && r.ModelName != f.ModelName {
		return false
	}
	if f.Actor != "" && !containsFold(r.ActorName, f.Actor) {
		return false
	}
	if f.Search != "" &&
		!containsFold(r.Message, f.Search) &&
		!containsFold(r.ActorName, f.Search) &&
		!containsFold(r.ModelName, f.Search) &&
		!containsFold(r.AppLabel, f.Search) {
		return false
	}
	if from != nil && r.Timestamp.Before(*from) {
		return false
	}
	if until != nil && !r.Timestamp.Before(*until) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func paginate(records []Record, limit, offset int) []Record {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

func sortModelCounts(models []ModelCount) {
	sort.Slice(models, func(i, j int) bool {
		if models[i].Count != models[j].Count {
			return models[i].Count > models[j].Count
		}
		if models[i].AppLabel != models[j].AppLabel {
			return models[i].AppLabel < models[j].AppLabel
		}
		return models[i].ModelName < models[j].ModelName
	})
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneRecord(r *Record) Record {
	c := *r
	if r.EntityKey != nil {
		k := *r.EntityKey
		c.EntityKey = &k
	}
	if r.ActorKey != nil {
		k := *r.ActorKey
		c.ActorKey = &k
	}
	c.OldValues = cloneValues(r.OldValues)
	c.NewValues = cloneValues(r.NewValues)
	if r.ChangedFields != nil {
		c.ChangedFields = append([]string(nil), r.ChangedFields...)
	}
	return c
}

func cloneValues(v Values) Values {
	if v == nil {
		return nil
	}
	c := make(Values, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}
