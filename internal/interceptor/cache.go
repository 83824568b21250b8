// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package interceptor

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/metrics"
)

// DefaultCacheSize bounds the number of pre-images held between pre and post events.
const DefaultCacheSize = 10000

type cacheKey struct {
	entity EntityType
	key    int64
}

// preImageCache holds field snapshots between a pre event and its post event.
// A post event that never arrives leaks one entry until it is evicted.
type preImageCache struct {
	lru *lru.Cache[cacheKey, audit.Values]
}

func newPreImageCache(size int) (*preImageCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cacheKey, audit.Values](size)
	if err != nil {
		return nil, err
	}
	return &preImageCache{lru: c}, nil
}

func (c *preImageCache) put(t EntityType, key int64, v audit.Values) {
	if evicted := c.lru.Add(cacheKey{entity: t, key: key}, v); evicted {
		metrics.AuditPreImageEvictions.Inc()
	}
}

// pop returns and removes the snapshot for (t, key).
func (c *preImageCache) pop(t EntityType, key int64) (audit.Values, bool) {
	k := cacheKey{entity: t, key: key}
	v, ok := c.lru.Peek(k)
	if ok {
		c.lru.Remove(k)
	}
	return v, ok
}

func (c *preImageCache) len() int {
	return c.lru.Len()
}
