// Copyright 2025 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ttlcache implements a process-local key/value cache with absolute
// per-entry expiry.
//
// It fronts the datastore and the signed URL gateway on the contestant
// serving path. Entries become logically absent the moment their deadline
// passes: Get self-expires, so correctness never depends on the sweep. The
// periodic Cleanup pass only bounds memory.
//
// The cache is an explicitly constructed instance injected into the services
// that need it, one per process, torn down with the process.
package ttlcache

import (
	"context"
	"sync"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/logging"
)

// Cache is a string-keyed map of values with absolute expiry times.
//
// It is safe for concurrent use. Concurrent Set calls on the same key race on
// last-write-wins, which is benign for the idempotent fills this cache is
// used for.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     any
	expiresAt time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: map[string]entry{}}
}

// Get returns the value stored under key.
//
// Returns (nil, false) if the key was never set or its deadline has passed.
// An expired entry is removed as a side effect.
//
// The context is used only for telling time.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	now := clock.Now(ctx)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if now.After(e.expiresAt) {
		c.mu.Lock()
		// Recheck: the entry may have been overwritten with a fresh deadline
		// between the read lock and here.
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores value under key, expiring ttl from now.
//
// Unconditionally overwrites any existing entry for the key.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	expiresAt := clock.Now(ctx).Add(ttl)

	c.mu.Lock()
	c.entries[key] = entry{value, expiresAt}
	c.mu.Unlock()
}

// Delete removes the entry for key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Cleanup sweeps out all entries whose deadline has passed.
func (c *Cache) Cleanup(ctx context.Context) {
	now := clock.Now(ctx)

	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Clear drops all entries.
//
// Not used on the serving path.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = map[string]entry{}
	c.mu.Unlock()
}

// Stats describes the current contents of the cache.
type Stats struct {
	Size int
	Keys []string
}

// Stats returns a snapshot of the cache contents, including entries that have
// expired but have not been swept yet.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return Stats{Size: len(c.entries), Keys: keys}
}

// RunJanitor periodically sweeps expired entries until the context is
// canceled.
//
// Intended to be launched as a server background activity. It never touches
// request-serving paths.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	for {
		if tr := <-clock.After(ctx, interval); tr.Incomplete() {
			logging.Debugf(ctx, "ttlcache: janitor stopping: %s", ctx.Err())
			return
		}
		c.Cleanup(ctx)
	}
}
