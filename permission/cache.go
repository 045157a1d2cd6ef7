//
// Copyright 2024-2026 sandboxrt. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package permission

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/sandboxrt/kerneld/domain"
)

// Decision is a permission check's outcome.
type Decision int

const (
	Allowed Decision = iota
	Denied
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

type cacheEntry struct {
	decision Decision
	reason   string
	expires  time.Time
}

// Cache is a bounded, TTL'd per-(pid, resource, action) decision cache, per
// spec.md section 4.1 step 2.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
}

// NewCache builds a Cache holding at most size entries, each valid for ttl.
func NewCache(size int, ttl time.Duration) *Cache {
	c, err := lru.New(size)
	if err != nil {
		// lru.New only errors on size <= 0; fall back to a sane default
		// rather than propagating a construction-time panic into callers
		// that pass a zero value by accident.
		c, _ = lru.New(1024)
	}
	return &Cache{lru: c, ttl: ttl}
}

func cacheKey(pid domain.Pid, action Kind, resource string) string {
	return fmt.Sprintf("%d:%d:%s", pid, action, resource)
}

// Get returns the cached decision for (pid, action, resource), if present
// and not yet expired.
func (c *Cache) Get(pid domain.Pid, action Kind, resource string) (Decision, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(cacheKey(pid, action, resource))
	if !ok {
		return 0, "", false
	}
	entry := v.(cacheEntry)
	if time.Now().After(entry.expires) {
		c.lru.Remove(cacheKey(pid, action, resource))
		return 0, "", false
	}
	return entry.decision, entry.reason, true
}

// Set stores a decision for (pid, action, resource).
func (c *Cache) Set(pid domain.Pid, action Kind, resource string, decision Decision, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(cacheKey(pid, action, resource), cacheEntry{
		decision: decision,
		reason:   reason,
		expires:  time.Now().Add(c.ttl),
	})
}

// Invalidate drops every cached decision for pid, used when a sandbox's
// policy changes.
func (c *Cache) Invalidate(pid domain.Pid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := fmt.Sprintf("%d:", pid)
	for _, k := range c.lru.Keys() {
		if ks, ok := k.(string); ok && len(ks) >= len(prefix) && ks[:len(prefix)] == prefix {
			c.lru.Remove(k)
		}
	}
}
