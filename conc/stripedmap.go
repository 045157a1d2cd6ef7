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

package conc

import (
	"hash/maphash"
	"sync"
)

const defaultStripes = 32

// StripedMap is a sharded concurrent map: each shard has its own mutex, so
// readers and writers touching different shards never contend, per
// spec.md section 5's "Block table and memory storage: sharded concurrent
// hash map" policy.
type StripedMap[K comparable, V any] struct {
	seed    maphash.Seed
	shards  []*stripe[K, V]
	hashKey func(K) uint64
}

type stripe[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewStripedMap builds a striped map using the default stripe count. hashKey
// converts a key to a uint64 used to pick its shard; callers with a
// non-string, non-integer key type must supply one.
func NewStripedMap[K comparable, V any](hashKey func(K) uint64) *StripedMap[K, V] {
	sm := &StripedMap[K, V]{
		shards:  make([]*stripe[K, V], defaultStripes),
		hashKey: hashKey,
	}
	for i := range sm.shards {
		sm.shards[i] = &stripe[K, V]{m: make(map[K]V)}
	}
	return sm
}

func (sm *StripedMap[K, V]) shard(k K) *stripe[K, V] {
	return sm.shards[sm.hashKey(k)%uint64(len(sm.shards))]
}

func (sm *StripedMap[K, V]) Get(k K) (V, bool) {
	s := sm.shard(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[k]
	return v, ok
}

func (sm *StripedMap[K, V]) Set(k K, v V) {
	s := sm.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[k] = v
}

// LoadOrStore returns the existing value for k if present; otherwise it
// calls create(), stores the result, and returns that instead. create runs
// at most once per miss, under the shard's write lock, so two concurrent
// misses on the same key never both win.
func (sm *StripedMap[K, V]) LoadOrStore(k K, create func() V) V {
	s := sm.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[k]; ok {
		return v
	}
	v := create()
	s.m[k] = v
	return v
}

func (sm *StripedMap[K, V]) Delete(k K) {
	s := sm.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, k)
}

// Len sums the size of every shard. It is an eventually-consistent
// approximation under concurrent mutation, acceptable for stats reporting.
func (sm *StripedMap[K, V]) Len() int {
	total := 0
	for _, s := range sm.shards {
		s.mu.RLock()
		total += len(s.m)
		s.mu.RUnlock()
	}
	return total
}

// Range calls fn for every entry across all shards. fn must not call back
// into the StripedMap, to avoid self-deadlock on the shard lock.
func (sm *StripedMap[K, V]) Range(fn func(K, V) bool) {
	for _, s := range sm.shards {
		s.mu.RLock()
		for k, v := range s.m {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// HashUint64 is a ready-made hashKey for any ~uint32/~uint64 key, used by
// every caller keying on a typed kernel id.
func HashUint64[K ~uint32 | ~uint64](k K) uint64 {
	return uint64(k)
}

// HashString is a ready-made hashKey for string keys.
func HashString(seed maphash.Seed) func(string) uint64 {
	return func(s string) uint64 {
		var h maphash.Hash
		h.SetSeed(seed)
		_, _ = h.WriteString(s)
		return h.Sum64()
	}
}
