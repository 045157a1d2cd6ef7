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

// Package ids implements the monotonic, generation-stamped typed-ID
// allocators shared by every kernel table (pids, fds, pipes, queues, shared
// segments, mmap regions). Recycling a numeric value without a generation
// bump would let a stale handle silently alias a new, unrelated resource;
// spec.md section 3 requires detecting that case.
package ids

import "sync"

// Generation is bumped every time a numeric value is recycled.
type Generation uint32

// Handle pairs a raw numeric id with the generation it was minted under.
type Handle[T ~uint32] struct {
	Value      T
	Generation Generation
}

// Allocator mints values of T starting at 1 (0 is reserved as "no id"),
// recycling freed values through a free-list and bumping their generation
// each time so a caller holding a stale Handle can detect it via Valid.
type Allocator[T ~uint32] struct {
	mu         sync.Mutex
	next       T
	free       []T
	generation map[T]Generation
}

// NewAllocator constructs an empty allocator for the given typed id.
func NewAllocator[T ~uint32]() *Allocator[T] {
	return &Allocator[T]{
		next:       1,
		generation: make(map[T]Generation),
	}
}

// Alloc mints a fresh handle, preferring a recycled value over growing the
// monotonic counter.
func (a *Allocator[T]) Alloc() Handle[T] {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		v := a.free[n-1]
		a.free = a.free[:n-1]
		a.generation[v]++
		return Handle[T]{Value: v, Generation: a.generation[v]}
	}

	v := a.next
	a.next++
	a.generation[v] = 1
	return Handle[T]{Value: v, Generation: a.generation[v]}
}

// Release returns a value to the free-list for future recycling. It does not
// bump the generation itself -- the next Alloc of that value does, so a
// released handle keeps reporting true from Valid until its value is handed
// out again.
func (a *Allocator[T]) Release(h Handle[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cur, ok := a.generation[h.Value]; !ok || cur != h.Generation {
		return
	}
	a.free = append(a.free, h.Value)
}

// Valid reports whether h's generation matches the allocator's current
// bookkeeping for h.Value, i.e. whether h has not been recycled since it was
// minted.
func (a *Allocator[T]) Valid(h Handle[T]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.generation[h.Value]
	return ok && cur == h.Generation
}

// Count returns the number of values ever minted minus those currently
// recycled, i.e. the outstanding, non-free-listed count.
func (a *Allocator[T]) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.next) - 1 - len(a.free)
}
