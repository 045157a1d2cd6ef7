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

package memory

import (
	"sort"
	"sync"

	"github.com/sandboxrt/kerneld/domain"
)

// sizeClass rounds size up to the next power of two, with a 16-byte floor
// so tiny allocations don't each mint their own class.
func sizeClass(size uint64) uint64 {
	if size <= 16 {
		return 16
	}
	class := uint64(1)
	for class < size {
		class <<= 1
	}
	return class
}

// segregatedFreeList is the allocator's ground truth for which addresses
// are currently free. It is deliberately independent from Manager's blocks
// bookkeeping map: GC may trim blocks' free-block entries to bound its
// size, but the free list itself is never touched by GC, matching the
// "free list retains blocks for O(1) recycling" behavior described for
// this allocator. Entries are keyed by address within each size class so
// coalescing can remove a specific neighbor in O(1).
type segregatedFreeList struct {
	mu      sync.Mutex
	classes map[uint64]map[domain.Address]uint64
}

func newSegregatedFreeList() *segregatedFreeList {
	return &segregatedFreeList{classes: make(map[uint64]map[domain.Address]uint64)}
}

// push records addr as a free block of size bytes.
func (f *segregatedFreeList) push(addr domain.Address, size uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushLocked(addr, size)
}

func (f *segregatedFreeList) pushLocked(addr domain.Address, size uint64) {
	class := sizeClass(size)
	bucket := f.classes[class]
	if bucket == nil {
		bucket = make(map[domain.Address]uint64)
		f.classes[class] = bucket
	}
	bucket[addr] = size
}

// remove deletes a specific (addr, size) entry, used when coalescing
// consumes a free neighbor that must no longer be independently
// recyclable.
func (f *segregatedFreeList) remove(addr domain.Address, size uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	class := sizeClass(size)
	delete(f.classes[class], addr)
}

// take finds a free block able to satisfy size, preferring an exact-class
// match and otherwise the smallest larger class, splitting any remainder
// back into its own class. Returns the base address of a block of exactly
// size bytes; ok is false on a total miss.
func (f *segregatedFreeList) take(size uint64) (domain.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := sizeClass(size)
	// A block in the exact class can still be smaller than size (the class
	// rounds up), so only blocks of at least size bytes qualify here.
	for addr, found := range f.classes[want] {
		if found >= size {
			delete(f.classes[want], addr)
			f.splitRemainderLocked(addr, found, size)
			return addr, true
		}
	}

	var candidates []uint64
	for class, bucket := range f.classes {
		if class > want && len(bucket) > 0 {
			candidates = append(candidates, class)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	class := candidates[0]
	addr, found, ok := popAny(f.classes[class])
	if !ok {
		return 0, false
	}
	f.splitRemainderLocked(addr, found, size)
	return addr, true
}

func (f *segregatedFreeList) splitRemainderLocked(addr domain.Address, foundSize, wantSize uint64) {
	if foundSize > wantSize {
		f.pushLocked(addr+domain.Address(wantSize), foundSize-wantSize)
	}
}

// popAny removes and returns an arbitrary entry from bucket; map iteration
// order is unspecified, which is fine since every entry in a class is an
// equally valid fit.
func popAny(bucket map[domain.Address]uint64) (domain.Address, uint64, bool) {
	for addr, size := range bucket {
		delete(bucket, addr)
		return addr, size, true
	}
	return 0, 0, false
}

// len returns the total number of tracked free blocks across all classes.
func (f *segregatedFreeList) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, bucket := range f.classes {
		n += len(bucket)
	}
	return n
}
