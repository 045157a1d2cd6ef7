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

package ipc

import (
	"sync"

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ids"
)

// ownedRing pairs one pid's zero-copy Ring with the BufferPool backing its
// SubmissionEntry.BufferAddr allocations, so both halves of a ring share one
// owner and one cleanup path. bufs maps the synthetic addresses handed out
// by AcquireBuffer back to the live slice, since SubmissionEntry carries a
// bare domain.Address rather than the []byte itself.
type ownedRing struct {
	owner domain.Pid
	ring  *Ring
	pool  *BufferPool

	nextAddr domain.Address
	bufs     map[domain.Address][]byte
}

// RingTable owns every live Ring, enforcing the per-process ring count of
// spec.md section 6 the same way PipeTable enforces pipe counts, and gives
// the zero-copy ring/buffer-pool pair of spec.md section 4.3/§8 a process
// cleanup owner (spec.md section 4.6 names "zero-copy rings" among the
// resources a terminated pid must release).
type RingTable struct {
	limits config.Limits
	ids    *ids.Allocator[domain.RingId]

	mu      sync.Mutex
	rings   map[domain.RingId]*ownedRing
	byOwner map[domain.Pid]int
}

// NewRingTable builds a RingTable governed by limits.
func NewRingTable(limits config.Limits) *RingTable {
	return &RingTable{
		limits:  limits,
		ids:     ids.NewAllocator[domain.RingId](),
		rings:   make(map[domain.RingId]*ownedRing),
		byOwner: make(map[domain.Pid]int),
	}
}

// Create allocates a new Ring (and its paired BufferPool, sized from
// config.Limits.ZeroCopyBufferClasses) owned by pid, rejecting the request
// once pid already holds RingsPerProcess of them.
func (t *RingTable) Create(pid domain.Pid) (domain.RingId, *Ring, *BufferPool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limits.RingsPerProcess > 0 && t.byOwner[pid] >= t.limits.RingsPerProcess {
		return 0, nil, nil, ErrCapacityExceeded
	}

	handle := t.ids.Alloc()
	ring := NewRing(t.limits.RingSubmissionDepth, t.limits.RingCompletionDepth)
	pool := NewBufferPool(t.limits.ZeroCopyBufferClasses)
	t.rings[handle.Value] = &ownedRing{owner: pid, ring: ring, pool: pool, bufs: make(map[domain.Address][]byte)}
	t.byOwner[pid]++
	return handle.Value, ring, pool, nil
}

// AcquireBuffer pulls a buffer of at least size bytes from id's pool and
// hands back a synthetic address a SubmissionEntry can carry.
func (t *RingTable) AcquireBuffer(id domain.RingId, size uint64) (domain.Address, error) {
	t.mu.Lock()
	r, ok := t.rings[id]
	t.mu.Unlock()
	if !ok {
		return 0, ErrNotFound
	}

	buf, err := r.pool.Acquire(size)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	r.nextAddr++
	addr := r.nextAddr
	r.bufs[addr] = buf
	return addr, nil
}

// BufferAt returns the live slice behind a previously acquired address, so a
// handler can copy submission data into it or read completion data back out
// without the ring itself ever copying the bytes.
func (t *RingTable) BufferAt(id domain.RingId, addr domain.Address) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rings[id]
	if !ok {
		return nil, ErrNotFound
	}
	buf, ok := r.bufs[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return buf, nil
}

// ReleaseBuffer returns addr's buffer to id's pool.
func (t *RingTable) ReleaseBuffer(id domain.RingId, addr domain.Address) error {
	t.mu.Lock()
	r, ok := t.rings[id]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	buf, ok := r.bufs[addr]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	delete(r.bufs, addr)
	t.mu.Unlock()

	r.pool.Release(buf)
	return nil
}

// Get looks up a ring (and its buffer pool) by id.
func (t *RingTable) Get(id domain.RingId) (*Ring, *BufferPool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rings[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return r.ring, r.pool, nil
}

// Close drops a ring's bookkeeping entry, releasing its slot in the
// creating pid's RingsPerProcess count.
func (t *RingTable) Close(id domain.RingId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rings[id]
	if !ok {
		return
	}
	delete(t.rings, id)
	if t.byOwner[r.owner] > 0 {
		t.byOwner[r.owner]--
	}
}

// Reap closes every ring owned by pid, returning the count removed. Called
// from process.Manager's termination cleanup pipeline, mirroring
// PipeTable.Reap.
func (t *RingTable) Reap(pid domain.Pid) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, r := range t.rings {
		if r.owner != pid {
			continue
		}
		delete(t.rings, id)
		removed++
	}
	delete(t.byOwner, pid)
	return removed
}
