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

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ids"
)

// PipeTable owns every live Pipe, enforcing the per-process pipe count and
// global memory limits of spec.md section 6.
type PipeTable struct {
	limits  config.Limits
	ids     *ids.Allocator[domain.PipeId]
	waiters conc.WaitQueue
	acct    *memoryAccountant

	mu      sync.Mutex
	pipes   map[domain.PipeId]*Pipe
	byOwner map[domain.Pid]int
}

// NewPipeTable builds a PipeTable governed by limits.
func NewPipeTable(limits config.Limits) *PipeTable {
	return &PipeTable{
		limits:  limits,
		ids:     ids.NewAllocator[domain.PipeId](),
		waiters: conc.NewWaitQueue(conc.DefaultSyncConfig()),
		acct:    newMemoryAccountant(limits.PipeGlobalMemory),
		pipes:   make(map[domain.PipeId]*Pipe),
		byOwner: make(map[domain.Pid]int),
	}
}

// Create allocates a new Pipe owned by pid. capacity == 0 selects
// PipeCapacityDefault; a capacity above PipeCapacityMax is rejected.
func (t *PipeTable) Create(pid domain.Pid, capacity uint64) (*Pipe, error) {
	if capacity == 0 {
		capacity = t.limits.PipeCapacityDefault
	}
	if capacity > t.limits.PipeCapacityMax {
		return nil, ErrCapacityExceeded
	}

	t.mu.Lock()
	if t.byOwner[pid] >= t.limits.PipesPerProcess {
		t.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	handle := t.ids.Alloc()
	p := newPipe(handle.Value, pid, capacity, t.acct, t.waiters)
	t.pipes[handle.Value] = p
	t.byOwner[pid]++
	t.mu.Unlock()
	return p, nil
}

// Get looks up a pipe by id.
func (t *PipeTable) Get(id domain.PipeId) (*Pipe, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pipes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Reap removes every pipe owned by pid that both ends have closed, and
// every pipe still open is forcibly closed from both ends (process
// termination orphans it), returning the count removed.
func (t *PipeTable) Reap(pid domain.Pid) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, p := range t.pipes {
		if p.owner != pid {
			continue
		}
		p.CloseWriter()
		p.CloseReader()
		delete(t.pipes, id)
		removed++
	}
	delete(t.byOwner, pid)
	return removed
}

// Remove drops a destroyed pipe's bookkeeping entry.
func (t *PipeTable) Remove(id domain.PipeId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pipes[id]
	if !ok {
		return
	}
	delete(t.pipes, id)
	if t.byOwner[p.owner] > 0 {
		t.byOwner[p.owner]--
	}
}

// GlobalMemoryUsage returns the bytes currently charged across every pipe.
func (t *PipeTable) GlobalMemoryUsage() uint64 { return t.acct.globalUsage() }
