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
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/guard"
)

// Manager is the kernel's memory allocator: a segregated free list over an
// arena that grows by watermark, per-PID accounting, CoW-backed simulated
// physical storage, and deallocated-block garbage collection.
//
// The blocks map is a concurrent bookkeeping cache used for lock-free
// reads (IsValid, BlockSize, enumeration) and is GC'd independently of the
// free list, which is the allocator's sole ground truth for what is
// currently recyclable. Allocate, Deallocate and Collect are serialized by
// mu since they mutate the free list and coalesce neighbors in the blocks
// map together; reads never take mu.
type Manager struct {
	mu sync.Mutex

	capacity    uint64
	gcThreshold uint64
	watermark   domain.Address

	usedBytes        atomic.Uint64
	deallocatedCount atomic.Uint64

	blocks    *conc.StripedMap[domain.Address, *Block]
	freeList  *segregatedFreeList
	storage   *Storage
	processes *conc.StripedMap[domain.Pid, *processAccounting]
}

// NewManager builds a Manager sized per lim.
func NewManager(lim config.Limits) *Manager {
	return &Manager{
		capacity:    lim.MemoryArenaCapacity,
		gcThreshold: lim.MemoryGCThreshold,
		blocks:      conc.NewStripedMap[domain.Address, *Block](conc.HashUint64[domain.Address]),
		freeList:    newSegregatedFreeList(),
		storage:     newStorage(),
		processes:   conc.NewStripedMap[domain.Pid, *processAccounting](conc.HashUint64[domain.Pid]),
	}
}

func (m *Manager) accountingFor(pid domain.Pid) *processAccounting {
	return m.processes.LoadOrStore(pid, func() *processAccounting { return &processAccounting{} })
}

// Allocate reserves size bytes for pid, returning the base address of the
// new block.
func (m *Manager) Allocate(size uint64, pid domain.Pid) (domain.Address, error) {
	if size == 0 {
		return 0, ErrorInvalidSize("size must be non-zero")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if addr, ok := m.freeList.take(size); ok {
		m.blocks.Set(addr, &Block{Address: addr, Size: size, Pid: pid, Allocated: true})
		m.usedBytes.Add(size)
		m.accountingFor(pid).addAllocation(size)
		return addr, nil
	}

	if uint64(m.watermark)+size > m.capacity {
		return 0, ErrorOutOfMemory("arena capacity exhausted")
	}
	addr := m.watermark
	m.watermark += domain.Address(size)
	m.blocks.Set(addr, &Block{Address: addr, Size: size, Pid: pid, Allocated: true})
	m.usedBytes.Add(size)
	m.accountingFor(pid).addAllocation(size)
	return addr, nil
}

// AllocateGuarded allocates size bytes for pid and wraps the result in a
// guard.MemoryGuard whose Release deallocates it, for callers that want
// scope-bound cleanup (e.g. a syscall handler that must free on every
// return path).
func (m *Manager) AllocateGuarded(size uint64, pid domain.Pid) (*guard.MemoryGuard, error) {
	addr, err := m.Allocate(size, pid)
	if err != nil {
		return nil, err
	}
	return guard.NewMemoryGuard(addr, size, pid, func() {
		if err := m.Deallocate(addr); err != nil {
			logrus.WithError(err).Warn("memory: guarded deallocate failed")
		}
	}), nil
}

// Deallocate frees the block at address, coalescing with any free
// neighbor still present in the bookkeeping map.
func (m *Manager) Deallocate(address domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	block, ok := m.blocks.Get(address)
	if !ok || !block.Allocated {
		return ErrorInvalidAddress(address)
	}

	m.blocks.Delete(address)
	m.usedBytes.Add(-block.Size) // unsigned subtraction, per sync/atomic convention
	m.accountingFor(block.Pid).removeAllocation(block.Size)

	mergedAddr, mergedSize := address, block.Size

	if left := m.findNeighborEndingAt(mergedAddr); left != nil {
		m.blocks.Delete(left.Address)
		m.freeList.remove(left.Address, left.Size)
		mergedAddr = left.Address
		mergedSize += left.Size
	}
	if right := m.findNeighborStartingAt(mergedAddr + domain.Address(mergedSize)); right != nil {
		m.blocks.Delete(right.Address)
		m.freeList.remove(right.Address, right.Size)
		mergedSize += right.Size
	}

	m.blocks.Set(mergedAddr, &Block{Address: mergedAddr, Size: mergedSize, Allocated: false})
	m.freeList.push(mergedAddr, mergedSize)
	m.deallocatedCount.Add(1)
	return nil
}

// findNeighborEndingAt returns the free block (if any) whose range ends
// exactly at addr, for left-side coalescing.
func (m *Manager) findNeighborEndingAt(addr domain.Address) *Block {
	var found *Block
	m.blocks.Range(func(_ domain.Address, b *Block) bool {
		if !b.Allocated && b.Address+domain.Address(b.Size) == addr {
			found = b
			return false
		}
		return true
	})
	return found
}

// findNeighborStartingAt returns the free block (if any) whose range
// starts exactly at addr, for right-side coalescing.
func (m *Manager) findNeighborStartingAt(addr domain.Address) *Block {
	var found *Block
	m.blocks.Range(func(a domain.Address, b *Block) bool {
		if !b.Allocated && a == addr {
			found = b
			return false
		}
		return true
	})
	return found
}

// IsValid reports whether address is the base of a currently allocated
// block.
func (m *Manager) IsValid(address domain.Address) bool {
	b, ok := m.blocks.Get(address)
	return ok && b.Allocated
}

// BlockSize returns the size of the allocated block based at address.
func (m *Manager) BlockSize(address domain.Address) (uint64, bool) {
	b, ok := m.blocks.Get(address)
	if !ok || !b.Allocated {
		return 0, false
	}
	return b.Size, true
}

// WriteBytes writes data at address, which must lie within a currently
// allocated block.
func (m *Manager) WriteBytes(address domain.Address, data []byte) error {
	block, err := m.resolveAllocated(address, uint64(len(data)))
	if err != nil {
		return err
	}
	return m.storage.Write(address, data, block)
}

// ReadBytes reads size bytes from address, which must lie within a
// currently allocated block.
func (m *Manager) ReadBytes(address domain.Address, size uint64) ([]byte, error) {
	block, err := m.resolveAllocated(address, size)
	if err != nil {
		return nil, err
	}
	return m.storage.Read(address, size, block)
}

// resolveAllocated finds the allocated block covering [address, address+size).
func (m *Manager) resolveAllocated(address domain.Address, size uint64) (*Block, error) {
	var found *Block
	m.blocks.Range(func(a domain.Address, b *Block) bool {
		if b.Allocated && address >= a && address < a+domain.Address(b.Size) {
			found = b
			return false
		}
		return true
	})
	if found == nil {
		return nil, ErrorInvalidAddress(address)
	}
	if uint64(address-found.Address)+size > found.Size {
		return nil, ErrorInvalidAddress(address)
	}
	return found, nil
}

// Stats returns the overall allocator snapshot.
func (m *Manager) Stats() Stats {
	return Stats{
		TotalCapacity:    m.capacity,
		UsedBytes:        m.usedBytes.Load(),
		AllocatedBlocks:  m.countAllocated(),
		DeallocatedCount: m.deallocatedCount.Load(),
		FreeListSize:     m.freeList.len(),
	}
}

func (m *Manager) countAllocated() int {
	n := 0
	m.blocks.Range(func(_ domain.Address, b *Block) bool {
		if b.Allocated {
			n++
		}
		return true
	})
	return n
}

// ProcessMemory returns the current bytes held by pid.
func (m *Manager) ProcessMemory(pid domain.Pid) uint64 {
	return m.accountingFor(pid).snapshot().CurrentBytes
}

// ProcessStats returns the full accounting snapshot for pid.
func (m *Manager) ProcessStats(pid domain.Pid) ProcessStats {
	return m.accountingFor(pid).snapshot()
}

// ProcessAllocations lists every block currently allocated to pid.
func (m *Manager) ProcessAllocations(pid domain.Pid) []Block {
	var out []Block
	m.blocks.Range(func(_ domain.Address, b *Block) bool {
		if b.Allocated && b.Pid == pid {
			out = append(out, *b)
		}
		return true
	})
	return out
}

// FreeProcessMemory deallocates every block owned by pid, returning the
// total bytes freed.
func (m *Manager) FreeProcessMemory(pid domain.Pid) uint64 {
	var total uint64
	for _, b := range m.ProcessAllocations(pid) {
		if err := m.Deallocate(b.Address); err != nil {
			logrus.WithError(err).WithField("pid", pid).Warn("memory: failed to free block during process cleanup")
			continue
		}
		total += b.Size
	}
	return total
}

// ShouldCollect reports whether the deallocated-block count has reached
// the GC threshold.
func (m *Manager) ShouldCollect() bool {
	return m.deallocatedCount.Load() >= m.gcThreshold
}

// Collect removes bookkeeping for currently free blocks, leaving the free
// list (the allocator's real recycling structure) untouched, and resets
// the deallocated counter. Returns the number of bookkeeping entries
// removed.
func (m *Manager) Collect() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var freeAddrs []domain.Address
	m.blocks.Range(func(a domain.Address, b *Block) bool {
		if !b.Allocated {
			freeAddrs = append(freeAddrs, a)
		}
		return true
	})
	for _, a := range freeAddrs {
		m.blocks.Delete(a)
		m.storage.Remove(a)
	}
	m.deallocatedCount.Store(0)

	if len(freeAddrs) > 0 {
		logrus.WithFields(logrus.Fields{
			"removed":   len(freeAddrs),
			"free_list": m.freeList.len(),
		}).Info("memory: garbage collection complete")
	}
	return len(freeAddrs)
}

// ForceCollect runs Collect unconditionally, for explicit trigger_gc calls.
func (m *Manager) ForceCollect() int {
	logrus.Info("memory: forcing garbage collection")
	return m.Collect()
}
