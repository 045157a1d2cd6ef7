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

package handlers

import (
	"sync"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/guard"
	"github.com/sandboxrt/kerneld/memory"
	"github.com/sandboxrt/kerneld/syscalls"
	"github.com/sandboxrt/kerneld/vfs"
)

// mapping is one live mmap region: simulated physical storage lives in the
// memory manager's block table, loaded from and (on msync/munmap) flushed
// back to the backing file.
type mapping struct {
	path    string
	offset  int64
	size    uint64
	shared  bool
	pid     domain.Pid
	guard   *guard.MemoryGuard
}

// Mmap implements the "mmap." family: file-backed regions addressed by a
// domain.MmapId, materialized in memory.Manager's simulated address space,
// per spec.md section 6.
type Mmap struct {
	mem *memory.Manager
	fs  *vfs.Filesystem

	mu      sync.Mutex
	nextID  domain.MmapId
	regions map[domain.MmapId]*mapping
}

// NewMmap builds an Mmap handler over mem and fs.
func NewMmap(mem *memory.Manager, fs *vfs.Filesystem) *Mmap {
	return &Mmap{mem: mem, fs: fs, regions: make(map[domain.MmapId]*mapping)}
}

func (*Mmap) Prefix() string               { return "mmap." }
func (*Mmap) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *Mmap) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "mmap.mmap":
		return h.mmap(pid, call.Args)
	case "mmap.read":
		return h.read(call.Args)
	case "mmap.write":
		return h.write(call.Args)
	case "mmap.msync":
		return h.msync(call.Args)
	case "mmap.munmap":
		return h.munmap(call.Args)
	case "mmap.stats":
		return h.stats(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *Mmap) mmap(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	path, err := argString(args, "path")
	if err != nil {
		return syscalls.Result{}, err
	}
	offset, err := argInt(args, "offset")
	if err != nil {
		return syscalls.Result{}, err
	}
	length, err := argUint64(args, "length")
	if err != nil {
		return syscalls.Result{}, err
	}
	shared := argBool(args, "shared", false)
	_ = optString(args, "prot", "rw") // prot governs permission.Engine's check, not storage itself

	data, err := h.fs.ReadFile(path)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	if int64(offset) > int64(len(data)) {
		return syscalls.ErrorResult("mmap: offset beyond end of file"), nil
	}
	window := data[offset:]
	if uint64(len(window)) > length {
		window = window[:length]
	}

	g, err := h.mem.AllocateGuarded(length, pid)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	if err := h.mem.WriteBytes(g.Address, window); err != nil {
		g.Release()
		return syscalls.ErrorResult(err.Error()), nil
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.regions[id] = &mapping{path: path, offset: int64(offset), size: length, shared: shared, pid: pid, guard: g}
	h.mu.Unlock()

	return syscalls.SuccessResult(map[string]any{
		"id":      uint32(id),
		"address": uint64(g.Address),
	}), nil
}

func (h *Mmap) get(args map[string]any) (*mapping, int, error) {
	id, err := argInt(args, "id")
	if err != nil {
		return nil, 0, err
	}
	h.mu.Lock()
	m, ok := h.regions[domain.MmapId(id)]
	h.mu.Unlock()
	if !ok {
		return nil, id, memory.ErrorInvalidAddress(0)
	}
	return m, id, nil
}

func (h *Mmap) read(args map[string]any) (syscalls.Result, error) {
	m, _, err := h.get(args)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	offset := optInt(args, "offset", 0)
	size, err := argUint64(args, "size")
	if err != nil {
		return syscalls.Result{}, err
	}
	data, err := h.mem.ReadBytes(m.guard.Address+domain.Address(offset), size)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(data), nil
}

func (h *Mmap) write(args map[string]any) (syscalls.Result, error) {
	m, _, err := h.get(args)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	offset := optInt(args, "offset", 0)
	data, err := argBytes(args, "data")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.mem.WriteBytes(m.guard.Address+domain.Address(offset), data); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(len(data)), nil
}

// msync flushes a shared region's current contents back to its backing
// file; private mappings are copy-on-write and never write through.
func (h *Mmap) msync(args map[string]any) (syscalls.Result, error) {
	m, _, err := h.get(args)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	if !m.shared {
		return syscalls.SuccessResult(nil), nil
	}
	data, err := h.mem.ReadBytes(m.guard.Address, m.size)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	full, err := h.fs.ReadFile(m.path)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	if need := m.offset + int64(len(data)); int64(len(full)) < need {
		grown := make([]byte, need)
		copy(grown, full)
		full = grown
	}
	copy(full[m.offset:], data)
	if err := h.fs.WriteFile(m.path, full, 0o644); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *Mmap) munmap(args map[string]any) (syscalls.Result, error) {
	m, id, err := h.get(args)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	if _, err := h.msync(args); err != nil {
		return syscalls.Result{}, err
	}
	m.guard.Release()
	h.mu.Lock()
	delete(h.regions, domain.MmapId(id))
	h.mu.Unlock()
	return syscalls.SuccessResult(nil), nil
}

func (h *Mmap) stats(args map[string]any) (syscalls.Result, error) {
	m, _, err := h.get(args)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(map[string]any{
		"path":   m.path,
		"size":   m.size,
		"shared": m.shared,
	}), nil
}
