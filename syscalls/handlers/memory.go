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
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/memory"
	"github.com/sandboxrt/kerneld/syscalls"
)

// Memory implements the "memory." family over a memory.Manager.
type Memory struct {
	mem *memory.Manager
}

// NewMemory builds a Memory handler over mem.
func NewMemory(mem *memory.Manager) *Memory { return &Memory{mem: mem} }

func (*Memory) Prefix() string               { return "memory." }
func (*Memory) Mode() syscalls.ExecutionMode { return syscalls.Fast }

func (h *Memory) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "memory.get_stats":
		return h.getStats()
	case "memory.get_process_stats":
		return h.getProcessStats(call.Args)
	case "memory.trigger_gc":
		return h.triggerGC(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *Memory) getStats() (syscalls.Result, error) {
	s := h.mem.Stats()
	return syscalls.SuccessResult(map[string]any{
		"total_capacity":    s.TotalCapacity,
		"used_bytes":        s.UsedBytes,
		"allocated_blocks":  s.AllocatedBlocks,
		"deallocated_count": s.DeallocatedCount,
		"free_list_size":    s.FreeListSize,
		"pressure":          int(s.Pressure()),
	}), nil
}

func (h *Memory) getProcessStats(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	s := h.mem.ProcessStats(domain.Pid(target))
	return syscalls.SuccessResult(map[string]any{
		"current_bytes":   s.CurrentBytes,
		"peak_bytes":      s.PeakBytes,
		"allocation_count": s.AllocationCount,
	}), nil
}

// triggerGC runs a forced collection pass; an explicit target_pid argument
// has no narrower effect than a full collection since memory.Manager's GC
// walks the whole block table, not a per-pid subset.
func (h *Memory) triggerGC(args map[string]any) (syscalls.Result, error) {
	_ = optInt(args, "target_pid", 0)
	freed := h.mem.ForceCollect()
	return syscalls.SuccessResult(map[string]any{"blocks_freed": freed}), nil
}
