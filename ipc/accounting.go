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
	"sync/atomic"

	"github.com/sandboxrt/kerneld/domain"
)

// memoryAccountant tracks per-process and global IPC memory usage so pipe
// and queue growth can be rejected before it blows past the configured
// limits, per spec.md section 4.3's "memory pressure" note.
type memoryAccountant struct {
	globalLimit uint64
	global      atomic.Uint64

	mu      sync.Mutex
	perProc map[domain.Pid]uint64
}

func newMemoryAccountant(globalLimit uint64) *memoryAccountant {
	return &memoryAccountant{globalLimit: globalLimit, perProc: make(map[domain.Pid]uint64)}
}

// reserve attempts to account for an additional delta bytes charged to pid,
// failing without mutating state if it would exceed the global limit.
func (a *memoryAccountant) reserve(pid domain.Pid, delta uint64) error {
	for {
		cur := a.global.Load()
		next := cur + delta
		if a.globalLimit != 0 && next > a.globalLimit {
			return ErrGlobalMemExceeded
		}
		if a.global.CompareAndSwap(cur, next) {
			break
		}
	}
	a.mu.Lock()
	a.perProc[pid] += delta
	a.mu.Unlock()
	return nil
}

// release gives back delta bytes previously reserved for pid.
func (a *memoryAccountant) release(pid domain.Pid, delta uint64) {
	for {
		cur := a.global.Load()
		next := cur - delta
		if delta > cur {
			next = 0
		}
		if a.global.CompareAndSwap(cur, next) {
			break
		}
	}
	a.mu.Lock()
	if a.perProc[pid] <= delta {
		delete(a.perProc, pid)
	} else {
		a.perProc[pid] -= delta
	}
	a.mu.Unlock()
}

func (a *memoryAccountant) processUsage(pid domain.Pid) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.perProc[pid]
}

func (a *memoryAccountant) globalUsage() uint64 { return a.global.Load() }
