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

import "sync"

// processAccounting is the per-PID usage tracker backing Manager.ProcessStats.
type processAccounting struct {
	mu              sync.Mutex
	currentBytes    uint64
	peakBytes       uint64
	allocationCount int
}

func (p *processAccounting) addAllocation(size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentBytes += size
	p.allocationCount++
	if p.currentBytes > p.peakBytes {
		p.peakBytes = p.currentBytes
	}
}

func (p *processAccounting) removeAllocation(size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size > p.currentBytes {
		p.currentBytes = 0
	} else {
		p.currentBytes -= size
	}
}

func (p *processAccounting) snapshot() ProcessStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProcessStats{
		CurrentBytes:    p.currentBytes,
		PeakBytes:       p.peakBytes,
		AllocationCount: p.allocationCount,
	}
}
