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
	"runtime"
	"sync"
	"sync/atomic"
)

// combiningThreshold is the contending-core count at or above which a hot
// counter switches to flat-combining, per spec.md section 5.
const combiningThreshold = 8

// combineRequest is one goroutine's pending delta, published under
// HotCounter.mu and resolved by whichever goroutine becomes the combiner
// for the current batch.
type combineRequest struct {
	delta  int64
	result chan int64
}

// HotCounter is a counter that uses a plain atomic add below the
// documented contention threshold and flat-combining above it: concurrent
// Add callers publish their delta into a shared batch, one of them becomes
// the combiner, applies the batch's summed deltas in a single atomic add,
// and wakes the rest with their resulting value. The threshold is evaluated once at
// construction from GOMAXPROCS, mirroring the "at >=8 contending cores"
// rule, since this runtime's counters do not migrate between machines.
type HotCounter struct {
	value    atomic.Int64
	combined bool

	mu      sync.Mutex
	batch   []*combineRequest
}

// NewHotCounter builds a HotCounter, selecting flat-combining when the
// process has combiningThreshold or more usable CPUs.
func NewHotCounter() *HotCounter {
	return &HotCounter{combined: runtime.GOMAXPROCS(0) >= combiningThreshold}
}

// Add adds delta and returns the new value.
func (c *HotCounter) Add(delta int64) int64 {
	if !c.combined {
		return c.value.Add(delta)
	}
	return c.addCombined(delta)
}

func (c *HotCounter) addCombined(delta int64) int64 {
	req := &combineRequest{delta: delta, result: make(chan int64, 1)}

	c.mu.Lock()
	c.batch = append(c.batch, req)
	isCombiner := len(c.batch) == 1
	c.mu.Unlock()

	if !isCombiner {
		return <-req.result
	}

	// Give concurrent callers a brief window to join this batch before it
	// is drained, which is what makes combining worthwhile under load.
	runtime.Gosched()

	c.mu.Lock()
	batch := c.batch
	c.batch = nil
	c.mu.Unlock()

	var sum int64
	for _, r := range batch {
		sum += r.delta
	}
	cur := c.value.Add(sum)

	// Resolve every waiter with the running total as of its own delta,
	// applied in batch order so Add's return value still reflects "the
	// value immediately after this call" for each caller.
	running := cur
	for i := len(batch) - 1; i >= 0; i-- {
		batch[i].result <- running
		running -= batch[i].delta
	}

	return <-req.result
}

// Load returns the current value.
func (c *HotCounter) Load() int64 {
	return c.value.Load()
}
