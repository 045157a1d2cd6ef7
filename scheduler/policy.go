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

package scheduler

import (
	"container/heap"

	"github.com/sandboxrt/kerneld/domain"
)

// policy is the internal ready-queue contract each of the three scheduling
// policies implements; Scheduler wraps whichever is active.
type policy interface {
	push(e *Entry)
	next() (*Entry, bool)
	remove(pid domain.Pid) bool
	len() int
	minVRuntime() (uint64, bool)
}

// roundRobinPolicy is a plain FIFO: each entry is drained for one quantum
// and pushed to the back on yield.
type roundRobinPolicy struct {
	queue []*Entry
}

func newRoundRobinPolicy() *roundRobinPolicy { return &roundRobinPolicy{} }

func (p *roundRobinPolicy) push(e *Entry) { p.queue = append(p.queue, e) }

func (p *roundRobinPolicy) next() (*Entry, bool) {
	if len(p.queue) == 0 {
		return nil, false
	}
	e := p.queue[0]
	p.queue = p.queue[1:]
	return e, true
}

func (p *roundRobinPolicy) remove(pid domain.Pid) bool {
	for i, e := range p.queue {
		if e.Pid == pid {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (p *roundRobinPolicy) len() int { return len(p.queue) }

func (p *roundRobinPolicy) minVRuntime() (uint64, bool) { return 0, false }

// priorityHeap is a max-heap by Priority, ties broken by lower VRuntime to
// avoid starvation between equal priorities.
type priorityHeap []*Entry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].VRuntime < h[j].VRuntime
}
func (h priorityHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x interface{}) { *h = append(*h, x.(*Entry)) }
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

type priorityPolicy struct{ h priorityHeap }

func newPriorityPolicy() *priorityPolicy { return &priorityPolicy{} }

func (p *priorityPolicy) push(e *Entry) { heap.Push(&p.h, e) }

func (p *priorityPolicy) next() (*Entry, bool) {
	if p.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&p.h).(*Entry), true
}

func (p *priorityPolicy) remove(pid domain.Pid) bool {
	for i, e := range p.h {
		if e.Pid == pid {
			heap.Remove(&p.h, i)
			return true
		}
	}
	return false
}

func (p *priorityPolicy) len() int { return p.h.Len() }

func (p *priorityPolicy) minVRuntime() (uint64, bool) {
	if p.h.Len() == 0 {
		return 0, false
	}
	min := p.h[0].VRuntime
	for _, e := range p.h {
		if e.VRuntime < min {
			min = e.VRuntime
		}
	}
	return min, true
}

// fairHeap is a min-heap by VRuntime, ties broken by higher Priority.
type fairHeap []*Entry

func (h fairHeap) Len() int { return len(h) }
func (h fairHeap) Less(i, j int) bool {
	if h[i].VRuntime != h[j].VRuntime {
		return h[i].VRuntime < h[j].VRuntime
	}
	return h[i].Priority > h[j].Priority
}
func (h fairHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *fairHeap) Push(x interface{}) { *h = append(*h, x.(*Entry)) }
func (h *fairHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

type fairPolicy struct{ h fairHeap }

func newFairPolicy() *fairPolicy { return &fairPolicy{} }

func (p *fairPolicy) push(e *Entry) { heap.Push(&p.h, e) }

func (p *fairPolicy) next() (*Entry, bool) {
	if p.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&p.h).(*Entry), true
}

func (p *fairPolicy) remove(pid domain.Pid) bool {
	for i, e := range p.h {
		if e.Pid == pid {
			heap.Remove(&p.h, i)
			return true
		}
	}
	return false
}

func (p *fairPolicy) len() int { return p.h.Len() }

func (p *fairPolicy) minVRuntime() (uint64, bool) {
	if p.h.Len() == 0 {
		return 0, false
	}
	min := p.h[0].VRuntime
	for _, e := range p.h {
		if e.VRuntime < min {
			min = e.VRuntime
		}
	}
	return min, true
}

func newPolicy(kind domain.SchedPolicy) policy {
	switch kind {
	case domain.PriorityPolicy:
		return newPriorityPolicy()
	case domain.FairPolicy:
		return newFairPolicy()
	default:
		return newRoundRobinPolicy()
	}
}
