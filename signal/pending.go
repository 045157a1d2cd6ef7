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

package signal

import "container/heap"

// pendingHeap orders queued signals highest-priority-first: real-time
// signals before standard ones, higher signal numbers before lower, and
// within a tie the older (lower seq) occurrence first.
type pendingHeap []pendingSignal

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	ar, br := a.signal.IsRealtime(), b.signal.IsRealtime()
	if ar != br {
		return ar
	}
	if a.signal != b.signal {
		return a.signal > b.signal
	}
	return a.seq < b.seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x interface{}) { *h = append(*h, x.(pendingSignal)) }

func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// pendingQueue wraps pendingHeap with the coalescing rule of spec.md
// section 4.5: standard signals coalesce (a duplicate enqueue while one is
// already pending is a no-op); real-time signals never coalesce.
type pendingQueue struct {
	heap    pendingHeap
	pending map[Signal]int // standard-signal -> outstanding count (always 0 or 1)
	nextSeq uint64
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{pending: make(map[Signal]int)}
}

// push enqueues sig, honoring the coalescing rule and the max pending
// bound of spec.md section 6 (MaxPendingSignals). It reports whether the
// signal was actually enqueued: false means either a standard-signal
// duplicate was dropped (coalesced) or the queue was already at max and
// the enqueue was rejected outright (the caller distinguishes the two via
// the returned error).
func (q *pendingQueue) push(sig Signal, max int) (bool, error) {
	if !sig.IsRealtime() && q.pending[sig] > 0 {
		return false, nil
	}
	if max > 0 && q.heap.Len() >= max {
		return false, ErrPendingQueueFull
	}
	q.nextSeq++
	heap.Push(&q.heap, pendingSignal{signal: sig, seq: q.nextSeq})
	if !sig.IsRealtime() {
		q.pending[sig] = 1
	}
	return true, nil
}

// pop removes and returns the highest-priority pending signal.
func (q *pendingQueue) pop() (Signal, bool) {
	if q.heap.Len() == 0 {
		return 0, false
	}
	item := heap.Pop(&q.heap).(pendingSignal)
	if !item.signal.IsRealtime() {
		delete(q.pending, item.signal)
	}
	return item.signal, true
}

func (q *pendingQueue) len() int { return q.heap.Len() }

// contains reports whether any signal in set is currently pending, used by
// wait_for_signal to recheck its condition after a wake.
func (q *pendingQueue) contains(set map[Signal]bool) bool {
	for _, p := range q.heap {
		if set[p.signal] {
			return true
		}
	}
	return false
}
