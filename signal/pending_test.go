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

import "testing"

func TestPendingQueueRealtimeBeforeStandard(t *testing.T) {
	q := newPendingQueue()
	q.push(Signal(10), 0) // standard
	q.push(SIGRTMIN+2, 0) // real-time

	first, ok := q.pop()
	if !ok || !first.IsRealtime() {
		t.Fatalf("expected a real-time signal to pop before a standard one, got %v", first)
	}
}

func TestPendingQueueFIFOWithinSameSignal(t *testing.T) {
	q := newPendingQueue()
	rt := SIGRTMIN + 5
	q.push(rt, 0)
	q.push(rt, 0)

	if n := q.len(); n != 2 {
		t.Fatalf("expected 2 independent real-time entries, got %d", n)
	}
	first, _ := q.pop()
	second, _ := q.pop()
	if first != rt || second != rt {
		t.Fatal("expected both pops to return the same real-time signal number")
	}
}

func TestPendingQueueCoalescesStandardDuplicate(t *testing.T) {
	q := newPendingQueue()
	ok, err := q.push(Signal(5), 0)
	if !ok || err != nil {
		t.Fatal("expected first push to succeed")
	}
	ok, err = q.push(Signal(5), 0)
	if ok || err != nil {
		t.Fatal("expected duplicate standard-signal push to be dropped, not errored")
	}
	if q.len() != 1 {
		t.Fatalf("expected exactly one pending entry, got %d", q.len())
	}
}

func TestPendingQueueRejectsPastMax(t *testing.T) {
	q := newPendingQueue()
	for i := 0; i < 3; i++ {
		ok, err := q.push(SIGRTMIN+Signal(i), 3)
		if !ok || err != nil {
			t.Fatalf("expected push %d under the max to succeed, got ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := q.push(SIGRTMIN+3, 3)
	if ok || err != ErrPendingQueueFull {
		t.Fatalf("expected the 4th push past max=3 to report ErrPendingQueueFull, got ok=%v err=%v", ok, err)
	}
	if q.len() != 3 {
		t.Fatalf("expected the queue to stay at 3 entries, got %d", q.len())
	}
}
