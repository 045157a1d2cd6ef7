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
	"testing"
	"time"

	"github.com/sandboxrt/kerneld/domain"
)

func TestRoundRobinFIFOOrder(t *testing.T) {
	s := NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(5))
	s.Add(domain.Pid(2), domain.Priority(5))

	first, ok := s.ScheduleNext()
	if !ok || first.Pid != 1 {
		t.Fatalf("expected pid 1 first, got %+v", first)
	}
	second, ok := s.ScheduleNext()
	if !ok || second.Pid != 2 {
		t.Fatalf("expected pid 2 second, got %+v", second)
	}
}

func TestPriorityPolicyHighestFirst(t *testing.T) {
	s := NewScheduler(domain.PriorityPolicy, 10*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(1))
	s.Add(domain.Pid(2), domain.Priority(9))

	first, _ := s.ScheduleNext()
	if first.Pid != 2 {
		t.Fatalf("expected the higher-priority pid first, got %d", first.Pid)
	}
}

func TestFairPolicyPrefersLowerVRuntime(t *testing.T) {
	s := NewScheduler(domain.FairPolicy, 10*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(5))
	s.Add(domain.Pid(2), domain.Priority(5))

	first, _ := s.ScheduleNext()
	s.Yield(first.Pid, 5*time.Millisecond)

	second, _ := s.ScheduleNext()
	if second.Pid == first.Pid {
		t.Fatal("expected the other, still-zero-vruntime entry to be scheduled next")
	}
}

func TestNewEntryVRuntimeRenormalizedToMin(t *testing.T) {
	s := NewScheduler(domain.FairPolicy, 10*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(5))
	e1, _ := s.ScheduleNext()
	s.Yield(e1.Pid, 100*time.Millisecond) // pid 1 accrues a lot of vruntime

	e2 := s.Add(domain.Pid(2), domain.Priority(5))
	if e2.VRuntime != e1.VRuntime {
		t.Fatalf("expected a fresh join to be renormalized to the current minimum vruntime (%d), got %d", e1.VRuntime, e2.VRuntime)
	}
	if e2.VRuntime == 0 {
		t.Fatal("expected the accrued vruntime to be nonzero after a 100ms run")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(5))
	s.Remove(domain.Pid(1))
	s.Remove(domain.Pid(1)) // must not panic or double-decrement

	stats := s.Stats()
	if stats.ActiveProcesses != 0 {
		t.Fatalf("expected ActiveProcesses to bottom out at 0, got %d", stats.ActiveProcesses)
	}
}

func TestPreemptMarksStatsAndReschedules(t *testing.T) {
	s := NewScheduler(domain.FairPolicy, 10*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(5))
	e, _ := s.ScheduleNext()
	if err := s.Preempt(e.Pid, 2*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if s.Stats().Preemptions != 1 {
		t.Fatalf("expected 1 preemption recorded, got %d", s.Stats().Preemptions)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("expected no current entry after preemption")
	}
}

func TestExpiredReportsPastDeadline(t *testing.T) {
	s := NewScheduler(domain.RoundRobinPolicy, 5*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(5))
	s.ScheduleNext()

	time.Sleep(10 * time.Millisecond)
	expired := s.Expired(time.Now())
	if len(expired) != 1 || expired[0] != domain.Pid(1) {
		t.Fatalf("expected pid 1 to have crossed its deadline, got %v", expired)
	}
}

func TestSetPolicyCarriesEntriesOver(t *testing.T) {
	s := NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	s.Add(domain.Pid(1), domain.Priority(1))
	s.Add(domain.Pid(2), domain.Priority(9))

	s.SetPolicy(domain.PriorityPolicy)
	first, ok := s.ScheduleNext()
	if !ok || first.Pid != 2 {
		t.Fatalf("expected the new policy to immediately govern dispatch order, got %+v", first)
	}
}

func TestSetQuantumUpdatesStats(t *testing.T) {
	s := NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	s.SetQuantum(25 * time.Millisecond)
	if s.Stats().QuantumMicros != (25 * time.Millisecond).Microseconds() {
		t.Fatal("expected stats to reflect the new quantum")
	}
	if s.GetQuantum() != 25*time.Millisecond {
		t.Fatal("expected GetQuantum to reflect the new quantum")
	}
}
