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
	"errors"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/domain"
)

// ErrNotFound is returned when an operation names a pid the scheduler has
// no entry for.
var ErrNotFound = errors.New("scheduler: process not found")

// Scheduler is the kernel's single scheduling authority: one of three
// runtime-switchable ready-queue policies, a preemption controller and a
// seqlock-protected stats snapshot, per spec.md section 4.4. Queue
// mutation is a single-writer critical section (spec.md section 5); Stats
// reads never block a writer.
type Scheduler struct {
	mu       sync.Mutex
	kind     domain.SchedPolicy
	q        policy
	quantum  time.Duration
	current  *Entry
	entries  map[domain.Pid]*Entry
	preempt  *PreemptionController

	seq   conc.Seqlock
	stats Stats
}

// NewScheduler builds a Scheduler starting on the given policy and
// quantum.
func NewScheduler(kind domain.SchedPolicy, quantum time.Duration) *Scheduler {
	s := &Scheduler{
		kind:    kind,
		q:       newPolicy(kind),
		quantum: quantum,
		entries: make(map[domain.Pid]*Entry),
		preempt: NewPreemptionController(),
	}
	s.seq.Write(func() {
		s.stats.Policy = kind
		s.stats.QuantumMicros = quantum.Microseconds()
	})
	return s
}

// Add registers pid as runnable at the given priority. Its initial
// vruntime is renormalized to the current minimum across the running
// entry and the ready queue, per spec.md section 4.4, so a newcomer is
// never instantly starved relative to long-running entries.
func (s *Scheduler) Add(pid domain.Pid, priority domain.Priority) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &Entry{Pid: pid, Priority: priority, VRuntime: s.minVRuntimeLocked(), TimeSliceRemaining: s.quantum}
	s.entries[pid] = e
	s.q.push(e)

	s.seq.Write(func() { s.stats.ActiveProcesses++ })
	return e
}

func (s *Scheduler) minVRuntimeLocked() uint64 {
	min, ok := s.q.minVRuntime()
	if s.current != nil {
		if !ok || s.current.VRuntime < min {
			min, ok = s.current.VRuntime, true
		}
	}
	if !ok {
		return 0
	}
	return min
}

// ScheduleNext pops the next runnable entry according to the active
// policy and marks it current.
func (s *Scheduler) ScheduleNext() (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.q.next()
	if !ok {
		return nil, false
	}
	e.LastScheduled = time.Now()
	s.current = e
	s.preempt.Track(e.Pid, e.LastScheduled.Add(s.quantum))

	s.seq.Write(func() {
		s.stats.TotalScheduled++
		s.stats.ContextSwitches++
	})
	return e, true
}

// Yield reenters the current entry's policy queue after it ran for
// actual, updating its vruntime per spec.md section 4.4's Fair formula
// (applied uniformly so Priority's vruntime tie-break also accumulates
// fairly; RoundRobin ignores vruntime entirely).
func (s *Scheduler) Yield(pid domain.Pid, actual time.Duration) error {
	return s.requeue(pid, actual, false)
}

// Preempt is Yield's counterpart invoked by the preemption controller when
// a running entry's deadline has elapsed.
func (s *Scheduler) Preempt(pid domain.Pid, actual time.Duration) error {
	return s.requeue(pid, actual, true)
}

func (s *Scheduler) requeue(pid domain.Pid, actual time.Duration, preempted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[pid]
	if !ok {
		return ErrNotFound
	}
	if s.kind != domain.RoundRobinPolicy {
		e.VRuntime += uint64(actual.Microseconds() * 100 / int64(e.Priority.Weight()))
	}
	e.TimeSliceRemaining = s.quantum
	if s.current == e {
		s.current = nil
	}
	s.preempt.Remove(pid)
	s.q.push(e)

	if preempted {
		s.seq.Write(func() { s.stats.Preemptions++ })
	}
	return nil
}

// Remove drops pid from the scheduler entirely: the ready queue, the
// current-entry slot and the preemption controller. Idempotent, per
// spec.md section 4.4.
func (s *Scheduler) Remove(pid domain.Pid) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.entries[pid]
	delete(s.entries, pid)
	removedFromQueue := s.q.remove(pid)
	if s.current != nil && s.current.Pid == pid {
		s.current = nil
	}
	s.preempt.Remove(pid)

	if existed || removedFromQueue {
		s.seq.Write(func() {
			if s.stats.ActiveProcesses > 0 {
				s.stats.ActiveProcesses--
			}
		})
	}
}

// SetPolicy switches the active scheduling policy, carrying every
// currently-ready entry over into the new policy's queue. The running
// entry, if any, is not queued here; it joins the new queue on its next
// Yield or Preempt.
func (s *Scheduler) SetPolicy(kind domain.SchedPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := newPolicy(kind)
	for _, e := range s.entries {
		if s.current == e {
			continue
		}
		next.push(e)
	}
	s.q = next
	s.kind = kind
	s.seq.Write(func() { s.stats.Policy = kind })
}

// GetPolicy returns the active scheduling policy.
func (s *Scheduler) GetPolicy() domain.SchedPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// SetQuantum changes the scheduling quantum for future dispatches.
func (s *Scheduler) SetQuantum(d time.Duration) {
	s.mu.Lock()
	s.quantum = d
	s.mu.Unlock()
	s.seq.Write(func() { s.stats.QuantumMicros = d.Microseconds() })
}

// GetQuantum returns the current scheduling quantum.
func (s *Scheduler) GetQuantum() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantum
}

// Expired returns every dispatched pid whose preemption deadline has passed
// as of now; ready entries carry no deadline until ScheduleNext picks them.
func (s *Scheduler) Expired(now time.Time) []domain.Pid {
	return s.preempt.Expired(now)
}

// Current returns the entry currently marked running, if any.
func (s *Scheduler) Current() (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

// Stats returns a point-in-time-per-field snapshot.
func (s *Scheduler) Stats() Stats {
	var snapshot Stats
	s.seq.Read(func() { snapshot = s.stats })
	return snapshot
}
