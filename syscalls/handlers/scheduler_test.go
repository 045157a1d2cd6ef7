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
	"testing"
	"time"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/scheduler"
	"github.com/sandboxrt/kerneld/syscalls"
)

func TestSchedulerScheduleNextReportsRunnableEntry(t *testing.T) {
	sched := scheduler.NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	sched.Add(1, 5)
	h := NewScheduler(sched)

	result, err := h.Handle(1, call("scheduler.schedule_next", nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.Data.(map[string]any)["pid"].(uint32) != 1 {
		t.Fatalf("expected pid 1 scheduled, got %v", result.Data)
	}
}

func TestSchedulerSetPolicyRejectsUnknownName(t *testing.T) {
	sched := scheduler.NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	h := NewScheduler(sched)

	result, err := h.Handle(1, call("scheduler.set_policy", map[string]any{"policy": "bogus"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected an error result for an unknown policy name")
	}
}

func TestSchedulerSetPolicyThenGetPolicyRoundTrips(t *testing.T) {
	sched := scheduler.NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	h := NewScheduler(sched)

	if _, err := h.Handle(1, call("scheduler.set_policy", map[string]any{"policy": "fair"})); err != nil {
		t.Fatal(err)
	}
	result, err := h.Handle(1, call("scheduler.get_policy", nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.Data != domain.FairPolicy.String() {
		t.Fatalf("expected policy fair, got %v", result.Data)
	}
}

func TestSchedulerBoostPriorityClampsAtMax(t *testing.T) {
	sched := scheduler.NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond)
	sched.Add(1, 255)
	h := NewScheduler(sched)
	sched.ScheduleNext() // make pid 1 Current, as adjustPriority reads from Current()

	result, err := h.Handle(1, call("scheduler.boost_priority", map[string]any{"pid": 1}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Data.(uint8) != 255 {
		t.Fatalf("expected priority clamped at 255, got %v", result.Data)
	}
}
