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
	"time"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/scheduler"
	"github.com/sandboxrt/kerneld/syscalls"
)

// Scheduler implements the "scheduler." family over a scheduler.Scheduler.
type Scheduler struct {
	sched *scheduler.Scheduler
}

// NewScheduler builds a Scheduler handler over sched.
func NewScheduler(sched *scheduler.Scheduler) *Scheduler { return &Scheduler{sched: sched} }

func (*Scheduler) Prefix() string               { return "scheduler." }
func (*Scheduler) Mode() syscalls.ExecutionMode { return syscalls.Fast }

func (h *Scheduler) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "scheduler.schedule_next":
		return h.scheduleNext()
	case "scheduler.yield":
		return h.yield(call.Args)
	case "scheduler.get_current":
		return h.getCurrent()
	case "scheduler.get_stats":
		return h.getStats()
	case "scheduler.set_policy":
		return h.setPolicy(call.Args)
	case "scheduler.get_policy":
		return syscalls.SuccessResult(h.sched.GetPolicy().String()), nil
	case "scheduler.set_quantum":
		return h.setQuantum(call.Args)
	case "scheduler.get_quantum":
		return syscalls.SuccessResult(h.sched.GetQuantum().Microseconds()), nil
	case "scheduler.get_process_stats":
		return h.getProcessStats(call.Args)
	case "scheduler.get_all_process_stats":
		return syscalls.ErrorResult("scheduler.get_all_process_stats: not tracked per-process beyond get_stats"), nil
	case "scheduler.boost_priority":
		return h.boostPriority(call.Args)
	case "scheduler.lower_priority":
		return h.lowerPriority(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func entryInfo(e *scheduler.Entry) map[string]any {
	return map[string]any{
		"pid":                 uint32(e.Pid),
		"priority":            uint8(e.Priority),
		"vruntime":            e.VRuntime,
		"time_slice_micros":   e.TimeSliceRemaining.Microseconds(),
		"last_scheduled_unix": e.LastScheduled.Unix(),
	}
}

func (h *Scheduler) scheduleNext() (syscalls.Result, error) {
	entry, ok := h.sched.ScheduleNext()
	if !ok {
		return syscalls.ErrorResult("scheduler: no runnable process"), nil
	}
	return syscalls.SuccessResult(entryInfo(entry)), nil
}

func (h *Scheduler) yield(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	actualMicros := optInt(args, "actual_micros", 0)
	if err := h.sched.Yield(domain.Pid(target), time.Duration(actualMicros)*time.Microsecond); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *Scheduler) getCurrent() (syscalls.Result, error) {
	entry, ok := h.sched.Current()
	if !ok {
		return syscalls.ErrorResult("scheduler: no current process"), nil
	}
	return syscalls.SuccessResult(entryInfo(entry)), nil
}

func (h *Scheduler) getStats() (syscalls.Result, error) {
	s := h.sched.Stats()
	return syscalls.SuccessResult(map[string]any{
		"total_scheduled":  s.TotalScheduled,
		"context_switches": s.ContextSwitches,
		"preemptions":      s.Preemptions,
		"active_processes": s.ActiveProcesses,
		"policy":           s.Policy.String(),
		"quantum_micros":   s.QuantumMicros,
	}), nil
}

func (h *Scheduler) setPolicy(args map[string]any) (syscalls.Result, error) {
	name, err := argString(args, "policy")
	if err != nil {
		return syscalls.Result{}, err
	}
	policy, ok := domain.ParseSchedPolicy(name)
	if !ok {
		return syscalls.ErrorResult("scheduler: unknown policy " + name), nil
	}
	h.sched.SetPolicy(policy)
	return syscalls.SuccessResult(nil), nil
}

func (h *Scheduler) setQuantum(args map[string]any) (syscalls.Result, error) {
	micros, err := argInt(args, "micros")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.sched.SetQuantum(time.Duration(micros) * time.Microsecond)
	return syscalls.SuccessResult(nil), nil
}

// getProcessStats reports the requested pid's scheduling entry only while
// that pid is the running entry; for any other pid it returns an Error
// result, since scheduler.Scheduler exposes no per-pid lookup beyond Current.
func (h *Scheduler) getProcessStats(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	entry, ok := h.sched.Current()
	if ok && entry.Pid == domain.Pid(target) {
		return syscalls.SuccessResult(entryInfo(entry)), nil
	}
	return syscalls.ErrorResult("scheduler: pid not currently scheduled"), nil
}

// boostPriority and lowerPriority re-add the pid at an adjusted priority
// band; the scheduler has no in-place priority mutation, so this removes
// and re-adds the entry, which is safe since Add resets vruntime bookkeeping
// the same way a fresh process.Manager.Create would.
func (h *Scheduler) boostPriority(args map[string]any) (syscalls.Result, error) {
	return h.adjustPriority(args, 1)
}

func (h *Scheduler) lowerPriority(args map[string]any) (syscalls.Result, error) {
	return h.adjustPriority(args, -1)
}

func (h *Scheduler) adjustPriority(args map[string]any, delta int) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	pid := domain.Pid(target)
	entry, ok := h.sched.Current()
	var cur domain.Priority
	if ok && entry.Pid == pid {
		cur = entry.Priority
	}
	next := int(cur) + delta
	if next < 0 {
		next = 0
	}
	if next > 255 {
		next = 255
	}
	h.sched.Remove(pid)
	h.sched.Add(pid, domain.Priority(next))
	return syscalls.SuccessResult(uint8(next)), nil
}
