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
	"fmt"
	"time"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/process"
	"github.com/sandboxrt/kerneld/syscalls"
)

// Process implements the "process." family over a process.Manager.
type Process struct {
	mgr *process.Manager
}

// NewProcess builds a Process handler over mgr.
func NewProcess(mgr *process.Manager) *Process { return &Process{mgr: mgr} }

func (*Process) Prefix() string               { return "process." }
func (*Process) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *Process) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "process.spawn":
		return h.spawn(call.Args)
	case "process.kill":
		return h.kill(call.Args)
	case "process.info":
		return h.info(call.Args)
	case "process.list":
		return h.list()
	case "process.set_priority":
		return h.setPriority(call.Args)
	case "process.get_state":
		return h.getState(call.Args)
	case "process.get_stats":
		return h.getStats(call.Args)
	case "process.wait":
		return h.wait(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func parseSandboxLevel(args map[string]any) domain.SandboxLevel {
	switch optString(args, "level", "standard") {
	case "minimal":
		return domain.Minimal
	case "privileged":
		return domain.Privileged
	default:
		return domain.Standard
	}
}

func (h *Process) spawn(args map[string]any) (syscalls.Result, error) {
	level := parseSandboxLevel(args)
	priority := domain.Priority(optInt(args, "priority", 0))

	var cfg *process.ExecutionConfig
	if command, err := argString(args, "command"); err == nil {
		cmdArgs, _ := args["args"].([]string)
		cfg = &process.ExecutionConfig{
			Command:    command,
			Args:       cmdArgs,
			WorkingDir: optString(args, "working_dir", ""),
		}
	}

	proc, err := h.mgr.Create(level, priority, cfg)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(map[string]any{
		"pid":    uint32(proc.Pid),
		"os_pid": proc.OSPid,
	}), nil
}

func (h *Process) kill(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	stats, err := h.mgr.Terminate(domain.Pid(target))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(map[string]any{
		"resources_freed": stats.ResourcesFreed,
		"bytes_freed":     stats.BytesFreed,
	}), nil
}

func (h *Process) info(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	proc, err := h.mgr.Get(domain.Pid(target))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(processInfo(proc)), nil
}

func (h *Process) list() (syscalls.Result, error) {
	procs := h.mgr.List()
	infos := make([]map[string]any, len(procs))
	for i, p := range procs {
		infos[i] = processInfo(p)
	}
	return syscalls.SuccessResult(infos), nil
}

func processInfo(p *process.Process) map[string]any {
	return map[string]any{
		"pid":        uint32(p.Pid),
		"os_pid":     p.OSPid,
		"state":      p.State.String(),
		"priority":   uint8(p.Priority),
		"level":      p.Level.String(),
		"created_at": p.CreatedAt,
	}
}

// setPriority has no direct process.Manager setter since priority is
// scheduler-owned bookkeeping; it validates that the pid exists and then
// returns an Error result pointing the caller at scheduler.set_priority.
func (h *Process) setPriority(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	if _, err := h.mgr.Get(domain.Pid(target)); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.ErrorResult("process.set_priority: use scheduler.set_priority"), nil
}

func (h *Process) getState(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	proc, err := h.mgr.Get(domain.Pid(target))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(proc.State.String()), nil
}

func (h *Process) getStats(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	proc, err := h.mgr.Get(domain.Pid(target))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(map[string]any{
		"state":   proc.State.String(),
		"uptime":  time.Since(proc.CreatedAt).Seconds(),
	}), nil
}

// wait blocks (up to the executor's process-wait category timeout) polling
// for the target pid to leave the table, i.e. fully terminate.
func (h *Process) wait(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	pid := domain.Pid(target)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := h.mgr.Get(pid); err != nil {
			return syscalls.SuccessResult(fmt.Sprintf("pid %d terminated", target)), nil
		}
	}
	return syscalls.ErrorResult("wait: unreachable"), nil
}
