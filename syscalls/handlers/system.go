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
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/syscalls"
)

// System implements the "time."/"system." families (spec.md groups them as
// one bullet): sleep, uptime, system info, wall-clock time and a simulated
// per-process environment-variable table.
type System struct {
	start time.Time

	mu  sync.Mutex
	env map[domain.Pid]map[string]string
}

// NewSystem builds a System handler; uptime is measured from construction
// time, which cmd/kerneld wires up at process start.
func NewSystem() *System {
	return &System{start: time.Now(), env: make(map[domain.Pid]map[string]string)}
}

func (*System) Prefix() string               { return "system." }
func (*System) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *System) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "system.sleep", "time.sleep":
		return h.sleep(call.Args)
	case "system.get_uptime", "time.get_uptime":
		return syscalls.SuccessResult(time.Since(h.start).Seconds()), nil
	case "system.get_system_info", "time.get_system_info":
		return h.getSystemInfo(), nil
	case "system.get_current_time", "time.get_current_time":
		return syscalls.SuccessResult(time.Now().UTC()), nil
	case "system.get_env", "time.get_env":
		return h.getEnv(pid, call.Args)
	case "system.set_env", "time.set_env":
		return h.setEnv(pid, call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

// TimeAlias re-exposes System under the "time." prefix: spec.md section 6
// lists "time/system" as one grouped bullet and the wire names in practice
// land under either prefix, so both resolve to the same handler instance.
type TimeAlias struct{ *System }

func (TimeAlias) Prefix() string { return "time." }

func (h *System) sleep(args map[string]any) (syscalls.Result, error) {
	ms, err := argInt(args, "ms")
	if err != nil {
		return syscalls.Result{}, err
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return syscalls.SuccessResult(nil), nil
}

func (h *System) getSystemInfo() syscalls.Result {
	return syscalls.SuccessResult(map[string]any{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
		"go_version": runtime.Version(),
		"hostname":   hostname(),
	})
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func (h *System) getEnv(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	key, err := argString(args, "key")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	val, ok := h.env[pid][key]
	if !ok {
		return syscalls.ErrorResult("system: no such env var " + key), nil
	}
	return syscalls.SuccessResult(val), nil
}

func (h *System) setEnv(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	key, err := argString(args, "key")
	if err != nil {
		return syscalls.Result{}, err
	}
	value, err := argString(args, "value")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.env[pid] == nil {
		h.env[pid] = make(map[string]string)
	}
	h.env[pid][key] = value
	return syscalls.SuccessResult(nil), nil
}
