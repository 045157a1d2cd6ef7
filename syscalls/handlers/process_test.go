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

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/memory"
	"github.com/sandboxrt/kerneld/permission"
	"github.com/sandboxrt/kerneld/process"
	"github.com/sandboxrt/kerneld/scheduler"
	"github.com/sandboxrt/kerneld/signal"
	"github.com/sandboxrt/kerneld/syscalls"
)

func newTestProcessHandler(t *testing.T) *Process {
	t.Helper()
	lim := config.DefaultLimits()
	mgr := process.NewManager(
		scheduler.NewScheduler(domain.RoundRobinPolicy, 10*time.Millisecond),
		permission.NewEngine(64, time.Minute, 64),
		memory.NewManager(lim),
		ipc.NewPipeTable(lim),
		ipc.NewRingTable(lim),
		signal.NewRegistry(),
		lim,
	)
	return NewProcess(mgr)
}

func TestProcessSpawnThenInfo(t *testing.T) {
	h := newTestProcessHandler(t)

	spawned, err := h.Handle(1, call("process.spawn", map[string]any{"level": "standard"}))
	if err != nil {
		t.Fatal(err)
	}
	pid := spawned.Data.(map[string]any)["pid"].(uint32)

	info, err := h.Handle(1, call("process.info", map[string]any{"pid": int(pid)}))
	if err != nil {
		t.Fatal(err)
	}
	if info.Data.(map[string]any)["pid"].(uint32) != pid {
		t.Fatal("expected info to report the spawned pid")
	}
}

func TestProcessKillReportsUnknownPid(t *testing.T) {
	h := newTestProcessHandler(t)
	result, err := h.Handle(1, call("process.kill", map[string]any{"pid": 99999}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected killing an unknown pid to report an Error result")
	}
}

func TestProcessListIncludesSpawnedProcesses(t *testing.T) {
	h := newTestProcessHandler(t)
	h.Handle(1, call("process.spawn", nil))
	h.Handle(1, call("process.spawn", nil))

	result, err := h.Handle(1, call("process.list", nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Data.([]map[string]any)) != 2 {
		t.Fatalf("expected 2 processes listed, got %v", result.Data)
	}
}

func TestProcessWaitReturnsAfterKill(t *testing.T) {
	h := newTestProcessHandler(t)
	spawned, _ := h.Handle(1, call("process.spawn", nil))
	pid := int(spawned.Data.(map[string]any)["pid"].(uint32))

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Handle(1, call("process.kill", map[string]any{"pid": pid}))
	}()

	result, err := h.Handle(1, call("process.wait", map[string]any{"pid": pid}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Success {
		t.Fatalf("expected wait to succeed once the pid terminates, got %v", result)
	}
}
