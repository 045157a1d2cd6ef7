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

package process

import (
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ids"
	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/memory"
	"github.com/sandboxrt/kerneld/permission"
	"github.com/sandboxrt/kerneld/scheduler"
	"github.com/sandboxrt/kerneld/signal"
)

// Manager is the kernel's process table: pid allocation, sandbox
// installation, optional OS-child spawning and the fixed five-step
// termination pipeline of spec.md section 4.6. It is the one component
// that knows about every other C4-C8 subsystem, since tearing a process
// down means touching all of them.
type Manager struct {
	mu        sync.RWMutex
	processes map[domain.Pid]*Process

	ids       *ids.Allocator[domain.Pid]
	sched     *scheduler.Scheduler
	perm      *permission.Engine
	mem       *memory.Manager
	pipes     *ipc.PipeTable
	rings     *ipc.RingTable
	sig       *signal.Manager
	reaper    *reaper
	cleanup   *cleanupRegistry
}

// NewManager wires a process Manager on top of the already-constructed
// C4-C8 subsystems, registering each as a CleanupOwner consulted by
// Terminate. The Manager itself implements signal.StateSink, so it builds
// its own signal.Manager around the shared registry rather than accepting
// one premade -- the two packages stay decoupled by constructor injection
// in the direction signal -> process's SetState callback, never the other
// way.
func NewManager(sched *scheduler.Scheduler, perm *permission.Engine, mem *memory.Manager, pipes *ipc.PipeTable, rings *ipc.RingTable, registry *signal.Registry, limits config.Limits) *Manager {
	m := &Manager{
		processes: make(map[domain.Pid]*Process),
		ids:       ids.NewAllocator[domain.Pid](),
		sched:     sched,
		perm:      perm,
		mem:       mem,
		pipes:     pipes,
		rings:     rings,
		cleanup:   newCleanupRegistry(),
	}
	m.sig = signal.NewManager(registry, m, limits)
	m.reaper = newReaper(m.onChildExit)

	m.cleanup.register("memory", func(pid domain.Pid) (int, uint64, error) {
		freed := m.mem.FreeProcessMemory(pid)
		n := 0
		if freed > 0 {
			n = 1
		}
		return n, freed, nil
	})
	m.cleanup.register("pipes", func(pid domain.Pid) (int, uint64, error) {
		return m.pipes.Reap(pid), 0, nil
	})
	m.cleanup.register("rings", func(pid domain.Pid) (int, uint64, error) {
		return m.rings.Reap(pid), 0, nil
	})
	m.cleanup.register("signals", func(pid domain.Pid) (int, uint64, error) {
		m.sig.Remove(pid)
		return 0, 0, nil
	})
	return m
}

// Create allocates a pid, installs its sandbox at level and registers it
// with the scheduler and signal manager. When exec is non-nil an OS child
// is spawned to back the virtual process; its exit is then reaped
// independently of any explicit Terminate call.
func (m *Manager) Create(level domain.SandboxLevel, priority domain.Priority, exec *ExecutionConfig) (*Process, error) {
	handle := m.ids.Alloc()
	pid := handle.Value

	sandbox := permission.NewSandbox(pid, level)
	m.perm.RegisterSandbox(sandbox)
	m.sched.Add(pid, priority)
	m.sig.Register(pid)

	proc := &Process{
		Pid:       pid,
		State:     domain.Ready,
		Priority:  priority,
		Level:     level,
		CreatedAt: time.Now(),
		handle:    handle,
	}

	if exec != nil {
		cmd := osExecCommand(exec)
		if err := cmd.Start(); err != nil {
			m.rollbackCreate(pid, handle)
			return nil, err
		}
		proc.cmd = cmd
		proc.OSPid = cmd.Process.Pid
		m.reaper.track(pid, proc.OSPid)
	}

	m.mu.Lock()
	m.processes[pid] = proc
	m.mu.Unlock()
	return proc, nil
}

func osExecCommand(cfg *ExecutionConfig) *exec.Cmd {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = cfg.Env
	cmd.Dir = cfg.WorkingDir
	return cmd
}

// rollbackCreate undoes the table registrations performed before a spawn
// failure, so a failed Create never leaves a half-registered pid behind.
func (m *Manager) rollbackCreate(pid domain.Pid, handle ids.Handle[domain.Pid]) {
	m.perm.RemoveSandbox(pid)
	m.sched.Remove(pid)
	m.sig.Remove(pid)
	m.ids.Release(handle)
}

// SetState implements signal.StateSink: a delivered Terminate/Stop/Continue
// signal flips pid's recorded state directly. A Terminate signal only
// marks the state here -- it does not itself run the five-step cleanup
// pipeline, since that touches every other subsystem and belongs to an
// explicit Terminate call once something observing the process table
// (the syscalls dispatcher, ordinarily) notices the Terminated state.
func (m *Manager) SetState(pid domain.Pid, state domain.ProcessState) {
	m.mu.RLock()
	proc, ok := m.processes[pid]
	m.mu.RUnlock()
	if !ok {
		return
	}
	proc.setState(state)
}

// Signals returns the signal.Manager this Manager wires every process
// through, for callers (the signal syscall family) that need to act on it
// directly rather than through process lifecycle methods.
func (m *Manager) Signals() *signal.Manager { return m.sig }

// Get returns pid's process record.
func (m *Manager) Get(pid domain.Pid) (*Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.processes[pid]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns every currently tracked process.
func (m *Manager) List() []*Process {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Process, 0, len(m.processes))
	for _, p := range m.processes {
		out = append(out, p)
	}
	return out
}

// onChildExit is the reaper's callback for an OS child that exited on its
// own, without an explicit Terminate call. It drives the pid through the
// identical cleanup pipeline.
func (m *Manager) onChildExit(pid domain.Pid) {
	if _, err := m.Get(pid); err != nil {
		return
	}
	if _, err := m.Terminate(pid); err != nil {
		logrus.WithError(err).WithField("pid", pid).Warn("process: cleanup after child exit failed")
	}
}

// Terminate runs the fixed five-step cleanup pipeline of spec.md section
// 4.6: kill the OS child and drop its resource limits; remove the pid from
// the scheduler (which also clears its preemption deadline); run every
// registered CleanupOwner; and only then mark the process Terminated and
// recycle its pid. After this returns, Get(pid) reports ErrNotFound, per
// the section's invariant that no live component still references pid.
func (m *Manager) Terminate(pid domain.Pid) (CleanupStats, error) {
	start := time.Now()

	m.mu.Lock()
	proc, ok := m.processes[pid]
	if !ok {
		m.mu.Unlock()
		return CleanupStats{}, ErrNotFound
	}
	delete(m.processes, pid)
	m.mu.Unlock()

	// Step 1: OS process kill and resource-limit removal. The actual wait4
	// reap is left to the reaper goroutine (nudged here rather than
	// awaited) so that a concurrent SIGCHLD-triggered reap of the same
	// child can never race against a second Wait4 on an already-reaped
	// pid.
	if proc.OSPid != 0 && proc.cmd != nil && proc.cmd.Process != nil {
		if err := proc.cmd.Process.Kill(); err != nil {
			logrus.WithError(err).WithField("pid", pid).Debug("process: kill of already-exited child")
		}
		m.reaper.requestReap()
	}
	m.perm.RemoveSandbox(pid)

	// Step 2 (and, since our scheduler folds deadline-tracking removal into
	// the same call, step 3): drop pid from the scheduler and its
	// preemption deadline.
	m.sched.Remove(pid)

	// Step 4: run every registered resource owner.
	stats := m.cleanup.run(pid)
	stats.Duration = time.Since(start)

	// Step 5: mark the process Terminated; only then is its pid, now fully
	// dereferenced, eligible for recycling.
	proc.setState(domain.Terminated)
	m.ids.Release(proc.handle)

	return stats, nil
}
