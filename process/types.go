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

// Package process implements the kernel's process manager and resource
// orchestrator: PID allocation, sandbox installation, optional OS-child
// spawning, and the fixed-order termination/cleanup pipeline of spec.md
// section 4.6.
package process

import (
	"errors"
	"os/exec"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ids"
)

// ErrNotFound is returned by lookups naming a pid the manager no longer
// (or never did) track.
var ErrNotFound = errors.New("process: not found")

// ExecutionConfig describes an optional OS child process to spawn when
// creating a virtual process.
type ExecutionConfig struct {
	Command    string
	Args       []string
	Env        []string
	WorkingDir string
}

// Process is one virtual process's lifecycle record. The virtual Pid is
// distinct from OSPid, which is 0 when no OS child was spawned.
type Process struct {
	Pid       domain.Pid
	OSPid     int
	State     domain.ProcessState
	Priority  domain.Priority
	Level     domain.SandboxLevel
	CreatedAt time.Time

	mu     sync.Mutex
	cmd    *exec.Cmd
	handle ids.Handle[domain.Pid]
}

func (p *Process) setState(s domain.ProcessState) {
	p.mu.Lock()
	p.State = s
	p.mu.Unlock()
}

func (p *Process) getState() domain.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.State
}

// CleanupStats aggregates one Terminate call's resource reclamation, per
// spec.md section 4.6.
type CleanupStats struct {
	ResourcesFreed int
	BytesFreed     uint64
	Errors         []error
	Duration       time.Duration
}
