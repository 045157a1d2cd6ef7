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

package syscalls

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/permission"
)

func newTestExecutor(deriver PermissionDeriver, metrics MetricsSink) (*Executor, *Registry) {
	registry := NewRegistry()
	perm := permission.NewEngine(64, time.Minute, 64)
	timeouts := config.TimeoutPolicy{
		IPC: 50 * time.Millisecond, FileIO: 50 * time.Millisecond,
		Fsync: 50 * time.Millisecond, Network: 50 * time.Millisecond, ProcessWait: 50 * time.Millisecond,
	}
	rateLimit := config.RateLimit{PerSecond: 0} // unlimited unless a test overrides it
	return NewExecutor(registry, perm, deriver, timeouts, rateLimit, metrics), registry
}

func TestDispatchUnsupportedSyscall(t *testing.T) {
	e, _ := newTestExecutor(nil, nil)

	result := e.Dispatch(Syscall{Name: "bogus.op", Pid: 1})
	if result.Kind != Error {
		t.Fatalf("expected Error, got %v", result.Kind)
	}
	if !strings.Contains(result.Message, "unsupported syscall") {
		t.Fatalf("expected unsupported-syscall message, got %q", result.Message)
	}
}

func TestDispatchFastHandlerBypassesPermissionWhenDeriverDeclines(t *testing.T) {
	e, registry := newTestExecutor(func(Syscall) (permission.Request, bool) {
		return permission.Request{}, false
	}, nil)
	registry.Register(echoHandler("scheduler.", Fast))

	result := e.Dispatch(Syscall{Name: "scheduler.stats", Pid: 1})
	if result.Kind != Success {
		t.Fatalf("expected Success with no sandbox registered, got %v (%s)", result.Kind, result.Message)
	}
}

func TestDispatchDeniesWhenNoSandboxRegistered(t *testing.T) {
	e, registry := newTestExecutor(func(Syscall) (permission.Request, bool) {
		return permission.Request{Action: permission.ReadFile, Resource: permission.ReadFileCap("/etc/passwd")}, true
	}, nil)
	registry.Register(echoHandler("fs.", Fast))

	result := e.Dispatch(Syscall{Name: "fs.read_file", Pid: 42})
	if result.Kind != PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", result.Kind)
	}
}

func TestDispatchBlockingHandlerTimesOut(t *testing.T) {
	e, registry := newTestExecutor(nil, nil)
	registry.Register(&fakeHandler{prefix: "ipc.", mode: Blocking, handle: func(domain.Pid, Syscall) (Result, error) {
		time.Sleep(200 * time.Millisecond)
		return SuccessResult("too slow"), nil
	}})

	result := e.Dispatch(Syscall{Name: "ipc.pipe.read", Pid: 1})
	if result.Kind != Error || !strings.Contains(result.Message, "timed out") {
		t.Fatalf("expected a timeout error, got %v (%s)", result.Kind, result.Message)
	}
}

type recordingMetrics struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingMetrics) Observe(name string, kind ResultKind, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, name)
}

func TestDispatchRecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	e, registry := newTestExecutor(nil, metrics)
	registry.Register(echoHandler("scheduler.", Fast))

	e.Dispatch(Syscall{Name: "scheduler.stats", Pid: 1})

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.seen) != 1 || metrics.seen[0] != "scheduler.stats" {
		t.Fatalf("expected one observation for scheduler.stats, got %v", metrics.seen)
	}
}

func TestBatchSequentialPreservesOrder(t *testing.T) {
	e, registry := newTestExecutor(nil, nil)
	registry.Register(echoHandler("scheduler.", Fast))

	calls := []Syscall{
		{Name: "scheduler.a", Pid: 1},
		{Name: "scheduler.b", Pid: 1},
		{Name: "scheduler.c", Pid: 1},
	}
	results := e.Batch(calls, false)
	for i, want := range []string{"scheduler.a", "scheduler.b", "scheduler.c"} {
		if results[i].Data != want {
			t.Fatalf("index %d: expected %s, got %v", i, want, results[i].Data)
		}
	}
}

func TestDispatchRejectsPastPerPidRateLimit(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoHandler("scheduler.", Fast))
	perm := permission.NewEngine(64, time.Minute, 64)
	e := NewExecutor(registry, perm, nil, config.DefaultTimeoutPolicy(), config.RateLimit{PerSecond: 1, Burst: 2}, nil)

	for i := 0; i < 2; i++ {
		if result := e.Dispatch(Syscall{Name: "scheduler.stats", Pid: 1}); result.Kind != Success {
			t.Fatalf("call %d: expected Success within burst, got %v (%s)", i, result.Kind, result.Message)
		}
	}
	result := e.Dispatch(Syscall{Name: "scheduler.stats", Pid: 1})
	if result.Kind != Error || !strings.Contains(result.Message, "rate limit") {
		t.Fatalf("expected a rate-limit error past the burst, got %v (%s)", result.Kind, result.Message)
	}

	// a different pid has its own, unexhausted bucket.
	if result := e.Dispatch(Syscall{Name: "scheduler.stats", Pid: 2}); result.Kind != Success {
		t.Fatalf("expected a distinct pid's bucket to be independent, got %v (%s)", result.Kind, result.Message)
	}
}

func TestBatchParallelPreservesInputOrderDespiteVaryingLatency(t *testing.T) {
	e, registry := newTestExecutor(nil, nil)
	// Later items finish sooner, to exercise that Batch indexes results by
	// input position rather than completion order.
	registry.Register(&fakeHandler{prefix: "ipc.", mode: Blocking, handle: func(pid domain.Pid, call Syscall) (Result, error) {
		delay := call.Args["delay"].(time.Duration)
		time.Sleep(delay)
		return SuccessResult(call.Name), nil
	}})

	calls := []Syscall{
		{Name: "ipc.slow", Pid: 1, Args: map[string]any{"delay": 30 * time.Millisecond}},
		{Name: "ipc.medium", Pid: 1, Args: map[string]any{"delay": 15 * time.Millisecond}},
		{Name: "ipc.fast", Pid: 1, Args: map[string]any{"delay": 1 * time.Millisecond}},
	}
	results := e.Batch(calls, true)
	for i, want := range []string{"ipc.slow", "ipc.medium", "ipc.fast"} {
		if results[i].Data != want {
			t.Fatalf("index %d: expected %s, got %v", i, want, results[i].Data)
		}
	}
}
