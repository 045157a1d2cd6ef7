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
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/permission"
)

// PermissionDeriver translates a syscall into the permission.Request the
// executor should check before dispatch; ok=false means the operation
// carries no capability of its own (e.g. scheduler.stats) and bypasses the
// permission step entirely.
type PermissionDeriver func(call Syscall) (req permission.Request, ok bool)

// MetricsSink observes one completed syscall's outcome; metrics/ implements
// this without syscalls importing metrics, avoiding a cycle.
type MetricsSink interface {
	Observe(name string, kind ResultKind, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(string, ResultKind, time.Duration) {}

// Executor runs submission rate limiting and then the fixed five-step
// pipeline of spec.md section 4.7 over a Registry: permission check,
// execution-mode dispatch, timeout policy, result conversion and metrics.
type Executor struct {
	registry  *Registry
	perm      *permission.Engine
	deriver   PermissionDeriver
	timeouts  config.TimeoutPolicy
	rateLimit config.RateLimit
	metrics   MetricsSink

	limitersMu sync.Mutex
	limiters   map[domain.Pid]*rate.Limiter
}

// NewExecutor builds an Executor. metrics may be nil, in which case
// observations are discarded.
func NewExecutor(registry *Registry, perm *permission.Engine, deriver PermissionDeriver, timeouts config.TimeoutPolicy, rateLimit config.RateLimit, metrics MetricsSink) *Executor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Executor{
		registry:  registry,
		perm:      perm,
		deriver:   deriver,
		timeouts:  timeouts,
		rateLimit: rateLimit,
		metrics:   metrics,
		limiters:  make(map[domain.Pid]*rate.Limiter),
	}
}

// limiterFor returns pid's submission-rate token bucket, creating it on
// first use. rateLimit.PerSecond == 0 disables limiting entirely.
func (e *Executor) limiterFor(pid domain.Pid) *rate.Limiter {
	e.limitersMu.Lock()
	defer e.limitersMu.Unlock()
	lim, ok := e.limiters[pid]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(e.rateLimit.PerSecond), e.rateLimit.Burst)
		e.limiters[pid] = lim
	}
	return lim
}

// Dispatch runs one syscall through the full pipeline.
func (e *Executor) Dispatch(call Syscall) Result {
	start := time.Now()

	if e.rateLimit.PerSecond > 0 && !e.limiterFor(call.Pid).Allow() {
		return e.finish(ErrorResult(ErrRateLimited.Error()), start, call.Name)
	}

	handler, ok := e.registry.Lookup(call.Name)
	if !ok {
		err := unsupportedSyscallError(call.Name)
		logrus.WithField("syscall", call.Name).Error(err)
		return e.finish(ErrorResult(err.Error()), start, call.Name)
	}

	if e.deriver != nil {
		if req, applies := e.deriver(call); applies {
			decision, reason := e.perm.CheckAndAudit(call.Pid, req)
			if decision == permission.Denied {
				return e.finish(DeniedResult(reason), start, call.Name)
			}
		}
	}

	timeout := categoryTimeout(call.Name, e.timeouts)

	var result Result
	switch handler.Mode() {
	case Fast:
		// Pure computation: spec.md section 4.7 defines Fast as inline on
		// the caller, so there is nothing to race against a timeout here.
		res, err := handler.Handle(call.Pid, call)
		result = resultOrError(res, err)
	default:
		result = e.runWithTimeout(handler, call, timeout)
	}

	return e.finish(result, start, call.Name)
}

// runWithTimeout offloads a Blocking or Async handler to its own goroutine
// and races it against the category timeout, per spec.md section 4.7 step
// 4. Go's goroutine model gives Blocking and Async the same concrete
// mechanics here; they differ only in which default timeout bucket
// categoryTimeout selects for them.
func (e *Executor) runWithTimeout(handler Handler, call Syscall, timeout time.Duration) Result {
	done := make(chan Result, 1)
	go func() {
		res, err := handler.Handle(call.Pid, call)
		done <- resultOrError(res, err)
	}()

	if timeout <= 0 {
		return <-done
	}
	select {
	case res := <-done:
		return res
	case <-time.After(timeout):
		return ErrorResult(ErrTimeout.Error())
	}
}

func resultOrError(res Result, err error) Result {
	if err != nil {
		return ErrorResult(err.Error())
	}
	return res
}

func (e *Executor) finish(result Result, start time.Time, name string) Result {
	result.Duration = time.Since(start)
	e.metrics.Observe(name, result.Kind, result.Duration)
	return result
}

// categoryTimeout maps a dotted syscall name to its spec.md section 6
// timeout bucket by family prefix.
func categoryTimeout(name string, p config.TimeoutPolicy) time.Duration {
	switch {
	case strings.HasPrefix(name, "ipc."):
		return p.IPC
	case name == "fs.fsync":
		return p.Fsync
	case strings.HasPrefix(name, "fs."):
		return p.FileIO
	case strings.HasPrefix(name, "network."):
		return p.Network
	case strings.HasPrefix(name, "process.wait"):
		return p.ProcessWait
	default:
		return p.FileIO
	}
}

// Batch runs every call through Dispatch, either sequentially or
// concurrently (errgroup-bounded), preserving input order in the output
// regardless of completion order, per spec.md section 4.7.
func (e *Executor) Batch(calls []Syscall, parallel bool) []Result {
	results := make([]Result, len(calls))
	if !parallel {
		for i, c := range calls {
			results[i] = e.Dispatch(c)
		}
		return results
	}

	var g errgroup.Group
	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			results[i] = e.Dispatch(c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
