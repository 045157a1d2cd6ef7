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

package signal

import (
	"fmt"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
)

// StateSink receives the process-state transitions a delivered signal
// produces. The process manager implements this; the signal package never
// reaches into process lifecycle state directly, keeping the two packages
// decoupled by construction injection rather than a shared global.
type StateSink interface {
	SetState(pid domain.Pid, state domain.ProcessState)
}

type processState struct {
	mu       sync.Mutex
	blocked  map[Signal]bool
	pending  *pendingQueue
	dispose  map[Signal]Action
}

func newProcessState() *processState {
	return &processState{
		blocked: make(map[Signal]bool),
		pending: newPendingQueue(),
		dispose: make(map[Signal]Action),
	}
}

// Manager owns every process's signal state, the shared handler registry
// and the wait queue backing wait_for_signal, per spec.md section 4.5.
type Manager struct {
	registry *Registry
	sink     StateSink
	waiters  conc.WaitQueue
	limits   config.Limits

	mu    sync.RWMutex
	procs map[domain.Pid]*processState
}

// NewManager builds a Manager governed by limits (MaxPendingSignals,
// MaxSignalHandlers, per spec.md section 6). sink may be nil, in which
// case delivered Terminate/Stop/Continue outcomes are computed but not
// applied anywhere (useful for unit-testing the subsystem in isolation).
func NewManager(registry *Registry, sink StateSink, limits config.Limits) *Manager {
	return &Manager{
		registry: registry,
		sink:     sink,
		waiters:  conc.NewWaitQueue(conc.DefaultSyncConfig()),
		limits:   limits,
		procs:    make(map[domain.Pid]*processState),
	}
}

func waitKey(pid domain.Pid) string { return fmt.Sprintf("signal:%d", pid) }

// Register installs signal state for a newly created process.
func (m *Manager) Register(pid domain.Pid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[pid] = newProcessState()
}

// Remove drops pid's signal state, e.g. on process termination.
func (m *Manager) Remove(pid domain.Pid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, pid)
}

func (m *Manager) stateFor(pid domain.Pid) (*processState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.procs[pid]
	if !ok {
		return nil, &ErrNoProcess{Pid: pid}
	}
	return st, nil
}

// SetDisposition installs pid's disposition for sig, e.g. `signal(SIGTERM,
// Handler(id))` or `signal(SIGCHLD, Ignore)`. Rejects installing a new
// disposition once pid already holds MaxSignalHandlers of them
// (spec.md section 6); replacing an existing entry for sig is always
// allowed since it does not grow the table.
func (m *Manager) SetDisposition(pid domain.Pid, sig Signal, action Action) error {
	st, err := m.stateFor(pid)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.dispose[sig]; !exists {
		if max := m.limits.MaxSignalHandlers; max > 0 && len(st.dispose) >= max {
			return ErrTooManyHandlers
		}
	}
	st.dispose[sig] = action
	return nil
}

// Block adds sig to pid's blocked set.
func (m *Manager) Block(pid domain.Pid, sig Signal) error {
	st, err := m.stateFor(pid)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.blocked[sig] = true
	st.mu.Unlock()
	return nil
}

// Unblock removes sig from pid's blocked set. Any signal coalesced while
// blocked is already sitting in the pending queue (Send enqueues there
// directly), so unblocking only needs to wake a waiter that might now be
// able to observe it — there is no separate "blocked" queue to drain.
func (m *Manager) Unblock(pid domain.Pid, sig Signal) error {
	st, err := m.stateFor(pid)
	if err != nil {
		return err
	}
	st.mu.Lock()
	delete(st.blocked, sig)
	st.mu.Unlock()
	m.waiters.Wake(waitKey(pid))
	return nil
}

// HasPending reports whether pid has any signal queued for delivery.
func (m *Manager) HasPending(pid domain.Pid) (bool, error) {
	st, err := m.stateFor(pid)
	if err != nil {
		return false, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pending.len() > 0, nil
}

// Send delivers sig to pid: if the signal is blocked it is enqueued (subject
// to the standard-signal coalescing rule) for later processing by the
// delivery hook; otherwise it is dispatched immediately against pid's
// current disposition.
func (m *Manager) Send(pid domain.Pid, sig Signal) error {
	st, err := m.stateFor(pid)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if st.blocked[sig] {
		_, pushErr := st.pending.push(sig, m.limits.MaxPendingSignals)
		st.mu.Unlock()
		return pushErr
	}
	action := st.dispose[sig]
	st.mu.Unlock()

	m.apply(pid, sig, action)
	m.waiters.Wake(waitKey(pid))
	return nil
}

// DeliveryHook is invoked by the scheduler immediately before dispatching
// pid, processing every signal pending at the moment the hook is entered
// (a fixed snapshot count, so signals enqueued mid-processing wait for the
// next hook call rather than being delivered out of turn).
func (m *Manager) DeliveryHook(pid domain.Pid) (DeliveryResult, error) {
	st, err := m.stateFor(pid)
	if err != nil {
		return DeliveryResult{}, err
	}

	st.mu.Lock()
	if st.pending.len() == 0 {
		st.mu.Unlock()
		return DeliveryResult{}, nil
	}
	snapshot := st.pending.len()
	type occurrence struct {
		sig    Signal
		action Action
	}
	occurrences := make([]occurrence, 0, snapshot)
	for i := 0; i < snapshot; i++ {
		sig, ok := st.pending.pop()
		if !ok {
			break
		}
		occurrences = append(occurrences, occurrence{sig: sig, action: st.dispose[sig]})
	}
	st.mu.Unlock()

	var result DeliveryResult
	for _, occ := range occurrences {
		outcome := m.apply(pid, occ.sig, occ.action)
		result.Delivered++
		result.ShouldTerminate = result.ShouldTerminate || outcome.terminate
		result.ShouldStop = result.ShouldStop || outcome.stop
		result.ShouldContinue = result.ShouldContinue || outcome.cont
	}
	return result, nil
}

type outcome struct {
	terminate bool
	stop      bool
	cont      bool
}

// apply evaluates action for (pid, sig) and applies the resulting state
// transition through the sink, per spec.md section 4.5 step 3.
func (m *Manager) apply(pid domain.Pid, sig Signal, action Action) outcome {
	switch action.Kind {
	case Terminate:
		m.setState(pid, domain.Terminated)
		return outcome{terminate: true}
	case Stop:
		m.setState(pid, domain.Waiting)
		return outcome{stop: true}
	case Continue:
		m.setState(pid, domain.Running)
		return outcome{cont: true}
	case Handler:
		m.registry.invoke(action.HandlerID, pid, sig)
		return outcome{}
	case Ignore:
		return outcome{}
	default: // Default: spec.md leaves the concrete default disposition to
		// the handler table seeded by the process manager; an
		// unconfigured Default is treated as Ignore here.
		return outcome{}
	}
}

func (m *Manager) setState(pid domain.Pid, state domain.ProcessState) {
	if m.sink != nil {
		m.sink.SetState(pid, state)
	}
}

// WaitForSignal blocks up to timeout (zero means forever) until any signal
// in set is pending for pid, returning conc.ErrTimeout on expiry.
func (m *Manager) WaitForSignal(pid domain.Pid, set []Signal, timeout time.Duration) error {
	st, err := m.stateFor(pid)
	if err != nil {
		return err
	}
	wanted := make(map[Signal]bool, len(set))
	for _, s := range set {
		wanted[s] = true
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		st.mu.Lock()
		hit := st.pending.contains(wanted)
		st.mu.Unlock()
		if hit {
			return nil
		}
		if err := m.waiters.Wait(waitKey(pid), deadline); err != nil {
			return err
		}
	}
}
