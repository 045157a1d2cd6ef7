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
	"sync"
	"testing"
	"time"

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	states map[domain.Pid]domain.ProcessState
}

func newRecordingSink() *recordingSink {
	return &recordingSink{states: make(map[domain.Pid]domain.ProcessState)}
}

func (s *recordingSink) SetState(pid domain.Pid, state domain.ProcessState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[pid] = state
}

func (s *recordingSink) get(pid domain.Pid) domain.ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[pid]
}

const (
	sigTerm Signal = 15
	sigStop Signal = 19
	sigCont Signal = 18
	sigUsr1 Signal = 10
)

func TestSendDispatchesImmediatelyWhenUnblocked(t *testing.T) {
	sink := newRecordingSink()
	m := NewManager(NewRegistry(), sink, config.DefaultLimits())
	pid := domain.Pid(1)
	m.Register(pid)
	m.SetDisposition(pid, sigTerm, TerminateAction())

	if err := m.Send(pid, sigTerm); err != nil {
		t.Fatal(err)
	}
	if sink.get(pid) != domain.Terminated {
		t.Fatal("expected immediate dispatch to terminate the process")
	}
}

func TestSendEnqueuesWhenBlocked(t *testing.T) {
	sink := newRecordingSink()
	m := NewManager(NewRegistry(), sink, config.DefaultLimits())
	pid := domain.Pid(2)
	m.Register(pid)
	m.SetDisposition(pid, sigTerm, TerminateAction())
	m.Block(pid, sigTerm)

	if err := m.Send(pid, sigTerm); err != nil {
		t.Fatal(err)
	}
	if sink.get(pid) == domain.Terminated {
		t.Fatal("blocked signal must not dispatch immediately")
	}
	pending, _ := m.HasPending(pid)
	if !pending {
		t.Fatal("expected blocked signal to be queued as pending")
	}
}

func TestStandardSignalsCoalesce(t *testing.T) {
	m := NewManager(NewRegistry(), nil, config.DefaultLimits())
	pid := domain.Pid(3)
	m.Register(pid)
	m.Block(pid, sigUsr1)

	m.Send(pid, sigUsr1)
	m.Send(pid, sigUsr1)
	m.Send(pid, sigUsr1)

	st, _ := m.stateFor(pid)
	st.mu.Lock()
	n := st.pending.len()
	st.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected duplicate standard-signal sends to coalesce to 1 pending entry, got %d", n)
	}
}

func TestRealtimeSignalsDoNotCoalesce(t *testing.T) {
	m := NewManager(NewRegistry(), nil, config.DefaultLimits())
	pid := domain.Pid(4)
	m.Register(pid)
	rt := SIGRTMIN + 1
	m.Block(pid, rt)

	m.Send(pid, rt)
	m.Send(pid, rt)

	st, _ := m.stateFor(pid)
	st.mu.Lock()
	n := st.pending.len()
	st.mu.Unlock()
	if n != 2 {
		t.Fatalf("expected real-time signal sends to queue independently, got %d pending", n)
	}
}

func TestDeliveryHookProcessesPendingAndReportsAggregate(t *testing.T) {
	sink := newRecordingSink()
	m := NewManager(NewRegistry(), sink, config.DefaultLimits())
	pid := domain.Pid(5)
	m.Register(pid)
	m.SetDisposition(pid, sigTerm, TerminateAction())
	m.Block(pid, sigTerm)
	m.Send(pid, sigTerm)

	result, err := m.DeliveryHook(pid)
	if err != nil {
		t.Fatal(err)
	}
	if result.Delivered != 1 || !result.ShouldTerminate {
		t.Fatalf("expected one delivered terminate outcome, got %+v", result)
	}
	if sink.get(pid) != domain.Terminated {
		t.Fatal("expected delivery hook to apply the terminate transition")
	}

	pending, _ := m.HasPending(pid)
	if pending {
		t.Fatal("expected pending queue to be drained after delivery")
	}
}

func TestDeliveryHookNoOpWhenNothingPending(t *testing.T) {
	m := NewManager(NewRegistry(), nil, config.DefaultLimits())
	pid := domain.Pid(6)
	m.Register(pid)

	result, err := m.DeliveryHook(pid)
	if err != nil {
		t.Fatal(err)
	}
	if result.Delivered != 0 {
		t.Fatal("expected no-op when nothing is pending")
	}
}

func TestHandlerActionInvokesRegisteredCallback(t *testing.T) {
	registry := NewRegistry()
	var invoked bool
	var mu sync.Mutex
	id := registry.Register(func(pid domain.Pid, sig Signal) {
		mu.Lock()
		invoked = true
		mu.Unlock()
	})

	m := NewManager(registry, nil, config.DefaultLimits())
	pid := domain.Pid(7)
	m.Register(pid)
	m.SetDisposition(pid, sigUsr1, HandlerAction(id))

	m.Send(pid, sigUsr1)

	mu.Lock()
	defer mu.Unlock()
	if !invoked {
		t.Fatal("expected the registered handler callback to run")
	}
}

func TestStopThenContinueTransitions(t *testing.T) {
	sink := newRecordingSink()
	m := NewManager(NewRegistry(), sink, config.DefaultLimits())
	pid := domain.Pid(8)
	m.Register(pid)
	m.SetDisposition(pid, sigStop, StopAction())
	m.SetDisposition(pid, sigCont, ContinueAction())

	m.Send(pid, sigStop)
	if sink.get(pid) != domain.Waiting {
		t.Fatal("expected Stop to transition to Waiting")
	}
	m.Send(pid, sigCont)
	if sink.get(pid) != domain.Running {
		t.Fatal("expected Continue to transition to Running")
	}
}

func TestWaitForSignalReturnsForAlreadyPendingSignal(t *testing.T) {
	m := NewManager(NewRegistry(), nil, config.DefaultLimits())
	pid := domain.Pid(9)
	m.Register(pid)
	m.Block(pid, sigUsr1)
	m.Send(pid, sigUsr1)

	done := make(chan error, 1)
	go func() {
		done <- m.WaitForSignal(pid, []Signal{sigUsr1}, time.Second)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected WaitForSignal to observe the already-pending signal, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForSignal did not return for an already-pending signal")
	}
}

func TestWaitForSignalTimesOut(t *testing.T) {
	m := NewManager(NewRegistry(), nil, config.DefaultLimits())
	pid := domain.Pid(10)
	m.Register(pid)

	err := m.WaitForSignal(pid, []Signal{sigUsr1}, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout when no matching signal ever arrives")
	}
}

func TestSendUnknownProcessErrors(t *testing.T) {
	m := NewManager(NewRegistry(), nil, config.DefaultLimits())
	if err := m.Send(domain.Pid(999), sigTerm); err == nil {
		t.Fatal("expected an error sending to an unregistered pid")
	}
}

func TestSendRejectsPastMaxPendingSignals(t *testing.T) {
	limits := config.DefaultLimits()
	limits.MaxPendingSignals = 2
	m := NewManager(NewRegistry(), nil, limits)
	pid := domain.Pid(11)
	m.Register(pid)
	m.Block(pid, SIGRTMIN)
	m.Block(pid, SIGRTMIN+1)
	m.Block(pid, SIGRTMIN+2)

	if err := m.Send(pid, SIGRTMIN); err != nil {
		t.Fatal(err)
	}
	if err := m.Send(pid, SIGRTMIN+1); err != nil {
		t.Fatal(err)
	}
	if err := m.Send(pid, SIGRTMIN+2); err != ErrPendingQueueFull {
		t.Fatalf("expected the 3rd send past max=2 to report ErrPendingQueueFull, got %v", err)
	}
}

func TestSetDispositionRejectsPastMaxHandlers(t *testing.T) {
	limits := config.DefaultLimits()
	limits.MaxSignalHandlers = 2
	m := NewManager(NewRegistry(), nil, limits)
	pid := domain.Pid(12)
	m.Register(pid)

	if err := m.SetDisposition(pid, Signal(1), IgnoreAction()); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDisposition(pid, Signal(2), IgnoreAction()); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDisposition(pid, Signal(3), IgnoreAction()); err != ErrTooManyHandlers {
		t.Fatalf("expected the 3rd disposition past max=2 to report ErrTooManyHandlers, got %v", err)
	}
	// replacing an existing entry never counts as growth.
	if err := m.SetDisposition(pid, Signal(1), TerminateAction()); err != nil {
		t.Fatalf("expected replacing an existing disposition to succeed, got %v", err)
	}
}
