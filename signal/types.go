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

// Package signal implements the kernel's per-process pending-signal queue,
// masking, handler dispatch and the scheduler delivery hook of spec.md
// section 4.5.
package signal

import (
	"errors"
	"fmt"

	"github.com/sandboxrt/kerneld/domain"
)

// Sentinel errors enforcing the per-process bounds of spec.md section 6
// (MaxPendingSignals, MaxSignalHandlers).
var (
	ErrPendingQueueFull = errors.New("signal: pending queue full")
	ErrTooManyHandlers  = errors.New("signal: too many registered dispositions")
)

// Signal is a signal number. Numbers below SIGRTMIN are "standard" signals
// (coalescing); SIGRTMIN..SIGRTMAX are real-time signals (queued per
// instance).
type Signal int

const (
	SIGRTMIN Signal = 34
	SIGRTMAX Signal = 64
)

// IsRealtime reports whether sig falls in the SIGRTMIN..SIGRTMAX range.
func (s Signal) IsRealtime() bool { return s >= SIGRTMIN && s <= SIGRTMAX }

// ActionKind tags the disposition of a signal, per spec.md section 4.5.
type ActionKind int

const (
	Default ActionKind = iota
	Ignore
	Handler
	Terminate
	Stop
	Continue
)

func (k ActionKind) String() string {
	switch k {
	case Default:
		return "default"
	case Ignore:
		return "ignore"
	case Handler:
		return "handler"
	case Terminate:
		return "terminate"
	case Stop:
		return "stop"
	case Continue:
		return "continue"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// HandlerID identifies a registered callback in a Registry.
type HandlerID uint64

// Action is a signal's disposition: either one of the fixed outcomes, or
// Handler carrying the ID of a registered callback.
type Action struct {
	Kind      ActionKind
	HandlerID HandlerID
}

// DefaultAction, IgnoreAction, TerminateAction, StopAction and
// ContinueAction build the fixed-outcome dispositions.
func DefaultAction() Action   { return Action{Kind: Default} }
func IgnoreAction() Action   { return Action{Kind: Ignore} }
func TerminateAction() Action { return Action{Kind: Terminate} }
func StopAction() Action     { return Action{Kind: Stop} }
func ContinueAction() Action { return Action{Kind: Continue} }

// HandlerAction builds a Handler(id) disposition.
func HandlerAction(id HandlerID) Action { return Action{Kind: Handler, HandlerID: id} }

// DeliveryResult is the delivery hook's aggregate outcome, per spec.md
// section 4.5 step 4.
type DeliveryResult struct {
	Delivered      int
	ShouldTerminate bool
	ShouldStop      bool
	ShouldContinue  bool
}

// pendingSignal is one queued occurrence of a signal.
type pendingSignal struct {
	signal Signal
	seq    uint64
}

// ErrNoProcess is returned by Manager operations addressed to a pid with no
// registered signal state.
type ErrNoProcess struct{ Pid domain.Pid }

func (e *ErrNoProcess) Error() string {
	return fmt.Sprintf("signal: no signal state registered for pid %d", e.Pid)
}
