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
	"time"

	sig "github.com/sandboxrt/kerneld/signal"
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/syscalls"
)

// Signal implements the "signal." family over a signal.Manager.
type Signal struct {
	mgr *sig.Manager
}

// NewSignal builds a Signal handler over mgr.
func NewSignal(mgr *sig.Manager) *Signal { return &Signal{mgr: mgr} }

func (*Signal) Prefix() string               { return "signal." }
func (*Signal) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *Signal) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "signal.send":
		return h.send(call.Args)
	case "signal.register_handler":
		return h.registerHandler(call.Args)
	case "signal.block":
		return h.block(call.Args)
	case "signal.unblock":
		return h.unblock(call.Args)
	case "signal.get_pending":
		return h.getPending(call.Args)
	case "signal.get_stats":
		return h.getStats(call.Args)
	case "signal.wait_for":
		return h.waitFor(call.Args)
	case "signal.get_state":
		return h.getState(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *Signal) send(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	number, err := argInt(args, "signal")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.mgr.Send(domain.Pid(target), sig.Signal(number)); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

// registerHandler installs a disposition for pid/signal; spec.md's wire
// surface names dispositions, not arbitrary callback code (those live only
// server-side via signal.Registry.Register), so this maps the wire's named
// action straight onto signal.Action.
func (h *Signal) registerHandler(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	number, err := argInt(args, "signal")
	if err != nil {
		return syscalls.Result{}, err
	}
	action := parseAction(optString(args, "action", "default"))
	if err := h.mgr.SetDisposition(domain.Pid(target), sig.Signal(number), action); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func parseAction(name string) sig.Action {
	switch name {
	case "ignore":
		return sig.IgnoreAction()
	case "terminate":
		return sig.TerminateAction()
	case "stop":
		return sig.StopAction()
	case "continue":
		return sig.ContinueAction()
	default:
		return sig.DefaultAction()
	}
}

func (h *Signal) block(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	number, err := argInt(args, "signal")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.mgr.Block(domain.Pid(target), sig.Signal(number)); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *Signal) unblock(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	number, err := argInt(args, "signal")
	if err != nil {
		return syscalls.Result{}, err
	}
	if err := h.mgr.Unblock(domain.Pid(target), sig.Signal(number)); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *Signal) getPending(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	pending, err := h.mgr.HasPending(domain.Pid(target))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(pending), nil
}

// getStats has no dedicated signal.Manager aggregate; it reports only
// whether the pid has signals pending, the one per-pid observable the
// manager exposes outside of delivery itself.
func (h *Signal) getStats(args map[string]any) (syscalls.Result, error) {
	return h.getPending(args)
}

func (h *Signal) waitFor(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	rawSignals, _ := args["signals"].([]int)
	signals := make([]sig.Signal, len(rawSignals))
	for i, s := range rawSignals {
		signals[i] = sig.Signal(s)
	}
	timeoutMs := optInt(args, "timeout_ms", 0)
	timeout := time.Duration(timeoutMs) * time.Millisecond

	if err := h.mgr.WaitForSignal(domain.Pid(target), signals, timeout); err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(nil), nil
}

func (h *Signal) getState(args map[string]any) (syscalls.Result, error) {
	target, err := argInt(args, "pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	result, err := h.mgr.DeliveryHook(domain.Pid(target))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(result), nil
}
