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

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/syscalls"
)

// Ring implements the "ipc.ring." family -- the zero-copy submission/
// completion ring of spec.md section 4.3/§8, kept as its own handler rather
// than folded into IPC since its registry prefix ("ipc.ring.") is a longer,
// more specific match that the radix tree resolves ahead of IPC's "ipc."
// catch-all.
type Ring struct {
	rings *ipc.RingTable
}

// NewRing builds a Ring handler over rings.
func NewRing(rings *ipc.RingTable) *Ring {
	return &Ring{rings: rings}
}

func (*Ring) Prefix() string               { return "ipc.ring." }
func (*Ring) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *Ring) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "ipc.ring.create":
		return h.create(pid)
	case "ipc.ring.submit":
		return h.submit(call.Args)
	case "ipc.ring.complete":
		return h.complete(call.Args)
	case "ipc.ring.wait_completion":
		return h.waitCompletion(call.Args)
	case "ipc.ring.close":
		return h.close(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *Ring) create(pid domain.Pid) (syscalls.Result, error) {
	id, _, _, err := h.rings.Create(pid)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(uint32(id)), nil
}

// submit acquires a buffer from the ring's pool, copies data into it (the
// copy happens once here, at the kernel boundary where the guest's bytes
// first arrive; every subsequent handoff between submission and completion
// is by BufferAddr reference only, which is what makes the ring zero-copy
// past this point) and enqueues the resulting SubmissionEntry.
func (h *Ring) submit(args map[string]any) (syscalls.Result, error) {
	id, err := argInt(args, "id")
	if err != nil {
		return syscalls.Result{}, err
	}
	target, err := argInt(args, "target_pid")
	if err != nil {
		return syscalls.Result{}, err
	}
	data, err := argBytes(args, "data")
	if err != nil {
		return syscalls.Result{}, err
	}
	op := optInt(args, "op", int(ipc.OpTransfer))

	ringID := domain.RingId(id)
	r, _, err := h.rings.Get(ringID)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}

	addr, err := h.rings.AcquireBuffer(ringID, uint64(len(data)))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	buf, _ := h.rings.BufferAt(ringID, addr)
	copy(buf, data)

	seq := r.NextSeq()
	entry := ipc.SubmissionEntry{
		Seq:        seq,
		Op:         ipc.OpKind(op),
		TargetPid:  domain.Pid(target),
		BufferAddr: addr,
		Size:       uint64(len(data)),
	}
	if err := r.Submit(entry); err != nil {
		h.rings.ReleaseBuffer(ringID, addr)
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(seq), nil
}

// complete is the executor-loop side of the ring (spec.md section 4.3):
// whatever is driving submissions (here, the caller) reports the outcome of
// the oldest queued one, releasing its buffer back to the pool.
func (h *Ring) complete(args map[string]any) (syscalls.Result, error) {
	id, err := argInt(args, "id")
	if err != nil {
		return syscalls.Result{}, err
	}
	result := optInt(args, "result", 0)
	failed := optString(args, "status", "ok") != "ok"

	ringID := domain.RingId(id)
	r, _, err := h.rings.Get(ringID)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	entry, ok := r.NextSubmission()
	if !ok {
		return syscalls.ErrorResult("ipc.ring: no queued submission to complete"), nil
	}

	status := ipc.StatusOK
	if failed {
		status = ipc.StatusError
	}
	r.Complete(entry.Seq, status, int64(result))
	h.rings.ReleaseBuffer(ringID, entry.BufferAddr)
	return syscalls.SuccessResult(entry.Seq), nil
}

func (h *Ring) waitCompletion(args map[string]any) (syscalls.Result, error) {
	id, err := argInt(args, "id")
	if err != nil {
		return syscalls.Result{}, err
	}
	seq, err := argUint64(args, "seq")
	if err != nil {
		return syscalls.Result{}, err
	}
	timeoutMs := optInt(args, "timeout_ms", 0)

	r, _, err := h.rings.Get(domain.RingId(id))
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	entry, err := r.WaitCompletion(seq, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		return syscalls.ErrorResult(err.Error()), nil
	}
	return syscalls.SuccessResult(map[string]any{
		"seq":    entry.Seq,
		"status": entry.Status == ipc.StatusOK,
		"result": entry.Result,
	}), nil
}

func (h *Ring) close(args map[string]any) (syscalls.Result, error) {
	id, err := argInt(args, "id")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.rings.Close(domain.RingId(id))
	return syscalls.SuccessResult(nil), nil
}
