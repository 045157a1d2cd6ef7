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

package ipc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/domain"
)

// OpKind selects a SubmissionEntry's operation, per spec.md section 4.3.
type OpKind int

const (
	OpTransfer OpKind = iota
	OpRead
	OpWrite
)

// SubmissionEntry is one zero-copy ring request.
type SubmissionEntry struct {
	Seq        uint64
	Op         OpKind
	TargetPid  domain.Pid
	BufferAddr domain.Address
	Size       uint64
}

// CompletionStatus tags a CompletionEntry's outcome.
type CompletionStatus int

const (
	StatusOK CompletionStatus = iota
	StatusError
)

// CompletionEntry is one zero-copy ring result.
type CompletionEntry struct {
	Seq    uint64
	Status CompletionStatus
	Result int64
}

const ringWaitKey = "ring:completions"

// Ring is an io_uring-style submission/completion ring. submit never
// overwrites: a full SQ rejects the request. A full CQ drops its oldest
// entry (and counts the drop) rather than rejecting the new completion, so
// a submission can never lose its ability to complete.
type Ring struct {
	sqCapacity int
	cqCapacity int

	mu  sync.Mutex
	sq  []SubmissionEntry
	cq  []CompletionEntry

	droppedCompletions atomic.Uint64
	seq                atomic.Uint64
	waiters            conc.WaitQueue
}

// NextSeq mints the next submission sequence number for this ring, starting
// at 1, for a caller building a SubmissionEntry.
func (r *Ring) NextSeq() uint64 { return r.seq.Add(1) }

// NewRing builds a Ring with the given submission/completion queue depths.
func NewRing(sqCapacity, cqCapacity int) *Ring {
	return &Ring{
		sqCapacity: sqCapacity,
		cqCapacity: cqCapacity,
		waiters:    conc.NewWaitQueue(conc.DefaultSyncConfig()),
	}
}

// Submit enqueues entry to the SQ, failing with ErrSubmissionQueueFull if
// the SQ is already at capacity.
func (r *Ring) Submit(entry SubmissionEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sq) >= r.sqCapacity {
		return ErrSubmissionQueueFull
	}
	r.sq = append(r.sq, entry)
	return nil
}

// NextSubmission pops the oldest queued submission for processing by the
// executor loop, FIFO.
func (r *Ring) NextSubmission() (SubmissionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sq) == 0 {
		return SubmissionEntry{}, false
	}
	e := r.sq[0]
	r.sq = r.sq[1:]
	return e, true
}

// Complete enqueues a completion to the CQ, dropping the oldest entry (and
// incrementing the drop counter) when the CQ is already full.
func (r *Ring) Complete(seq uint64, status CompletionStatus, result int64) {
	r.mu.Lock()
	if len(r.cq) >= r.cqCapacity {
		r.cq = r.cq[1:]
		r.droppedCompletions.Add(1)
	}
	r.cq = append(r.cq, CompletionEntry{Seq: seq, Status: status, Result: result})
	r.mu.Unlock()
	r.waiters.Wake(ringWaitKey)
}

// DroppedCompletions reports how many completions were evicted by CQ
// overflow since the ring was created.
func (r *Ring) DroppedCompletions() uint64 { return r.droppedCompletions.Load() }

// WaitCompletion polls the CQ (timeout zero means forever) until an entry
// matching seq appears, removing only that entry and leaving every other
// completion in place (preserving their relative order) so concurrent
// waiters on other sequence numbers are unaffected.
func (r *Ring) WaitCompletion(seq uint64, timeout time.Duration) (CompletionEntry, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		r.mu.Lock()
		for i, c := range r.cq {
			if c.Seq == seq {
				r.cq = append(r.cq[:i:i], r.cq[i+1:]...)
				r.mu.Unlock()
				return c, nil
			}
		}
		r.mu.Unlock()

		if err := r.waiters.Wait(ringWaitKey, deadline); err != nil {
			return CompletionEntry{}, ErrTimeout
		}
	}
}
