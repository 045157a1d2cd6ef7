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
	"testing"

	"github.com/sandboxrt/kerneld/config"
	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/syscalls"
)

func newTestRing() *Ring {
	return NewRing(ipc.NewRingTable(config.DefaultLimits()))
}

func TestRingCreateSubmitCompleteWaitCompletionRoundTrips(t *testing.T) {
	h := newTestRing()

	created, err := h.Handle(1, call("ipc.ring.create", nil))
	if err != nil {
		t.Fatal(err)
	}
	id := int(created.Data.(uint32))

	submitted, err := h.Handle(1, call("ipc.ring.submit", map[string]any{
		"id": id, "target_pid": 2, "data": []byte("payload"),
	}))
	if err != nil {
		t.Fatal(err)
	}
	seq := submitted.Data.(uint64)

	completed, err := h.Handle(2, call("ipc.ring.complete", map[string]any{
		"id": id, "status": "ok", "result": 7,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if completed.Data.(uint64) != seq {
		t.Fatalf("expected complete to report seq %d, got %v", seq, completed.Data)
	}

	waited, err := h.Handle(1, call("ipc.ring.wait_completion", map[string]any{
		"id": id, "seq": seq,
	}))
	if err != nil {
		t.Fatal(err)
	}
	result := waited.Data.(map[string]any)
	if result["status"] != true || result["result"] != int64(7) {
		t.Fatalf("expected a successful completion with result 7, got %+v", result)
	}
}

func TestRingCompleteWithFailedStatusReportsFalse(t *testing.T) {
	h := newTestRing()
	created, _ := h.Handle(1, call("ipc.ring.create", nil))
	id := int(created.Data.(uint32))

	h.Handle(1, call("ipc.ring.submit", map[string]any{"id": id, "target_pid": 2, "data": []byte("x")}))
	h.Handle(2, call("ipc.ring.complete", map[string]any{"id": id, "status": "error", "result": -1}))

	waited, err := h.Handle(1, call("ipc.ring.wait_completion", map[string]any{"id": id, "seq": uint64(1)}))
	if err != nil {
		t.Fatal(err)
	}
	if waited.Data.(map[string]any)["status"] != false {
		t.Fatal("expected a failed completion to report status=false")
	}
}

func TestRingCompleteWithNothingQueuedReportsError(t *testing.T) {
	h := newTestRing()
	created, _ := h.Handle(1, call("ipc.ring.create", nil))
	id := int(created.Data.(uint32))

	result, err := h.Handle(1, call("ipc.ring.complete", map[string]any{"id": id}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected completing with no queued submission to report an Error result")
	}
}

func TestRingCloseThenGetReportsUnknownRing(t *testing.T) {
	h := newTestRing()
	created, _ := h.Handle(1, call("ipc.ring.create", nil))
	id := int(created.Data.(uint32))

	if _, err := h.Handle(1, call("ipc.ring.close", map[string]any{"id": id})); err != nil {
		t.Fatal(err)
	}
	result, err := h.Handle(1, call("ipc.ring.submit", map[string]any{
		"id": id, "target_pid": 2, "data": []byte("x"),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected submitting against a closed ring to report an Error result")
	}
}
