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
	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/syscalls"
)

func newTestIPC() *IPC {
	lim := config.DefaultLimits()
	return NewIPC(ipc.NewPipeTable(lim), ipc.NewQueueTable(), ipc.NewShmTable())
}

func TestIPCPipeCreateWriteReadRoundTrips(t *testing.T) {
	h := newTestIPC()

	created, err := h.Handle(1, call("ipc.pipe.create", nil))
	if err != nil {
		t.Fatal(err)
	}
	id := int(created.Data.(uint32))

	if _, err := h.Handle(1, call("ipc.pipe.write", map[string]any{"id": id, "data": "hello"})); err != nil {
		t.Fatal(err)
	}
	result, err := h.Handle(1, call("ipc.pipe.read", map[string]any{"id": id, "size": 5}))
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Data.([]byte)) != "hello" {
		t.Fatalf("expected \"hello\", got %v", result.Data)
	}
}

func TestIPCPipeStatsReportsBuffered(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.pipe.create", nil))
	id := int(created.Data.(uint32))
	h.Handle(1, call("ipc.pipe.write", map[string]any{"id": id, "data": "abc"}))

	result, err := h.Handle(1, call("ipc.pipe.stats", map[string]any{"id": id}))
	if err != nil {
		t.Fatal(err)
	}
	stats := result.Data.(map[string]any)
	if stats["buffered"].(int) != 3 {
		t.Fatalf("expected 3 buffered bytes, got %v", stats["buffered"])
	}
}

func TestIPCPipeCloseThenReadReportsError(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.pipe.create", nil))
	id := int(created.Data.(uint32))

	if _, err := h.Handle(1, call("ipc.pipe.close", map[string]any{"id": id})); err != nil {
		t.Fatal(err)
	}
	result, err := h.Handle(1, call("ipc.pipe.read", map[string]any{"id": id}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected reading from a removed pipe to report an Error result")
	}
}

func TestIPCQueueFIFOSendRecvIsOrdered(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.queue.create", map[string]any{"kind": "fifo"}))
	id := int(created.Data.(uint32))

	h.Handle(1, call("ipc.queue.send", map[string]any{"id": id, "kind": "fifo", "data": "first"}))
	h.Handle(1, call("ipc.queue.send", map[string]any{"id": id, "kind": "fifo", "data": "second"}))

	result, err := h.Handle(1, call("ipc.queue.recv", map[string]any{"id": id, "kind": "fifo"}))
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Data.([]byte)) != "first" {
		t.Fatalf("expected FIFO order to yield \"first\" first, got %v", result.Data)
	}
}

func TestIPCQueuePrioritySendRecvOrdersByPriority(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.queue.create", map[string]any{"kind": "priority"}))
	id := int(created.Data.(uint32))

	h.Handle(1, call("ipc.queue.send", map[string]any{"id": id, "kind": "priority", "data": "low", "priority": 1}))
	h.Handle(1, call("ipc.queue.send", map[string]any{"id": id, "kind": "priority", "data": "high", "priority": 9}))

	result, err := h.Handle(1, call("ipc.queue.recv", map[string]any{"id": id, "kind": "priority"}))
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Data.([]byte)) != "high" {
		t.Fatalf("expected the higher priority message first, got %v", result.Data)
	}
}

func TestIPCQueuePubSubPublishThenReceive(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.queue.create", map[string]any{"kind": "pubsub"}))
	id := int(created.Data.(uint32))
	topic, _ := h.queues.PubSubTopic(domain.QueueId(id))
	sub := topic.Subscribe(16, ipc.DropOldest)

	h.Handle(1, call("ipc.queue.send", map[string]any{"id": id, "kind": "pubsub", "data": "event"}))

	result, err := h.Handle(1, call("ipc.queue.recv", map[string]any{"id": id, "kind": "pubsub", "subscriber": sub}))
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Data.([]byte)) != "event" {
		t.Fatalf("expected \"event\", got %v", result.Data)
	}
}

func TestIPCQueueStatsPubSubReportsError(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.queue.create", map[string]any{"kind": "pubsub"}))
	id := int(created.Data.(uint32))

	result, err := h.Handle(1, call("ipc.queue.stats", map[string]any{"id": id, "kind": "pubsub"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected pubsub stats to report an Error result (no aggregate length)")
	}
}

func TestIPCQueueCloseThenSendReportsUnknownQueue(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.queue.create", map[string]any{"kind": "fifo"}))
	id := int(created.Data.(uint32))

	h.Handle(1, call("ipc.queue.close", map[string]any{"id": id, "kind": "fifo"}))
	result, err := h.Handle(1, call("ipc.queue.send", map[string]any{"id": id, "kind": "fifo", "data": "x"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected sending to a closed queue to report an Error result")
	}
}

func TestIPCShmCreateWriteReadRoundTrips(t *testing.T) {
	h := newTestIPC()
	created, err := h.Handle(1, call("ipc.shm.create", map[string]any{"size": 16}))
	if err != nil {
		t.Fatal(err)
	}
	id := int(created.Data.(uint32))

	if _, err := h.Handle(1, call("ipc.shm.write", map[string]any{
		"id": id, "pid": 1, "offset": 0, "data": "abcd",
	})); err != nil {
		t.Fatal(err)
	}
	result, err := h.Handle(1, call("ipc.shm.read", map[string]any{
		"id": id, "pid": 1, "offset": 0, "size": 4,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Data.([]byte)) != "abcd" {
		t.Fatalf("expected \"abcd\", got %v", result.Data)
	}
}

func TestIPCShmWriteWithoutAttachmentIsDenied(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.shm.create", map[string]any{"size": 16}))
	id := int(created.Data.(uint32))

	result, err := h.Handle(1, call("ipc.shm.write", map[string]any{
		"id": id, "pid": 2, "offset": 0, "data": "x",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected writing from an unattached pid to report an Error result")
	}
}

func TestIPCShmStatsReportsSize(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.shm.create", map[string]any{"size": 32}))
	id := int(created.Data.(uint32))

	result, err := h.Handle(1, call("ipc.shm.stats", map[string]any{"id": id}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Data.(map[string]any)["size"].(int) != 32 {
		t.Fatalf("expected size 32, got %v", result.Data)
	}
}

func TestIPCShmCloseDetachesPid(t *testing.T) {
	h := newTestIPC()
	created, _ := h.Handle(1, call("ipc.shm.create", map[string]any{"size": 16}))
	id := int(created.Data.(uint32))

	if _, err := h.Handle(1, call("ipc.shm.close", map[string]any{"id": id, "pid": 1})); err != nil {
		t.Fatal(err)
	}
	result, err := h.Handle(1, call("ipc.shm.read", map[string]any{"id": id, "pid": 1, "offset": 0, "size": 1}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected reading after the last detach to report an Error result")
	}
}
