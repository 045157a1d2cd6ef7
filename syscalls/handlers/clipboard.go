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
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/syscalls"
)

// clipboardHistoryLimit bounds how many past copies are retained; the
// oldest entry is evicted once the ring fills.
const clipboardHistoryLimit = 100

// clipboardSubCapacity bounds a subscriber's pending-notification mailbox.
const clipboardSubCapacity = 16

// clipboardEntry is one recorded copy.
type clipboardEntry struct {
	Data []byte    `json:"data"`
	At   time.Time `json:"at"`
	Pid  domain.Pid `json:"pid"`
}

// Clipboard implements the "clipboard." family: a bounded copy history
// fanned out to subscribers over an ipc.PubSub topic, so notification
// delivery reuses the same mailbox-and-drop-policy machinery the ipc
// family already provides rather than a second bespoke implementation.
type Clipboard struct {
	mu      sync.Mutex
	history []clipboardEntry
	topic   *ipc.PubSub
	subs    map[int]bool
}

// NewClipboard builds a Clipboard handler, minting its notification topic
// from queues.
func NewClipboard(queues *ipc.QueueTable) *Clipboard {
	return &Clipboard{topic: queues.CreatePubSub(), subs: make(map[int]bool)}
}

func (*Clipboard) Prefix() string               { return "clipboard." }
func (*Clipboard) Mode() syscalls.ExecutionMode { return syscalls.Fast }

func (h *Clipboard) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "clipboard.copy":
		return h.copy(pid, call.Args)
	case "clipboard.paste":
		return h.paste()
	case "clipboard.history":
		return h.historyOp(call.Args)
	case "clipboard.get_entry":
		return h.getEntry(call.Args)
	case "clipboard.clear":
		return h.clear()
	case "clipboard.subscribe":
		return h.subscribe()
	case "clipboard.unsubscribe":
		return h.unsubscribe(call.Args)
	case "clipboard.stats":
		return h.stats(), nil
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *Clipboard) copy(pid domain.Pid, args map[string]any) (syscalls.Result, error) {
	data, err := argBytes(args, "data")
	if err != nil {
		return syscalls.Result{}, err
	}
	entry := clipboardEntry{Data: data, At: time.Now().UTC(), Pid: pid}

	h.mu.Lock()
	h.history = append(h.history, entry)
	if len(h.history) > clipboardHistoryLimit {
		h.history = h.history[len(h.history)-clipboardHistoryLimit:]
	}
	h.mu.Unlock()

	h.topic.Publish(data)
	return syscalls.SuccessResult(nil), nil
}

func (h *Clipboard) paste() (syscalls.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.history) == 0 {
		return syscalls.ErrorResult("clipboard: empty"), nil
	}
	return syscalls.SuccessResult(h.history[len(h.history)-1]), nil
}

func (h *Clipboard) historyOp(args map[string]any) (syscalls.Result, error) {
	limit := optInt(args, "limit", clipboardHistoryLimit)
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if limit > 0 && len(h.history) > limit {
		start = len(h.history) - limit
	}
	out := make([]clipboardEntry, len(h.history)-start)
	copy(out, h.history[start:])
	return syscalls.SuccessResult(out), nil
}

func (h *Clipboard) getEntry(args map[string]any) (syscalls.Result, error) {
	index, err := argInt(args, "index")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 0 || index >= len(h.history) {
		return syscalls.ErrorResult("clipboard: index out of range"), nil
	}
	return syscalls.SuccessResult(h.history[index]), nil
}

func (h *Clipboard) clear() (syscalls.Result, error) {
	h.mu.Lock()
	h.history = nil
	h.mu.Unlock()
	return syscalls.SuccessResult(nil), nil
}

func (h *Clipboard) subscribe() (syscalls.Result, error) {
	sub := h.topic.Subscribe(clipboardSubCapacity, ipc.DropOldest)
	h.mu.Lock()
	h.subs[sub] = true
	h.mu.Unlock()
	return syscalls.SuccessResult(uint32(sub)), nil
}

func (h *Clipboard) unsubscribe(args map[string]any) (syscalls.Result, error) {
	sub, err := argInt(args, "sub")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.topic.Unsubscribe(sub)
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	return syscalls.SuccessResult(nil), nil
}

func (h *Clipboard) stats() syscalls.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return syscalls.SuccessResult(map[string]any{
		"entries":     len(h.history),
		"subscribers": len(h.subs),
	})
}
