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

	"github.com/sandboxrt/kerneld/ipc"
	"github.com/sandboxrt/kerneld/syscalls"
)

func newTestClipboard() *Clipboard {
	return NewClipboard(ipc.NewQueueTable())
}

func TestClipboardCopyThenPasteReturnsLatest(t *testing.T) {
	h := newTestClipboard()
	h.Handle(1, call("clipboard.copy", map[string]any{"data": "first"}))
	h.Handle(1, call("clipboard.copy", map[string]any{"data": "second"}))

	result, err := h.Handle(1, call("clipboard.paste", nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(result.Data.(clipboardEntry).Data) != "second" {
		t.Fatalf("expected paste to return the most recent copy, got %v", result.Data)
	}
}

func TestClipboardPasteOnEmptyHistoryReportsError(t *testing.T) {
	h := newTestClipboard()
	result, err := h.Handle(1, call("clipboard.paste", nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected pasting with no history to report an Error result")
	}
}

func TestClipboardHistoryRespectsLimit(t *testing.T) {
	h := newTestClipboard()
	h.Handle(1, call("clipboard.copy", map[string]any{"data": "a"}))
	h.Handle(1, call("clipboard.copy", map[string]any{"data": "b"}))
	h.Handle(1, call("clipboard.copy", map[string]any{"data": "c"}))

	result, err := h.Handle(1, call("clipboard.history", map[string]any{"limit": 2}))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Data.([]clipboardEntry)) != 2 {
		t.Fatalf("expected 2 entries, got %v", result.Data)
	}
}

func TestClipboardGetEntryOutOfRangeReportsError(t *testing.T) {
	h := newTestClipboard()
	result, err := h.Handle(1, call("clipboard.get_entry", map[string]any{"index": 5}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != syscalls.Error {
		t.Fatal("expected an out-of-range index to report an Error result")
	}
}

func TestClipboardClearEmptiesHistory(t *testing.T) {
	h := newTestClipboard()
	h.Handle(1, call("clipboard.copy", map[string]any{"data": "x"}))
	if _, err := h.Handle(1, call("clipboard.clear", nil)); err != nil {
		t.Fatal(err)
	}
	result, err := h.Handle(1, call("clipboard.stats", nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.Data.(map[string]any)["entries"].(int) != 0 {
		t.Fatalf("expected clear to empty the history, got %v", result.Data)
	}
}

func TestClipboardSubscribeThenUnsubscribeUpdatesStats(t *testing.T) {
	h := newTestClipboard()
	subscribed, err := h.Handle(1, call("clipboard.subscribe", nil))
	if err != nil {
		t.Fatal(err)
	}
	sub := int(subscribed.Data.(uint32))

	stats, _ := h.Handle(1, call("clipboard.stats", nil))
	if stats.Data.(map[string]any)["subscribers"].(int) != 1 {
		t.Fatalf("expected 1 subscriber after subscribe, got %v", stats.Data)
	}

	if _, err := h.Handle(1, call("clipboard.unsubscribe", map[string]any{"sub": sub})); err != nil {
		t.Fatal(err)
	}
	stats, _ = h.Handle(1, call("clipboard.stats", nil))
	if stats.Data.(map[string]any)["subscribers"].(int) != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %v", stats.Data)
	}
}
