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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/syscalls"
	"github.com/sandboxrt/kerneld/vfs"
)

// watchPollInterval governs how often a watch re-snapshots its tree. The
// watched filesystem may be an in-memory afero.Fs with no inotify
// equivalent, so polling is the only backend that works uniformly across
// both vfs.OsFs and vfs.MemFs.
const watchPollInterval = 500 * time.Millisecond

// watchEventLimit bounds each watch's pending-event buffer.
const watchEventLimit = 256

// WatchEventKind names the four event shapes spec.md's watch family emits.
type WatchEventKind string

const (
	Created  WatchEventKind = "created"
	Modified WatchEventKind = "modified"
	Deleted  WatchEventKind = "deleted"
	Renamed  WatchEventKind = "renamed"
)

// WatchEvent is one change observed under a watch's pattern.
type WatchEvent struct {
	Kind WatchEventKind `json:"kind"`
	Path string         `json:"path,omitempty"`
	From string         `json:"from,omitempty"`
	To   string         `json:"to,omitempty"`
}

type fileSnapshot struct {
	size    int64
	modTime time.Time
}

type watchState struct {
	pattern string
	cancel  chan struct{}

	mu     sync.Mutex
	events []WatchEvent
}

// Watch implements the "watch." family plus a poll_events operation: the
// enumerated family has no request/response way to drain the event stream
// it produces, so poll_events fills that gap the same way process.wait
// turns a background condition into a pollable call.
type Watch struct {
	fs *vfs.Filesystem

	mu      sync.Mutex
	nextID  uint32
	watches map[uint32]*watchState
}

// NewWatch builds a Watch handler over fs.
func NewWatch(fs *vfs.Filesystem) *Watch {
	return &Watch{fs: fs, watches: make(map[uint32]*watchState)}
}

func (*Watch) Prefix() string               { return "watch." }
func (*Watch) Mode() syscalls.ExecutionMode { return syscalls.Blocking }

func (h *Watch) Handle(pid domain.Pid, call syscalls.Syscall) (syscalls.Result, error) {
	switch call.Name {
	case "watch.watch_files":
		return h.watchFiles(call.Args)
	case "watch.unwatch_files":
		return h.unwatchFiles(call.Args)
	case "watch.poll_events":
		return h.pollEvents(call.Args)
	default:
		return syscalls.Result{}, syscalls.ErrUnsupportedSyscall
	}
}

func (h *Watch) watchFiles(args map[string]any) (syscalls.Result, error) {
	pattern, err := argString(args, "pattern")
	if err != nil {
		return syscalls.Result{}, err
	}
	ws := &watchState{pattern: pattern, cancel: make(chan struct{})}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.watches[id] = ws
	h.mu.Unlock()

	go h.poll(ws)

	return syscalls.SuccessResult(id), nil
}

func (h *Watch) unwatchFiles(args map[string]any) (syscalls.Result, error) {
	id, err := argUint64(args, "watch_id")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.mu.Lock()
	ws, ok := h.watches[uint32(id)]
	delete(h.watches, uint32(id))
	h.mu.Unlock()
	if !ok {
		return syscalls.ErrorResult("watch: unknown watch_id"), nil
	}
	close(ws.cancel)
	return syscalls.SuccessResult(nil), nil
}

func (h *Watch) pollEvents(args map[string]any) (syscalls.Result, error) {
	id, err := argUint64(args, "watch_id")
	if err != nil {
		return syscalls.Result{}, err
	}
	h.mu.Lock()
	ws, ok := h.watches[uint32(id)]
	h.mu.Unlock()
	if !ok {
		return syscalls.ErrorResult("watch: unknown watch_id"), nil
	}
	ws.mu.Lock()
	out := ws.events
	ws.events = nil
	ws.mu.Unlock()
	return syscalls.SuccessResult(out), nil
}

// poll re-snapshots files matching ws.pattern every watchPollInterval,
// diffing against the previous snapshot to produce Created/Modified/
// Deleted events. A single disappearance paired with a single same-size
// appearance in the same tick is reported as Renamed rather than as a
// Deleted/Created pair, a best-effort heuristic since afero exposes no
// inode identity to confirm a true rename.
func (h *Watch) poll(ws *watchState) {
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	prev := h.snapshot(ws.pattern)
	for {
		select {
		case <-ws.cancel:
			return
		case <-ticker.C:
			cur := h.snapshot(ws.pattern)
			ws.push(diffSnapshots(prev, cur))
			prev = cur
		}
	}
}

func (h *Watch) snapshot(pattern string) map[string]fileSnapshot {
	snap := make(map[string]fileSnapshot)
	root := filepath.Dir(pattern)
	if root == "." || root == "" {
		root = "/"
	}
	_ = h.fs.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		ok, matchErr := filepath.Match(pattern, p)
		if matchErr != nil || !ok {
			return nil
		}
		snap[p] = fileSnapshot{size: info.Size(), modTime: info.ModTime()}
		return nil
	})
	return snap
}

func diffSnapshots(prev, cur map[string]fileSnapshot) []WatchEvent {
	var removed, added []string
	for p := range prev {
		if _, ok := cur[p]; !ok {
			removed = append(removed, p)
		}
	}
	var events []WatchEvent
	for p, info := range cur {
		old, ok := prev[p]
		if !ok {
			added = append(added, p)
			continue
		}
		if old.size != info.size || !old.modTime.Equal(info.modTime) {
			events = append(events, WatchEvent{Kind: Modified, Path: p})
		}
	}

	if len(removed) == 1 && len(added) == 1 && prev[removed[0]].size == cur[added[0]].size {
		events = append(events, WatchEvent{Kind: Renamed, From: removed[0], To: added[0]})
		return events
	}
	for _, p := range removed {
		events = append(events, WatchEvent{Kind: Deleted, Path: p})
	}
	for _, p := range added {
		events = append(events, WatchEvent{Kind: Created, Path: p})
	}
	return events
}

func (ws *watchState) push(events []WatchEvent) {
	if len(events) == 0 {
		return
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.events = append(ws.events, events...)
	if len(ws.events) > watchEventLimit {
		ws.events = ws.events[len(ws.events)-watchEventLimit:]
	}
}
