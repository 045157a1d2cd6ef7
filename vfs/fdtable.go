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

package vfs

import (
	"errors"
	"sync"

	"github.com/spf13/afero"

	"github.com/sandboxrt/kerneld/domain"
)

// ErrBadFd is returned when a syscall names an fd the calling pid does not
// hold open.
var ErrBadFd = errors.New("vfs: bad file descriptor")

type openFile struct {
	file afero.File
	path string
}

// FDTable is the kernel's per-process file-descriptor table: open assigns
// the next free fd for a pid, dup/dup2 alias an existing one, close frees
// it. process.Manager's Terminate does not call CloseAll, so a pid's
// entries stay until they are closed or CloseAll is called for that pid.
type FDTable struct {
	mu      sync.Mutex
	byPid   map[domain.Pid]map[domain.Fd]*openFile
	nextFd  map[domain.Pid]domain.Fd
}

// NewFDTable builds an empty FDTable.
func NewFDTable() *FDTable {
	return &FDTable{
		byPid:  make(map[domain.Pid]map[domain.Fd]*openFile),
		nextFd: make(map[domain.Pid]domain.Fd),
	}
}

// Open registers an already-opened afero.File under a freshly allocated fd
// for pid.
func (t *FDTable) Open(pid domain.Pid, path string, file afero.File) domain.Fd {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.byPid[pid] == nil {
		t.byPid[pid] = make(map[domain.Fd]*openFile)
	}
	fd := t.nextFd[pid]
	t.nextFd[pid] = fd + 1
	t.byPid[pid][fd] = &openFile{file: file, path: path}
	return fd
}

// Get resolves an fd to its open file for pid.
func (t *FDTable) Get(pid domain.Pid, fd domain.Fd) (afero.File, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	of, ok := t.byPid[pid][fd]
	if !ok {
		return nil, "", ErrBadFd
	}
	return of.file, of.path, nil
}

// Close releases fd, closing the underlying file.
func (t *FDTable) Close(pid domain.Pid, fd domain.Fd) error {
	t.mu.Lock()
	of, ok := t.byPid[pid][fd]
	if ok {
		delete(t.byPid[pid], fd)
	}
	t.mu.Unlock()

	if !ok {
		return ErrBadFd
	}
	return of.file.Close()
}

// Dup aliases fd onto a freshly allocated descriptor, both sharing the
// same underlying afero.File.
func (t *FDTable) Dup(pid domain.Pid, fd domain.Fd) (domain.Fd, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	of, ok := t.byPid[pid][fd]
	if !ok {
		return 0, ErrBadFd
	}
	newFd := t.nextFd[pid]
	t.nextFd[pid] = newFd + 1
	t.byPid[pid][newFd] = of
	return newFd, nil
}

// Dup2 aliases oldFd onto newFd explicitly, closing whatever newFd
// previously held.
func (t *FDTable) Dup2(pid domain.Pid, oldFd, newFd domain.Fd) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	of, ok := t.byPid[pid][oldFd]
	if !ok {
		return ErrBadFd
	}
	if prev, exists := t.byPid[pid][newFd]; exists && prev != of {
		prev.file.Close()
	}
	t.byPid[pid][newFd] = of
	return nil
}

// CloseAll releases every fd pid still holds, e.g. during process
// termination cleanup. It reports how many descriptors were freed.
func (t *FDTable) CloseAll(pid domain.Pid) int {
	t.mu.Lock()
	open := t.byPid[pid]
	delete(t.byPid, pid)
	delete(t.nextFd, pid)
	t.mu.Unlock()

	for _, of := range open {
		of.file.Close()
	}
	return len(open)
}
