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

	"github.com/sandboxrt/kerneld/domain"
	"github.com/sandboxrt/kerneld/ids"
)

// shmPermission is one attached process's access grant.
type shmPermission struct {
	readWrite bool
}

// SharedSegment is a block of bytes attached by multiple processes, each
// with its own read-only or read-write permission, per spec.md section 4.3.
type SharedSegment struct {
	id    domain.ShmId
	owner domain.Pid

	mu          sync.RWMutex
	buf         []byte
	attachments map[domain.Pid]shmPermission
}

// Attach grants pid access to the segment; readWrite selects RW vs
// read-only.
func (s *SharedSegment) Attach(pid domain.Pid, readWrite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[pid] = shmPermission{readWrite: readWrite}
}

// Detach removes pid from the attachment set. It reports whether the
// segment is now empty (and so should be destroyed by the owning table),
// per spec.md's "last detach, including owner, destroys the segment" rule.
func (s *SharedSegment) Detach(pid domain.Pid) (destroyed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attachments, pid)
	return len(s.attachments) == 0
}

// Write requires RW permission for pid.
func (s *SharedSegment) Write(pid domain.Pid, offset int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	perm, ok := s.attachments[pid]
	if !ok {
		return ErrPermissionDenied
	}
	if !perm.readWrite {
		return ErrPermissionDenied
	}
	if offset < 0 || offset+len(data) > len(s.buf) {
		return ErrCapacityExceeded
	}
	copy(s.buf[offset:], data)
	return nil
}

// Read requires any attachment for pid (RW or read-only).
func (s *SharedSegment) Read(pid domain.Pid, offset, size int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.attachments[pid]; !ok {
		return nil, ErrPermissionDenied
	}
	if offset < 0 || offset+size > len(s.buf) {
		return nil, ErrCapacityExceeded
	}
	out := make([]byte, size)
	copy(out, s.buf[offset:offset+size])
	return out, nil
}

// Size returns the segment's byte length.
func (s *SharedSegment) Size() int { return len(s.buf) }

// ID returns the segment's table-assigned identifier.
func (s *SharedSegment) ID() domain.ShmId { return s.id }

// ShmTable owns every live SharedSegment.
type ShmTable struct {
	ids *ids.Allocator[domain.ShmId]

	mu       sync.Mutex
	segments map[domain.ShmId]*SharedSegment
}

// NewShmTable builds an empty ShmTable.
func NewShmTable() *ShmTable {
	return &ShmTable{ids: ids.NewAllocator[domain.ShmId](), segments: make(map[domain.ShmId]*SharedSegment)}
}

// Create allocates a zero-filled segment of size bytes, owned by pid and
// immediately attached to it with RW access.
func (t *ShmTable) Create(pid domain.Pid, size int) *SharedSegment {
	id := t.ids.Alloc().Value
	seg := &SharedSegment{
		id: id, owner: pid, buf: make([]byte, size),
		attachments: map[domain.Pid]shmPermission{pid: {readWrite: true}},
	}
	t.mu.Lock()
	t.segments[id] = seg
	t.mu.Unlock()
	return seg
}

// Get looks up a segment by id.
func (t *ShmTable) Get(id domain.ShmId) (*SharedSegment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seg, ok := t.segments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return seg, nil
}

// Detach detaches pid from id, destroying and removing the segment if that
// was the last attachment.
func (t *ShmTable) Detach(id domain.ShmId, pid domain.Pid) error {
	t.mu.Lock()
	seg, ok := t.segments[id]
	t.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if seg.Detach(pid) {
		t.mu.Lock()
		delete(t.segments, id)
		t.mu.Unlock()
	}
	return nil
}
