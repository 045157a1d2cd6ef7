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
	"testing"

	"github.com/sandboxrt/kerneld/domain"
)

func TestSharedSegmentWriteRequiresRW(t *testing.T) {
	table := NewShmTable()
	seg := table.Create(domain.Pid(1), 16)
	seg.Attach(domain.Pid(2), false)

	if err := seg.Write(domain.Pid(2), 0, []byte("x")); err != ErrPermissionDenied {
		t.Fatalf("expected read-only attachment to be denied write, got %v", err)
	}
	if err := seg.Write(domain.Pid(1), 0, []byte("x")); err != nil {
		t.Fatalf("expected owner (RW) write to succeed, got %v", err)
	}
}

func TestSharedSegmentReadSeesWrittenBytes(t *testing.T) {
	table := NewShmTable()
	seg := table.Create(domain.Pid(1), 16)
	seg.Write(domain.Pid(1), 0, []byte("hello"))

	data, err := seg.Read(domain.Pid(1), 0, 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("got %q, %v", data, err)
	}
}

func TestSharedSegmentLastDetachDestroysSegment(t *testing.T) {
	table := NewShmTable()
	seg := table.Create(domain.Pid(1), 16)
	seg.Attach(domain.Pid(2), true)

	if err := table.Detach(seg.id, domain.Pid(2)); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Get(seg.id); err != nil {
		t.Fatal("expected segment to survive while the owner is still attached")
	}

	if err := table.Detach(seg.id, domain.Pid(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Get(seg.id); err != ErrNotFound {
		t.Fatal("expected the last detach (the owner's) to destroy the segment")
	}
}

func TestSharedSegmentUnattachedProcessDenied(t *testing.T) {
	table := NewShmTable()
	seg := table.Create(domain.Pid(1), 16)
	if _, err := seg.Read(domain.Pid(99), 0, 1); err != ErrPermissionDenied {
		t.Fatalf("expected an unattached process to be denied, got %v", err)
	}
}
