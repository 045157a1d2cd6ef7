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

func TestRingTableCreateAndGet(t *testing.T) {
	limits := testLimits()
	table := NewRingTable(limits)

	id, ring, pool, err := table.Create(domain.Pid(1))
	if err != nil {
		t.Fatal(err)
	}
	if ring == nil || pool == nil {
		t.Fatal("expected a non-nil ring and buffer pool")
	}

	gotRing, gotPool, err := table.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if gotRing != ring || gotPool != pool {
		t.Fatal("expected Get to return the same ring/pool created by Create")
	}
}

func TestRingTableEnforcesPerProcessLimit(t *testing.T) {
	limits := testLimits()
	limits.RingsPerProcess = 1
	table := NewRingTable(limits)

	if _, _, _, err := table.Create(domain.Pid(1)); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := table.Create(domain.Pid(1)); err != ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded past the per-process limit, got %v", err)
	}
	// a different pid has its own independent count.
	if _, _, _, err := table.Create(domain.Pid(2)); err != nil {
		t.Fatalf("expected a distinct pid to get its own ring budget, got %v", err)
	}
}

func TestRingTableAcquireBufferWriteAndRelease(t *testing.T) {
	limits := testLimits()
	table := NewRingTable(limits)
	id, _, _, err := table.Create(domain.Pid(1))
	if err != nil {
		t.Fatal(err)
	}

	addr, err := table.AcquireBuffer(id, 10)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := table.BufferAt(id, addr)
	if err != nil {
		t.Fatal(err)
	}
	copy(buf, []byte("hello"))

	buf2, err := table.BufferAt(id, addr)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf2[:5]) != "hello" {
		t.Fatalf("expected the same backing buffer to be returned, got %q", buf2[:5])
	}

	if err := table.ReleaseBuffer(id, addr); err != nil {
		t.Fatal(err)
	}
	if _, err := table.BufferAt(id, addr); err != ErrNotFound {
		t.Fatalf("expected a released address to no longer resolve, got %v", err)
	}
}

func TestRingTableReapRemovesOwnedRings(t *testing.T) {
	limits := testLimits()
	table := NewRingTable(limits)
	id1, _, _, _ := table.Create(domain.Pid(1))
	id2, _, _, _ := table.Create(domain.Pid(1))
	other, _, _, _ := table.Create(domain.Pid(2))

	n := table.Reap(domain.Pid(1))
	if n != 2 {
		t.Fatalf("expected 2 rings reaped, got %d", n)
	}
	if _, _, err := table.Get(id1); err != ErrNotFound {
		t.Fatal("expected reaped ring id1 to be gone")
	}
	if _, _, err := table.Get(id2); err != ErrNotFound {
		t.Fatal("expected reaped ring id2 to be gone")
	}
	if _, _, err := table.Get(other); err != nil {
		t.Fatal("expected the other pid's ring to survive")
	}
}
