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

import "testing"

func TestBufferPoolAcquirePicksSmallestSufficientClass(t *testing.T) {
	p := NewBufferPool([]uint64{4 * 1024, 64 * 1024, 1 << 20})
	buf, err := p.Acquire(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 4*1024 {
		t.Fatalf("expected the 4 KiB class, got %d", len(buf))
	}
}

func TestBufferPoolReleaseReusesBuffer(t *testing.T) {
	p := NewBufferPool([]uint64{4 * 1024, 64 * 1024})
	buf, _ := p.Acquire(10)
	p.Release(buf)

	reused, _ := p.Acquire(10)
	if &reused[0] != &buf[0] {
		t.Fatal("expected Acquire to reuse the released buffer")
	}
}

func TestBufferPoolAcquireRejectsOversizedRequest(t *testing.T) {
	p := NewBufferPool([]uint64{4 * 1024})
	if _, err := p.Acquire(1 << 20); err == nil {
		t.Fatal("expected an error when no class is large enough")
	}
}
