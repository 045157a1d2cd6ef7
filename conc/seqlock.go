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

package conc

import (
	"runtime"
	"sync/atomic"
)

// Seqlock protects a value that is written rarely and read very often (e.g.
// scheduler stats snapshots, per spec.md section 4.4). Readers retry on a
// concurrent writer instead of blocking; writers never block on readers.
//
// Fields are cache-line aligned in 64-byte-sensitive structs by the caller
// (Seqlock itself only holds the sequence counter), per spec.md section 5's
// false-sharing note.
type Seqlock struct {
	seq atomic.Uint64
}

// Write runs fn while holding the writer side of the lock. Concurrent
// writers are serialized by the caller (a Seqlock has a single writer by
// convention, per spec.md section 5's "Scheduler queues: single writer at a
// time").
func (s *Seqlock) Write(fn func()) {
	s.seq.Add(1) // odd: write in progress
	fn()
	s.seq.Add(1) // even: write complete
}

// Read runs fn, retrying it if a concurrent Write overlapped the call. fn
// must be a pure read of the protected value with no side effects, since it
// may run more than once.
func (s *Seqlock) Read(fn func()) {
	for {
		start := s.seq.Load()
		if start&1 == 1 {
			runtime.Gosched()
			continue
		}
		fn()
		if s.seq.Load() == start {
			return
		}
	}
}
