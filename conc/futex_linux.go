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

//go:build linux

package conc

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWaitPrivate = 0 | 128 // FUTEX_WAIT | FUTEX_PRIVATE_FLAG
	futexWakePrivate = 1 | 128 // FUTEX_WAKE | FUTEX_PRIVATE_FLAG
)

// futexWord backs a single WaitQueue key with a real Linux futex word so
// Wait blocks in the kernel instead of the userspace condvar path.
type futexWord struct {
	val int32
}

func futexWait(w *futexWord, expect int32, timeout *unix.Timespec) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&w.val)),
		uintptr(futexWaitPrivate),
		uintptr(expect),
		uintptr(unsafe.Pointer(timeout)),
		0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func futexWake(w *futexWord, n int32) {
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&w.val)),
		uintptr(futexWakePrivate),
		uintptr(n),
		0, 0, 0,
	)
}

// futexWaitQueue is the Linux futex-backed WaitQueue, selected by both
// Strategy: Futex and Strategy: Auto on Linux (see waitqueue.go). Each key's
// futex word is kept alive in words for the lifetime of the queue.
type futexWaitQueue struct {
	mu     sync.Mutex
	words  map[string]*futexWord
}

func newFutexWaitQueue() *futexWaitQueue {
	return &futexWaitQueue{words: make(map[string]*futexWord)}
}

func (q *futexWaitQueue) word(key string) *futexWord {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.words[key]
	if !ok {
		w = &futexWord{}
		q.words[key] = w
	}
	return w
}

func (q *futexWaitQueue) Wait(key string, deadline time.Time) error {
	w := q.word(key)
	gen := atomic.LoadInt32(&w.val)

	var ts *unix.Timespec
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return ErrTimeout
		}
		t := unix.NsecToTimespec(d.Nanoseconds())
		ts = &t
	}

	if err := futexWait(w, gen, ts); err != nil {
		if err == unix.ETIMEDOUT {
			return ErrTimeout
		}
		// EAGAIN means the word already changed; treat as a spurious but
		// valid wake, matching the level-triggered contract of WaitQueue.
	}
	return nil
}

func (q *futexWaitQueue) Wake(key string) {
	w := q.word(key)
	atomic.AddInt32(&w.val, 1)
	futexWake(w, 1<<30)
}
