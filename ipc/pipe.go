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
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/domain"
)

// Pipe is a bounded byte stream shared between one writer and one reader,
// per spec.md section 4.3.
type Pipe struct {
	id       domain.PipeId
	owner    domain.Pid
	capacity uint64

	mu           sync.Mutex
	buf          []byte
	readerClosed bool
	writerClosed bool

	accountant *memoryAccountant
	waiters    conc.WaitQueue
	readKey    string
	writeKey   string
}

func pipeWaitKeys(id domain.PipeId) (read, write string) {
	return fmt.Sprintf("pipe:%d:read", id), fmt.Sprintf("pipe:%d:write", id)
}

// newPipe builds a Pipe of the given capacity, owned by pid, accounted
// against acct.
func newPipe(id domain.PipeId, owner domain.Pid, capacity uint64, acct *memoryAccountant, waiters conc.WaitQueue) *Pipe {
	readKey, writeKey := pipeWaitKeys(id)
	return &Pipe{
		id: id, owner: owner, capacity: capacity,
		accountant: acct, waiters: waiters, readKey: readKey, writeKey: writeKey,
	}
}

// ID returns the pipe's identifier.
func (p *Pipe) ID() domain.PipeId { return p.id }

// Write attempts a non-blocking write; it returns ErrWouldBlock if
// buffered+len(data) would exceed capacity, ErrClosed once the reader end
// is gone (nobody can ever drain the bytes), and ErrCapacityExceeded for
// PipeCapacityMax violations enforced by the caller (the owner of
// config.Limits) before this call.
func (p *Pipe) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeLocked(data)
}

func (p *Pipe) writeLocked(data []byte) (int, error) {
	if p.writerClosed {
		return 0, ErrClosed
	}
	if p.readerClosed {
		return 0, ErrClosed
	}
	if uint64(len(p.buf)+len(data)) > p.capacity {
		return 0, ErrWouldBlock
	}
	if p.accountant != nil {
		if err := p.accountant.reserve(p.owner, uint64(len(data))); err != nil {
			return 0, err
		}
	}
	p.buf = append(p.buf, data...)
	p.waiters.Wake(p.readKey)
	return len(data), nil
}

// WriteWait blocks (timeout zero means forever) until the write fits or the
// deadline elapses, returning ErrTimeout on expiry.
func (p *Pipe) WriteWait(data []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		p.mu.Lock()
		if p.writerClosed || p.readerClosed {
			p.mu.Unlock()
			return 0, ErrClosed
		}
		if uint64(len(p.buf)+len(data)) <= p.capacity {
			n, err := p.writeLocked(data)
			p.mu.Unlock()
			return n, err
		}
		p.mu.Unlock()

		if err := p.waiters.Wait(p.writeKey, deadline); err != nil {
			return 0, ErrTimeout
		}
	}
}

// Read drains up to len(dst) bytes, returning (0, io.EOF) once the writer
// has closed and the buffer is empty.
func (p *Pipe) Read(dst []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readLocked(dst)
}

func (p *Pipe) readLocked(dst []byte) (int, error) {
	if len(p.buf) == 0 {
		if p.writerClosed {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}
	n := copy(dst, p.buf)
	p.buf = p.buf[n:]
	if p.accountant != nil {
		p.accountant.release(p.owner, uint64(n))
	}
	p.waiters.Wake(p.writeKey)
	return n, nil
}

// ReadWait blocks (timeout zero means forever) until data is available, EOF
// is reached, or the deadline elapses.
func (p *Pipe) ReadWait(dst []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		p.mu.Lock()
		if len(p.buf) > 0 || p.writerClosed {
			n, err := p.readLocked(dst)
			p.mu.Unlock()
			return n, err
		}
		p.mu.Unlock()

		if err := p.waiters.Wait(p.readKey, deadline); err != nil {
			return 0, ErrTimeout
		}
	}
}

// CloseWriter closes the write end, letting pending reads drain to EOF.
func (p *Pipe) CloseWriter() {
	p.mu.Lock()
	p.writerClosed = true
	p.mu.Unlock()
	p.waiters.Wake(p.readKey)
}

// CloseReader closes the read end and releases any buffered bytes still
// charged to the owning process.
func (p *Pipe) CloseReader() {
	p.mu.Lock()
	p.readerClosed = true
	if p.accountant != nil && len(p.buf) > 0 {
		p.accountant.release(p.owner, uint64(len(p.buf)))
	}
	p.buf = nil
	p.mu.Unlock()
	p.waiters.Wake(p.writeKey)
}

// Destroyed reports whether both ends are closed, at which point the pipe
// is eligible for removal from its owning registry.
func (p *Pipe) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readerClosed && p.writerClosed
}

// Buffered returns the number of bytes currently queued.
func (p *Pipe) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}
