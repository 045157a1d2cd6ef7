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
	"sort"
	"sync"
)

// BufferPool is the zero-copy ring's size-classed buffer pool: acquire
// picks the smallest class at or above the requested size; release returns
// the buffer to its class's free deque, per spec.md section 4.3.
type BufferPool struct {
	classes []uint64 // ascending

	mu   sync.Mutex
	free map[uint64][][]byte
}

// NewBufferPool builds a BufferPool with the given size classes (sorted
// ascending internally regardless of input order).
func NewBufferPool(classes []uint64) *BufferPool {
	sorted := append([]uint64(nil), classes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &BufferPool{classes: sorted, free: make(map[uint64][][]byte)}
}

// classFor returns the smallest configured class >= size, or an error if
// size exceeds every class.
func (p *BufferPool) classFor(size uint64) (uint64, error) {
	for _, c := range p.classes {
		if size <= c {
			return c, nil
		}
	}
	return 0, fmt.Errorf("ipc: no buffer class large enough for %d bytes", size)
}

// Acquire returns a buffer of at least size bytes, reused from the free
// deque of its class when available, freshly allocated otherwise.
func (p *BufferPool) Acquire(size uint64) ([]byte, error) {
	class, err := p.classFor(size)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	deque := p.free[class]
	if n := len(deque); n > 0 {
		buf := deque[n-1]
		p.free[class] = deque[:n-1]
		return buf, nil
	}
	return make([]byte, class), nil
}

// Release returns buf to its class's free deque. buf must have been
// obtained from Acquire (its length identifies the class).
func (p *BufferPool) Release(buf []byte) {
	class := uint64(len(buf))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[class] = append(p.free[class], buf)
}

// Classes returns the configured size classes, ascending.
func (p *BufferPool) Classes() []uint64 { return append([]uint64(nil), p.classes...) }
