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

package memory

import (
	"sync"

	"github.com/sandboxrt/kerneld/conc"
	"github.com/sandboxrt/kerneld/domain"
)

// cowBlock is a copy-on-write-by-convention backing buffer for one
// allocated block: the first write allocates the backing slice, and every
// write after that mutates it in place under its own mutex, so unrelated
// blocks never contend. A block that has never been written reads back as
// zeros without ever materializing a buffer.
type cowBlock struct {
	mu     sync.Mutex
	buffer []byte
}

func (b *cowBlock) write(offset int, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	need := offset + len(data)
	if len(b.buffer) < need {
		grown := make([]byte, need)
		copy(grown, b.buffer)
		b.buffer = grown
	}
	copy(b.buffer[offset:need], data)
}

func (b *cowBlock) read(offset, size int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, size)
	if offset < len(b.buffer) {
		copy(out, b.buffer[offset:])
	}
	return out
}

// Storage simulates the kernel's physical memory for shared-memory
// segments and mmap regions: reads and writes are addressed by the same
// Address space the allocator hands out, always resolved against the
// enclosing allocated block.
type Storage struct {
	blocks *conc.StripedMap[domain.Address, *cowBlock]
}

func newStorage() *Storage {
	return &Storage{
		blocks: conc.NewStripedMap[domain.Address, *cowBlock](conc.HashUint64[domain.Address]),
	}
}

// Write stores data at address, which must fall within a block returned by
// resolve. Returns ErrInvalidAddress if address isn't covered by block, or
// if data would overrun it.
func (s *Storage) Write(address domain.Address, data []byte, block *Block) error {
	if address < block.Address || uint64(address-block.Address)+uint64(len(data)) > block.Size {
		return ErrorInvalidAddress(address)
	}
	offset := int(address - block.Address)
	cb := s.blocks.LoadOrStore(block.Address, func() *cowBlock { return &cowBlock{} })
	cb.write(offset, data)
	return nil
}

// Read returns size bytes starting at address, which must fall within
// block. Addresses never written return zeros.
func (s *Storage) Read(address domain.Address, size uint64, block *Block) ([]byte, error) {
	if address < block.Address || uint64(address-block.Address)+size > block.Size {
		return nil, ErrorInvalidAddress(address)
	}
	offset := int(address - block.Address)
	cb, ok := s.blocks.Get(block.Address)
	if !ok {
		return make([]byte, size), nil
	}
	return cb.read(offset, int(size)), nil
}

// Remove discards the backing buffer for a block's base address, called by
// GC once the block's own bookkeeping has been collected.
func (s *Storage) Remove(base domain.Address) {
	s.blocks.Delete(base)
}
