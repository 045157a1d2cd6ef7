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

// Package memory implements the kernel's segregated free-list allocator,
// per-PID memory accounting, CoW-backed simulated physical storage and
// block-bookkeeping garbage collection.
package memory

import (
	"errors"
	"fmt"

	"github.com/sandboxrt/kerneld/domain"
)

// Error is memory's closed error taxonomy, collapsed to the wire result at
// the syscalls/api boundary per spec.md section 7.
type Error struct {
	Kind    ErrorKind
	Address domain.Address
	Message string
}

type ErrorKind int

const (
	ErrOutOfMemory ErrorKind = iota
	ErrInvalidAddress
	ErrInvalidSize
)

func (e *Error) Error() string {
	switch e.Kind {
	case ErrOutOfMemory:
		return fmt.Sprintf("memory: out of memory (%s)", e.Message)
	case ErrInvalidAddress:
		return fmt.Sprintf("memory: invalid address 0x%x", uint64(e.Address))
	case ErrInvalidSize:
		return fmt.Sprintf("memory: invalid size (%s)", e.Message)
	default:
		return "memory: unknown error"
	}
}

func ErrorOutOfMemory(msg string) error { return &Error{Kind: ErrOutOfMemory, Message: msg} }
func ErrorInvalidAddress(addr domain.Address) error {
	return &Error{Kind: ErrInvalidAddress, Address: addr}
}
func ErrorInvalidSize(msg string) error { return &Error{Kind: ErrInvalidSize, Message: msg} }

// IsNotFound reports whether err is an invalid-address error, the memory
// package's analogue of a not-found error.
func IsNotFound(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == ErrInvalidAddress
	}
	return false
}

// Block is one tracked region of the simulated address space.
type Block struct {
	Address   domain.Address
	Size      uint64
	Pid       domain.Pid
	Allocated bool
}

// Pressure mirrors the pressure bands a caller can poll before deciding
// whether to pre-emptively free memory.
type Pressure int

const (
	PressureLow Pressure = iota
	PressureMedium
	PressureHigh
	PressureCritical
)

// Stats is the overall allocator snapshot returned by Manager.Stats.
type Stats struct {
	TotalCapacity    uint64
	UsedBytes        uint64
	AllocatedBlocks  int
	DeallocatedCount uint64
	FreeListSize     int
}

// Pressure derives a Pressure band from UsedBytes/TotalCapacity.
func (s Stats) Pressure() Pressure {
	if s.TotalCapacity == 0 {
		return PressureLow
	}
	ratio := float64(s.UsedBytes) / float64(s.TotalCapacity)
	switch {
	case ratio >= 0.95:
		return PressureCritical
	case ratio >= 0.80:
		return PressureHigh
	case ratio >= 0.50:
		return PressureMedium
	default:
		return PressureLow
	}
}

// ProcessStats is the per-PID accounting snapshot.
type ProcessStats struct {
	CurrentBytes    uint64
	PeakBytes       uint64
	AllocationCount int
}
