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

// Package config carries the kernel's tunable limits and server defaults as
// a single value passed by construction to every manager that needs it, per
// the "Global state" design note in spec.md section 9: nothing is read from
// a package-level global.
package config

import (
	"time"

	"github.com/sandboxrt/kerneld/domain"
)

// Limits holds the system-limit defaults of spec.md section 6.
type Limits struct {
	PipeCapacityDefault uint64
	PipeCapacityMax     uint64
	PipesPerProcess     int
	PipeGlobalMemory    uint64

	MaxPendingSignals int
	MaxSignalHandlers int

	RingsPerProcess       int
	RingSubmissionDepth   int
	RingCompletionDepth   int
	ZeroCopyBufferClasses []uint64

	MemoryArenaCapacity uint64
	MemoryGCThreshold   uint64
}

// DefaultLimits returns the spec.md section 6 defaults.
func DefaultLimits() Limits {
	return Limits{
		PipeCapacityDefault:   64 * 1024,
		PipeCapacityMax:       1 << 20,
		PipesPerProcess:       100,
		PipeGlobalMemory:      50 * 1 << 20,
		MaxPendingSignals:     128,
		MaxSignalHandlers:     32,
		RingsPerProcess:       16,
		RingSubmissionDepth:   256,
		RingCompletionDepth:   256,
		ZeroCopyBufferClasses: []uint64{4 * 1024, 64 * 1024, 1 << 20},
		MemoryArenaCapacity:   1 << 30,
		MemoryGCThreshold:     1024,
	}
}

// ResourceLimit is the per-sandbox-level quota table of spec.md section 6.
type ResourceLimit struct {
	MemoryBytes    uint64
	CPUTime        time.Duration // 0 means unlimited
	MaxFds         int
	MaxSubprocess  int
	MaxNetworkConn int
}

// ResourceLimitsByLevel returns the default resource-limit table indexed by
// SandboxLevel.
func ResourceLimitsByLevel() map[domain.SandboxLevel]ResourceLimit {
	return map[domain.SandboxLevel]ResourceLimit{
		domain.Minimal: {
			MemoryBytes:    10 * 1 << 20,
			CPUTime:        5 * time.Second,
			MaxFds:         10,
			MaxSubprocess:  1,
			MaxNetworkConn: 0,
		},
		domain.Standard: {
			MemoryBytes:    100 * 1 << 20,
			CPUTime:        60 * time.Second,
			MaxFds:         1024,
			MaxSubprocess:  10,
			MaxNetworkConn: 100,
		},
		domain.Privileged: {
			MemoryBytes:    500 * 1 << 20,
			CPUTime:        0,
			MaxFds:         10000,
			MaxSubprocess:  100,
			MaxNetworkConn: 1000,
		},
	}
}

// ServerDefaults are the spec.md section 6 external-interface defaults.
type ServerDefaults struct {
	Address            string
	MaxConnections     int
	Timeout            time.Duration
	KeepaliveInterval  time.Duration
	KeepaliveTimeout   time.Duration
}

func DefaultServer() ServerDefaults {
	return ServerDefaults{
		Address:           "127.0.0.1:50051",
		MaxConnections:    1000,
		Timeout:           120 * time.Second,
		KeepaliveInterval: 60 * time.Second,
		KeepaliveTimeout:  20 * time.Second,
	}
}

// TimeoutPolicy is the per-syscall-category default timeout table of
// spec.md section 4.7, overridable at construction.
type TimeoutPolicy struct {
	IPC         time.Duration
	FileIO      time.Duration
	Fsync       time.Duration
	Network     time.Duration
	ProcessWait time.Duration
}

func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		IPC:         10 * time.Second,
		FileIO:      30 * time.Second,
		Fsync:       60 * time.Second,
		Network:     60 * time.Second,
		ProcessWait: 300 * time.Second,
	}
}

// RateLimit bounds how fast a single pid may submit syscalls into the
// executor's blocking pool, protecting it from one noisy pid starving
// every other process's Blocking/Async dispatch, per spec.md section 4.7.
type RateLimit struct {
	PerSecond float64 // sustained submissions/second; 0 disables limiting
	Burst     int
}

func DefaultRateLimit() RateLimit {
	return RateLimit{PerSecond: 500, Burst: 100}
}
