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

// Package ipc implements the kernel's inter-process communication
// primitives: bounded pipes, FIFO/priority/pub-sub queues, shared memory
// segments and a zero-copy submission/completion ring, per spec.md section
// 4.3.
package ipc

import "errors"

// Sentinel errors shared by every primitive in this package.
var (
	ErrWouldBlock         = errors.New("ipc: operation would block")
	ErrTimeout            = errors.New("ipc: timed out waiting for an event")
	ErrClosed             = errors.New("ipc: resource closed")
	ErrCapacityExceeded   = errors.New("ipc: per-resource capacity exceeded")
	ErrGlobalMemExceeded  = errors.New("ipc: global ipc memory limit exceeded")
	ErrNotFound           = errors.New("ipc: resource not found")
	ErrPermissionDenied   = errors.New("ipc: permission denied")
	ErrSubmissionQueueFull = errors.New("ipc: submission queue full")
)
